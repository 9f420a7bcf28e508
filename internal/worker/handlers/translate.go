package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/nmtran/snapfeed-be/internal/queue"
	"github.com/nmtran/snapfeed-be/internal/worker/domain"
)

// supportedPairs lists the language pairs a translation model exists for.
// All pairs route through English.
var supportedPairs = map[string]struct{}{
	"en-ru": {}, "ru-en": {},
	"en-de": {}, "de-en": {},
	"en-es": {}, "es-en": {},
	"en-fr": {}, "fr-en": {},
}

// Translate processes translation jobs and replies on the response queue.
// The source language is auto-detected when the caller omits it; an
// unsupported pair is a terminal failure surfaced to the waiting caller.
type Translate struct {
	infer Inferencer
}

// NewTranslate creates a translation handler
func NewTranslate(infer Inferencer) *Translate {
	return &Translate{infer: infer}
}

// JobType implements worker.Handler
func (h *Translate) JobType() string {
	return queue.JobTypeTranslate
}

// ReplyExpected implements worker.Handler
func (h *Translate) ReplyExpected() bool {
	return true
}

// Handle translates the text into the target language
func (h *Translate) Handle(ctx context.Context, job *queue.JobMessage) (map[string]string, error) {
	text := strings.TrimSpace(job.Payload["text"])
	if text == "" {
		return nil, fmt.Errorf("%w: missing payload field text", domain.ErrInvalidPayload)
	}

	targetLang, err := requireField(job, "target_lang")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	sourceLang := job.Payload["source_lang"]
	if sourceLang == "" {
		sourceLang = DetectLanguage(text)
	}

	// Same-language requests pass through untranslated
	if sourceLang == targetLang {
		return map[string]string{
			"translated_text": text,
			"detected_lang":   sourceLang,
			"source_lang":     sourceLang,
			"target_lang":     targetLang,
		}, nil
	}

	pair := sourceLang + "-" + targetLang
	if _, ok := supportedPairs[pair]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedLanguagePair, pair)
	}

	output, err := h.infer.Infer(ctx, queue.JobTypeTranslate, map[string]string{
		"text":        text,
		"source_lang": sourceLang,
		"target_lang": targetLang,
	})
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"translated_text": output["translated_text"],
		"detected_lang":   sourceLang,
		"source_lang":     sourceLang,
		"target_lang":     targetLang,
	}, nil
}

// DetectLanguage guesses the language of the text from its character set.
// Defaults to English when nothing distinctive is found.
func DetectLanguage(text string) string {
	for _, r := range text {
		if r >= 'Ѐ' && r <= 'ӿ' {
			return "ru"
		}
	}
	if strings.ContainsAny(text, "äöüßÄÖÜ") {
		return "de"
	}
	if strings.ContainsAny(text, "ñáéíóúÑÁÉÍÓÚ¿¡") {
		return "es"
	}
	if strings.ContainsAny(text, "àâéèêëïîôùûçÀÂÉÈÊËÏÎÔÙÛÇ") {
		return "fr"
	}
	return "en"
}
