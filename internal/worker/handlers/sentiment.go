package handlers

import (
	"context"
	"strings"

	"github.com/nmtran/snapfeed-be/internal/queue"
	"github.com/nmtran/snapfeed-be/internal/worker/domain"
)

// Sentiment labels as stored on posts
const (
	SentimentNegative = "NEGATIVE"
	SentimentNeutral  = "NEUTRAL"
	SentimentPositive = "POSITIVE"
)

// labelMapping maps raw model labels to stored sentiment labels
var labelMapping = map[string]string{
	"LABEL_0": SentimentNegative,
	"LABEL_1": SentimentNeutral,
	"LABEL_2": SentimentPositive,
}

// Sentiment processes sentiment-analysis jobs. Empty text and terminal
// model failures both fall back to a neutral result so the post always
// ends up with a sentiment; only transient backend errors are retried.
type Sentiment struct {
	infer Inferencer
}

// NewSentiment creates a sentiment handler
func NewSentiment(infer Inferencer) *Sentiment {
	return &Sentiment{infer: infer}
}

// JobType implements worker.Handler
func (h *Sentiment) JobType() string {
	return queue.JobTypeSentiment
}

// ReplyExpected implements worker.Handler; sentiment results go to storage
func (h *Sentiment) ReplyExpected() bool {
	return false
}

// Handle analyzes the post text and returns the sentiment fields
func (h *Sentiment) Handle(ctx context.Context, job *queue.JobMessage) (map[string]string, error) {
	text := strings.TrimSpace(job.Payload["text"])
	if text == "" {
		return neutralResult(), nil
	}

	output, err := h.infer.Infer(ctx, queue.JobTypeSentiment, map[string]string{
		"text": text,
	})
	if err != nil {
		if domain.IsTransient(err) {
			return nil, err
		}
		// Bad input never improves on retry; record the neutral fallback
		return neutralResult(), nil
	}

	label, ok := labelMapping[output["label"]]
	if !ok {
		label = SentimentNeutral
	}

	score := output["score"]
	if score == "" {
		score = "0.5"
	}

	return map[string]string{
		"sentiment_label": label,
		"sentiment_score": score,
	}, nil
}

func neutralResult() map[string]string {
	return map[string]string{
		"sentiment_label": SentimentNeutral,
		"sentiment_score": "0.5",
	}
}
