package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/nmtran/snapfeed-be/internal/queue"
	"github.com/nmtran/snapfeed-be/internal/worker/domain"
)

const (
	defaultMaxNewTokens = "60"
	defaultTemperature  = "0.75"
)

// Generate processes text-generation jobs and replies on the response
// queue. The prompt is assembled from the user's draft text and tags; an
// empty request is a terminal failure surfaced to the waiting caller.
type Generate struct {
	infer Inferencer
}

// NewGenerate creates a text generation handler
func NewGenerate(infer Inferencer) *Generate {
	return &Generate{infer: infer}
}

// JobType implements worker.Handler
func (h *Generate) JobType() string {
	return queue.JobTypeGenerate
}

// ReplyExpected implements worker.Handler
func (h *Generate) ReplyExpected() bool {
	return true
}

// Handle assembles the prompt, runs generation, and recombines the output
// with the user's draft and tags.
func (h *Generate) Handle(ctx context.Context, job *queue.JobMessage) (map[string]string, error) {
	promptText := strings.TrimSpace(job.Payload["prompt_text"])
	tags := strings.TrimSpace(job.Payload["tags"])

	if promptText == "" && tags == "" {
		return nil, fmt.Errorf("%w: please enter text or tags to generate a post", domain.ErrInvalidPayload)
	}

	var finalPrompt string
	if promptText != "" {
		finalPrompt = "Continue and improve this social media post, make it more engaging and detailed: " + promptText
	} else {
		finalPrompt = fmt.Sprintf("Write an interesting social media post about %s. Make it engaging and personal.", tags)
	}

	maxNewTokens := job.Payload["max_new_tokens"]
	if maxNewTokens == "" {
		maxNewTokens = defaultMaxNewTokens
	}
	temperature := job.Payload["temperature"]
	if temperature == "" {
		temperature = defaultTemperature
	}

	output, err := h.infer.Infer(ctx, queue.JobTypeGenerate, map[string]string{
		"prompt":         finalPrompt,
		"max_new_tokens": maxNewTokens,
		"temperature":    temperature,
	})
	if err != nil {
		return nil, err
	}

	generated := strings.TrimSpace(output["generated_text"])

	// Recombine: keep the user's draft in front, tags at the end
	finalText := generated
	if promptText != "" {
		finalText = strings.TrimSpace(promptText + " " + generated)
	}
	if tags != "" {
		finalText = strings.TrimSpace(finalText + " " + tags)
	}

	return map[string]string{
		"generated_text": finalText,
	}, nil
}
