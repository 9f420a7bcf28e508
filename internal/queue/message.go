package queue

import (
	"encoding/json"
	"fmt"
)

// Job types understood by the worker runtimes
const (
	JobTypeResize    = "RESIZE"
	JobTypeSentiment = "SENTIMENT"
	JobTypeGenerate  = "GENERATE"
	JobTypeTranslate = "TRANSLATE"
)

// Queue names. Both dispatcher and workers must agree on these; they are
// overridable through configuration but default to the values here.
const (
	ImageResizeQueue       = "image_resize_queue"
	SentimentAnalysisQueue = "sentiment_analysis_queue"
	TextGenerationQueue    = "text_generation_queue"
	TranslationQueue       = "translation_queue"
	JobResponseQueue       = "job_response_queue"
)

// JobMessage is the unit of work published to a job queue.
// CorrelationID is set only for reply-expecting jobs; TargetRef identifies
// the domain record a fire-and-forget result applies to.
type JobMessage struct {
	JobType       string            `json:"job_type"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	TargetRef     string            `json:"target_reference,omitempty"`
	Payload       map[string]string `json:"payload"`
}

// ResponseMessage carries a reply for a correlation ID on the shared
// response queue. Result and Error are mutually exclusive.
type ResponseMessage struct {
	CorrelationID string            `json:"correlation_id"`
	Result        map[string]string `json:"result,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// Failed reports whether the response carries a failure descriptor
func (r *ResponseMessage) Failed() bool {
	return r.Error != ""
}

// EncodeJobMessage serializes a JobMessage for publishing
func EncodeJobMessage(msg *JobMessage) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job message: %w", err)
	}
	return body, nil
}

// DecodeJobMessage parses a JobMessage from a delivery body
func DecodeJobMessage(body []byte) (*JobMessage, error) {
	var msg JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode job message: %w", err)
	}
	if msg.JobType == "" {
		return nil, fmt.Errorf("job message missing job_type")
	}
	return &msg, nil
}

// EncodeResponseMessage serializes a ResponseMessage for publishing
func EncodeResponseMessage(msg *ResponseMessage) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response message: %w", err)
	}
	return body, nil
}

// DecodeResponseMessage parses a ResponseMessage from a delivery body
func DecodeResponseMessage(body []byte) (*ResponseMessage, error) {
	var msg ResponseMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode response message: %w", err)
	}
	if msg.CorrelationID == "" {
		return nil, fmt.Errorf("response message missing correlation_id")
	}
	return &msg, nil
}
