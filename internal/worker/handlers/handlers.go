package handlers

import (
	"context"
	"fmt"

	"github.com/nmtran/snapfeed-be/internal/queue"
	"github.com/nmtran/snapfeed-be/internal/worker"
)

// Inferencer is the opaque model call every handler makes exactly once per
// job. Implementations classify their own failures as transient or
// terminal.
type Inferencer interface {
	Infer(ctx context.Context, jobType string, input map[string]string) (map[string]string, error)
}

// ForType returns the handler for a worker type name as used by the
// worker-service -worker flag and config.
func ForType(workerType string, infer Inferencer, uploadDir string) (worker.Handler, error) {
	switch workerType {
	case "resize":
		return NewResize(infer, uploadDir), nil
	case "sentiment":
		return NewSentiment(infer), nil
	case "generate":
		return NewGenerate(infer), nil
	case "translate":
		return NewTranslate(infer), nil
	default:
		return nil, fmt.Errorf("unknown worker type: %s", workerType)
	}
}

// requireField extracts a required payload field
func requireField(job *queue.JobMessage, name string) (string, error) {
	value, ok := job.Payload[name]
	if !ok || value == "" {
		return "", fmt.Errorf("missing payload field %s", name)
	}
	return value, nil
}
