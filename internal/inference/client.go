package inference

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/nmtran/snapfeed-be/internal/worker/domain"
)

// Client calls the model-serving backend. The model internals are opaque:
// the worker sends the job input and receives the output field set. A 4xx
// response is a terminal bad-input error; 5xx and transport errors are
// transient and trigger redelivery.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// inferRequest is the request body for the inference endpoint
type inferRequest struct {
	Input map[string]string `json:"input"`
}

// inferResponse is the response body from the inference endpoint
type inferResponse struct {
	Output map[string]string `json:"output,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// NewClient creates an inference client for the given base URL
func NewClient(baseURL string, requestTimeout time.Duration, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		logger: logger,
	}
}

// Infer runs one inference call for the given job type
func (c *Client) Infer(ctx context.Context, jobType string, input map[string]string) (map[string]string, error) {
	var result inferResponse

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&inferRequest{Input: input}).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("/v1/infer/%s", strings.ToLower(jobType)))

	if err != nil {
		c.logger.Warn("Inference backend unreachable",
			slog.String("job_type", jobType),
			slog.String("error", err.Error()),
		)
		return nil, domain.NewTransientError(fmt.Errorf("inference request failed: %w", err))
	}

	c.logger.Debug("Inference call completed",
		slog.String("job_type", jobType),
		slog.Int("status", resp.StatusCode()),
		slog.Duration("latency", time.Since(start)),
	)

	switch {
	case resp.IsSuccess():
		return result.Output, nil

	case resp.StatusCode() >= 500:
		return nil, domain.NewTransientError(
			fmt.Errorf("inference backend returned %d: %s", resp.StatusCode(), result.Error),
		)

	default:
		// 4xx: the input itself is bad, retrying cannot help
		reason := result.Error
		if reason == "" {
			reason = resp.Status()
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidPayload, reason)
	}
}
