package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nmtran/snapfeed-be/internal/metrics"
	"github.com/nmtran/snapfeed-be/internal/queue"
)

// Publisher is the broker surface the dispatcher needs
type Publisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

// Topology maps job types to the queue names both sides agreed on
type Topology struct {
	ImageResize       string
	SentimentAnalysis string
	TextGeneration    string
	Translation       string
	JobResponse       string
}

// DefaultTopology returns the standard queue names
func DefaultTopology() Topology {
	return Topology{
		ImageResize:       queue.ImageResizeQueue,
		SentimentAnalysis: queue.SentimentAnalysisQueue,
		TextGeneration:    queue.TextGenerationQueue,
		Translation:       queue.TranslationQueue,
		JobResponse:       queue.JobResponseQueue,
	}
}

// QueueFor returns the job queue for a job type
func (t Topology) QueueFor(jobType string) (string, error) {
	switch jobType {
	case queue.JobTypeResize:
		return t.ImageResize, nil
	case queue.JobTypeSentiment:
		return t.SentimentAnalysis, nil
	case queue.JobTypeGenerate:
		return t.TextGeneration, nil
	case queue.JobTypeTranslate:
		return t.Translation, nil
	default:
		return "", fmt.Errorf("unknown job type: %s", jobType)
	}
}

// Job is a unit of work to dispatch
type Job struct {
	Type      string
	TargetRef string
	Payload   map[string]string
}

// Dispatcher builds job messages and publishes them to the broker, either
// fire-and-forget or paired with a correlation waiter for reply-expecting
// job types.
type Dispatcher struct {
	publisher Publisher
	topology  Topology
	waiters   *WaiterTable
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher sharing the given waiter table with
// the response listener.
func NewDispatcher(publisher Publisher, topology Topology, waiters *WaiterTable, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		topology:  topology,
		waiters:   waiters,
		logger:    logger,
	}
}

// SubmitFireAndForget publishes a job with no correlation ID and returns
// immediately. The eventual effect is a storage write performed by a
// worker; nothing is observable synchronously.
func (d *Dispatcher) SubmitFireAndForget(ctx context.Context, job *Job) error {
	queueName, err := d.topology.QueueFor(job.Type)
	if err != nil {
		return err
	}

	body, err := queue.EncodeJobMessage(&queue.JobMessage{
		JobType:   job.Type,
		TargetRef: job.TargetRef,
		Payload:   job.Payload,
	})
	if err != nil {
		return err
	}

	if err := d.publisher.Publish(ctx, queueName, body); err != nil {
		return fmt.Errorf("failed to publish %s job: %w", job.Type, err)
	}

	metrics.JobsPublishedTotal.WithLabelValues(queueName).Inc()

	d.logger.Debug("Fire-and-forget job published",
		slog.String("job_type", job.Type),
		slog.String("queue", queueName),
		slog.String("target_reference", job.TargetRef),
	)

	return nil
}

// SubmitAndWait registers a correlation waiter, publishes the job carrying
// the fresh correlation ID, then blocks until the response listener fills
// the delivery slot or the timeout elapses. Exactly one of
// {result, ErrTimeout, explicit failure} is returned, and the waiter is
// removed from the table on every exit path.
func (d *Dispatcher) SubmitAndWait(ctx context.Context, job *Job, timeout time.Duration) (map[string]string, error) {
	queueName, err := d.topology.QueueFor(job.Type)
	if err != nil {
		return nil, err
	}

	correlationID := uuid.New().String()

	body, err := queue.EncodeJobMessage(&queue.JobMessage{
		JobType:       job.Type,
		CorrelationID: correlationID,
		TargetRef:     job.TargetRef,
		Payload:       job.Payload,
	})
	if err != nil {
		return nil, err
	}

	// Register before publish so a fast worker cannot reply into a void.
	slot := d.waiters.register(correlationID, timeout)

	if err := d.publisher.Publish(ctx, queueName, body); err != nil {
		d.waiters.remove(correlationID)
		return nil, fmt.Errorf("failed to publish %s job: %w", job.Type, err)
	}

	metrics.JobsPublishedTotal.WithLabelValues(queueName).Inc()

	d.logger.Debug("Reply-expecting job published",
		slog.String("job_type", job.Type),
		slog.String("queue", queueName),
		slog.String("correlation_id", correlationID),
		slog.Duration("timeout", timeout),
	)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-slot:
		return d.unpack(resp)

	case <-timer.C:
		if _, ok := d.waiters.remove(correlationID); !ok {
			// The listener won the race at the deadline; its send into
			// the slot is already committed.
			resp := <-slot
			return d.unpack(resp)
		}

		metrics.WaitTimeoutsTotal.Inc()
		d.logger.Warn("Reply-expecting job timed out",
			slog.String("job_type", job.Type),
			slog.String("correlation_id", correlationID),
			slog.Duration("timeout", timeout),
		)
		return nil, ErrTimeout

	case <-ctx.Done():
		if _, ok := d.waiters.remove(correlationID); !ok {
			resp := <-slot
			return d.unpack(resp)
		}
		return nil, ctx.Err()
	}
}

// unpack converts a response into the caller-facing result or failure
func (d *Dispatcher) unpack(resp *queue.ResponseMessage) (map[string]string, error) {
	if resp.Failed() {
		return nil, &JobFailedError{Reason: resp.Error}
	}
	return resp.Result, nil
}
