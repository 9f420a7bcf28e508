package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nmtran/snapfeed-be/internal/metrics"
	"github.com/nmtran/snapfeed-be/internal/queue"
	"github.com/nmtran/snapfeed-be/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker is the broker surface the runtime needs
type Broker interface {
	DeclareQueue(name string) error
	Consume(queueName, consumerTag string, prefetch int) (<-chan amqp.Delivery, error)
	Publish(ctx context.Context, queueName string, body []byte) error
}

// ResultStore applies a fire-and-forget job result to the target domain
// record. Implementations must use overwrite semantics keyed by the target
// reference so redelivered jobs converge to the same final state.
type ResultStore interface {
	ApplyResult(ctx context.Context, targetRef string, fields map[string]string) error
}

// Handler performs the job-type-specific transformation for one worker
// variant. The four variants differ only in their handler; the
// consume/ack/retry loop is shared.
type Handler interface {
	// JobType returns the job type this handler processes
	JobType() string
	// ReplyExpected reports whether results go to the response queue
	// instead of directly into storage
	ReplyExpected() bool
	// Handle runs the transformation and returns the result field set.
	// Transient errors (wrapped with domain.NewTransientError) trigger
	// redelivery; any other error is terminal.
	Handle(ctx context.Context, job *queue.JobMessage) (map[string]string, error)
}

// Config holds worker runtime configuration
type Config struct {
	Logger        *slog.Logger
	Broker        Broker
	Handler       Handler
	Store         ResultStore
	WorkerID      string
	JobQueue      string
	ResponseQueue string
	Concurrency   int
	Prefetch      int
	JobTimeout    time.Duration
}

// Runtime is the generic consume-process-ack loop shared by all four
// worker variants.
type Runtime struct {
	logger        *slog.Logger
	broker        Broker
	handler       Handler
	store         ResultStore
	workerID      string
	jobQueue      string
	responseQueue string
	concurrency   int
	prefetch      int
	jobTimeout    time.Duration

	jobsChan chan amqp.Delivery
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a worker runtime
func New(cfg *Config) *Runtime {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = cfg.Concurrency
	}

	return &Runtime{
		logger:        cfg.Logger,
		broker:        cfg.Broker,
		handler:       cfg.Handler,
		store:         cfg.Store,
		workerID:      cfg.WorkerID,
		jobQueue:      cfg.JobQueue,
		responseQueue: cfg.ResponseQueue,
		concurrency:   cfg.Concurrency,
		prefetch:      prefetch,
		jobTimeout:    cfg.JobTimeout,
		jobsChan:      make(chan amqp.Delivery),
		stopChan:      make(chan struct{}),
	}
}

// Start declares the queues, spawns the processing pool, and dispatches
// deliveries until the context is canceled.
func (r *Runtime) Start(ctx context.Context) error {
	r.logger.Info("Starting worker runtime",
		slog.String("worker_id", r.workerID),
		slog.String("job_type", r.handler.JobType()),
		slog.String("queue", r.jobQueue),
		slog.Int("concurrency", r.concurrency),
	)

	if err := r.broker.DeclareQueue(r.jobQueue); err != nil {
		return fmt.Errorf("failed to declare job queue: %w", err)
	}

	if r.handler.ReplyExpected() {
		if err := r.broker.DeclareQueue(r.responseQueue); err != nil {
			return fmt.Errorf("failed to declare response queue: %w", err)
		}
	}

	deliveries, err := r.broker.Consume(r.jobQueue, r.workerID, r.prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	r.spawnPool(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Worker runtime stopped - context canceled")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				r.logger.Warn("RabbitMQ delivery channel closed")
				return nil
			}

			select {
			case r.jobsChan <- delivery:
			case <-ctx.Done():
				// Requeue so another consumer picks it up after shutdown
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					r.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return nil
			}
		}
	}
}

// Stop waits for in-flight jobs to finish
func (r *Runtime) Stop() {
	r.logger.Info("Stopping worker runtime...")
	close(r.stopChan)
	r.wg.Wait()
	r.logger.Info("Worker runtime stopped")
}

// spawnPool spawns N processing goroutines based on concurrency
func (r *Runtime) spawnPool(ctx context.Context) {
	for i := 0; i < r.concurrency; i++ {
		r.wg.Add(1)
		go r.workerLoop(ctx, i)
	}

	r.logger.Info("Worker pool spawned",
		slog.Int("worker_count", r.concurrency),
	)
}

// workerLoop is the main processing loop for each pool goroutine
func (r *Runtime) workerLoop(ctx context.Context, workerNum int) {
	defer r.wg.Done()

	workerName := fmt.Sprintf("%s-%d", r.workerID, workerNum)

	for {
		select {
		case <-r.stopChan:
			return

		case <-ctx.Done():
			return

		case delivery, ok := <-r.jobsChan:
			if !ok {
				return
			}
			r.ProcessDelivery(ctx, workerName, delivery)
		}
	}
}

// ProcessDelivery handles one delivery end to end: decode, transform,
// write-or-reply, acknowledge. A handler error never crashes the loop.
func (r *Runtime) ProcessDelivery(ctx context.Context, workerName string, delivery amqp.Delivery) {
	job, err := queue.DecodeJobMessage(delivery.Body)
	if err != nil {
		// Malformed payload is terminal: ack to keep it off the queue
		r.logger.Error("Failed to decode job message, discarding",
			slog.String("worker_name", workerName),
			slog.String("error", err.Error()),
			slog.String("body", string(delivery.Body)),
		)
		metrics.JobsProcessedTotal.WithLabelValues(r.handler.JobType(), "terminal").Inc()
		r.ack(delivery, workerName)
		return
	}

	r.logger.Info("Processing job",
		slog.String("worker_name", workerName),
		slog.String("job_type", job.JobType),
		slog.String("correlation_id", job.CorrelationID),
		slog.String("target_reference", job.TargetRef),
	)

	jobCtx := ctx
	if r.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, r.jobTimeout)
		defer cancel()
	}

	result, err := r.handler.Handle(jobCtx, job)
	if err != nil {
		r.handleError(ctx, workerName, delivery, job, err)
		return
	}

	if r.handler.ReplyExpected() {
		if !r.publishResponse(ctx, &queue.ResponseMessage{
			CorrelationID: job.CorrelationID,
			Result:        result,
		}) {
			// Couldn't deliver the reply; requeue the job so a later
			// attempt can. The listener drops the eventual duplicate.
			r.nack(delivery, workerName, true)
			metrics.JobsProcessedTotal.WithLabelValues(job.JobType, "transient").Inc()
			return
		}
	} else if job.TargetRef != "" && len(result) > 0 {
		if err := r.store.ApplyResult(ctx, job.TargetRef, result); err != nil {
			r.logger.Error("Failed to apply job result, requeueing",
				slog.String("worker_name", workerName),
				slog.String("target_reference", job.TargetRef),
				slog.String("error", err.Error()),
			)
			r.nack(delivery, workerName, true)
			metrics.JobsProcessedTotal.WithLabelValues(job.JobType, "transient").Inc()
			return
		}
	}

	metrics.JobsProcessedTotal.WithLabelValues(job.JobType, "success").Inc()
	r.ack(delivery, workerName)

	r.logger.Info("Job completed successfully",
		slog.String("worker_name", workerName),
		slog.String("job_type", job.JobType),
		slog.String("correlation_id", job.CorrelationID),
	)
}

// handleError applies the error policy: transient errors are requeued for
// redelivery, terminal errors are acknowledged so they cannot loop, with a
// failure-tagged response for reply-expecting jobs.
func (r *Runtime) handleError(ctx context.Context, workerName string, delivery amqp.Delivery, job *queue.JobMessage, err error) {
	if domain.IsTransient(err) {
		r.logger.Warn("Job failed with transient error, requeueing",
			slog.String("worker_name", workerName),
			slog.String("job_type", job.JobType),
			slog.String("error", err.Error()),
		)
		metrics.JobsProcessedTotal.WithLabelValues(job.JobType, "transient").Inc()
		r.nack(delivery, workerName, true)
		return
	}

	r.logger.Error("Job failed with terminal error",
		slog.String("worker_name", workerName),
		slog.String("job_type", job.JobType),
		slog.String("correlation_id", job.CorrelationID),
		slog.String("error", err.Error()),
	)

	if r.handler.ReplyExpected() && job.CorrelationID != "" {
		r.publishResponse(ctx, &queue.ResponseMessage{
			CorrelationID: job.CorrelationID,
			Error:         err.Error(),
		})
	}

	metrics.JobsProcessedTotal.WithLabelValues(job.JobType, "terminal").Inc()
	r.ack(delivery, workerName)
}

// publishResponse publishes a response message, reporting success
func (r *Runtime) publishResponse(ctx context.Context, resp *queue.ResponseMessage) bool {
	body, err := queue.EncodeResponseMessage(resp)
	if err != nil {
		r.logger.Error("Failed to encode response message",
			slog.String("correlation_id", resp.CorrelationID),
			slog.String("error", err.Error()),
		)
		return false
	}

	if err := r.broker.Publish(ctx, r.responseQueue, body); err != nil {
		r.logger.Error("Failed to publish response message",
			slog.String("correlation_id", resp.CorrelationID),
			slog.String("error", err.Error()),
		)
		return false
	}

	return true
}

func (r *Runtime) ack(delivery amqp.Delivery, workerName string) {
	if err := delivery.Ack(false); err != nil {
		r.logger.Error("Failed to ACK message",
			slog.String("worker_name", workerName),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Runtime) nack(delivery amqp.Delivery, workerName string, requeue bool) {
	if err := delivery.Nack(false, requeue); err != nil {
		r.logger.Error("Failed to NACK message",
			slog.String("worker_name", workerName),
			slog.Bool("requeue", requeue),
			slog.String("error", err.Error()),
		)
	}
}
