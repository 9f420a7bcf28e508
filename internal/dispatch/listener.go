package dispatch

import (
	"context"
	"log/slog"

	"github.com/nmtran/snapfeed-be/internal/metrics"
	"github.com/nmtran/snapfeed-be/internal/queue"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer is the broker surface the listener needs
type Consumer interface {
	Consume(queueName, consumerTag string, prefetch int) (<-chan amqp.Delivery, error)
}

// Listener is the single long-lived consumer of the shared response queue.
// It routes each response to the matching waiter; responses with no waiter
// (stale redeliveries, callers that already timed out) are acknowledged and
// dropped so poison messages cannot accumulate.
type Listener struct {
	consumer  Consumer
	waiters   *WaiterTable
	queueName string
	logger    *slog.Logger
}

// NewListener creates a response listener over the shared waiter table
func NewListener(consumer Consumer, waiters *WaiterTable, queueName string, logger *slog.Logger) *Listener {
	return &Listener{
		consumer:  consumer,
		waiters:   waiters,
		queueName: queueName,
		logger:    logger,
	}
}

// Run consumes the response queue until the context is canceled or the
// delivery channel closes. Call it on its own goroutine.
func (l *Listener) Run(ctx context.Context) error {
	deliveries, err := l.consumer.Consume(l.queueName, "response-listener", 1)
	if err != nil {
		return err
	}

	l.logger.Info("Response listener started",
		slog.String("queue", l.queueName),
	)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Response listener stopped - context canceled")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				l.logger.Warn("Response delivery channel closed")
				return nil
			}

			l.handleDelivery(delivery)
		}
	}
}

// handleDelivery routes one response and always acknowledges it
func (l *Listener) handleDelivery(delivery amqp.Delivery) {
	resp, err := queue.DecodeResponseMessage(delivery.Body)
	if err != nil {
		l.logger.Error("Failed to decode response message, discarding",
			slog.String("error", err.Error()),
			slog.String("body", string(delivery.Body)),
		)
		l.ack(delivery)
		return
	}

	if l.waiters.deliver(resp) {
		l.logger.Debug("Response delivered to waiter",
			slog.String("correlation_id", resp.CorrelationID),
			slog.Bool("failed", resp.Failed()),
		)
	} else {
		metrics.OrphanedResponsesTotal.Inc()
		l.logger.Debug("Orphaned response discarded",
			slog.String("correlation_id", resp.CorrelationID),
		)
	}

	l.ack(delivery)
}

func (l *Listener) ack(delivery amqp.Delivery) {
	if err := delivery.Ack(false); err != nil {
		l.logger.Error("Failed to ACK response message",
			slog.String("error", err.Error()),
		)
	}
}
