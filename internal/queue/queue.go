package queue

import "context"

const (
	// WebhookQueue carries post-dispatch customer notifications.
	WebhookQueue = "webhooks"
	// WebhookDLQ collects webhook events that exhausted redelivery.
	WebhookDLQ = "dlq.webhooks"
)

// Publisher enqueues webhook events. Dispatch never awaits delivery; the
// enqueue is the only coupling between the send path and the notifier.
type Publisher interface {
	Publish(ctx context.Context, queue string, event WebhookEvent) error
	Close() error
}

// EventHandler handles a consumed webhook event.
type EventHandler func(ctx context.Context, event WebhookEvent) error

// Consumer consumes webhook events from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler EventHandler) error
	Close() error
}
