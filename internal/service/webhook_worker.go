package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sendbridge/core/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const webhookDeliveryTimeout = 10 * time.Second

// WebhookWorker drains the webhook queue and POSTs each event to the
// customer's callback URL. Delivery failures are nacked back to the broker
// and eventually land in the DLQ.
type WebhookWorker struct {
	consumer    queue.Consumer
	client      *resty.Client
	concurrency int
	logger      *zap.Logger
}

func NewWebhookWorker(consumer queue.Consumer, concurrency int, logger *zap.Logger) *WebhookWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetTimeout(webhookDeliveryTimeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "sendbridge-webhook/1.0")

	return &WebhookWorker{
		consumer:    consumer,
		client:      client,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run blocks consuming the webhook queue until the context is canceled.
func (w *WebhookWorker) Run(ctx context.Context) error {
	if w == nil || w.consumer == nil {
		return fmt.Errorf("webhook worker is not initialized")
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			return w.consumer.Consume(gctx, queue.WebhookQueue, w.deliver)
		})
	}
	return g.Wait()
}

func (w *WebhookWorker) deliver(ctx context.Context, event queue.WebhookEvent) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(event).
		Post(event.CallbackURL)
	if err != nil {
		w.logger.Warn("webhook delivery failed",
			zap.String("transactionId", event.TransactionID),
			zap.Error(err),
		)
		return err
	}
	if resp.IsError() {
		w.logger.Warn("webhook rejected by callback endpoint",
			zap.String("transactionId", event.TransactionID),
			zap.Int("status", resp.StatusCode()),
		)
		return fmt.Errorf("callback endpoint returned status %d", resp.StatusCode())
	}

	w.logger.Debug("webhook delivered",
		zap.String("transactionId", event.TransactionID),
		zap.String("event", event.Event),
	)
	return nil
}
