package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/sendbridge/core/internal/domain"
)

// WebhookEvent is the broker payload for one post-dispatch notification.
type WebhookEvent struct {
	Event             string             `json:"event"`
	TransactionID     string             `json:"transactionId"`
	CustomerID        string             `json:"customerId"`
	Service           domain.ServiceType `json:"service"`
	Status            string             `json:"status"`
	ProviderMessageID string             `json:"providerMessageId,omitempty"`
	CallbackURL       string             `json:"callbackUrl"`
	OccurredAt        time.Time          `json:"occurredAt"`
}

func (e WebhookEvent) Validate() error {
	if strings.TrimSpace(e.Event) == "" {
		return fmt.Errorf("event is required")
	}
	if strings.TrimSpace(e.TransactionID) == "" {
		return fmt.Errorf("transactionId is required")
	}
	if !e.Service.IsValid() {
		return fmt.Errorf("invalid service %q", e.Service)
	}
	if strings.TrimSpace(e.CallbackURL) == "" {
		return fmt.Errorf("callbackUrl is required")
	}
	return nil
}
