package queue

import (
	"testing"
	"time"

	"github.com/sendbridge/core/internal/domain"
)

func validEvent() WebhookEvent {
	return WebhookEvent{
		Event:         "dispatch.sent",
		TransactionID: "txn_1",
		CustomerID:    "cust-1",
		Service:       domain.ServiceSMS,
		Status:        "SENT",
		CallbackURL:   "https://example.com/hooks",
		OccurredAt:    time.Unix(1_700_000_000, 0),
	}
}

func TestWebhookEventValidate(t *testing.T) {
	t.Parallel()

	if err := validEvent().Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}

	tests := []struct {
		name   string
		mutate func(*WebhookEvent)
	}{
		{"missing event name", func(e *WebhookEvent) { e.Event = " " }},
		{"missing transaction id", func(e *WebhookEvent) { e.TransactionID = "" }},
		{"invalid service", func(e *WebhookEvent) { e.Service = "FAX" }},
		{"missing callback url", func(e *WebhookEvent) { e.CallbackURL = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			event := validEvent()
			tt.mutate(&event)
			if err := event.Validate(); err == nil {
				t.Fatal("Validate() should fail")
			}
		})
	}
}
