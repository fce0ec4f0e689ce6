package escalate

import (
	"context"
	"fmt"
	"time"

	"github.com/sendbridge/core/internal/classify"
	"github.com/sendbridge/core/internal/domain"
	"github.com/sendbridge/core/internal/provider"
	"go.uber.org/zap"
)

const escalationTimeout = 15 * time.Second

// Alert is the operator notification for one classified failure. It is
// ephemeral; nothing beyond the errorId it carries is persisted here.
type Alert struct {
	ErrorID          string
	Severity         classify.Severity
	Service          domain.ServiceType
	Provider         string
	Message          string
	CustomerIDPrefix string
	Timestamp        time.Time
}

// Escalator fans alerts out to operator SMS and email. The clients must be
// dedicated administrative senders, not the customer-traffic providers, so an
// upstream outage cannot suppress the alert about itself.
type Escalator struct {
	sms        provider.Provider
	email      provider.Provider
	alertPhone string
	alertEmail string
	logger     *zap.Logger
	onResult   func(channel, result string)
}

func NewEscalator(sms, email provider.Provider, alertPhone, alertEmail string, logger *zap.Logger) *Escalator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Escalator{
		sms:        sms,
		email:      email,
		alertPhone: alertPhone,
		alertEmail: alertEmail,
		logger:     logger,
	}
}

// SetResultHook registers a callback per channel attempt. Used to feed metrics.
func (e *Escalator) SetResultHook(fn func(channel, result string)) {
	if e == nil {
		return
	}
	e.onResult = fn
}

// ShouldEscalate applies the severity policy: critical always, high only once
// fallbacks are exhausted (repeated failure), never below.
func ShouldEscalate(severity classify.Severity, fallbacksExhausted bool) bool {
	if severity == classify.SeverityCritical {
		return true
	}
	return severity == classify.SeverityHigh && fallbacksExhausted
}

// Escalate fans the alert out in the background. It never blocks the caller
// and never returns an error; channel failures are logged independently and
// partial delivery is accepted.
func (e *Escalator) Escalate(alert Alert) {
	if e == nil {
		return
	}

	go e.deliver(alert)
}

func (e *Escalator) deliver(alert Alert) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("escalation delivery panicked", zap.Any("panic", r))
		}
	}()

	// Detached from the request context: escalation outlives the customer
	// response.
	ctx, cancel := context.WithTimeout(context.Background(), escalationTimeout)
	defer cancel()

	e.deliverSMS(ctx, alert)
	e.deliverEmail(ctx, alert)
}

func (e *Escalator) deliverSMS(ctx context.Context, alert Alert) {
	if e.sms == nil || e.alertPhone == "" {
		return
	}

	_, err := e.sms.Send(ctx, provider.SendRequest{
		TransactionID: alert.ErrorID,
		Service:       domain.ServiceSMS,
		Destination:   e.alertPhone,
		Message: fmt.Sprintf("[%s] %s/%s %s (err %s)",
			alert.Severity, alert.Service, alert.Provider, alert.Message, alert.ErrorID),
	})
	e.report("sms", alert, err)
}

func (e *Escalator) deliverEmail(ctx context.Context, alert Alert) {
	if e.email == nil || e.alertEmail == "" {
		return
	}

	body := fmt.Sprintf(
		"Severity: %s\nService: %s\nProvider: %s\nCustomer: %s\nError ID: %s\nTime: %s\n\n%s\n",
		alert.Severity,
		alert.Service,
		alert.Provider,
		alert.CustomerIDPrefix,
		alert.ErrorID,
		alert.Timestamp.UTC().Format(time.RFC3339),
		alert.Message,
	)

	_, err := e.email.Send(ctx, provider.SendRequest{
		TransactionID: alert.ErrorID,
		Service:       domain.ServiceEmail,
		Destination:   e.alertEmail,
		Subject:       fmt.Sprintf("[%s] %s dispatch failure via %s", alert.Severity, alert.Service, alert.Provider),
		Message:       body,
	})
	e.report("email", alert, err)
}

func (e *Escalator) report(channel string, alert Alert, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		e.logger.Error("escalation channel failed",
			zap.String("channel", channel),
			zap.String("errorId", alert.ErrorID),
			zap.Error(err),
		)
	}
	if e.onResult != nil {
		e.onResult(channel, result)
	}
}
