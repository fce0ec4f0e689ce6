package escalate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sendbridge/core/internal/classify"
	"github.com/sendbridge/core/internal/domain"
	"github.com/sendbridge/core/internal/provider"
	"go.uber.org/zap"
)

type fakeAlertChannel struct {
	name string

	mu    sync.Mutex
	sent  []provider.SendRequest
	fails bool
}

func (f *fakeAlertChannel) Name() string { return f.name }

func (f *fakeAlertChannel) Send(ctx context.Context, req provider.SendRequest) (*provider.SendResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	if f.fails {
		return nil, errors.New("channel down")
	}
	return &provider.SendResponse{StatusCode: 200}, nil
}

func (f *fakeAlertChannel) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestShouldEscalate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		severity  classify.Severity
		exhausted bool
		want      bool
	}{
		{classify.SeverityCritical, false, true},
		{classify.SeverityCritical, true, true},
		{classify.SeverityHigh, true, true},
		{classify.SeverityHigh, false, false},
		{classify.SeverityMedium, true, false},
		{classify.SeverityLow, true, false},
	}

	for _, tt := range tests {
		if got := ShouldEscalate(tt.severity, tt.exhausted); got != tt.want {
			t.Errorf("ShouldEscalate(%s, exhausted=%v) = %v, want %v", tt.severity, tt.exhausted, got, tt.want)
		}
	}
}

func TestEscalateDeliversBothChannels(t *testing.T) {
	t.Parallel()

	sms := &fakeAlertChannel{name: "alert-sms"}
	email := &fakeAlertChannel{name: "alert-email"}
	e := NewEscalator(sms, email, "+15550001111", "oncall@example.com", zap.NewNop())

	results := make(chan string, 2)
	e.SetResultHook(func(channel, result string) {
		results <- channel + ":" + result
	})

	e.Escalate(Alert{
		ErrorID:  "err_1",
		Severity: classify.SeverityCritical,
		Service:  domain.ServiceSMS,
		Provider: "savanna",
		Message:  "credentials rejected",
	})

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			got[r] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for escalation channels")
		}
	}
	if !got["sms:ok"] || !got["email:ok"] {
		t.Fatalf("results = %v, want sms:ok and email:ok", got)
	}

	if sms.sentCount() != 1 || email.sentCount() != 1 {
		t.Fatalf("sends sms=%d email=%d, want 1/1", sms.sentCount(), email.sentCount())
	}
	sms.mu.Lock()
	defer sms.mu.Unlock()
	if sms.sent[0].Destination != "+15550001111" {
		t.Fatalf("sms destination = %q, want the operator phone", sms.sent[0].Destination)
	}
}

func TestEscalateOneChannelFailingDoesNotStopTheOther(t *testing.T) {
	t.Parallel()

	sms := &fakeAlertChannel{name: "alert-sms", fails: true}
	email := &fakeAlertChannel{name: "alert-email"}
	e := NewEscalator(sms, email, "+15550001111", "oncall@example.com", zap.NewNop())

	results := make(chan string, 2)
	e.SetResultHook(func(channel, result string) {
		results <- channel + ":" + result
	})

	e.Escalate(Alert{ErrorID: "err_2", Severity: classify.SeverityCritical, Service: domain.ServiceSMS})

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			got[r] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for escalation channels")
		}
	}
	if !got["sms:error"] {
		t.Fatalf("results = %v, want the sms failure reported", got)
	}
	if !got["email:ok"] {
		t.Fatalf("results = %v, want email still delivered", got)
	}
}

func TestEscalateWithoutConfiguredChannels(t *testing.T) {
	t.Parallel()

	e := NewEscalator(nil, nil, "", "", zap.NewNop())

	// Must not panic or block.
	e.Escalate(Alert{ErrorID: "err_3", Severity: classify.SeverityCritical, Service: domain.ServiceSMS})
	time.Sleep(10 * time.Millisecond)
}
