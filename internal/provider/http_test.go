package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sendbridge/core/internal/domain"
)

func TestHTTPProviderSendSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q, want bearer token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"messageId":"msg-123"}`))
	}))
	t.Cleanup(server.Close)

	p, err := NewHTTPProvider("savanna", server.URL, "test-key", time.Second)
	if err != nil {
		t.Fatalf("NewHTTPProvider() error = %v", err)
	}

	resp, err := p.Send(context.Background(), SendRequest{
		TransactionID: "txn_1",
		Service:       domain.ServiceSMS,
		Destination:   "+254712345678",
		Message:       "hello",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if resp.MessageID != "msg-123" {
		t.Fatalf("message id = %q, want msg-123", resp.MessageID)
	}
}

func TestHTTPProviderSendFallsBackToRequestIDHeader(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", "req-77")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	p, err := NewHTTPProvider("nexora", server.URL, "k", time.Second)
	if err != nil {
		t.Fatalf("NewHTTPProvider() error = %v", err)
	}

	resp, err := p.Send(context.Background(), SendRequest{TransactionID: "txn_2", Service: domain.ServiceSMS})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.MessageID != "req-77" {
		t.Fatalf("message id = %q, want req-77 from the header", resp.MessageID)
	}
}

func TestHTTPProviderSendUpstreamError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"code":"SAV-102","error":"insufficient balance"}`))
	}))
	t.Cleanup(server.Close)

	p, err := NewHTTPProvider("savanna", server.URL, "k", time.Second)
	if err != nil {
		t.Fatalf("NewHTTPProvider() error = %v", err)
	}

	_, err = p.Send(context.Background(), SendRequest{TransactionID: "txn_3", Service: domain.ServiceSMS})
	if err == nil {
		t.Fatal("Send() should fail on a non-2xx response")
	}

	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("error type = %T, want *provider.Error", err)
	}
	if provErr.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", provErr.StatusCode)
	}
	if provErr.Code != "SAV-102" {
		t.Fatalf("code = %q, want SAV-102", provErr.Code)
	}
	if provErr.Message != "insufficient balance" {
		t.Fatalf("message = %q, want the upstream error text", provErr.Message)
	}
}

func TestHTTPProviderRejectsBadConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewHTTPProvider("", "https://api.example.com", "k", time.Second); err == nil {
		t.Fatal("empty name should be rejected")
	}
	if _, err := NewHTTPProvider("savanna", "", "k", time.Second); err == nil {
		t.Fatal("empty endpoint should be rejected")
	}
	if _, err := NewHTTPProvider("savanna", "::not-a-url", "k", time.Second); err == nil {
		t.Fatal("malformed endpoint should be rejected")
	}
}

func TestRegistryGet(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	p, err := NewHTTPProvider("savanna", server.URL, "k", time.Second)
	if err != nil {
		t.Fatalf("NewHTTPProvider() error = %v", err)
	}

	registry := NewRegistry(p)
	got, err := registry.Get("savanna")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name() != "savanna" {
		t.Fatalf("name = %q, want savanna", got.Name())
	}

	if _, err := registry.Get("unknown"); err == nil {
		t.Fatal("unknown provider should return an error")
	}
}
