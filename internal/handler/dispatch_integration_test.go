package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sendbridge/core/internal/domain"
	"github.com/sendbridge/core/internal/service"
	"github.com/sendbridge/core/internal/transport"
	"go.uber.org/zap"
)

type stubDispatchService struct {
	dispatchFn func(ctx context.Context, customerID string, req *domain.DispatchRequest) (*service.Result, error)
}

func (s *stubDispatchService) Dispatch(ctx context.Context, customerID string, req *domain.DispatchRequest) (*service.Result, error) {
	return s.dispatchFn(ctx, customerID, req)
}

type stubTransactionReader struct {
	getFn func(ctx context.Context, id string) (*domain.Transaction, error)
}

func (s *stubTransactionReader) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return s.getFn(ctx, id)
}

func newDispatchTestApp(t *testing.T, dispatcher DispatchService, reader TransactionReader) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})
	if reader == nil {
		reader = &stubTransactionReader{
			getFn: func(ctx context.Context, id string) (*domain.Transaction, error) {
				return nil, domain.ErrNotFound
			},
		}
	}
	if err := RegisterDispatchRoutes(app, dispatcher, reader); err != nil {
		t.Fatalf("RegisterDispatchRoutes() error = %v", err)
	}
	return app
}

func performRequest(t *testing.T, app *fiber.App, method, path, body string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body error = %v", err)
	}
	return resp, payload
}

func TestDispatchEndpointSuccess(t *testing.T) {
	t.Parallel()

	svc := &stubDispatchService{
		dispatchFn: func(ctx context.Context, customerID string, req *domain.DispatchRequest) (*service.Result, error) {
			if customerID != "cust-1" {
				t.Fatalf("customer id = %q, want cust-1", customerID)
			}
			if req.Service != domain.ServiceSMS {
				t.Fatalf("service = %s, want SMS", req.Service)
			}
			if req.IdempotencyKey != "header-key" {
				t.Fatalf("idempotency key = %q, want the header to win", req.IdempotencyKey)
			}
			return &service.Result{
				HTTPStatus: 200,
				Body:       json.RawMessage(`{"status":"sent","transactionId":"txn_1"}`),
			}, nil
		},
	}
	app := newDispatchTestApp(t, svc, nil)

	body := `{"service":"sms","destination":"+254712345678","message":"hello","idempotencyKey":"body-key"}`
	resp, payload := performRequest(t, app, http.MethodPost, "/v1/dispatch", body, map[string]string{
		"X-Customer-ID":     "cust-1",
		"X-Idempotency-Key": "header-key",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, payload)
	}

	var parsed map[string]any
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["transactionId"] != "txn_1" {
		t.Fatalf("transactionId = %v, want txn_1", parsed["transactionId"])
	}
}

func TestDispatchEndpointReplayHeader(t *testing.T) {
	t.Parallel()

	svc := &stubDispatchService{
		dispatchFn: func(ctx context.Context, customerID string, req *domain.DispatchRequest) (*service.Result, error) {
			return &service.Result{
				HTTPStatus: 200,
				Body:       json.RawMessage(`{"status":"sent"}`),
				Replayed:   true,
			}, nil
		},
	}
	app := newDispatchTestApp(t, svc, nil)

	body := `{"service":"sms","destination":"+254712345678","message":"hello"}`
	resp, _ := performRequest(t, app, http.MethodPost, "/v1/dispatch", body, map[string]string{
		"X-Customer-ID": "cust-1",
	})
	if resp.Header.Get("X-Idempotent-Replayed") != "true" {
		t.Fatal("replay responses must carry the replay marker header")
	}
}

func TestDispatchEndpointRateLimitedSetsRetryAfter(t *testing.T) {
	t.Parallel()

	svc := &stubDispatchService{
		dispatchFn: func(ctx context.Context, customerID string, req *domain.DispatchRequest) (*service.Result, error) {
			return &service.Result{
				HTTPStatus:        429,
				Body:              json.RawMessage(`{"status":"failed","error":{"code":"rate_limited"}}`),
				RetryAfterSeconds: 17,
			}, nil
		},
	}
	app := newDispatchTestApp(t, svc, nil)

	body := `{"service":"sms","destination":"+254712345678","message":"hello"}`
	resp, _ := performRequest(t, app, http.MethodPost, "/v1/dispatch", body, map[string]string{
		"X-Customer-ID": "cust-1",
	})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "17" {
		t.Fatalf("Retry-After = %q, want 17", resp.Header.Get("Retry-After"))
	}
}

func TestDispatchEndpointMissingCustomerHeader(t *testing.T) {
	t.Parallel()

	svc := &stubDispatchService{
		dispatchFn: func(ctx context.Context, customerID string, req *domain.DispatchRequest) (*service.Result, error) {
			t.Fatal("dispatcher must not run without a customer id")
			return nil, nil
		},
	}
	app := newDispatchTestApp(t, svc, nil)

	body := `{"service":"sms","destination":"+254712345678","message":"hello"}`
	resp, _ := performRequest(t, app, http.MethodPost, "/v1/dispatch", body, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDispatchEndpointUnknownService(t *testing.T) {
	t.Parallel()

	svc := &stubDispatchService{
		dispatchFn: func(ctx context.Context, customerID string, req *domain.DispatchRequest) (*service.Result, error) {
			t.Fatal("dispatcher must not run for an unknown service")
			return nil, nil
		},
	}
	app := newDispatchTestApp(t, svc, nil)

	body := `{"service":"fax","destination":"+254712345678","message":"hello"}`
	resp, _ := performRequest(t, app, http.MethodPost, "/v1/dispatch", body, map[string]string{
		"X-Customer-ID": "cust-1",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetTransactionEndpoint(t *testing.T) {
	t.Parallel()

	messageID := "sav-1"
	reader := &stubTransactionReader{
		getFn: func(ctx context.Context, id string) (*domain.Transaction, error) {
			if id != "txn_1" {
				return nil, domain.ErrNotFound
			}
			return &domain.Transaction{
				ID:                "txn_1",
				CustomerID:        "cust-1",
				Service:           domain.ServiceSMS,
				Destination:       "+254712345678",
				Provider:          "savanna",
				Segments:          1,
				PriceCents:        3,
				Status:            domain.TransactionSent,
				ProviderMessageID: &messageID,
				CreatedAt:         time.Unix(1_700_000_000, 0),
				UpdatedAt:         time.Unix(1_700_000_060, 0),
			}, nil
		},
	}
	svc := &stubDispatchService{
		dispatchFn: func(ctx context.Context, customerID string, req *domain.DispatchRequest) (*service.Result, error) {
			return nil, nil
		},
	}
	app := newDispatchTestApp(t, svc, reader)

	resp, payload := performRequest(t, app, http.MethodGet, "/v1/transactions/txn_1", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, payload)
	}

	var parsed map[string]any
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["status"] != "SENT" {
		t.Fatalf("status = %v, want SENT", parsed["status"])
	}
	if parsed["providerMessageId"] != "sav-1" {
		t.Fatalf("providerMessageId = %v, want sav-1", parsed["providerMessageId"])
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/v1/transactions/missing", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for an unknown transaction", resp.StatusCode)
	}
}
