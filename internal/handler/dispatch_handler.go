package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sendbridge/core/internal/domain"
	"github.com/sendbridge/core/internal/service"
)

const (
	headerCustomerID     = "X-Customer-ID"
	headerIdempotencyKey = "X-Idempotency-Key"
	headerReplayed       = "X-Idempotent-Replayed"
)

// DispatchService is the orchestration port the HTTP layer depends on.
type DispatchService interface {
	Dispatch(ctx context.Context, customerID string, req *domain.DispatchRequest) (*service.Result, error)
}

// TransactionReader looks up a persisted transaction by id.
type TransactionReader interface {
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
}

type DispatchHandler struct {
	dispatcher   DispatchService
	transactions TransactionReader
	validate     *validator.Validate
}

func NewDispatchHandler(dispatcher DispatchService, transactions TransactionReader) (*DispatchHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatch service is required")
	}
	if transactions == nil {
		return nil, fmt.Errorf("transaction reader is required")
	}

	return &DispatchHandler{
		dispatcher:   dispatcher,
		transactions: transactions,
		validate:     validator.New(),
	}, nil
}

func RegisterDispatchRoutes(router fiber.Router, dispatcher DispatchService, transactions TransactionReader) error {
	h, err := NewDispatchHandler(dispatcher, transactions)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/dispatch", h.Dispatch)
	v1.Get("/transactions/:id", h.GetTransaction)

	return nil
}

type dispatchRequest struct {
	Service        string `json:"service" validate:"required"`
	Destination    string `json:"destination" validate:"required,max=255"`
	Message        string `json:"message"`
	Subject        string `json:"subject"`
	SenderID       string `json:"senderId"`
	AmountCents    int64  `json:"amountCents" validate:"min=0"`
	BundleCode     string `json:"bundleCode"`
	CallbackURL    string `json:"callbackUrl" validate:"omitempty,url"`
	IdempotencyKey string `json:"idempotencyKey" validate:"omitempty,max=255"`
}

type transactionResponse struct {
	ID                string  `json:"id"`
	CustomerID        string  `json:"customerId"`
	Service           string  `json:"service"`
	Destination       string  `json:"destination"`
	Provider          string  `json:"provider"`
	Segments          int     `json:"segments"`
	PriceCents        int64   `json:"priceCents"`
	Status            string  `json:"status"`
	ProviderMessageID *string `json:"providerMessageId,omitempty"`
	FailureReason     *string `json:"failureReason,omitempty"`
	CreatedAt         string  `json:"createdAt"`
	UpdatedAt         string  `json:"updatedAt"`
}

func (h *DispatchHandler) Dispatch(c *fiber.Ctx) error {
	customerID := strings.TrimSpace(c.Get(headerCustomerID))
	if customerID == "" {
		return domain.NewCustomerError(fiber.StatusBadRequest, "%s header is required", headerCustomerID)
	}

	var req dispatchRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewCustomerError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return domain.NewCustomerError(fiber.StatusBadRequest, "%s", validationMessage(err))
	}

	svc, err := domain.ParseServiceFromString(req.Service)
	if err != nil {
		return err
	}

	// The header wins over the body field when both are present.
	key := strings.TrimSpace(c.Get(headerIdempotencyKey))
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}

	result, err := h.dispatcher.Dispatch(c.Context(), customerID, &domain.DispatchRequest{
		Service:        svc,
		Destination:    req.Destination,
		Message:        req.Message,
		Subject:        req.Subject,
		SenderID:       req.SenderID,
		AmountCents:    req.AmountCents,
		BundleCode:     req.BundleCode,
		CallbackURL:    req.CallbackURL,
		IdempotencyKey: key,
	})
	if err != nil {
		return err
	}

	if result.Replayed {
		c.Set(headerReplayed, "true")
	}
	if result.RetryAfterSeconds > 0 {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(result.RetryAfterSeconds))
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(result.HTTPStatus).Send(result.Body)
}

func (h *DispatchHandler) GetTransaction(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return domain.NewCustomerError(fiber.StatusBadRequest, "transaction id is required")
	}

	txn, err := h.transactions.GetByID(c.Context(), id)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(toTransactionResponse(txn))
}

func toTransactionResponse(t *domain.Transaction) transactionResponse {
	if t == nil {
		return transactionResponse{}
	}

	return transactionResponse{
		ID:                t.ID,
		CustomerID:        t.CustomerID,
		Service:           t.Service.String(),
		Destination:       t.Destination,
		Provider:          t.Provider,
		Segments:          t.Segments,
		PriceCents:        t.PriceCents,
		Status:            t.Status.String(),
		ProviderMessageID: t.ProviderMessageID,
		FailureReason:     t.FailureReason,
		CreatedAt:         t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:         t.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Sprintf("field %q failed validation on %q", fe.Field(), fe.Tag())
	}
	return "invalid request body"
}
