package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sendbridge/core/internal/classify"
	"github.com/sendbridge/core/internal/domain"
	"github.com/sendbridge/core/internal/escalate"
	"github.com/sendbridge/core/internal/idempotency"
	"github.com/sendbridge/core/internal/observability"
	"github.com/sendbridge/core/internal/provider"
	"github.com/sendbridge/core/internal/queue"
	"github.com/sendbridge/core/internal/ratelimit"
	"github.com/sendbridge/core/internal/repository"
	"github.com/sendbridge/core/internal/routing"
	"go.uber.org/zap"
)

// Result is the customer-facing outcome of one dispatch. Body is the exact
// response payload; replays return it byte-for-byte.
type Result struct {
	HTTPStatus        int
	Body              json.RawMessage
	Replayed          bool
	RetryAfterSeconds int
}

type resultPayload struct {
	Status            string        `json:"status"`
	TransactionID     string        `json:"transactionId,omitempty"`
	ProviderMessageID string        `json:"providerMessageId,omitempty"`
	RemainingQuota    *int64        `json:"remainingQuota,omitempty"`
	Error             *errorPayload `json:"error,omitempty"`
}

type errorPayload struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	ErrorID           string `json:"errorId,omitempty"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

// Per-service generic failure messages. Raw upstream text never reaches the
// customer.
var genericFailureMessages = map[domain.ServiceType]string{
	domain.ServiceSMS:     "SMS could not be delivered at this time, please try again later",
	domain.ServiceEmail:   "email could not be delivered at this time, please try again later",
	domain.ServiceAirtime: "airtime purchase could not be completed at this time, please try again later",
	domain.ServiceData:    "data bundle purchase could not be completed at this time, please try again later",
}

// Dispatcher is the top-level state machine around one send operation:
// dedupe, rate limit, route, attempt providers in order, classify failures,
// escalate, and finalize idempotency state.
type Dispatcher struct {
	customers      repository.CustomerRepository
	transactions   repository.TransactionRepository
	providerErrors repository.ProviderErrorRepository
	idem           idempotency.Manager
	limiter        ratelimit.Limiter
	router         *routing.Router
	providers      *provider.Registry
	classifier     classify.Classifier
	escalator      *escalate.Escalator
	publisher      queue.Publisher
	logger         *zap.Logger
	metrics        *observability.Metrics
	now            func() time.Time
}

func NewDispatcher(
	customers repository.CustomerRepository,
	transactions repository.TransactionRepository,
	providerErrors repository.ProviderErrorRepository,
	idem idempotency.Manager,
	limiter ratelimit.Limiter,
	router *routing.Router,
	providers *provider.Registry,
	classifier classify.Classifier,
	escalator *escalate.Escalator,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if customers == nil || transactions == nil || providerErrors == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if idem == nil || limiter == nil || router == nil || providers == nil || classifier == nil {
		return nil, fmt.Errorf("idempotency, limiter, router, providers, and classifier are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		customers:      customers,
		transactions:   transactions,
		providerErrors: providerErrors,
		idem:           idem,
		limiter:        limiter,
		router:         router,
		providers:      providers,
		classifier:     classifier,
		escalator:      escalator,
		publisher:      publisher,
		logger:         logger,
		now:            time.Now,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// Dispatch runs one send request to a terminal state. A client disconnect
// must not leave a half-finalized dispatch behind, so the whole operation
// runs on a context detached from request cancellation; every external call
// carries its own timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, customerID string, req *domain.DispatchRequest) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithoutCancel(ctx)

	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return d.customerFault(400, "missing_customer", "customer id is required"), nil
	}

	// Step 1: validation is side-effect free and precedes the lock.
	if err := req.Validate(); err != nil {
		return d.customerFault(400, "invalid_request", strings.TrimPrefix(err.Error(), "validation error: ")), nil
	}

	attempt := &domain.DispatchAttempt{
		CustomerID:  customerID,
		Service:     req.Service,
		Destination: req.Destination,
		Status:      domain.StatusValidating,
	}
	service := req.Service.String()
	logger := observability.WithContextLogger(d.logger, ctx).With(
		zap.String("customerId", customerID),
		zap.String("service", service),
	)

	// Step 2: idempotency short-circuit.
	decision, err := d.idem.Begin(ctx, customerID, service, req.IdempotencyKey)
	if err != nil {
		return d.systemFault(logger, req.Service, "idempotency begin", err), nil
	}
	if decision.Degraded {
		d.metrics.IncCacheUnavailable()
	}
	switch decision.Outcome {
	case idempotency.OutcomeReplay:
		attempt.Status = domain.StatusDeduped
		d.metrics.IncIdempotency("replay")
		d.metrics.IncDispatch(service, attempt.Status.String())
		return &Result{
			HTTPStatus: decision.Record.HTTPStatus,
			Body:       decision.Record.ResponsePayload,
			Replayed:   true,
		}, nil
	case idempotency.OutcomeConflict:
		d.metrics.IncIdempotency("conflict")
		return d.customerFault(409, "request_in_flight", "a request with this idempotency key is already being processed"), nil
	}
	d.metrics.IncIdempotency("proceed")
	locked := strings.TrimSpace(req.IdempotencyKey) != ""

	// Step 3 prerequisite: plan, balance, and account state.
	customer, err := d.customers.Get(ctx, customerID)
	if errors.Is(err, domain.ErrNotFound) {
		d.releaseLock(ctx, customerID, service, req.IdempotencyKey, locked)
		return d.customerFault(404, "unknown_customer", "customer not found"), nil
	}
	if err != nil {
		d.releaseLock(ctx, customerID, service, req.IdempotencyKey, locked)
		return d.systemFault(logger, req.Service, "customer lookup", err), nil
	}
	if !customer.IsActive {
		d.releaseLock(ctx, customerID, service, req.IdempotencyKey, locked)
		return d.customerFault(403, "account_inactive", "account is inactive"), nil
	}

	// Step 3: rate limit. A denial is never cached as the idempotent
	// outcome; a later retry must be allowed to succeed.
	limit, err := d.limiter.Check(ctx, customerID, req.Service, customer.Limits)
	if err != nil {
		// Counter store outage: allow the send rather than hard-failing
		// customer traffic, but keep the signal.
		logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
		limit = ratelimit.Decision{Allowed: true, Remaining: -1}
	}
	if !limit.Allowed {
		attempt.Status = domain.StatusRateLimited
		d.metrics.IncRateLimitDenied(service, limit.Scope)
		d.metrics.IncDispatch(service, attempt.Status.String())
		d.releaseLock(ctx, customerID, service, req.IdempotencyKey, locked)

		retryAfter := int(math.Ceil(limit.RetryAfter.Seconds()))
		body := d.marshal(resultPayload{
			Status: "failed",
			Error: &errorPayload{
				Code:              "rate_limited",
				Message:           "rate limit exceeded, retry later",
				RetryAfterSeconds: retryAfter,
			},
		})
		return &Result{HTTPStatus: 429, Body: body, RetryAfterSeconds: retryAfter}, nil
	}

	// Step 4: routing and pricing.
	attempt.Status = domain.StatusPricing
	quote, err := d.router.Route(req)
	if err != nil {
		res := d.customerFault(400, "invalid_request", strings.TrimPrefix(err.Error(), "validation error: "))
		d.complete(ctx, customerID, service, req.IdempotencyKey, locked, res, "")
		return res, nil
	}
	attempt.ChosenProvider = quote.Provider
	attempt.FallbackQueue = quote.Fallbacks
	attempt.CostCents = quote.TotalCostCents
	attempt.PriceCents = quote.TotalPriceCents

	// Step 5: affordability. Insufficient funds is terminal and cached.
	if customer.BalanceCents < quote.TotalPriceCents {
		res := d.customerFault(402, "insufficient_balance", "balance is insufficient for this request")
		d.complete(ctx, customerID, service, req.IdempotencyKey, locked, res, "")
		return res, nil
	}

	// Step 6: pending transaction before any delivery attempt, so a crash
	// mid-send is observable and reconcilable.
	txn := &domain.Transaction{
		ID:          domain.NewTransactionID(d.now()),
		CustomerID:  customerID,
		Service:     req.Service,
		Destination: req.Destination,
		Provider:    quote.Provider,
		Segments:    quote.Segments,
		CostCents:   quote.TotalCostCents,
		PriceCents:  quote.TotalPriceCents,
	}
	if err := d.transactions.InsertPending(ctx, txn); err != nil {
		d.releaseLock(ctx, customerID, service, req.IdempotencyKey, locked)
		return d.systemFault(logger, req.Service, "insert pending transaction", err), nil
	}
	attempt.TransactionID = txn.ID
	logger = logger.With(zap.String("transactionId", txn.ID))

	// Steps 7-8: provider attempts with ordered fallback.
	return d.attemptProviders(ctx, logger, customer, req, quote, txn, attempt, limit, locked)
}

func (d *Dispatcher) attemptProviders(
	ctx context.Context,
	logger *zap.Logger,
	customer *domain.Customer,
	req *domain.DispatchRequest,
	quote *routing.Quote,
	txn *domain.Transaction,
	attempt *domain.DispatchAttempt,
	limit ratelimit.Decision,
	locked bool,
) (*Result, error) {
	service := req.Service.String()
	providerOrder := append([]string{quote.Provider}, quote.Fallbacks...)

	sendReq := provider.SendRequest{
		TransactionID: txn.ID,
		Service:       req.Service,
		Destination:   req.Destination,
		Message:       req.Message,
		Subject:       req.Subject,
		SenderID:      req.SenderID,
		AmountCents:   req.AmountCents,
		BundleCode:    req.BundleCode,
	}

	attempt.Status = domain.StatusSending
	var lastClassified classify.Classified
	var lastErrorID string
	highestSeverity := classify.SeverityLow

	for i, name := range providerOrder {
		upstream, err := d.providers.Get(name)
		if err != nil {
			logger.Error("provider not registered, skipping", zap.String("provider", name), zap.Error(err))
			continue
		}
		if i > 0 {
			attempt.Status = domain.StatusFailedOver
			d.metrics.IncFallback(service, providerOrder[i-1])
		}
		attempt.AttemptsMade++

		start := d.now()
		resp, sendErr := upstream.Send(ctx, sendReq)
		d.metrics.ObserveProviderSendDuration(name, d.now().Sub(start))

		if sendErr == nil {
			return d.finishSent(ctx, logger, customer, req, txn, attempt, limit, locked, name, resp), nil
		}

		classified := d.classifier.Classify(name, sendErr)
		lastClassified = classified
		lastErrorID = d.auditFailure(ctx, logger, req, txn, name, sendErr, classified)
		if classified.Severity.AtLeast(highestSeverity) {
			highestSeverity = classified.Severity
		}

		logger.Warn("provider send failed",
			zap.String("provider", name),
			zap.String("errorType", classified.ErrorType),
			zap.String("severity", classified.Severity.String()),
			zap.Bool("retryable", classified.Retryable),
			zap.String("errorId", lastErrorID),
		)

		// Per-recipient faults are not provider faults; trying another
		// carrier would fail the same way.
		if classified.CustomerFacing() {
			return d.finishCustomerFault(ctx, customer, req, txn, attempt, locked, classified, lastErrorID), nil
		}
		if !classified.Retryable {
			break
		}
	}

	// Every configured name was missing from the registry. Nothing was
	// attempted, so synthesize the terminal classification instead of
	// failing with an empty reason.
	if attempt.AttemptsMade == 0 {
		lastClassified = classify.Classified{
			ErrorType: "no_provider_available",
			Message:   "no registered provider for this service",
			Severity:  classify.SeverityCritical,
			Retryable: false,
		}
		lastErrorID = domain.NewErrorID(d.now())
		highestSeverity = classify.SeverityCritical
	}

	return d.finishExhausted(ctx, logger, customer, req, txn, attempt, locked, lastClassified, lastErrorID, highestSeverity), nil
}

func (d *Dispatcher) finishSent(
	ctx context.Context,
	logger *zap.Logger,
	customer *domain.Customer,
	req *domain.DispatchRequest,
	txn *domain.Transaction,
	attempt *domain.DispatchAttempt,
	limit ratelimit.Decision,
	locked bool,
	providerName string,
	resp *provider.SendResponse,
) *Result {
	service := req.Service.String()
	messageID := ""
	if resp != nil {
		messageID = resp.MessageID
	}

	// The ledger must say SENT before money moves or a response is cached.
	// On a failed write the transaction is still PENDING: no deduction, no
	// idempotency completion; the lock TTL-expires and the row is left for
	// reconciliation.
	if err := d.transactions.MarkSent(ctx, txn.ID, messageID); err != nil {
		return d.systemFault(logger, req.Service, "mark transaction sent", err)
	}
	if err := d.customers.DeductBalance(ctx, customer.ID, txn.ID, txn.PriceCents); err != nil {
		logger.Error("failed to deduct balance", zap.Error(err))
	}

	payload := resultPayload{
		Status:            "sent",
		TransactionID:     txn.ID,
		ProviderMessageID: messageID,
	}
	if limit.Remaining >= 0 {
		remaining := limit.Remaining
		payload.RemainingQuota = &remaining
	}
	body := d.marshal(payload)
	res := &Result{HTTPStatus: 200, Body: body}

	d.complete(ctx, customer.ID, service, req.IdempotencyKey, locked, res, txn.ID)
	d.publishWebhook(ctx, logger, customer, req, txn, "dispatch.sent", "SENT", messageID)

	attempt.Status = domain.StatusSent
	d.metrics.IncDispatch(service, attempt.Status.String())
	logger.Info("dispatch sent",
		zap.String("provider", providerName),
		zap.Int("attempts", attempt.AttemptsMade),
	)
	return res
}

func (d *Dispatcher) finishCustomerFault(
	ctx context.Context,
	customer *domain.Customer,
	req *domain.DispatchRequest,
	txn *domain.Transaction,
	attempt *domain.DispatchAttempt,
	locked bool,
	classified classify.Classified,
	errorID string,
) *Result {
	service := req.Service.String()
	recorded := true
	if err := d.transactions.MarkFailed(ctx, txn.ID, classified.ErrorType); err != nil {
		recorded = false
		d.logger.Error("failed to mark transaction failed, leaving idempotency lock to expire",
			zap.String("transactionId", txn.ID), zap.Error(err))
	}

	body := d.marshal(resultPayload{
		Status:        "failed",
		TransactionID: txn.ID,
		Error: &errorPayload{
			Code:    classified.ErrorType,
			Message: classified.Message,
			ErrorID: errorID,
		},
	})
	res := &Result{HTTPStatus: 400, Body: body}

	// Never cache a response for a transaction without a recorded terminal
	// state.
	if recorded {
		d.complete(ctx, customer.ID, service, req.IdempotencyKey, locked, res, txn.ID)
	}
	d.publishWebhook(ctx, d.logger, customer, req, txn, "dispatch.failed", "FAILED", "")

	attempt.Status = domain.StatusFailed
	d.metrics.IncDispatch(service, attempt.Status.String())
	return res
}

func (d *Dispatcher) finishExhausted(
	ctx context.Context,
	logger *zap.Logger,
	customer *domain.Customer,
	req *domain.DispatchRequest,
	txn *domain.Transaction,
	attempt *domain.DispatchAttempt,
	locked bool,
	classified classify.Classified,
	errorID string,
	highestSeverity classify.Severity,
) *Result {
	service := req.Service.String()
	recorded := true
	if err := d.transactions.MarkFailed(ctx, txn.ID, classified.ErrorType); err != nil {
		recorded = false
		logger.Error("failed to mark transaction failed, leaving idempotency lock to expire", zap.Error(err))
	}

	if d.escalator != nil && escalate.ShouldEscalate(highestSeverity, true) {
		d.escalator.Escalate(escalate.Alert{
			ErrorID:          errorID,
			Severity:         highestSeverity,
			Service:          req.Service,
			Provider:         attempt.ChosenProvider,
			Message:          classified.Message,
			CustomerIDPrefix: observability.CustomerIDPrefix(customer.ID),
			Timestamp:        d.now().UTC(),
		})
	}

	body := d.marshal(resultPayload{
		Status:        "failed",
		TransactionID: txn.ID,
		Error: &errorPayload{
			Code:    "service_unavailable",
			Message: genericFailureMessages[req.Service],
			ErrorID: errorID,
		},
	})
	res := &Result{HTTPStatus: 503, Body: body}

	if recorded {
		d.complete(ctx, customer.ID, service, req.IdempotencyKey, locked, res, txn.ID)
	}
	d.publishWebhook(ctx, logger, customer, req, txn, "dispatch.failed", "FAILED", "")

	attempt.Status = domain.StatusFailed
	d.metrics.IncDispatch(service, attempt.Status.String())
	logger.Error("dispatch failed after exhausting providers",
		zap.Int("attempts", attempt.AttemptsMade),
		zap.String("severity", highestSeverity.String()),
		zap.String("errorId", errorID),
	)
	return res
}

// auditFailure writes the append-only provider error row and returns its
// error id. Audit is best-effort: a write failure never affects the dispatch.
func (d *Dispatcher) auditFailure(
	ctx context.Context,
	logger *zap.Logger,
	req *domain.DispatchRequest,
	txn *domain.Transaction,
	providerName string,
	sendErr error,
	classified classify.Classified,
) string {
	errorID := domain.NewErrorID(d.now())

	snapshot, err := json.Marshal(observability.RedactMap(map[string]any{
		"service":     req.Service.String(),
		"destination": req.Destination,
		"senderId":    req.SenderID,
		"bundleCode":  req.BundleCode,
		"amountCents": req.AmountCents,
	}))
	if err != nil {
		snapshot = []byte("{}")
	}

	record := &domain.ProviderErrorRecord{
		ErrorID:          errorID,
		Service:          req.Service,
		Provider:         providerName,
		CustomerID:       txn.CustomerID,
		TransactionID:    txn.ID,
		ErrorType:        classified.ErrorType,
		Severity:         classified.Severity.String(),
		Retryable:        classified.Retryable,
		SanitizedDetails: sendErr.Error(),
		RequestSnapshot:  string(snapshot),
		CreatedAt:        d.now().UTC(),
	}
	if err := d.providerErrors.Create(ctx, record); err != nil {
		logger.Error("failed to write provider error audit row",
			zap.String("errorId", errorID),
			zap.Error(err),
		)
	}
	return errorID
}

// complete stores the terminal response for the idempotency key and releases
// the lock. Called only after the transaction reached its terminal state.
func (d *Dispatcher) complete(
	ctx context.Context,
	customerID, service, key string,
	locked bool,
	res *Result,
	transactionID string,
) {
	if !locked {
		return
	}

	err := d.idem.Complete(ctx, customerID, service, key, idempotency.Record{
		ResponsePayload: res.Body,
		HTTPStatus:      res.HTTPStatus,
		TransactionID:   transactionID,
		StoredAt:        d.now().UTC(),
	})
	if err != nil {
		d.logger.Warn("failed to finalize idempotency state",
			zap.String("service", service),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) releaseLock(ctx context.Context, customerID, service, key string, locked bool) {
	if !locked {
		return
	}
	_ = d.idem.Release(ctx, customerID, service, key)
}

func (d *Dispatcher) publishWebhook(
	ctx context.Context,
	logger *zap.Logger,
	customer *domain.Customer,
	req *domain.DispatchRequest,
	txn *domain.Transaction,
	event, status, messageID string,
) {
	callback := strings.TrimSpace(req.CallbackURL)
	if callback == "" {
		callback = strings.TrimSpace(customer.CallbackURL)
	}
	if d.publisher == nil || callback == "" {
		return
	}

	err := d.publisher.Publish(ctx, queue.WebhookQueue, queue.WebhookEvent{
		Event:             event,
		TransactionID:     txn.ID,
		CustomerID:        customer.ID,
		Service:           req.Service,
		Status:            status,
		ProviderMessageID: messageID,
		CallbackURL:       callback,
		OccurredAt:        d.now().UTC(),
	})
	if err != nil {
		logger.Warn("failed to enqueue webhook event", zap.Error(err))
	}
}

func (d *Dispatcher) customerFault(status int, code, message string) *Result {
	body := d.marshal(resultPayload{
		Status: "failed",
		Error:  &errorPayload{Code: code, Message: message},
	})
	return &Result{HTTPStatus: status, Body: body}
}

// systemFault reports an internal fault: the caller gets a generic 500 with
// an error id, operators get a critical escalation carrying the cause.
func (d *Dispatcher) systemFault(logger *zap.Logger, service domain.ServiceType, op string, cause error) *Result {
	errorID := domain.NewErrorID(d.now())
	sysErr := domain.NewSystemError(op, cause)
	logger.Error("system fault",
		zap.String("op", op),
		zap.String("errorId", errorID),
		zap.Error(sysErr),
	)

	if d.escalator != nil {
		d.escalator.Escalate(escalate.Alert{
			ErrorID:   errorID,
			Severity:  classify.SeverityCritical,
			Service:   service,
			Message:   sysErr.Error(),
			Timestamp: d.now().UTC(),
		})
	}

	body := d.marshal(resultPayload{
		Status: "failed",
		Error: &errorPayload{
			Code:    "internal_error",
			Message: "an internal error occurred, please try again later",
			ErrorID: errorID,
		},
	})
	return &Result{HTTPStatus: 500, Body: body}
}

func (d *Dispatcher) marshal(payload resultPayload) json.RawMessage {
	body, err := json.Marshal(payload)
	if err != nil {
		// resultPayload contains only marshalable fields.
		return json.RawMessage(`{"status":"failed","error":{"code":"internal_error","message":"encoding failure"}}`)
	}
	return body
}
