package idempotency

import (
	"context"
	"encoding/json"
	"time"
)

// Outcome is the idempotency decision for one incoming request.
type Outcome string

const (
	// OutcomeProceed means the caller holds the in-flight lock and must run
	// the dispatch, then call Complete exactly once.
	OutcomeProceed Outcome = "PROCEED"
	// OutcomeReplay means a finished record exists; the caller must return it
	// verbatim and perform no side effects.
	OutcomeReplay Outcome = "REPLAY"
	// OutcomeConflict means another attempt holds the lock and no record
	// appeared within the bounded wait.
	OutcomeConflict Outcome = "CONFLICT"
)

// Record is the stored terminal response for an idempotency key.
type Record struct {
	ResponsePayload json.RawMessage `json:"responsePayload"`
	HTTPStatus      int             `json:"httpStatus"`
	TransactionID   string          `json:"transactionId"`
	StoredAt        time.Time       `json:"storedAt"`
}

// Decision is the result of Begin.
type Decision struct {
	Outcome Outcome
	Record  *Record // set when Outcome == OutcomeReplay
	// Degraded is true when the cache was unreachable and the manager
	// fell open to Proceed; callers should log it as a reliability signal.
	Degraded bool
}

// Manager deduplicates retried requests per (customer, service, key).
//
// An empty key disables deduplication: Begin returns Proceed and Complete is
// a no-op.
type Manager interface {
	Begin(ctx context.Context, customerID, service, key string) (Decision, error)
	Complete(ctx context.Context, customerID, service, key string, record Record) error
	// Release drops the in-flight lock without storing a record. Used when the
	// outcome must not be cached, e.g. a rate-limit denial.
	Release(ctx context.Context, customerID, service, key string) error
}
