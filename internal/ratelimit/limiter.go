package ratelimit

import (
	"context"
	"time"

	"github.com/sendbridge/core/internal/domain"
)

// Scope names the counter a denial was attributed to.
const (
	ScopeGlobal  = "global"
	ScopeService = "service"
)

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed bool
	// Remaining is the smallest headroom across all checked windows.
	Remaining int64
	// RetryAfter is the time until the soonest exhausted window frees
	// capacity; only meaningful when Allowed is false.
	RetryAfter time.Duration
	// Scope identifies which counter denied the request.
	Scope string
}

// Limiter enforces per-customer sliding-window quotas. Plan limits are
// supplied by the caller; the limiter itself is plan-agnostic.
type Limiter interface {
	Check(ctx context.Context, customerID string, service domain.ServiceType, limits domain.PlanLimits) (Decision, error)
}
