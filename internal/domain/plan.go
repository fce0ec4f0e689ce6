package domain

import "time"

// WindowLimit caps the number of dispatches inside a sliding window.
type WindowLimit struct {
	Window time.Duration
	Limit  int64
}

// PlanLimits are the rate windows granted by a customer's plan. The rate
// limiter is plan-agnostic and consumes these as plain numbers.
type PlanLimits struct {
	Global     []WindowLimit
	PerService map[ServiceType][]WindowLimit
}

// ServiceLimits returns the windows that apply to one service, nil when the
// plan does not constrain it separately.
func (p PlanLimits) ServiceLimits(service ServiceType) []WindowLimit {
	if p.PerService == nil {
		return nil
	}
	return p.PerService[service]
}

// Customer is the plan/balance view the dispatcher needs; the full customer
// record lives in the relational store.
type Customer struct {
	ID           string
	Plan         string
	BalanceCents int64
	IsActive     bool
	Limits       PlanLimits
	CallbackURL  string
}
