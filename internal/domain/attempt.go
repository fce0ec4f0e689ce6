package domain

// DispatchAttempt tracks one in-flight dispatch. It is owned by a single
// request handler and never shared across requests.
type DispatchAttempt struct {
	TransactionID  string
	CustomerID     string
	Service        ServiceType
	Destination    string
	ChosenProvider string
	FallbackQueue  []string
	CostCents      int64
	PriceCents     int64
	AttemptsMade   int
	Status         DispatchStatus
}
