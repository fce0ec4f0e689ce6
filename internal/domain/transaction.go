package domain

import "time"

// TransactionStatus is the durable state of a billed dispatch.
type TransactionStatus string

const (
	TransactionPending TransactionStatus = "PENDING"
	TransactionSent    TransactionStatus = "SENT"
	TransactionFailed  TransactionStatus = "FAILED"
)

func (s TransactionStatus) String() string { return string(s) }

// Transaction is the ledger row for one dispatch. It is inserted as PENDING
// before the provider call so a crash mid-send remains observable and
// reconcilable.
type Transaction struct {
	ID                string
	CustomerID        string
	Service           ServiceType
	Destination       string
	Provider          string
	Segments          int
	CostCents         int64
	PriceCents        int64
	Status            TransactionStatus
	ProviderMessageID *string
	FailureReason     *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ProviderErrorRecord is the append-only audit row for one classified
// failure. Never mutated after insert.
type ProviderErrorRecord struct {
	ErrorID          string
	Service          ServiceType
	Provider         string
	CustomerID       string
	TransactionID    string
	ErrorType        string
	Severity         string
	Retryable        bool
	SanitizedDetails string
	RequestSnapshot  string
	CreatedAt        time.Time
}
