package repository

import (
	"time"

	"github.com/sendbridge/core/internal/domain"
)

// CustomerModel is the persistence model for the customers table. Plan limit
// windows are stored denormalized as counts per window; zero means the plan
// does not constrain that window.
type CustomerModel struct {
	ID           string `gorm:"type:varchar(64);primaryKey"`
	Plan         string `gorm:"type:varchar(32);not null"`
	BalanceCents int64  `gorm:"not null;default:0"`
	IsActive     bool   `gorm:"not null;default:true"`
	CallbackURL  string `gorm:"type:varchar(512)"`

	GlobalPerMinute int64 `gorm:"not null;default:0"`
	GlobalPerDay    int64 `gorm:"not null;default:0"`
	GlobalPerMonth  int64 `gorm:"not null;default:0"`
	SMSPerMinute    int64 `gorm:"column:sms_per_minute;not null;default:0"`
	SMSPerDay       int64 `gorm:"column:sms_per_day;not null;default:0"`
	EmailPerMinute  int64 `gorm:"not null;default:0"`
	EmailPerDay     int64 `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CustomerModel) TableName() string {
	return "customers"
}

// TransactionModel is the persistence model for the transactions table.
type TransactionModel struct {
	ID                string                   `gorm:"type:varchar(64);primaryKey"`
	CustomerID        string                   `gorm:"type:varchar(64);not null"`
	Service           domain.ServiceType       `gorm:"type:varchar(10);not null"`
	Destination       string                   `gorm:"type:varchar(255);not null"`
	Provider          string                   `gorm:"type:varchar(32);not null"`
	Segments          int                      `gorm:"not null;default:1"`
	CostCents         int64                    `gorm:"not null"`
	PriceCents        int64                    `gorm:"not null"`
	Status            domain.TransactionStatus `gorm:"type:varchar(16);not null"`
	ProviderMessageID *string                  `gorm:"type:varchar(255)"`
	FailureReason     *string                  `gorm:"type:text"`
	BalanceDeducted   bool                     `gorm:"not null;default:false"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (TransactionModel) TableName() string {
	return "transactions"
}

// ProviderErrorModel is the persistence model for the provider_errors audit
// table. Rows are insert-only.
type ProviderErrorModel struct {
	ErrorID          string             `gorm:"type:varchar(64);primaryKey"`
	Service          domain.ServiceType `gorm:"type:varchar(10);not null"`
	Provider         string             `gorm:"type:varchar(32);not null"`
	CustomerID       string             `gorm:"type:varchar(64);not null"`
	TransactionID    string             `gorm:"type:varchar(64);not null"`
	ErrorType        string             `gorm:"type:varchar(64);not null"`
	Severity         string             `gorm:"type:varchar(16);not null"`
	Retryable        bool               `gorm:"not null"`
	SanitizedDetails string             `gorm:"type:text"`
	RequestSnapshot  string             `gorm:"type:text"`
	CreatedAt        time.Time
}

func (ProviderErrorModel) TableName() string {
	return "provider_errors"
}

func customerModelToDomain(m *CustomerModel) *domain.Customer {
	if m == nil {
		return nil
	}

	limits := domain.PlanLimits{
		PerService: map[domain.ServiceType][]domain.WindowLimit{},
	}
	limits.Global = appendWindow(limits.Global, time.Minute, m.GlobalPerMinute)
	limits.Global = appendWindow(limits.Global, 24*time.Hour, m.GlobalPerDay)
	limits.Global = appendWindow(limits.Global, 30*24*time.Hour, m.GlobalPerMonth)

	var sms []domain.WindowLimit
	sms = appendWindow(sms, time.Minute, m.SMSPerMinute)
	sms = appendWindow(sms, 24*time.Hour, m.SMSPerDay)
	if len(sms) > 0 {
		limits.PerService[domain.ServiceSMS] = sms
	}

	var email []domain.WindowLimit
	email = appendWindow(email, time.Minute, m.EmailPerMinute)
	email = appendWindow(email, 24*time.Hour, m.EmailPerDay)
	if len(email) > 0 {
		limits.PerService[domain.ServiceEmail] = email
	}

	return &domain.Customer{
		ID:           m.ID,
		Plan:         m.Plan,
		BalanceCents: m.BalanceCents,
		IsActive:     m.IsActive,
		Limits:       limits,
		CallbackURL:  m.CallbackURL,
	}
}

func appendWindow(windows []domain.WindowLimit, window time.Duration, limit int64) []domain.WindowLimit {
	if limit <= 0 {
		return windows
	}
	return append(windows, domain.WindowLimit{Window: window, Limit: limit})
}

func transactionModelFromDomain(t *domain.Transaction) *TransactionModel {
	if t == nil {
		return nil
	}

	return &TransactionModel{
		ID:                t.ID,
		CustomerID:        t.CustomerID,
		Service:           t.Service,
		Destination:       t.Destination,
		Provider:          t.Provider,
		Segments:          t.Segments,
		CostCents:         t.CostCents,
		PriceCents:        t.PriceCents,
		Status:            t.Status,
		ProviderMessageID: t.ProviderMessageID,
		FailureReason:     t.FailureReason,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

func transactionModelToDomain(m *TransactionModel) *domain.Transaction {
	if m == nil {
		return nil
	}

	return &domain.Transaction{
		ID:                m.ID,
		CustomerID:        m.CustomerID,
		Service:           m.Service,
		Destination:       m.Destination,
		Provider:          m.Provider,
		Segments:          m.Segments,
		CostCents:         m.CostCents,
		PriceCents:        m.PriceCents,
		Status:            m.Status,
		ProviderMessageID: m.ProviderMessageID,
		FailureReason:     m.FailureReason,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func providerErrorModelFromDomain(r *domain.ProviderErrorRecord) *ProviderErrorModel {
	if r == nil {
		return nil
	}

	return &ProviderErrorModel{
		ErrorID:          r.ErrorID,
		Service:          r.Service,
		Provider:         r.Provider,
		CustomerID:       r.CustomerID,
		TransactionID:    r.TransactionID,
		ErrorType:        r.ErrorType,
		Severity:         r.Severity,
		Retryable:        r.Retryable,
		SanitizedDetails: r.SanitizedDetails,
		RequestSnapshot:  r.RequestSnapshot,
		CreatedAt:        r.CreatedAt,
	}
}
