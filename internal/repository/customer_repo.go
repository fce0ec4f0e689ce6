package repository

import (
	"context"
	"errors"

	"github.com/sendbridge/core/internal/domain"
	"gorm.io/gorm"
)

// CustomerRepository is the plan/balance lookup port.
type CustomerRepository interface {
	Get(ctx context.Context, id string) (*domain.Customer, error)
	// DeductBalance charges the customer at most once per transaction id.
	// Repeated calls for the same transaction are no-ops.
	DeductBalance(ctx context.Context, customerID, transactionID string, amountCents int64) error
}

type GormCustomerRepo struct {
	db *gorm.DB
}

var _ CustomerRepository = (*GormCustomerRepo)(nil)

func NewGormCustomerRepo(db *gorm.DB) *GormCustomerRepo {
	return &GormCustomerRepo{db: db}
}

func (r *GormCustomerRepo) Get(ctx context.Context, id string) (*domain.Customer, error) {
	var model CustomerModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return customerModelToDomain(&model), nil
}

func (r *GormCustomerRepo) DeductBalance(ctx context.Context, customerID, transactionID string, amountCents int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The transaction row is the dedupe guard: flip balance_deducted
		// first, and only charge when this call did the flip.
		claim := tx.Model(&TransactionModel{}).
			Where("id = ? AND customer_id = ? AND balance_deducted = false", transactionID, customerID).
			Update("balance_deducted", true)
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			return nil
		}

		charge := tx.Model(&CustomerModel{}).
			Where("id = ? AND balance_cents >= ?", customerID, amountCents).
			Update("balance_cents", gorm.Expr("balance_cents - ?", amountCents))
		if charge.Error != nil {
			return charge.Error
		}
		if charge.RowsAffected == 0 {
			return domain.ErrInsufficientBalance
		}
		return nil
	})
}
