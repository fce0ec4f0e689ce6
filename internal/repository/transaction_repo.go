package repository

import (
	"context"
	"errors"

	"github.com/sendbridge/core/internal/domain"
	"gorm.io/gorm"
)

// TransactionRepository is the ledger port: insert-pending then one terminal
// update per transaction id.
type TransactionRepository interface {
	InsertPending(ctx context.Context, t *domain.Transaction) error
	MarkSent(ctx context.Context, id string, providerMessageID string) error
	MarkFailed(ctx context.Context, id string, reason string) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
}

type GormTransactionRepo struct {
	db *gorm.DB
}

var _ TransactionRepository = (*GormTransactionRepo)(nil)

func NewGormTransactionRepo(db *gorm.DB) *GormTransactionRepo {
	return &GormTransactionRepo{db: db}
}

func (r *GormTransactionRepo) InsertPending(ctx context.Context, t *domain.Transaction) error {
	model := transactionModelFromDomain(t)
	if model == nil {
		return errors.New("transaction is required")
	}
	model.Status = domain.TransactionPending

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*t = *transactionModelToDomain(model)
	return nil
}

func (r *GormTransactionRepo) MarkSent(ctx context.Context, id string, providerMessageID string) error {
	updates := map[string]any{"status": domain.TransactionSent}
	if providerMessageID != "" {
		updates["provider_message_id"] = providerMessageID
	}

	result := r.db.WithContext(ctx).
		Model(&TransactionModel{}).
		Where("id = ? AND status = ?", id, domain.TransactionPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormTransactionRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	result := r.db.WithContext(ctx).
		Model(&TransactionModel{}).
		Where("id = ? AND status = ?", id, domain.TransactionPending).
		Updates(map[string]any{
			"status":         domain.TransactionFailed,
			"failure_reason": reason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormTransactionRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	var model TransactionModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return transactionModelToDomain(&model), nil
}
