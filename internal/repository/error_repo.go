package repository

import (
	"context"
	"errors"

	"github.com/sendbridge/core/internal/domain"
	"gorm.io/gorm"
)

// ProviderErrorRepository is the append-only audit log port.
type ProviderErrorRepository interface {
	Create(ctx context.Context, record *domain.ProviderErrorRecord) error
}

type GormProviderErrorRepo struct {
	db *gorm.DB
}

var _ ProviderErrorRepository = (*GormProviderErrorRepo)(nil)

func NewGormProviderErrorRepo(db *gorm.DB) *GormProviderErrorRepo {
	return &GormProviderErrorRepo{db: db}
}

func (r *GormProviderErrorRepo) Create(ctx context.Context, record *domain.ProviderErrorRecord) error {
	model := providerErrorModelFromDomain(record)
	if model == nil {
		return errors.New("provider error record is required")
	}
	return r.db.WithContext(ctx).Create(model).Error
}
