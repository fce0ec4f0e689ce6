package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/sendbridge/core/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_customers",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.CustomerModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.CustomerModel{})
			},
		},
		{
			ID: "000002_create_transactions",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.TransactionModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_transactions_customer_created ON transactions (customer_id, created_at)`,
					`CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions (status) WHERE status = 'PENDING'`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.TransactionModel{})
			},
		},
		{
			ID: "000003_create_provider_errors",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.ProviderErrorModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_provider_errors_created ON provider_errors (created_at)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.ProviderErrorModel{})
			},
		},
	})

	return m.Migrate()
}
