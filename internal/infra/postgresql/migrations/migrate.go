package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_notifications",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.NotificationModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_notifications_due ON notifications (status, scheduled_for) WHERE status = 'pending'`,
					`CREATE INDEX IF NOT EXISTS idx_notifications_status_created ON notifications (status, created_at)`,
					`CREATE INDEX IF NOT EXISTS idx_notifications_tag ON notifications (tag) WHERE tag IS NOT NULL`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.NotificationModel{})
			},
		},
		{
			ID: "000002_create_providers",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.ProviderModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.ProviderModel{})
			},
		},
		{
			ID: "000003_create_state_entries",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.StateEntryModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_state_entries_expires_at ON state_entries (expires_at) WHERE expires_at IS NOT NULL`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.StateEntryModel{})
			},
		},
	})

	return m.Migrate()
}
