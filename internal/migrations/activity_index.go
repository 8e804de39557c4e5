package migrations

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// The activity log is queried by target (collection + item) far more often
// than it is appended to, and the comment reconciliation probes it twice per
// row. The index is created here rather than in the model tags so the
// bootstrap schema stays at its original shape.
func init() {
	Register(Migration{
		Version: "20240910A",
		Name:    "index-activity-target",
		Up: func(ctx context.Context, db *gorm.DB) error {
			err := db.WithContext(ctx).Exec(
				`CREATE INDEX IF NOT EXISTS "idx_directus_activity_target" ON "directus_activity" ("collection","item")`,
			).Error
			if err != nil {
				return fmt.Errorf("failed to create activity target index: %w", err)
			}
			return nil
		},
		Down: func(ctx context.Context, db *gorm.DB) error {
			err := db.WithContext(ctx).Exec(
				`DROP INDEX IF EXISTS "idx_directus_activity_target"`,
			).Error
			if err != nil {
				return fmt.Errorf("failed to drop activity target index: %w", err)
			}
			return nil
		},
	})
}
