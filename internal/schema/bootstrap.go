// Package schema installs the base system tables the migration engine works
// against.
package schema

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/stratahq/strata/internal/models"
)

// Install creates or updates the pre-existing system tables: users,
// collections and the activity log. The comments table is not part of the
// base schema; its lifecycle belongs to the comment migration.
func Install(ctx context.Context, db *gorm.DB, logger zerolog.Logger) error {
	log := logger.With().Str("component", "schema").Logger()

	if err := db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Collection{},
		&models.Activity{},
	); err != nil {
		return fmt.Errorf("failed to install base schema: %w", err)
	}

	log.Info().
		Strs("tables", []string{models.TableUsers, models.TableCollections, models.TableActivity}).
		Msg("base schema installed")

	return nil
}
