// Package seed fills a development database with demo fixtures so the
// migration flows can be exercised locally.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stratahq/strata/internal/models"
)

// ErrSeedDisabled indicates seeding was requested against a production
// database.
var ErrSeedDisabled = errors.New("seeding is disabled in production")

// Seeder inserts demo users, collections and legacy comment activity.
type Seeder struct {
	db     *gorm.DB
	appEnv string
	logger zerolog.Logger
	now    func() time.Time
}

// NewSeeder constructs a Seeder bound to the given environment name.
func NewSeeder(db *gorm.DB, appEnv string, logger zerolog.Logger) *Seeder {
	return &Seeder{
		db:     db,
		appEnv: appEnv,
		logger: logger.With().Str("component", "seed").Logger(),
		now:    time.Now,
	}
}

// Demo users keep fixed identifiers so repeated seeding never multiplies
// them.
var demoUsers = []models.User{
	{ID: uuid.MustParse("6d1d5e78-7e1a-4b03-9bbd-0d5e7f0c2a01"), Status: "active"},
	{ID: uuid.MustParse("6d1d5e78-7e1a-4b03-9bbd-0d5e7f0c2a02"), Status: "active"},
}

var demoCollections = []string{"articles", "recipes", "pages"}

// Seed populates the base tables. Users and collections upsert quietly;
// activity entries are only written into an empty log, so re-running the
// command never duplicates them.
func (s *Seeder) Seed(ctx context.Context) error {
	if s.appEnv == "production" {
		return ErrSeedDisabled
	}

	users := make([]models.User, len(demoUsers))
	copy(users, demoUsers)
	for i := range users {
		email := fmt.Sprintf("demo%d@example.com", i+1)
		users[i].Email = &email
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&users).Error; err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	collections := make([]models.Collection, 0, len(demoCollections))
	for _, name := range demoCollections {
		collections = append(collections, models.Collection{Key: name})
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&collections).Error; err != nil {
		return fmt.Errorf("failed to seed collections: %w", err)
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.Activity{}).Count(&existing).Error; err != nil {
		return fmt.Errorf("failed to inspect activity log: %w", err)
	}
	if existing > 0 {
		s.logger.Info().Int64("entries", existing).Msg("activity log not empty, skipping activity fixtures")
		return nil
	}

	entries := s.demoActivity()
	if err := s.db.WithContext(ctx).Create(&entries).Error; err != nil {
		return fmt.Errorf("failed to seed activity log: %w", err)
	}

	s.logger.Info().
		Int("users", len(users)).
		Int("collections", len(collections)).
		Int("activity", len(entries)).
		Msg("demo fixtures seeded")

	return nil
}

// demoActivity fabricates a small history: a login, some edits, and a spread
// of legacy comments for the migration to pick up.
func (s *Seeder) demoActivity() []models.Activity {
	base := s.now().UTC().Add(-48 * time.Hour)
	author := demoUsers[0].ID
	reviewer := demoUsers[1].ID

	comment := func(offset time.Duration, collection, item, text string, user *uuid.UUID) models.Activity {
		return models.Activity{
			Action:     models.ActionComment,
			User:       user,
			Timestamp:  base.Add(offset),
			Collection: collection,
			Item:       item,
			Comment:    &text,
		}
	}

	return []models.Activity{
		{Action: models.ActionLogin, User: &author, Timestamp: base, Collection: models.TableUsers, Item: author.String()},
		{Action: models.ActionCreate, User: &author, Timestamp: base.Add(5 * time.Minute), Collection: "articles", Item: "1"},
		{Action: models.ActionUpdate, User: &reviewer, Timestamp: base.Add(10 * time.Minute), Collection: "articles", Item: "1"},
		comment(15*time.Minute, "articles", "1", "Great opening paragraph.", &reviewer),
		comment(20*time.Minute, "articles", "1", "Second section needs sources.", &author),
		comment(25*time.Minute, "articles", "2", "Ready for review?", nil),
		comment(2*time.Hour, "recipes", "7", "Halve the salt.", &reviewer),
		comment(3*time.Hour, "recipes", "7", "Tried it, much better.", &author),
		comment(26*time.Hour, "pages", "home", "Update the hero image.", &reviewer),
	}
}
