// Package migrate executes registered migrations against a database and
// tracks which versions have been applied.
package migrate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/stratahq/strata/internal/cache"
	"github.com/stratahq/strata/internal/migrations"
	"github.com/stratahq/strata/internal/models"
	"github.com/stratahq/strata/internal/observability"
)

const (
	directionUp   = "up"
	directionDown = "down"
)

// Status reports one migration's position against the tracking table.
type Status struct {
	Version   string
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

// Runner executes migrations in version order and records each success in
// the directus_migrations tracking table. A migration that returns an error
// is never recorded, so the next invocation picks it up again.
type Runner struct {
	db         *gorm.DB
	migrations []migrations.Migration
	flusher    *cache.Flusher
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewRunner wires a Runner over the given database handle. The migration set
// is passed in rather than read from the registry so callers control exactly
// what runs.
func NewRunner(db *gorm.DB, set []migrations.Migration, flusher *cache.Flusher, logger zerolog.Logger) *Runner {
	ordered := make([]migrations.Migration, len(set))
	copy(ordered, set)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Version < ordered[j].Version })

	return &Runner{
		db:         db,
		migrations: ordered,
		flusher:    flusher,
		logger:     logger.With().Str("component", "migration_runner").Logger(),
		tracer:     otel.Tracer("github.com/stratahq/strata/internal/migrate"),
		now:        time.Now,
	}
}

// Latest applies every pending migration in version order.
func (r *Runner) Latest(ctx context.Context) error {
	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return err
	}

	ran := 0
	for _, m := range r.migrations {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		if err := r.run(ctx, m, directionUp); err != nil {
			return err
		}
		ran++
	}

	if ran == 0 {
		r.logger.Info().Msg("database is up to date")
		return nil
	}

	r.flush(ctx)
	return nil
}

// Up applies the next pending migration only.
func (r *Runner) Up(ctx context.Context) error {
	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range r.migrations {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		if err := r.run(ctx, m, directionUp); err != nil {
			return err
		}
		r.flush(ctx)
		return nil
	}

	r.logger.Info().Msg("no pending migrations")
	return nil
}

// Down reverts the most recently applied migration.
func (r *Runner) Down(ctx context.Context) error {
	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for i := len(r.migrations) - 1; i >= 0; i-- {
		m := r.migrations[i]
		if _, ok := applied[m.Version]; !ok {
			continue
		}
		if err := r.run(ctx, m, directionDown); err != nil {
			return err
		}
		r.flush(ctx)
		return nil
	}

	r.logger.Info().Msg("nothing to revert")
	return nil
}

// Status reports every known migration plus any tracking records that no
// longer correspond to one, sorted by version.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Status, 0, len(r.migrations))
	for _, m := range r.migrations {
		s := Status{Version: m.Version, Name: m.Name}
		if rec, ok := applied[m.Version]; ok {
			ts := rec.Timestamp
			s.Applied = true
			s.AppliedAt = &ts
			delete(applied, m.Version)
		}
		out = append(out, s)
	}

	// Whatever is left was applied by a newer or older build of the tool.
	for _, rec := range applied {
		ts := rec.Timestamp
		out = append(out, Status{Version: rec.Version, Name: rec.Name, Applied: true, AppliedAt: &ts})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })

	return out, nil
}

func (r *Runner) appliedVersions(ctx context.Context) (map[string]models.MigrationRecord, error) {
	if err := r.db.WithContext(ctx).AutoMigrate(&models.MigrationRecord{}); err != nil {
		return nil, fmt.Errorf("failed to prepare migration tracking table: %w", err)
	}

	var records []models.MigrationRecord
	if err := r.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}

	applied := make(map[string]models.MigrationRecord, len(records))
	for _, rec := range records {
		applied[rec.Version] = rec
	}

	return applied, nil
}

func (r *Runner) run(ctx context.Context, m migrations.Migration, direction string) error {
	spanName := "migrations.apply"
	execute := m.Up
	if direction == directionDown {
		spanName = "migrations.revert"
		execute = m.Down
	}

	ctx, span := r.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("migration.version", m.Version),
		attribute.String("migration.name", m.Name),
	))
	defer span.End()

	logger := r.logger.With().
		Str("version", m.Version).
		Str("name", m.Name).
		Str("direction", direction).
		Logger()
	logger.Info().Msg("running migration")

	start := r.now()
	err := execute(logger.WithContext(ctx), r.db)
	elapsed := r.now().Sub(start)

	observability.MigrationDuration().WithLabelValues(direction).Observe(elapsed.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "migration failed")
		observability.Migrations().WithLabelValues(direction, "failure").Inc()
		logger.Error().Err(err).Dur("elapsed", elapsed).Msg("migration failed")
		return fmt.Errorf("migration %s (%s) failed: %w", m.Version, direction, err)
	}

	if err := r.record(ctx, m, direction); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tracking update failed")
		observability.Migrations().WithLabelValues(direction, "failure").Inc()
		return err
	}

	observability.Migrations().WithLabelValues(direction, "success").Inc()
	logger.Info().Dur("elapsed", elapsed).Msg("migration complete")

	return nil
}

func (r *Runner) record(ctx context.Context, m migrations.Migration, direction string) error {
	if direction == directionUp {
		rec := models.MigrationRecord{Version: m.Version, Name: m.Name, Timestamp: r.now().UTC()}
		if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
		}
		return nil
	}

	if err := r.db.WithContext(ctx).Where("version = ?", m.Version).Delete(&models.MigrationRecord{}).Error; err != nil {
		return fmt.Errorf("failed to clear migration record %s: %w", m.Version, err)
	}

	return nil
}

// flush invalidates the platform cache after a schema change. Cache trouble
// is logged, never escalated: the migration itself already committed.
func (r *Runner) flush(ctx context.Context) {
	if err := r.flusher.Flush(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("failed to flush cache after migration")
	}
}
