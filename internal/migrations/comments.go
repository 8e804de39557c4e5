package migrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/stratahq/strata/internal/models"
	"github.com/stratahq/strata/internal/observability"
	"github.com/stratahq/strata/pkg/chunk"
)

// commentBatchSize bounds how many activity or comment rows are worked
// through at a time.
const commentBatchSize = 100

func init() {
	Register(Migration{
		Version: "20240924A",
		Name:    "migrate-legacy-comments",
		Up: func(ctx context.Context, db *gorm.DB) error {
			return newCommentMigrator(ctx).apply(ctx, db)
		},
		Down: func(ctx context.Context, db *gorm.DB) error {
			return newCommentMigrator(ctx).revert(ctx, db)
		},
	})
}

// commentMigrator moves legacy comments out of the activity log into the
// dedicated directus_comments table, and back. The clock and identifier
// sources are fields so tests can pin them.
type commentMigrator struct {
	logger zerolog.Logger
	now    func() time.Time
	newID  func() uuid.UUID
}

func newCommentMigrator(ctx context.Context) *commentMigrator {
	return &commentMigrator{
		logger: zerolog.Ctx(ctx).With().Str("component", "comment_migration").Logger(),
		now:    time.Now,
		newID:  uuid.New,
	}
}

// apply creates the comments table and converts every activity entry that
// still embeds comment text. The scan walks the activity log in ascending id
// order so repointed rows are never revisited, and each row commits in its
// own transaction: one bad row does not roll back the rest. Failed rows are
// collected and reported after the scan, which keeps the migration
// unrecorded and safe to re-run, since converted rows no longer match the
// source query.
func (m *commentMigrator) apply(ctx context.Context, db *gorm.DB) error {
	migrator := db.WithContext(ctx).Migrator()
	if !migrator.HasTable(&models.Comment{}) {
		if err := migrator.CreateTable(&models.Comment{}); err != nil {
			return fmt.Errorf("failed to create %s: %w", models.TableComments, err)
		}
		m.logger.Info().Str("table", models.TableComments).Msg("created comments table")
	}

	var (
		batch    []models.Activity
		migrated int
		rowErrs  []error
	)

	result := db.WithContext(ctx).
		Where("comment IS NOT NULL").
		FindInBatches(&batch, commentBatchSize, func(_ *gorm.DB, batchNo int) error {
			m.logger.Debug().Int("batch", batchNo).Int("rows", len(batch)).Msg("migrating comment batch")

			for i := range batch {
				if err := m.migrateRow(ctx, db, batch[i]); err != nil {
					rowErrs = append(rowErrs, fmt.Errorf("activity %d: %w", batch[i].ID, err))
					m.logger.Error().Err(err).Uint("activity_id", batch[i].ID).Msg("failed to migrate comment row")
					observability.CommentRows().WithLabelValues("up", "failed").Inc()
					continue
				}

				migrated++
				observability.CommentRows().WithLabelValues("up", "migrated").Inc()
			}

			return nil
		})
	if result.Error != nil {
		return fmt.Errorf("failed to scan legacy comments: %w", result.Error)
	}

	m.logger.Info().Int("migrated", migrated).Int("failed", len(rowErrs)).Msg("comment migration finished")

	if len(rowErrs) > 0 {
		return fmt.Errorf("%d comment rows failed to migrate: %w", len(rowErrs), errors.Join(rowErrs...))
	}

	return nil
}

// migrateRow copies one legacy entry into the comments table and repoints
// the activity row at the new comment. Both writes commit or roll back
// together.
func (m *commentMigrator) migrateRow(ctx context.Context, db *gorm.DB, row models.Activity) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		comment := models.Comment{
			ID:          m.newID(),
			Collection:  row.Collection,
			Item:        row.Item,
			Comment:     *row.Comment,
			UserCreated: row.User,
			DateCreated: &row.Timestamp,
		}
		if err := tx.Create(&comment).Error; err != nil {
			return fmt.Errorf("failed to insert comment: %w", err)
		}

		updates := map[string]interface{}{
			"action":     models.ActionCreate,
			"collection": models.TableComments,
			"item":       comment.ID.String(),
			"comment":    nil,
		}
		if err := tx.Model(&models.Activity{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to repoint activity entry: %w", err)
		}

		return nil
	})
}

// revert walks every comment row, reinstates its activity-log
// representation, and drops the comments table. The drop only happens when
// every row reconciled cleanly; otherwise the table is kept so no text is
// lost, and a retry will find the already-reconciled rows through their
// restored entries.
func (m *commentMigrator) revert(ctx context.Context, db *gorm.DB) error {
	var comments []models.Comment
	if err := db.WithContext(ctx).Find(&comments).Error; err != nil {
		return fmt.Errorf("failed to read comments: %w", err)
	}

	var (
		restored int
		merged   int
		inserted int
		rowErrs  []error
	)

	err := chunk.Process(comments, commentBatchSize, func(batch []models.Comment) error {
		for i := range batch {
			match, err := m.reconcileRow(ctx, db, batch[i])
			if err != nil {
				rowErrs = append(rowErrs, fmt.Errorf("comment %s: %w", batch[i].ID, err))
				m.logger.Error().Err(err).Str("comment_id", batch[i].ID.String()).Msg("failed to reconcile comment row")
				observability.CommentRows().WithLabelValues("down", "failed").Inc()
				continue
			}

			switch match {
			case matchCrossRef:
				restored++
			case matchShadow:
				merged++
			case matchNone:
				inserted++
			}
			observability.CommentRows().WithLabelValues("down", match.String()).Inc()
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to process comment chunks: %w", err)
	}

	m.logger.Info().
		Int("restored", restored).
		Int("merged", merged).
		Int("inserted", inserted).
		Int("failed", len(rowErrs)).
		Msg("comment reconciliation finished")

	if len(rowErrs) > 0 {
		return fmt.Errorf("%d comment rows failed to reconcile, keeping %s: %w",
			len(rowErrs), models.TableComments, errors.Join(rowErrs...))
	}

	if err := db.WithContext(ctx).Migrator().DropTable(&models.Comment{}); err != nil {
		return fmt.Errorf("failed to drop %s: %w", models.TableComments, err)
	}

	m.logger.Info().Str("table", models.TableComments).Msg("dropped comments table")

	return nil
}

// reconcileRow restores one comment into the activity log. The lookup and
// the write share a transaction so no concurrent writer can slip a
// conflicting entry in between them.
func (m *commentMigrator) reconcileRow(ctx context.Context, db *gorm.DB, c models.Comment) (reconcileMatch, error) {
	var match reconcileMatch

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		crossRef, err := m.findCrossRef(tx, c)
		if err != nil {
			return err
		}

		var shadow *models.Activity
		if crossRef == nil {
			shadow, err = m.findShadow(tx, c)
			if err != nil {
				return err
			}
		}

		var target *models.Activity
		match, target = classifyReconciliation(crossRef, shadow)

		switch match {
		case matchCrossRef:
			return m.restoreCrossRef(tx, target, c)
		case matchShadow:
			return m.mergeShadow(tx, target, c)
		default:
			return m.insertLegacy(tx, c)
		}
	})

	return match, err
}

// reconcileMatch tags which existing representation of a comment the revert
// path found in the activity log.
type reconcileMatch int

const (
	// matchCrossRef is the entry apply repointed at the comment.
	matchCrossRef reconcileMatch = iota
	// matchShadow is a comment-action entry for the same target that was
	// never repointed, e.g. a comment created after the forward migration.
	matchShadow
	// matchNone means the activity log holds no trace of the comment.
	matchNone
)

func (m reconcileMatch) String() string {
	switch m {
	case matchCrossRef:
		return "restored"
	case matchShadow:
		return "merged"
	case matchNone:
		return "inserted"
	default:
		return "unknown"
	}
}

// classifyReconciliation resolves which activity entry a comment reverts
// into. The priority is fixed: repair the cross-reference the forward
// migration created, else merge into a shadow entry, else report no match so
// the caller fabricates a fresh entry.
func classifyReconciliation(crossRef, shadow *models.Activity) (reconcileMatch, *models.Activity) {
	switch {
	case crossRef != nil:
		return matchCrossRef, crossRef
	case shadow != nil:
		return matchShadow, shadow
	default:
		return matchNone, nil
	}
}

// findCrossRef looks up the activity entry the forward migration repointed
// at this comment.
func (m *commentMigrator) findCrossRef(tx *gorm.DB, c models.Comment) (*models.Activity, error) {
	var entry models.Activity

	err := tx.Where("collection = ? AND item = ? AND action = ?",
		models.TableComments, c.ID.String(), models.ActionCreate).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up cross-reference: %w", err)
	}

	return &entry, nil
}

// findShadow looks up a comment-action entry against the same target that
// was never repointed.
func (m *commentMigrator) findShadow(tx *gorm.DB, c models.Comment) (*models.Activity, error) {
	var entry models.Activity

	err := tx.Where("collection = ? AND item = ? AND action = ?",
		c.Collection, c.Item, models.ActionComment).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up shadow entry: %w", err)
	}

	return &entry, nil
}

// restoreCrossRef rewrites the repointed entry back to its legacy form.
func (m *commentMigrator) restoreCrossRef(tx *gorm.DB, entry *models.Activity, c models.Comment) error {
	updates := map[string]interface{}{
		"action":     models.ActionComment,
		"collection": c.Collection,
		"item":       c.Item,
		"comment":    c.Comment,
	}
	if err := tx.Model(&models.Activity{}).Where("id = ?", entry.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to restore cross-referenced entry %d: %w", entry.ID, err)
	}

	return nil
}

// mergeShadow overwrites the shadow entry's text instead of duplicating the
// log entry.
func (m *commentMigrator) mergeShadow(tx *gorm.DB, entry *models.Activity, c models.Comment) error {
	if err := tx.Model(&models.Activity{}).Where("id = ?", entry.ID).Update("comment", c.Comment).Error; err != nil {
		return fmt.Errorf("failed to merge into shadow entry %d: %w", entry.ID, err)
	}

	return nil
}

// insertLegacy fabricates the legacy entry for a comment the log never saw.
func (m *commentMigrator) insertLegacy(tx *gorm.DB, c models.Comment) error {
	timestamp := m.now().UTC()
	if c.DateCreated != nil {
		timestamp = *c.DateCreated
	}

	text := c.Comment
	entry := models.Activity{
		Action:     models.ActionComment,
		User:       c.UserCreated,
		Timestamp:  timestamp,
		Collection: c.Collection,
		Item:       c.Item,
		Comment:    &text,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to insert legacy entry: %w", err)
	}

	return nil
}
