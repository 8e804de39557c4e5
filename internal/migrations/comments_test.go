package migrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/stratahq/strata/internal/database"
	"github.com/stratahq/strata/internal/models"
)

func TestApplyMigratesLegacyComment(t *testing.T) {
	db := setupTestDB(t)
	userID := seedUser(t, db, "u1@example.com")
	seedCollection(t, db, "articles")

	posted := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	entry := seedCommentActivity(t, db, "articles", "42", "nice", &userID, posted)

	m := newTestMigrator(zerolog.New(io.Discard))
	require.NoError(t, m.apply(context.Background(), db))

	var comment models.Comment
	require.NoError(t, db.First(&comment).Error)
	require.Equal(t, "articles", comment.Collection)
	require.Equal(t, "42", comment.Item)
	require.Equal(t, "nice", comment.Comment)
	require.NotNil(t, comment.UserCreated)
	require.Equal(t, userID, *comment.UserCreated)
	require.NotNil(t, comment.DateCreated)
	require.WithinDuration(t, posted, *comment.DateCreated, time.Second)

	var updated models.Activity
	require.NoError(t, db.First(&updated, entry.ID).Error)
	require.Equal(t, models.ActionCreate, updated.Action)
	require.Equal(t, models.TableComments, updated.Collection)
	require.Equal(t, comment.ID.String(), updated.Item)
	require.Nil(t, updated.Comment)
}

func TestApplyLeavesNonCommentRowsAlone(t *testing.T) {
	db := setupTestDB(t)
	seedCollection(t, db, "articles")

	login := models.Activity{Action: models.ActionLogin, Collection: "directus_users", Item: "u1"}
	edit := models.Activity{Action: models.ActionUpdate, Collection: "articles", Item: "42"}
	require.NoError(t, db.Create(&login).Error)
	require.NoError(t, db.Create(&edit).Error)

	m := newTestMigrator(zerolog.New(io.Discard))
	require.NoError(t, m.apply(context.Background(), db))

	var comments int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&comments).Error)
	require.Zero(t, comments)

	// Fresh destinations per lookup: a reused struct would carry the first
	// row's primary key into the second query's conditions.
	var afterLogin models.Activity
	require.NoError(t, db.First(&afterLogin, login.ID).Error)
	require.Equal(t, models.ActionLogin, afterLogin.Action)

	var afterEdit models.Activity
	require.NoError(t, db.First(&afterEdit, edit.ID).Error)
	require.Equal(t, models.ActionUpdate, afterEdit.Action)
}

func TestApplyProcessesRowsInAscendingIDOrder(t *testing.T) {
	db := setupTestDB(t)
	seedCollection(t, db, "articles")

	// Created out of order on purpose: insertion order must not matter.
	for _, id := range []uint{3, 1, 2} {
		text := fmt.Sprintf("comment %d", id)
		entry := models.Activity{ID: id, Action: models.ActionComment, Collection: "articles", Item: "42", Comment: &text}
		require.NoError(t, db.Create(&entry).Error)
	}

	issued := make([]uuid.UUID, 0, 3)
	m := newTestMigrator(zerolog.New(io.Discard))
	m.newID = func() uuid.UUID {
		id := uuid.New()
		issued = append(issued, id)
		return id
	}

	require.NoError(t, m.apply(context.Background(), db))
	require.Len(t, issued, 3)

	for i, activityID := range []uint{1, 2, 3} {
		var entry models.Activity
		require.NoError(t, db.First(&entry, activityID).Error)
		require.Equal(t, issued[i].String(), entry.Item, "activity %d should hold the %d-th generated id", activityID, i+1)
	}
}

func TestApplyBatchBoundaries(t *testing.T) {
	db := setupTestDB(t)
	seedCollection(t, db, "articles")
	seedManyCommentActivities(t, db, "articles", 250)

	var buf bytes.Buffer
	m := newTestMigrator(zerolog.New(&buf))
	require.NoError(t, m.apply(context.Background(), db))

	require.Equal(t, []int{100, 100, 50}, batchSizesFromLog(t, &buf))

	var comments int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&comments).Error)
	require.EqualValues(t, 250, comments)
}

func TestApplyContinuesPastFailingRow(t *testing.T) {
	db := setupTestDB(t)
	seedCollection(t, db, "articles")

	seedCommentActivity(t, db, "articles", "1", "first", nil, time.Now())
	// References a collection that does not exist, so the comment insert
	// violates the foreign key and only this row fails.
	broken := seedCommentActivity(t, db, "ghost", "2", "second", nil, time.Now())
	seedCommentActivity(t, db, "articles", "3", "third", nil, time.Now())

	m := newTestMigrator(zerolog.New(io.Discard))
	err := m.apply(context.Background(), db)
	require.Error(t, err)
	require.Contains(t, err.Error(), "1 comment rows failed")

	var comments int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&comments).Error)
	require.EqualValues(t, 2, comments)

	var stuck models.Activity
	require.NoError(t, db.First(&stuck, broken.ID).Error)
	require.Equal(t, models.ActionComment, stuck.Action)
	require.NotNil(t, stuck.Comment)
	require.Equal(t, "second", *stuck.Comment)

	// Once the missing collection exists, a re-run picks up only the row
	// that failed: converted rows no longer match the source query.
	seedCollection(t, db, "ghost")
	require.NoError(t, m.apply(context.Background(), db))

	require.NoError(t, db.Model(&models.Comment{}).Count(&comments).Error)
	require.EqualValues(t, 3, comments)
}

func TestApplyThenRevertRoundTrips(t *testing.T) {
	db := setupTestDB(t)
	userID := seedUser(t, db, "author@example.com")
	seedCollection(t, db, "articles")
	seedCollection(t, db, "recipes")

	posted := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	originals := []models.Activity{
		seedCommentActivity(t, db, "articles", "42", "nice", &userID, posted),
		seedCommentActivity(t, db, "articles", "43", "needs work", nil, posted.Add(time.Hour)),
		seedCommentActivity(t, db, "recipes", "7", "too salty", &userID, posted.Add(2*time.Hour)),
	}

	m := newTestMigrator(zerolog.New(io.Discard))
	ctx := context.Background()
	require.NoError(t, m.apply(ctx, db))
	require.NoError(t, m.revert(ctx, db))

	var total int64
	require.NoError(t, db.Model(&models.Activity{}).Count(&total).Error)
	require.EqualValues(t, len(originals), total, "revert must not add or drop entries")

	for _, original := range originals {
		var restored models.Activity
		require.NoError(t, db.First(&restored, original.ID).Error, "the cross-reference keeps the original row id")
		require.Equal(t, models.ActionComment, restored.Action)
		require.Equal(t, original.Collection, restored.Collection)
		require.Equal(t, original.Item, restored.Item)
		require.NotNil(t, restored.Comment)
		require.Equal(t, *original.Comment, *restored.Comment)
		if original.User != nil {
			require.NotNil(t, restored.User)
			require.Equal(t, *original.User, *restored.User)
		} else {
			require.Nil(t, restored.User)
		}
		require.WithinDuration(t, original.Timestamp, restored.Timestamp, time.Second)
	}

	require.False(t, db.Migrator().HasTable(&models.Comment{}))
}

func TestRevertMergesIntoShadowEntry(t *testing.T) {
	db := setupTestDB(t)
	seedCollection(t, db, "articles")
	require.NoError(t, db.Migrator().CreateTable(&models.Comment{}))

	shadow := seedCommentActivity(t, db, "articles", "42", "stale text", nil, time.Now())
	seedComment(t, db, "articles", "42", "fresh text", nil)

	m := newTestMigrator(zerolog.New(io.Discard))
	require.NoError(t, m.revert(context.Background(), db))

	var total int64
	require.NoError(t, db.Model(&models.Activity{}).Count(&total).Error)
	require.EqualValues(t, 1, total, "merge must not duplicate the shadow entry")

	var merged models.Activity
	require.NoError(t, db.First(&merged, shadow.ID).Error)
	require.Equal(t, models.ActionComment, merged.Action)
	require.NotNil(t, merged.Comment)
	require.Equal(t, "fresh text", *merged.Comment)
}

func TestRevertInsertsExactlyOneEntryWhenNothingMatches(t *testing.T) {
	db := setupTestDB(t)
	userID := seedUser(t, db, "native@example.com")
	seedCollection(t, db, "articles")
	require.NoError(t, db.Migrator().CreateTable(&models.Comment{}))

	created := time.Date(2024, 8, 20, 14, 0, 0, 0, time.UTC)
	seedCommentWithDate(t, db, "articles", "42", "born after the migration", &userID, created)

	m := newTestMigrator(zerolog.New(io.Discard))
	require.NoError(t, m.revert(context.Background(), db))

	var entries []models.Activity
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1, "exactly one entry, never zero, never two")

	entry := entries[0]
	require.Equal(t, models.ActionComment, entry.Action)
	require.Equal(t, "articles", entry.Collection)
	require.Equal(t, "42", entry.Item)
	require.NotNil(t, entry.Comment)
	require.Equal(t, "born after the migration", *entry.Comment)
	require.NotNil(t, entry.User)
	require.Equal(t, userID, *entry.User)
	require.WithinDuration(t, created, entry.Timestamp, time.Second)
}

func TestRevertPrefersCrossRefOverShadow(t *testing.T) {
	db := setupTestDB(t)
	seedCollection(t, db, "articles")
	require.NoError(t, db.Migrator().CreateTable(&models.Comment{}))

	comment := seedComment(t, db, "articles", "42", "migrated text", nil)

	// Both candidates exist: the repointed entry and an untouched shadow.
	crossRef := models.Activity{
		Action:     models.ActionCreate,
		Collection: models.TableComments,
		Item:       comment.ID.String(),
	}
	require.NoError(t, db.Create(&crossRef).Error)
	shadow := seedCommentActivity(t, db, "articles", "42", "shadow text", nil, time.Now())

	m := newTestMigrator(zerolog.New(io.Discard))
	require.NoError(t, m.revert(context.Background(), db))

	var repaired models.Activity
	require.NoError(t, db.First(&repaired, crossRef.ID).Error)
	require.Equal(t, models.ActionComment, repaired.Action)
	require.Equal(t, "articles", repaired.Collection)
	require.Equal(t, "42", repaired.Item)
	require.NotNil(t, repaired.Comment)
	require.Equal(t, "migrated text", *repaired.Comment)

	var untouched models.Activity
	require.NoError(t, db.First(&untouched, shadow.ID).Error)
	require.NotNil(t, untouched.Comment)
	require.Equal(t, "shadow text", *untouched.Comment)
}

func TestRevertKeepsTableWhenRowsFail(t *testing.T) {
	db := setupTestDB(t)
	seedCollection(t, db, "articles")
	require.NoError(t, db.Migrator().CreateTable(&models.Comment{}))
	seedComment(t, db, "articles", "42", "precious", nil)

	// With the activity log gone every reconciliation fails, which must
	// block the drop: dropping with pending rows would lose the text.
	require.NoError(t, db.Migrator().DropTable(&models.Activity{}))

	m := newTestMigrator(zerolog.New(io.Discard))
	err := m.revert(context.Background(), db)
	require.Error(t, err)
	require.True(t, db.Migrator().HasTable(&models.Comment{}), "table must survive a failed reconciliation pass")
}

func TestRevertRetriesCleanlyAfterPartialRestore(t *testing.T) {
	db := setupTestDB(t)
	seedCollection(t, db, "articles")

	first := seedCommentActivity(t, db, "articles", "1", "earlier", nil, time.Now())
	seedCommentActivity(t, db, "articles", "2", "later", nil, time.Now())

	m := newTestMigrator(zerolog.New(io.Discard))
	ctx := context.Background()
	require.NoError(t, m.apply(ctx, db))

	// Simulate an interrupted earlier revert: the first row was already
	// restored to its legacy form but the table was never dropped.
	text := "earlier"
	require.NoError(t, db.Model(&models.Activity{}).Where("id = ?", first.ID).Updates(map[string]interface{}{
		"action":     models.ActionComment,
		"collection": "articles",
		"item":       "1",
		"comment":    text,
	}).Error)

	require.NoError(t, m.revert(ctx, db))

	var total int64
	require.NoError(t, db.Model(&models.Activity{}).Count(&total).Error)
	require.EqualValues(t, 2, total, "retry must merge into the restored entry, not duplicate it")

	var entries []models.Activity
	require.NoError(t, db.Order("id").Find(&entries).Error)
	for _, entry := range entries {
		require.Equal(t, models.ActionComment, entry.Action)
		require.Equal(t, "articles", entry.Collection)
		require.NotNil(t, entry.Comment)
	}
	require.False(t, db.Migrator().HasTable(&models.Comment{}))
}

func TestCommentTableEnforcesCollectionForeignKey(t *testing.T) {
	db := setupTestDB(t)
	seedCollection(t, db, "articles")
	require.NoError(t, db.Migrator().CreateTable(&models.Comment{}))

	var ddl string
	require.NoError(t, db.Raw(
		"SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", models.TableComments,
	).Scan(&ddl).Error)
	require.Contains(t, ddl, "directus_collections")
	require.Contains(t, ddl, "ON DELETE CASCADE")
	require.Contains(t, ddl, "ON DELETE SET NULL")

	orphan := models.Comment{
		ID:         uuid.New(),
		Collection: "ghost",
		Item:       "1",
		Comment:    "no home",
	}
	require.Error(t, db.Create(&orphan).Error, "a comment for an unknown collection must violate the foreign key")

	seedComment(t, db, "articles", "1", "anchored", nil)
}

func TestDeletingCollectionCascadesToComments(t *testing.T) {
	db := setupTestDB(t)
	seedCollection(t, db, "articles")
	seedCollection(t, db, "recipes")
	require.NoError(t, db.Migrator().CreateTable(&models.Comment{}))

	seedComment(t, db, "articles", "42", "kept", nil)
	seedComment(t, db, "recipes", "7", "dropped with its collection", nil)

	require.NoError(t, db.Where("collection = ?", "recipes").Delete(&models.Collection{}).Error)

	var remaining []models.Comment
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, "articles", remaining[0].Collection)
}

func TestDeletingUserNullsCommentAuthor(t *testing.T) {
	db := setupTestDB(t)
	userID := seedUser(t, db, "leaving@example.com")
	seedCollection(t, db, "articles")
	require.NoError(t, db.Migrator().CreateTable(&models.Comment{}))

	comment := seedComment(t, db, "articles", "42", "still here", &userID)

	require.NoError(t, db.Where("id = ?", userID).Delete(&models.User{}).Error)

	var after models.Comment
	require.NoError(t, db.First(&after, "id = ?", comment.ID).Error)
	require.Nil(t, after.UserCreated)
	require.Equal(t, "still here", after.Comment)
}

func TestClassifyReconciliationPriority(t *testing.T) {
	crossRef := &models.Activity{ID: 1}
	shadow := &models.Activity{ID: 2}

	match, target := classifyReconciliation(crossRef, shadow)
	require.Equal(t, matchCrossRef, match)
	require.Same(t, crossRef, target)

	match, target = classifyReconciliation(nil, shadow)
	require.Equal(t, matchShadow, match)
	require.Same(t, shadow, target)

	match, target = classifyReconciliation(nil, nil)
	require.Equal(t, matchNone, match)
	require.Nil(t, target)
}

func TestCommentMigrationIsRegistered(t *testing.T) {
	m, ok := Find("20240924A")
	require.True(t, ok)
	require.Equal(t, "migrate-legacy-comments", m.Name)

	db := setupTestDB(t)
	seedCollection(t, db, "articles")
	seedCommentActivity(t, db, "articles", "42", "via registry", nil, time.Now())

	ctx := zerolog.New(io.Discard).WithContext(context.Background())
	require.NoError(t, m.Up(ctx, db))
	require.True(t, db.Migrator().HasTable(&models.Comment{}))

	require.NoError(t, m.Down(ctx, db))
	require.False(t, db.Migrator().HasTable(&models.Comment{}))
}

func newTestMigrator(logger zerolog.Logger) *commentMigrator {
	return &commentMigrator{
		logger: logger,
		now:    time.Now,
		newID:  uuid.New,
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.ConnectSQLite(dsn)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Collection{}, &models.Activity{}))

	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) uuid.UUID {
	t.Helper()

	user := models.User{ID: uuid.New(), Email: &email}
	require.NoError(t, db.Create(&user).Error)

	return user.ID
}

func seedCollection(t *testing.T, db *gorm.DB, name string) {
	t.Helper()

	require.NoError(t, db.Create(&models.Collection{Key: name}).Error)
}

func seedCommentActivity(t *testing.T, db *gorm.DB, collection, item, text string, user *uuid.UUID, ts time.Time) models.Activity {
	t.Helper()

	entry := models.Activity{
		Action:     models.ActionComment,
		User:       user,
		Timestamp:  ts,
		Collection: collection,
		Item:       item,
		Comment:    &text,
	}
	require.NoError(t, db.Create(&entry).Error)

	return entry
}

func seedManyCommentActivities(t *testing.T, db *gorm.DB, collection string, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		text := fmt.Sprintf("comment %d", i)
		entry := models.Activity{
			Action:     models.ActionComment,
			Collection: collection,
			Item:       fmt.Sprintf("%d", i),
			Comment:    &text,
		}
		require.NoError(t, db.Create(&entry).Error)
	}
}

func seedComment(t *testing.T, db *gorm.DB, collection, item, text string, user *uuid.UUID) models.Comment {
	t.Helper()

	comment := models.Comment{
		ID:          uuid.New(),
		Collection:  collection,
		Item:        item,
		Comment:     text,
		UserCreated: user,
	}
	require.NoError(t, db.Create(&comment).Error)

	return comment
}

func seedCommentWithDate(t *testing.T, db *gorm.DB, collection, item, text string, user *uuid.UUID, created time.Time) models.Comment {
	t.Helper()

	comment := models.Comment{
		ID:          uuid.New(),
		Collection:  collection,
		Item:        item,
		Comment:     text,
		UserCreated: user,
		DateCreated: &created,
	}
	require.NoError(t, db.Create(&comment).Error)

	return comment
}

func batchSizesFromLog(t *testing.T, buf *bytes.Buffer) []int {
	t.Helper()

	var sizes []int
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}

		var record struct {
			Message string `json:"message"`
			Rows    int    `json:"rows"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &record))

		if record.Message == "migrating comment batch" {
			sizes = append(sizes, record.Rows)
		}
	}

	return sizes
}
