package sqldb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookrec/internal/models"
	"bookrec/internal/storage"
)

func setupTestDB(t *testing.T) *GormDB {
	t.Helper()
	db, err := Open(DialectSQLite, ":memory:", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Initialize(context.Background()))
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_UnknownDialect(t *testing.T) {
	_, err := Open("oracle", "", zap.NewNop())
	assert.Error(t, err)
}

func TestGormDB_Users(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	for _, id := range []string{"c", "a", "d", "b"} {
		require.NoError(t, db.UpsertUser(ctx, models.UserProfile{UserID: id}))
	}
	require.NoError(t, db.UpsertUser(ctx, models.UserProfile{UserID: "a", Username: "alice"}))

	user, err := db.GetUser(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	page, err := db.ListUsers(ctx, "", 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "a", page[0].UserID)
	assert.Equal(t, "c", page[2].UserID)

	page, err = db.ListUsers(ctx, "c", 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "d", page[0].UserID)
}

func TestGormDB_Collection(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	added := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	ended := added.Add(48 * time.Hour)

	require.NoError(t, db.PutUserBook(ctx, models.UserBookEntry{
		UserID: "u1", BookID: "late", Status: models.StatusReading, DateAdded: added.Add(time.Hour),
	}))
	require.NoError(t, db.PutUserBook(ctx, models.UserBookEntry{
		UserID: "u1", BookID: "early", Status: models.StatusReading, DateAdded: added,
	}))
	require.NoError(t, db.PutUserBook(ctx, models.UserBookEntry{
		UserID: "u1", BookID: "early", Title: "Early", Genre: "Drama", Rating: 8,
		Status: models.StatusCompleted, DateAdded: added, EndDate: ended,
	}))

	books, err := db.GetCollection(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "early", books[0].BookID)
	assert.Equal(t, 8, books[0].Rating)
	assert.Equal(t, "Drama", books[0].Genre)
	assert.True(t, ended.Equal(books[0].EndDate))
	assert.True(t, books[1].EndDate.IsZero())

	entry, err := db.GetUserBook(ctx, "u1", "early")
	require.NoError(t, err)
	assert.Equal(t, 8, entry.Rating)
	assert.True(t, ended.Equal(entry.EndDate))

	_, err = db.GetUserBook(ctx, "u1", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	empty, err := db.GetCollection(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestGormDB_Popularity(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := db.GetBookPopularity(ctx, "x")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	records := []models.BookPopularity{
		{BookID: "a", Genre: "Fantasy", TotalUsers: 80, TrendingScore: 10, LastUpdated: now.AddDate(0, -2, 0)},
		{BookID: "b", Genre: "Fantasy", TotalUsers: 20, TrendingScore: 90, LastUpdated: now},
		{BookID: "c", Genre: "Crime", TotalUsers: 99, TrendingScore: 50, LastUpdated: now},
	}
	for _, r := range records {
		require.NoError(t, db.PutBookPopularity(ctx, r))
	}

	updated := records[2]
	updated.AverageRating = 8.5
	updated.TotalRatings = 2
	require.NoError(t, db.PutBookPopularity(ctx, updated))

	c, err := db.GetBookPopularity(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 8.5, c.AverageRating)
	assert.Equal(t, 2, c.TotalRatings)

	trending, err := db.ListTrending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, trending, 2)
	assert.Equal(t, "b", trending[0].BookID)
	assert.Equal(t, "c", trending[1].BookID)

	fantasy, err := db.ListPopularByGenre(ctx, "Fantasy", 10)
	require.NoError(t, err)
	require.Len(t, fantasy, 2)
	assert.Equal(t, "a", fantasy[0].BookID)

	stale, err := db.ListPopularityUpdatedBefore(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "a", stale[0].BookID)
}

func TestGormDB_AchievementsAndProgress(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := db.GetUserAchievement(ctx, "u1", "first_book")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = db.GetUserProgress(ctx, "u1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, db.PutUserAchievement(ctx, models.UserAchievement{
		UserID: "u1", AchievementID: "first_book", MaxProgress: 1, UnlockedAt: now,
	}))
	require.NoError(t, db.PutUserAchievement(ctx, models.UserAchievement{
		UserID: "u1", AchievementID: "first_book", Progress: 1, MaxProgress: 1,
		IsCompleted: true, CompletedAt: now, UnlockedAt: now,
	}))
	require.NoError(t, db.PutUserAchievement(ctx, models.UserAchievement{
		UserID: "u1", AchievementID: "bookworm", Progress: 1, MaxProgress: 10, UnlockedAt: now,
	}))

	record, err := db.GetUserAchievement(ctx, "u1", "first_book")
	require.NoError(t, err)
	assert.True(t, record.IsCompleted)
	assert.True(t, now.Equal(record.CompletedAt))

	records, err := db.ListUserAchievements(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "bookworm", records[0].AchievementID)
	assert.True(t, records[0].CompletedAt.IsZero())

	require.NoError(t, db.PutUserProgress(ctx, models.UserProgress{UserID: "u1", TotalPoints: 400, Level: 3, CompletedAchievements: 4, LastUpdated: now}))
	progress, err := db.GetUserProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 400, progress.TotalPoints)
	assert.Equal(t, 3, progress.Level)
	assert.Equal(t, 4, progress.CompletedAchievements)
}

func TestGormDB_SocialStats(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	stats, err := db.GetSocialStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.SocialStats{}, stats)

	require.NoError(t, db.PutSocialStats(ctx, "u1", models.SocialStats{Followers: 5, Following: 1, Reviews: 9}))
	stats, err = db.GetSocialStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.SocialStats{Followers: 5, Following: 1, Reviews: 9}, stats)
}

func TestGormDB_RunInTx(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.PutBookPopularity(ctx, models.BookPopularity{BookID: "hot", LastUpdated: time.Now().UTC()}))

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.RunInTx(ctx, func(ctx context.Context, tx storage.Storage) error {
				record, err := tx.GetBookPopularity(ctx, "hot")
				if err != nil {
					return err
				}
				record.TotalUsers++
				return tx.PutBookPopularity(ctx, record)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	record, err := db.GetBookPopularity(ctx, "hot")
	require.NoError(t, err)
	assert.Equal(t, workers, record.TotalUsers)
}

func TestGormDB_RunInTxRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.RunInTx(ctx, func(ctx context.Context, tx storage.Storage) error {
		if err := tx.PutUserProgress(ctx, models.UserProgress{UserID: "u1", TotalPoints: 10}); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = db.GetUserProgress(ctx, "u1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
