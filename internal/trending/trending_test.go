package trending

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookrec/internal/models"
	"bookrec/internal/storage/stubs"
)

func intPtr(v int) *int { return &v }

var meta = models.BookMeta{Title: "Dune", Author: "Frank Herbert", Genre: "Sci-Fi", CoverImage: "dune.jpg"}

func newTestScorer(db *stubs.MockDB, now time.Time) *Scorer {
	s := NewScorer(db, zap.NewNop())
	s.now = func() time.Time { return now }
	return s
}

func TestScore(t *testing.T) {
	testCases := []struct {
		name   string
		weekly int
		total  int
		avg    float64
		want   float64
	}{
		{name: "first rated event", weekly: 1, total: 1, avg: 9, want: 31.3},
		{name: "nothing", weekly: 0, total: 0, avg: 0, want: 0},
		{name: "saturated", weekly: 50, total: 5000, avg: 10, want: 100},
		{name: "weekly capped", weekly: 10, total: 0, avg: 0, want: 40},
		{name: "reach capped", weekly: 0, total: 100, avg: 0, want: 30},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Score(tc.weekly, tc.total, tc.avg), 1e-9)
		})
	}
}

func TestScore_Bounds(t *testing.T) {
	for weekly := 0; weekly <= 30; weekly += 3 {
		for total := 0; total <= 300; total += 25 {
			for rating := 0; rating <= 10; rating++ {
				score := Score(weekly, total, float64(rating))
				assert.GreaterOrEqual(t, score, 0.0)
				assert.LessOrEqual(t, score, 100.0)
			}
		}
	}
}

func TestUpdateBookPopularity_CreatesRecord(t *testing.T) {
	db := stubs.NewMockDB()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	scorer := newTestScorer(db, now)
	ctx := context.Background()

	require.NoError(t, scorer.UpdateBookPopularity(ctx, "X", meta, intPtr(9)))

	record, err := db.GetBookPopularity(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, 1, record.WeeklyAdditions)
	assert.Equal(t, 1, record.TotalUsers)
	assert.Equal(t, 1, record.TotalRatings)
	assert.InDelta(t, 9.0, record.AverageRating, 1e-9)
	assert.InDelta(t, 31.3, record.TrendingScore, 1e-9)
	assert.Equal(t, "Dune", record.Title)
	assert.Equal(t, "Sci-Fi", record.Genre)
	assert.Equal(t, now, record.LastUpdated)
}

func TestUpdateBookPopularity_UnratedFirstEvent(t *testing.T) {
	db := stubs.NewMockDB()
	scorer := newTestScorer(db, time.Now())
	ctx := context.Background()

	require.NoError(t, scorer.UpdateBookPopularity(ctx, "X", meta, nil))

	record, err := db.GetBookPopularity(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, 0, record.TotalRatings)
	assert.Equal(t, 0.0, record.AverageRating)
	assert.InDelta(t, 4.3, record.TrendingScore, 1e-9)
}

func TestUpdateBookPopularity_WeeklyWindow(t *testing.T) {
	db := stubs.NewMockDB()
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	scorer := newTestScorer(db, start)
	require.NoError(t, scorer.UpdateBookPopularity(ctx, "X", meta, nil))
	scorer.now = func() time.Time { return start.Add(24 * time.Hour) }
	require.NoError(t, scorer.UpdateBookPopularity(ctx, "X", meta, nil))
	scorer.now = func() time.Time { return start.Add(48 * time.Hour) }
	require.NoError(t, scorer.UpdateBookPopularity(ctx, "X", meta, nil))

	record, err := db.GetBookPopularity(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, 3, record.WeeklyAdditions)
	assert.Equal(t, 3, record.TotalUsers)

	// More than 7 days after the last update resets the window
	scorer.now = func() time.Time { return start.Add(48*time.Hour + 7*24*time.Hour + time.Second) }
	require.NoError(t, scorer.UpdateBookPopularity(ctx, "X", meta, nil))

	record, err = db.GetBookPopularity(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, 1, record.WeeklyAdditions)
	assert.Equal(t, 4, record.TotalUsers, "total keeps counting events across the reset")
}

func TestUpdateBookPopularity_RatingMean(t *testing.T) {
	db := stubs.NewMockDB()
	scorer := newTestScorer(db, time.Now())
	ctx := context.Background()

	ratings := []int{9, 4, 7, 10, 3, 8}
	sum := 0
	for _, r := range ratings {
		require.NoError(t, scorer.UpdateBookPopularity(ctx, "X", meta, intPtr(r)))
		sum += r
	}
	// A plain addition does not move the mean
	require.NoError(t, scorer.UpdateBookPopularity(ctx, "X", meta, nil))

	record, err := db.GetBookPopularity(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, len(ratings), record.TotalRatings)
	assert.InDelta(t, float64(sum)/float64(len(ratings)), record.AverageRating, 1e-9)
	assert.Equal(t, len(ratings)+1, record.TotalUsers)
}

func TestUpdateBookPopularity_RejectsOutOfRangeRating(t *testing.T) {
	db := stubs.NewMockDB()
	scorer := newTestScorer(db, time.Now())

	assert.Error(t, scorer.UpdateBookPopularity(context.Background(), "X", meta, intPtr(11)))
	_, err := db.GetBookPopularity(context.Background(), "X")
	assert.Error(t, err)
}

func TestUpdateBookPopularity_ConcurrentEventsAreNotLost(t *testing.T) {
	db := stubs.NewMockDB()
	scorer := newTestScorer(db, time.Now())
	ctx := context.Background()

	const events = 50
	var wg sync.WaitGroup
	for i := 0; i < events; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, scorer.UpdateBookPopularity(ctx, "hot", meta, intPtr(8)))
		}()
	}
	wg.Wait()

	record, err := db.GetBookPopularity(ctx, "hot")
	require.NoError(t, err)
	assert.Equal(t, events, record.TotalUsers)
	assert.Equal(t, events, record.WeeklyAdditions)
	assert.Equal(t, events, record.TotalRatings)
	assert.InDelta(t, 8.0, record.AverageRating, 1e-9)
}

func TestQueries(t *testing.T) {
	db := stubs.NewMockDB()
	ctx := context.Background()
	scorer := newTestScorer(db, time.Now())

	records := []models.BookPopularity{
		{BookID: "a", Genre: "Fantasy", TotalUsers: 80, TrendingScore: 10},
		{BookID: "b", Genre: "Fantasy", TotalUsers: 20, TrendingScore: 90},
		{BookID: "c", Genre: "Crime", TotalUsers: 99, TrendingScore: 50},
	}
	for _, r := range records {
		require.NoError(t, db.PutBookPopularity(ctx, r))
	}

	top, err := scorer.GetTrendingBooks(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].BookID)
	assert.Equal(t, "c", top[1].BookID)

	fantasy, err := scorer.GetPopularBooksByGenre(ctx, "Fantasy", 10)
	require.NoError(t, err)
	require.Len(t, fantasy, 2)
	assert.Equal(t, "a", fantasy[0].BookID, "within a genre raw reach wins over trend")
}

func TestCleanupStale(t *testing.T) {
	db := stubs.NewMockDB()
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	old := now.AddDate(0, -2, 0)

	records := []models.BookPopularity{
		{BookID: "stale-zero", WeeklyAdditions: 0, TotalUsers: 50, AverageRating: 6, TrendingScore: 99, LastUpdated: old},
		{BookID: "stale-active", WeeklyAdditions: 4, TotalUsers: 50, AverageRating: 6, TrendingScore: 50, LastUpdated: old},
		{BookID: "fresh", WeeklyAdditions: 0, TotalUsers: 1, TrendingScore: 12, LastUpdated: now.AddDate(0, 0, -3)},
	}
	for _, r := range records {
		require.NoError(t, db.PutBookPopularity(ctx, r))
	}

	scorer := newTestScorer(db, now)
	cleaned, err := scorer.CleanupStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleaned)

	record, err := db.GetBookPopularity(ctx, "stale-zero")
	require.NoError(t, err)
	assert.Equal(t, 0, record.WeeklyAdditions)
	assert.InDelta(t, Score(0, 50, 6), record.TrendingScore, 1e-9)
	assert.Equal(t, old, record.LastUpdated)

	untouched, err := db.GetBookPopularity(ctx, "stale-active")
	require.NoError(t, err)
	assert.Equal(t, 50.0, untouched.TrendingScore)

	fresh, err := db.GetBookPopularity(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, 12.0, fresh.TrendingScore)
}

// snapshotStore serves a fixed stale scan, as if records changed after it was taken
type snapshotStore struct {
	*stubs.MockDB
	snapshot []models.BookPopularity
}

func (s *snapshotStore) ListPopularityUpdatedBefore(ctx context.Context, t time.Time) ([]models.BookPopularity, error) {
	return s.snapshot, nil
}

func TestCleanupStale_KeepsRecordUpdatedAfterScan(t *testing.T) {
	db := stubs.NewMockDB()
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	stale := models.BookPopularity{BookID: "b1", TotalUsers: 50, AverageRating: 6, TrendingScore: 99, LastUpdated: now.AddDate(0, -2, 0)}
	require.NoError(t, db.PutBookPopularity(ctx, stale))

	scorer := NewScorer(&snapshotStore{MockDB: db, snapshot: []models.BookPopularity{stale}}, zap.NewNop())
	scorer.now = func() time.Time { return now }

	// A new add arrives between the scan and the rewrite
	require.NoError(t, scorer.UpdateBookPopularity(ctx, "b1", meta, nil))
	fresh, err := db.GetBookPopularity(ctx, "b1")
	require.NoError(t, err)

	cleaned, err := scorer.CleanupStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, cleaned)

	after, err := db.GetBookPopularity(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, fresh, after)
	assert.Equal(t, 1, after.WeeklyAdditions)
	assert.Equal(t, 51, after.TotalUsers)
}
