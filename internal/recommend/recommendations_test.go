package recommend

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookrec/internal/models"
)

func neighbour(id string, score float64, books ...models.UserBookEntry) Neighbour {
	return Neighbour{
		UserSimilarity: models.UserSimilarity{UserID: id, Username: "reader-" + id, SimilarityScore: score},
		Books:          books,
	}
}

func entry(id string, rating int, status models.ReadingStatus) models.UserBookEntry {
	return models.UserBookEntry{BookID: id, Title: "Title " + id, Genre: "Fiction", Rating: rating, Status: status}
}

func findRec(recs []models.CollaborativeRecommendation, bookID string) (models.CollaborativeRecommendation, bool) {
	for _, r := range recs {
		if r.BookID == bookID {
			return r, true
		}
	}
	return models.CollaborativeRecommendation{}, false
}

func TestBuildRecommendations_ExcludesOwnedBooks(t *testing.T) {
	owned := []models.UserBookEntry{entry("A", 8, models.StatusCompleted), entry("B", 0, models.StatusReading)}
	neighbours := []Neighbour{
		neighbour("n1", 0.9, entry("A", 10, models.StatusCompleted), entry("B", 10, models.StatusCompleted), entry("C", 9, models.StatusCompleted)),
		neighbour("n2", 0.8, entry("A", 10, models.StatusCompleted), entry("C", 8, models.StatusReading)),
	}

	recs := BuildRecommendations(owned, neighbours, 10)

	for _, r := range recs {
		assert.NotContains(t, []string{"A", "B"}, r.BookID)
	}
	_, ok := findRec(recs, "C")
	assert.True(t, ok)
}

func TestBuildRecommendations_LowRatingSuppression(t *testing.T) {
	neighbours := []Neighbour{
		neighbour("n1", 0.9, entry("X", 5, models.StatusCompleted)),
		neighbour("n2", 0.6, entry("X", 9, models.StatusReading)),
		neighbour("n3", 0.5, entry("X", 8, models.StatusReading)),
	}

	recs := BuildRecommendations(nil, neighbours, 10)
	rec, ok := findRec(recs, "X")
	require.True(t, ok)

	assert.Equal(t, []string{"reader-n2", "reader-n3"}, rec.RecommendedBy)
	assert.InDelta(t, 8.5, rec.AverageRating, 1e-9)
	assert.InDelta(t, (0.6*0.9+0.5*0.8)/2, rec.RecommendationScore, 1e-9)
}

func TestBuildRecommendations_DualGate(t *testing.T) {
	testCases := []struct {
		name    string
		books   []Neighbour
		present bool
	}{
		{
			name:    "single strong contributor passes",
			books:   []Neighbour{neighbour("n1", 0.9, entry("X", 7, models.StatusCompleted))}, // 0.9*0.7*1.2 = 0.756
			present: true,
		},
		{
			name:    "single weak contributor is dropped",
			books:   []Neighbour{neighbour("n1", 0.6, entry("X", 0, models.StatusReading))}, // 0.6
			present: false,
		},
		{
			name:    "exactly 0.7 is dropped",
			books:   []Neighbour{neighbour("n1", 0.7, entry("X", 0, models.StatusReading))},
			present: false,
		},
		{
			name: "two weak contributors pass",
			books: []Neighbour{
				neighbour("n1", 0.3, entry("X", 6, models.StatusReading)),
				neighbour("n2", 0.3, entry("X", 0, models.StatusPlanToRead)),
			},
			present: true,
		},
		{
			name:    "suppressed only contributor means no recommendation",
			books:   []Neighbour{neighbour("n1", 1.0, entry("X", 2, models.StatusCompleted))},
			present: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recs := BuildRecommendations(nil, tc.books, 10)
			_, ok := findRec(recs, "X")
			assert.Equal(t, tc.present, ok)
		})
	}
}

func TestBuildRecommendations_Contribution(t *testing.T) {
	assert.InDelta(t, 0.5, contribution(0.5, entry("X", 0, models.StatusReading)), 1e-9)
	assert.InDelta(t, 0.6, contribution(0.5, entry("X", 0, models.StatusCompleted)), 1e-9)
	assert.InDelta(t, 0.4, contribution(0.5, entry("X", 8, models.StatusReading)), 1e-9)
	assert.InDelta(t, 0.48, contribution(0.5, entry("X", 8, models.StatusCompleted)), 1e-9)
}

func TestReasonFor(t *testing.T) {
	testCases := []struct {
		contributors int
		avg          float64
		want         string
	}{
		{6, 3, "Highly recommended by 6 similar readers"},
		{5, 9, "Highly recommended by 5 similar readers"},
		{4, 9, "Recommended by 4 readers with similar taste"},
		{3, 0, "Recommended by 3 readers with similar taste"},
		{2, 8, "Loved by readers similar to you (8.0/10)"},
		{1, 9.5, "Loved by readers similar to you (9.5/10)"},
		{2, 7.9, "Enjoyed by readers with similar preferences"},
		{1, 0, "Enjoyed by readers with similar preferences"},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%d_%v", tc.contributors, tc.avg), func(t *testing.T) {
			assert.Equal(t, tc.want, reasonFor(tc.contributors, tc.avg))
		})
	}
}

func TestBuildRecommendations_SortAndLimit(t *testing.T) {
	neighbours := []Neighbour{
		neighbour("n1", 0.9, entry("low", 6, models.StatusReading), entry("high", 10, models.StatusCompleted), entry("mid", 8, models.StatusReading)),
		neighbour("n2", 0.8, entry("low", 6, models.StatusReading), entry("high", 10, models.StatusCompleted), entry("mid", 8, models.StatusReading)),
	}

	recs := BuildRecommendations(nil, neighbours, 2)
	require.Len(t, recs, 2)
	assert.Equal(t, "high", recs[0].BookID)
	assert.Equal(t, "mid", recs[1].BookID)
	assert.GreaterOrEqual(t, recs[0].RecommendationScore, recs[1].RecommendationScore)
}

func TestBuildTrendingAmongSimilar(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	recent := now.AddDate(0, 0, -3)
	old := now.AddDate(0, -3, 0)

	added := func(id string, rating int, at time.Time) models.UserBookEntry {
		e := entry(id, rating, models.StatusReading)
		e.DateAdded = at
		return e
	}

	owned := []models.UserBookEntry{added("mine", 9, recent)}
	neighbours := []Neighbour{
		neighbour("n1", 0.9, added("mine", 9, recent), added("P", 9, recent), added("Q", 7, recent), added("old", 10, old)),
		neighbour("n2", 0.8, added("P", 0, recent), added("Q", 9, recent), added("R", 10, recent), added("bad", 3, recent)),
		neighbour("n3", 0.7, added("Q", 8, recent)),
	}

	books := BuildTrendingAmongSimilar(owned, neighbours, now.AddDate(0, 0, -30), 10)
	require.Len(t, books, 3)

	assert.Equal(t, "Q", books[0].BookID)
	assert.Equal(t, 3, books[0].SimilarReaders)
	assert.InDelta(t, 8.0, books[0].AverageRating, 1e-9)

	// P and R: P has 2 readers, R has 1
	assert.Equal(t, "P", books[1].BookID)
	assert.Equal(t, 2, books[1].SimilarReaders)
	assert.Equal(t, "R", books[2].BookID)

	assert.Len(t, BuildTrendingAmongSimilar(owned, neighbours, now.AddDate(0, 0, -30), 1), 1)
}
