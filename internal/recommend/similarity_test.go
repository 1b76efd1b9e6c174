package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookrec/internal/models"
)

func book(id, genre string, rating int) models.UserBookEntry {
	return models.UserBookEntry{BookID: id, Title: "Title " + id, Genre: genre, Rating: rating, Status: models.StatusReading}
}

func TestComputeSimilarity_FloorOfThreeCommonBooks(t *testing.T) {
	requester := []models.UserBookEntry{book("A", "Fiction", 8), book("B", "Fiction", 9)}
	candidate := []models.UserBookEntry{book("A", "Fiction", 8), book("B", "Fiction", 7), book("D", "Fiction", 9)}

	_, ok := ComputeSimilarity(requester, candidate)
	assert.False(t, ok, "two common books must be excluded")
}

func TestComputeSimilarity_HighlySimilarCandidate(t *testing.T) {
	requester := []models.UserBookEntry{
		book("A", "Fiction", 8),
		book("B", "Fiction", 9),
		book("D", "Fiction", 7),
		book("F", "Fiction", 5),
	}
	candidate := []models.UserBookEntry{
		book("A", "Fiction", 8),
		book("B", "Fiction", 8),
		book("D", "Fiction", 8),
	}

	sim, ok := ComputeSimilarity(requester, candidate)
	require.True(t, ok)

	assert.Equal(t, 3, sim.CommonBooks)
	assert.InDelta(t, 0.75, sim.BookOverlap, 1e-9)
	assert.InDelta(t, 2.0/3.0, sim.AverageRatingDifference, 1e-9)
	assert.InDelta(t, 1-(2.0/3.0)/10, sim.RatingCompatibility, 1e-9)
	assert.InDelta(t, 1.0, sim.GenreJaccard, 1e-9)
	assert.InDelta(t, 0.4*0.75+0.4*(1-(2.0/3.0)/10)+0.2, sim.Score, 1e-9)
	assert.InDelta(t, 0.86, sim.Score, 0.02)
}

func TestComputeSimilarity_Components(t *testing.T) {
	testCases := []struct {
		name        string
		requester   []models.UserBookEntry
		candidate   []models.UserBookEntry
		wantOK      bool
		wantCompat  float64
		wantJaccard float64
		wantOverlap float64
	}{
		{
			name:      "empty candidate is skipped",
			requester: []models.UserBookEntry{book("A", "x", 0)},
			candidate: nil,
			wantOK:    false,
		},
		{
			name:        "no mutual ratings uses neutral compatibility",
			requester:   []models.UserBookEntry{book("A", "Fiction", 0), book("B", "Fiction", 7), book("C", "History", 0)},
			candidate:   []models.UserBookEntry{book("A", "Fiction", 9), book("B", "Fiction", 0), book("C", "History", 0)},
			wantOK:      true,
			wantCompat:  0.5,
			wantJaccard: 1,
			wantOverlap: 1,
		},
		{
			name:        "large rating gap lowers compatibility",
			requester:   []models.UserBookEntry{book("A", "Fiction", 10), book("B", "Fiction", 10), book("C", "Fiction", 10)},
			candidate:   []models.UserBookEntry{book("A", "Poetry", 1), book("B", "Poetry", 1), book("C", "Poetry", 1), book("D", "Poetry", 1)},
			wantOK:      true,
			wantCompat:  0.1,
			wantJaccard: 0,
			wantOverlap: 0.75,
		},
		{
			name:        "empty genres give zero jaccard",
			requester:   []models.UserBookEntry{book("A", "", 5), book("B", "", 5), book("C", "", 5)},
			candidate:   []models.UserBookEntry{book("A", "", 5), book("B", "", 5), book("C", "", 5)},
			wantOK:      true,
			wantCompat:  1,
			wantJaccard: 0,
			wantOverlap: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sim, ok := ComputeSimilarity(tc.requester, tc.candidate)
			require.Equal(t, tc.wantOK, ok)
			if !ok {
				return
			}
			assert.InDelta(t, tc.wantCompat, sim.RatingCompatibility, 1e-9)
			assert.InDelta(t, tc.wantJaccard, sim.GenreJaccard, 1e-9)
			assert.InDelta(t, tc.wantOverlap, sim.BookOverlap, 1e-9)
			assert.GreaterOrEqual(t, sim.Score, 0.0)
			assert.LessOrEqual(t, sim.Score, 1.0)
		})
	}
}

func TestComputeSimilarity_Deterministic(t *testing.T) {
	requester := []models.UserBookEntry{book("A", "Fiction", 8), book("B", "Drama", 3), book("C", "Poetry", 6), book("E", "Sci-Fi", 2)}
	candidate := []models.UserBookEntry{book("C", "Poetry", 9), book("A", "Fiction", 1), book("B", "Drama", 4)}

	first, ok := ComputeSimilarity(requester, candidate)
	require.True(t, ok)
	for i := 0; i < 20; i++ {
		again, _ := ComputeSimilarity(requester, candidate)
		assert.Equal(t, first, again)
	}
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 0.0, jaccard(map[string]bool{}, map[string]bool{}))
	assert.InDelta(t, 1.0/3.0, jaccard(
		map[string]bool{"a": true, "b": true},
		map[string]bool{"b": true, "c": true},
	), 1e-9)
}
