package recommend

import (
	"fmt"
	"sort"
	"time"

	"bookrec/internal/models"
)

const (
	// minPropagatedRating suppresses books a contributor rated below it.
	minPropagatedRating = 6

	completedBoost = 1.2

	// singleContributorThreshold is the score a lone contributor must exceed.
	singleContributorThreshold = 0.7
)

// Neighbour is a similar user together with the collection that was scored.
type Neighbour struct {
	models.UserSimilarity
	Books []models.UserBookEntry
}

type candidate struct {
	book        models.Book
	contributed []string
	scoreSum    float64
	ratingSum   int
	ratingCount int
}

// BuildRecommendations aggregates books owned by neighbours into scored
// recommendations. Books in owned never appear in the result. Neighbours are
// expected in ranked order; contributor lists keep that order.
func BuildRecommendations(owned []models.UserBookEntry, neighbours []Neighbour, limit int) []models.CollaborativeRecommendation {
	exclude := make(map[string]bool, len(owned))
	for _, e := range owned {
		exclude[e.BookID] = true
	}

	candidates := make(map[string]*candidate)
	var order []string

	for _, n := range neighbours {
		for _, entry := range n.Books {
			if exclude[entry.BookID] {
				continue
			}
			if entry.IsRated() && entry.Rating < minPropagatedRating {
				continue
			}

			c, ok := candidates[entry.BookID]
			if !ok {
				c = &candidate{book: entry.Book()}
				candidates[entry.BookID] = c
				order = append(order, entry.BookID)
			}

			c.contributed = append(c.contributed, n.DisplayName())
			c.scoreSum += contribution(n.SimilarityScore, entry)
			if entry.IsRated() {
				c.ratingSum += entry.Rating
				c.ratingCount++
			}
		}
	}

	recs := make([]models.CollaborativeRecommendation, 0, len(order))
	for _, bookID := range order {
		c := candidates[bookID]
		contributors := len(c.contributed)
		if contributors == 0 {
			continue
		}

		score := c.scoreSum / float64(contributors)
		if contributors < 2 && score <= singleContributorThreshold {
			continue
		}

		var avg float64
		if c.ratingCount > 0 {
			avg = float64(c.ratingSum) / float64(c.ratingCount)
		}

		recs = append(recs, models.CollaborativeRecommendation{
			Book:                c.book,
			RecommendationScore: score,
			RecommendedBy:       c.contributed,
			AverageRating:       avg,
			Reason:              reasonFor(contributors, avg),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].RecommendationScore > recs[j].RecommendationScore
	})

	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

// contribution is sim * (rating/10, or 1 when unrated) * 1.2 for completed books.
func contribution(similarity float64, entry models.UserBookEntry) float64 {
	score := similarity
	if entry.IsRated() {
		score *= float64(entry.Rating) / 10
	}
	if entry.Status == models.StatusCompleted {
		score *= completedBoost
	}
	return score
}

func reasonFor(contributors int, averageRating float64) string {
	switch {
	case contributors >= 5:
		return fmt.Sprintf("Highly recommended by %d similar readers", contributors)
	case contributors >= 3:
		return fmt.Sprintf("Recommended by %d readers with similar taste", contributors)
	case averageRating >= 8:
		return fmt.Sprintf("Loved by readers similar to you (%.1f/10)", averageRating)
	default:
		return "Enjoyed by readers with similar preferences"
	}
}

// BuildTrendingAmongSimilar ranks books that neighbours added since `since`,
// skipping owned books and books a neighbour rated below 6. Ranking is by number
// of distinct neighbours, then average rating, then book id.
func BuildTrendingAmongSimilar(owned []models.UserBookEntry, neighbours []Neighbour, since time.Time, limit int) []models.TrendingBook {
	exclude := make(map[string]bool, len(owned))
	for _, e := range owned {
		exclude[e.BookID] = true
	}

	type tally struct {
		book        models.Book
		readers     int
		ratingSum   int
		ratingCount int
	}
	tallies := make(map[string]*tally)

	for _, n := range neighbours {
		for _, entry := range n.Books {
			if exclude[entry.BookID] || entry.DateAdded.Before(since) {
				continue
			}
			if entry.IsRated() && entry.Rating < minPropagatedRating {
				continue
			}
			t, ok := tallies[entry.BookID]
			if !ok {
				t = &tally{book: entry.Book()}
				tallies[entry.BookID] = t
			}
			t.readers++
			if entry.IsRated() {
				t.ratingSum += entry.Rating
				t.ratingCount++
			}
		}
	}

	books := make([]models.TrendingBook, 0, len(tallies))
	for _, t := range tallies {
		var avg float64
		if t.ratingCount > 0 {
			avg = float64(t.ratingSum) / float64(t.ratingCount)
		}
		books = append(books, models.TrendingBook{Book: t.book, SimilarReaders: t.readers, AverageRating: avg})
	}

	sort.Slice(books, func(i, j int) bool {
		if books[i].SimilarReaders != books[j].SimilarReaders {
			return books[i].SimilarReaders > books[j].SimilarReaders
		}
		if books[i].AverageRating != books[j].AverageRating {
			return books[i].AverageRating > books[j].AverageRating
		}
		return books[i].BookID < books[j].BookID
	})

	if limit > 0 && len(books) > limit {
		books = books[:limit]
	}
	return books
}
