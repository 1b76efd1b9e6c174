package achievements

import (
	"time"

	"bookrec/internal/models"
)

// Measure returns the current value of a condition for a collection and
// social counters. Unknown condition kinds measure as 0.
func Measure(cond models.Condition, books []models.UserBookEntry, stats models.SocialStats, now time.Time) int {
	switch c := cond.(type) {
	case models.BooksRead:
		return len(books)

	case models.BooksRated:
		n := 0
		for _, b := range books {
			if b.IsRated() {
				n++
			}
		}
		return n

	case models.ReviewsWritten:
		return stats.Reviews

	case models.Followers:
		return stats.Followers

	case models.Following:
		return stats.Following

	case models.GenresExplored:
		genres := make(map[string]struct{})
		for _, b := range books {
			if b.Genre != "" {
				genres[b.Genre] = struct{}{}
			}
		}
		return len(genres)

	case models.RatingGiven:
		n := 0
		for _, b := range books {
			if b.Rating == c.Rating {
				n++
			}
		}
		return n

	case models.BooksInTimeframe:
		start := c.Timeframe.Start(now)
		n := 0
		for _, b := range books {
			if b.Status != models.StatusCompleted {
				continue
			}
			at := b.CompletedAt()
			if !at.Before(start) && !at.After(now) {
				n++
			}
		}
		return n
	}
	return 0
}
