// Package trending keeps an incrementally updated popularity record per book.
//
// Each add-to-library or rating event folds into the book's record inside a
// storage transaction, so concurrent events on one book do not lose updates.
//
// TotalUsers counts events, not distinct users. The trending score depends on
// that count, so it is kept as is.
package trending

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"bookrec/internal/metrics"
	"bookrec/internal/models"
	"bookrec/internal/storage"
)

const (
	weeklyWindow  = 7 * 24 * time.Hour
	staleAfter    = 30 * 24 * time.Hour
	weeklyCap     = 10.0
	totalUsersCap = 100.0

	weeklyWeight     = 0.4
	totalUsersWeight = 0.3
	ratingWeight     = 0.3
)

// Score returns the trending score in [0, 100]:
//
//	100 * (0.4*min(weekly/10, 1) + 0.3*min(totalUsers/100, 1) + 0.3*avgRating/10)
func Score(weeklyAdditions, totalUsers int, averageRating float64) float64 {
	weekly := clamp01(float64(weeklyAdditions) / weeklyCap)
	reach := clamp01(float64(totalUsers) / totalUsersCap)
	rating := clamp01(averageRating / 10)
	return 100 * (weeklyWeight*weekly + totalUsersWeight*reach + ratingWeight*rating)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}

// Apply folds one event into a popularity record. existing is nil for the first
// event of a book. rating is nil for plain additions.
func Apply(existing *models.BookPopularity, bookID string, meta models.BookMeta, rating *int, now time.Time) models.BookPopularity {
	if existing == nil {
		record := models.BookPopularity{
			BookID:          bookID,
			Title:           meta.Title,
			Author:          meta.Author,
			CoverImage:      meta.CoverImage,
			Genre:           meta.Genre,
			WeeklyAdditions: 1,
			TotalUsers:      1,
			LastUpdated:     now,
		}
		if rating != nil {
			record.AverageRating = float64(*rating)
			record.TotalRatings = 1
		}
		record.TrendingScore = Score(record.WeeklyAdditions, record.TotalUsers, record.AverageRating)
		return record
	}

	record := *existing
	if now.Sub(record.LastUpdated) > weeklyWindow {
		record.WeeklyAdditions = 1
	} else {
		record.WeeklyAdditions++
	}
	record.TotalUsers++

	if rating != nil {
		record.AverageRating = (record.AverageRating*float64(record.TotalRatings) + float64(*rating)) /
			float64(record.TotalRatings+1)
		record.TotalRatings++
	}

	// Keep catalog fields fresh when the event carries them
	if meta.Title != "" {
		record.Title = meta.Title
	}
	if meta.Author != "" {
		record.Author = meta.Author
	}
	if meta.CoverImage != "" {
		record.CoverImage = meta.CoverImage
	}
	if meta.Genre != "" {
		record.Genre = meta.Genre
	}

	record.LastUpdated = now
	record.TrendingScore = Score(record.WeeklyAdditions, record.TotalUsers, record.AverageRating)
	return record
}

// Scorer updates and queries book popularity records.
type Scorer struct {
	db     storage.Storage
	logger *zap.Logger
	now    func() time.Time
}

// NewScorer creates a trending scorer
func NewScorer(db storage.Storage, logger *zap.Logger) *Scorer {
	return &Scorer{db: db, logger: logger, now: time.Now}
}

// UpdateBookPopularity records an add or rate event for a book
func (s *Scorer) UpdateBookPopularity(ctx context.Context, bookID string, meta models.BookMeta, rating *int) error {
	if rating != nil && (*rating < 0 || *rating > 10) {
		return fmt.Errorf("rating %d out of range 0-10", *rating)
	}

	created := false
	err := s.db.RunInTx(ctx, func(ctx context.Context, tx storage.Storage) error {
		created = false
		var existing *models.BookPopularity
		record, err := tx.GetBookPopularity(ctx, bookID)
		switch {
		case err == nil:
			existing = &record
		case errors.Is(err, storage.ErrNotFound):
			created = true
		default:
			return fmt.Errorf("failed to load popularity of %s: %w", bookID, err)
		}

		updated := Apply(existing, bookID, meta, rating, s.now())
		if err := tx.PutBookPopularity(ctx, updated); err != nil {
			return fmt.Errorf("failed to save popularity of %s: %w", bookID, err)
		}
		return nil
	})
	if err != nil {
		metrics.PopularityUpdates.WithLabelValues("error").Inc()
		return err
	}

	outcome := "updated"
	if created {
		outcome = "created"
	}
	metrics.PopularityUpdates.WithLabelValues(outcome).Inc()
	return nil
}

// GetTrendingBooks returns the top records by trending score.
// Read failures are logged and yield an empty list; only cancellation is returned.
func (s *Scorer) GetTrendingBooks(ctx context.Context, limit int) ([]models.BookPopularity, error) {
	records, err := s.db.ListTrending(ctx, limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("Failed to list trending books", zap.Error(err))
		return []models.BookPopularity{}, nil
	}
	return records, nil
}

// GetPopularBooksByGenre returns the top records of a genre by total users.
func (s *Scorer) GetPopularBooksByGenre(ctx context.Context, genre string, limit int) ([]models.BookPopularity, error) {
	records, err := s.db.ListPopularByGenre(ctx, genre, limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("Failed to list popular books by genre",
			zap.String("genre", genre),
			zap.Error(err),
		)
		return []models.BookPopularity{}, nil
	}
	return records, nil
}

// CleanupStale zeroes the weekly counter and refreshes the score of records
// untouched for over a month whose weekly counter is already zero. LastUpdated
// is left as is. Each record is re-read inside a transaction, so an event that
// lands after the scan wins. It returns the number of records rewritten.
func (s *Scorer) CleanupStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-staleAfter)
	records, err := s.db.ListPopularityUpdatedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale popularity records: %w", err)
	}

	cleaned := 0
	for _, candidate := range records {
		if candidate.WeeklyAdditions != 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return cleaned, err
		}

		rewritten := false
		err := s.db.RunInTx(ctx, func(ctx context.Context, tx storage.Storage) error {
			rewritten = false
			record, err := tx.GetBookPopularity(ctx, candidate.BookID)
			if err != nil {
				return err
			}
			if record.WeeklyAdditions != 0 || !record.LastUpdated.Before(cutoff) {
				return nil
			}
			record.TrendingScore = Score(0, record.TotalUsers, record.AverageRating)
			if err := tx.PutBookPopularity(ctx, record); err != nil {
				return err
			}
			rewritten = true
			return nil
		})
		if err != nil {
			s.logger.Warn("Failed to refresh stale popularity record",
				zap.String("book_id", candidate.BookID),
				zap.Error(err),
			)
			continue
		}
		if rewritten {
			cleaned++
		}
	}

	s.logger.Info("Cleaned stale popularity records",
		zap.Int("candidates", len(records)),
		zap.Int("cleaned", cleaned),
	)
	return cleaned, nil
}
