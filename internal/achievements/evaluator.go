// Package achievements evaluates a catalog of achievement conditions against a
// reader's library and social counters, and keeps points and level up to date.
//
// Each (user, achievement) pair moves through three states: unseen, in progress
// and completed. Completed is terminal. Points are awarded only on the
// transition to completed, and that transition is checked and written inside
// one storage transaction so concurrent checks cannot award twice.
package achievements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bookrec/internal/metrics"
	"bookrec/internal/models"
	"bookrec/internal/storage"
)

// Evaluator checks achievements for users
type Evaluator struct {
	db      storage.Storage
	catalog *Catalog
	logger  *zap.Logger
	now     func() time.Time
}

// NewEvaluator creates an evaluator over the given catalog
func NewEvaluator(db storage.Storage, catalog *Catalog, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		db:      db,
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
	}
}

// Catalog returns the catalog the evaluator was built with
func (e *Evaluator) Catalog() *Catalog {
	return e.catalog
}

// CheckAchievements evaluates the whole catalog and returns the ids of
// achievements completed by this call. A failing achievement is logged and
// skipped; it never stops the others.
func (e *Evaluator) CheckAchievements(ctx context.Context, userID string, books []models.UserBookEntry, stats models.SocialStats) []string {
	completed := []string{}
	now := e.now()

	for _, achievement := range e.catalog.All() {
		if ctx.Err() != nil {
			e.logger.Warn("Achievement check interrupted",
				zap.String("user_id", userID),
				zap.Error(ctx.Err()),
			)
			break
		}

		progress := Measure(achievement.Condition, books, stats, now)
		awarded, err := e.evaluate(ctx, userID, achievement, progress, now)
		if err != nil {
			metrics.AchievementErrors.Inc()
			e.logger.Error("Failed to evaluate achievement",
				zap.String("user_id", userID),
				zap.String("achievement_id", achievement.ID),
				zap.Error(err),
			)
			continue
		}
		if awarded {
			metrics.AchievementsAwarded.WithLabelValues(achievement.ID).Inc()
			completed = append(completed, achievement.ID)
		}
	}

	if len(completed) > 0 {
		e.logger.Info("Achievements completed",
			zap.String("user_id", userID),
			zap.Strings("achievement_ids", completed),
		)
	}
	return completed
}

// Recheck loads the user's library and social counters and runs CheckAchievements
func (e *Evaluator) Recheck(ctx context.Context, userID string) ([]string, error) {
	books, err := e.db.GetCollection(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection of %s: %w", userID, err)
	}
	stats, err := e.db.GetSocialStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load social stats of %s: %w", userID, err)
	}
	return e.CheckAchievements(ctx, userID, books, stats), nil
}

// evaluate applies one state transition and reports whether it completed the achievement
func (e *Evaluator) evaluate(ctx context.Context, userID string, achievement models.Achievement, progress int, now time.Time) (bool, error) {
	target := achievement.Condition.Target()
	awarded := false

	err := e.db.RunInTx(ctx, func(ctx context.Context, tx storage.Storage) error {
		awarded = false
		record, err := tx.GetUserAchievement(ctx, userID, achievement.ID)
		existed := err == nil
		switch {
		case existed:
			if record.IsCompleted {
				return nil
			}
		case errors.Is(err, storage.ErrNotFound):
			record = models.UserAchievement{
				UserID:        userID,
				AchievementID: achievement.ID,
				UnlockedAt:    now,
			}
		default:
			return fmt.Errorf("failed to load achievement: %w", err)
		}

		// Nothing moved
		if existed && progress < target && record.Progress == progress && record.MaxProgress == target {
			return nil
		}

		record.Progress = progress
		record.MaxProgress = target
		if progress >= target {
			record.IsCompleted = true
			record.CompletedAt = now
		}
		if err := tx.PutUserAchievement(ctx, record); err != nil {
			return fmt.Errorf("failed to save achievement: %w", err)
		}

		if !record.IsCompleted {
			return nil
		}
		if err := awardPoints(ctx, tx, userID, achievement.Points, now); err != nil {
			return err
		}
		awarded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return awarded, nil
}

func awardPoints(ctx context.Context, tx storage.Storage, userID string, points int, now time.Time) error {
	progress, err := tx.GetUserProgress(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to load user progress: %w", err)
		}
		progress = models.UserProgress{UserID: userID}
	}

	progress.TotalPoints += points
	progress.CompletedAchievements++
	progress.Level = models.LevelForPoints(progress.TotalPoints)
	progress.LastUpdated = now

	if err := tx.PutUserProgress(ctx, progress); err != nil {
		return fmt.Errorf("failed to save user progress: %w", err)
	}
	return nil
}

// GetUserAchievements returns every stored achievement record of a user
func (e *Evaluator) GetUserAchievements(ctx context.Context, userID string) ([]models.UserAchievement, error) {
	records, err := e.db.ListUserAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements of %s: %w", userID, err)
	}
	return records, nil
}

// GetUserProgress returns the user's points and level, or nil if nothing was awarded yet
func (e *Evaluator) GetUserProgress(ctx context.Context, userID string) (*models.UserProgress, error) {
	progress, err := e.db.GetUserProgress(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load progress of %s: %w", userID, err)
	}
	return &progress, nil
}
