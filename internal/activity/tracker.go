// Package activity is the write path for reader events. It persists library
// changes, feeds the trending scorer and re-checks achievements in the
// background.
package activity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"bookrec/internal/achievements"
	"bookrec/internal/models"
	"bookrec/internal/storage"
	"bookrec/internal/trending"
)

const (
	defaultCheckWorkers = 4
	checkTimeout        = 30 * time.Second
)

var (
	ErrInvalidEntry  = errors.New("invalid book entry")
	ErrInvalidRating = errors.New("rating must be between 1 and 10")
	ErrAlreadyAdded  = errors.New("book is already in the library")
)

// Tracker records add, rate and finish events
type Tracker struct {
	db        storage.Storage
	scorer    *trending.Scorer
	evaluator *achievements.Evaluator
	logger    *zap.Logger
	now       func() time.Time

	sem chan struct{}
	wg  sync.WaitGroup
}

// NewTracker creates a tracker. checkWorkers bounds concurrent background
// achievement checks; zero uses the default.
func NewTracker(db storage.Storage, scorer *trending.Scorer, evaluator *achievements.Evaluator, logger *zap.Logger, checkWorkers int) *Tracker {
	if checkWorkers <= 0 {
		checkWorkers = defaultCheckWorkers
	}
	return &Tracker{
		db:        db,
		scorer:    scorer,
		evaluator: evaluator,
		logger:    logger,
		now:       time.Now,
		sem:       make(chan struct{}, checkWorkers),
	}
}

// AddBook stores a new library entry and records the add event. A book that is
// already in the user's library is rejected with ErrAlreadyAdded; use RateBook
// or FinishBook to change it.
func (t *Tracker) AddBook(ctx context.Context, entry models.UserBookEntry) error {
	if entry.UserID == "" || entry.BookID == "" {
		return fmt.Errorf("%w: user and book ids are required", ErrInvalidEntry)
	}
	if entry.Status == "" {
		entry.Status = models.StatusPlanToRead
	}
	if !entry.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidEntry, entry.Status)
	}
	if entry.Rating < 0 || entry.Rating > 10 {
		return ErrInvalidRating
	}
	if entry.DateAdded.IsZero() {
		entry.DateAdded = t.now()
	}
	if entry.Status == models.StatusCompleted && entry.EndDate.IsZero() {
		entry.EndDate = entry.DateAdded
	}

	if err := t.ensureUser(ctx, entry.UserID); err != nil {
		return err
	}
	err := t.db.RunInTx(ctx, func(ctx context.Context, tx storage.Storage) error {
		_, err := findEntry(ctx, tx, entry.UserID, entry.BookID)
		if err == nil {
			return fmt.Errorf("%w: %s", ErrAlreadyAdded, entry.BookID)
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if err := tx.PutUserBook(ctx, entry); err != nil {
			return fmt.Errorf("failed to save book %s for %s: %w", entry.BookID, entry.UserID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	var rating *int
	if entry.IsRated() {
		rating = &entry.Rating
	}
	t.recordPopularity(ctx, entry, rating)
	t.scheduleCheck(ctx, entry.UserID)
	return nil
}

// RateBook sets the rating of a book already in the user's library
func (t *Tracker) RateBook(ctx context.Context, userID, bookID string, rating int) error {
	if rating < 1 || rating > 10 {
		return ErrInvalidRating
	}

	entry, err := findEntry(ctx, t.db, userID, bookID)
	if err != nil {
		return err
	}
	entry.Rating = rating
	if err := t.db.PutUserBook(ctx, entry); err != nil {
		return fmt.Errorf("failed to save rating of %s for %s: %w", bookID, userID, err)
	}

	t.recordPopularity(ctx, entry, &rating)
	t.scheduleCheck(ctx, userID)
	return nil
}

// FinishBook marks a book as completed today
func (t *Tracker) FinishBook(ctx context.Context, userID, bookID string) error {
	entry, err := findEntry(ctx, t.db, userID, bookID)
	if err != nil {
		return err
	}
	entry.Status = models.StatusCompleted
	entry.EndDate = t.now()
	if err := t.db.PutUserBook(ctx, entry); err != nil {
		return fmt.Errorf("failed to finish %s for %s: %w", bookID, userID, err)
	}

	t.scheduleCheck(ctx, userID)
	return nil
}

// Wait blocks until every scheduled achievement check has finished
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) ensureUser(ctx context.Context, userID string) error {
	_, err := t.db.GetUser(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	if err := t.db.UpsertUser(ctx, models.UserProfile{UserID: userID}); err != nil {
		return fmt.Errorf("failed to register user %s: %w", userID, err)
	}
	return nil
}

func findEntry(ctx context.Context, db storage.Storage, userID, bookID string) (models.UserBookEntry, error) {
	entry, err := db.GetUserBook(ctx, userID, bookID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.UserBookEntry{}, fmt.Errorf("book %s of %s: %w", bookID, userID, storage.ErrNotFound)
		}
		return models.UserBookEntry{}, fmt.Errorf("failed to load book %s of %s: %w", bookID, userID, err)
	}
	return entry, nil
}

func (t *Tracker) recordPopularity(ctx context.Context, entry models.UserBookEntry, rating *int) {
	meta := models.BookMeta{
		Title:      entry.Title,
		Author:     entry.Author,
		CoverImage: entry.CoverImage,
		Genre:      entry.Genre,
	}
	if err := t.scorer.UpdateBookPopularity(ctx, entry.BookID, meta, rating); err != nil {
		t.logger.Warn("Failed to update book popularity",
			zap.String("book_id", entry.BookID),
			zap.String("user_id", entry.UserID),
			zap.Error(err),
		)
	}
}

// scheduleCheck re-evaluates achievements in the background, detached from
// the caller's cancellation
func (t *Tracker) scheduleCheck(ctx context.Context, userID string) {
	ctx = context.WithoutCancel(ctx)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		t.sem <- struct{}{}
		defer func() { <-t.sem }()

		ctx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()

		completed, err := t.evaluator.Recheck(ctx, userID)
		if err != nil {
			t.logger.Error("Achievement check failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			return
		}
		if len(completed) > 0 {
			t.logger.Debug("Achievement check finished",
				zap.String("user_id", userID),
				zap.Int("completed", len(completed)),
			)
		}
	}()
}
