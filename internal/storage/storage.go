package storage

import (
	"context"
	"errors"
	"time"

	"bookrec/internal/models"
)

// ErrNotFound is returned by point lookups when the record does not exist
var ErrNotFound = errors.New("record not found")

// Storage defines the interface for data storage operations
type Storage interface {
	// User operations
	UpsertUser(ctx context.Context, user models.UserProfile) error
	GetUser(ctx context.Context, userID string) (models.UserProfile, error)

	// ListUsers returns up to limit users ordered by id, starting after afterUserID.
	// Pass an empty afterUserID to start from the beginning.
	ListUsers(ctx context.Context, afterUserID string, limit int) ([]models.UserProfile, error)

	// Collection operations
	PutUserBook(ctx context.Context, entry models.UserBookEntry) error
	GetCollection(ctx context.Context, userID string) ([]models.UserBookEntry, error)

	// GetUserBook returns one entry or ErrNotFound
	GetUserBook(ctx context.Context, userID, bookID string) (models.UserBookEntry, error)

	// Popularity operations
	GetBookPopularity(ctx context.Context, bookID string) (models.BookPopularity, error)
	PutBookPopularity(ctx context.Context, record models.BookPopularity) error

	// ListTrending returns records ordered by trending score descending
	ListTrending(ctx context.Context, limit int) ([]models.BookPopularity, error)

	// ListPopularByGenre returns records of one genre ordered by total users descending
	ListPopularByGenre(ctx context.Context, genre string, limit int) ([]models.BookPopularity, error)

	// ListPopularityUpdatedBefore returns every record last updated before t
	ListPopularityUpdatedBefore(ctx context.Context, t time.Time) ([]models.BookPopularity, error)

	// Achievement operations
	GetUserAchievement(ctx context.Context, userID, achievementID string) (models.UserAchievement, error)
	PutUserAchievement(ctx context.Context, record models.UserAchievement) error
	ListUserAchievements(ctx context.Context, userID string) ([]models.UserAchievement, error)
	GetUserProgress(ctx context.Context, userID string) (models.UserProgress, error)
	PutUserProgress(ctx context.Context, record models.UserProgress) error

	// GetSocialStats returns the zero value for users without counters
	GetSocialStats(ctx context.Context, userID string) (models.SocialStats, error)

	// RunInTx runs fn as one read-modify-write unit. fn must use tx, not the
	// receiver, and may be called more than once if the backend retries.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Storage) error) error

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
