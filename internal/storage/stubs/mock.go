package stubs

import (
	"context"
	"sort"
	"sync"
	"time"

	"bookrec/internal/models"
	"bookrec/internal/storage"
)

// MockDB is an in-memory implementation of the Storage interface for testing
// and local development
type MockDB struct {
	mu           sync.RWMutex
	txMu         sync.Mutex
	users        map[string]models.UserProfile
	collections  map[string]map[string]models.UserBookEntry
	popularity   map[string]models.BookPopularity
	achievements map[string]map[string]models.UserAchievement
	progress     map[string]models.UserProgress
	social       map[string]models.SocialStats

	// failCollection makes GetCollection fail for the listed users
	failCollection map[string]error
}

var _ storage.Storage = (*MockDB)(nil)

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		users:          make(map[string]models.UserProfile),
		collections:    make(map[string]map[string]models.UserBookEntry),
		popularity:     make(map[string]models.BookPopularity),
		achievements:   make(map[string]map[string]models.UserAchievement),
		progress:       make(map[string]models.UserProgress),
		social:         make(map[string]models.SocialStats),
		failCollection: make(map[string]error),
	}
}

// Initialize is a no-op for the in-memory store
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

// UpsertUser creates or replaces a user profile
func (m *MockDB) UpsertUser(ctx context.Context, user models.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users[user.UserID] = user
	return nil
}

// GetUser returns a single user profile
func (m *MockDB) GetUser(ctx context.Context, userID string) (models.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return models.UserProfile{}, storage.ErrNotFound
	}
	return user, nil
}

// ListUsers returns a page of users ordered by id
func (m *MockDB) ListUsers(ctx context.Context, afterUserID string, limit int) ([]models.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var users []models.UserProfile
	for id, user := range m.users {
		if afterUserID != "" && id <= afterUserID {
			continue
		}
		users = append(users, user)
	}

	// Sort by id
	sort.Slice(users, func(i, j int) bool {
		return users[i].UserID < users[j].UserID
	})

	if limit > 0 && limit < len(users) {
		users = users[:limit]
	}
	return users, nil
}

// PutUserBook creates or replaces the entry for (user, book)
func (m *MockDB) PutUserBook(ctx context.Context, entry models.UserBookEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	books, ok := m.collections[entry.UserID]
	if !ok {
		books = make(map[string]models.UserBookEntry)
		m.collections[entry.UserID] = books
	}
	books[entry.BookID] = entry
	return nil
}

// GetCollection returns a user's entries ordered by date added
func (m *MockDB) GetCollection(ctx context.Context, userID string) ([]models.UserBookEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failCollection[userID]; err != nil {
		return nil, err
	}

	entries := make([]models.UserBookEntry, 0, len(m.collections[userID]))
	for _, entry := range m.collections[userID] {
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].DateAdded.Equal(entries[j].DateAdded) {
			return entries[i].DateAdded.Before(entries[j].DateAdded)
		}
		return entries[i].BookID < entries[j].BookID
	})
	return entries, nil
}

// GetUserBook returns one entry of a user's library
func (m *MockDB) GetUserBook(ctx context.Context, userID, bookID string) (models.UserBookEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.collections[userID][bookID]
	if !ok {
		return models.UserBookEntry{}, storage.ErrNotFound
	}
	return entry, nil
}

// GetBookPopularity returns the popularity record of a book
func (m *MockDB) GetBookPopularity(ctx context.Context, bookID string) (models.BookPopularity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.popularity[bookID]
	if !ok {
		return models.BookPopularity{}, storage.ErrNotFound
	}
	return record, nil
}

// PutBookPopularity creates or replaces a popularity record
func (m *MockDB) PutBookPopularity(ctx context.Context, record models.BookPopularity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.popularity[record.BookID] = record
	return nil
}

// ListTrending returns records ordered by trending score, then book id
func (m *MockDB) ListTrending(ctx context.Context, limit int) ([]models.BookPopularity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.popularitySnapshot(func(models.BookPopularity) bool { return true })
	sort.Slice(records, func(i, j int) bool {
		if records[i].TrendingScore != records[j].TrendingScore {
			return records[i].TrendingScore > records[j].TrendingScore
		}
		return records[i].BookID < records[j].BookID
	})
	return truncate(records, limit), nil
}

// ListPopularByGenre returns records of a genre ordered by total users, then book id
func (m *MockDB) ListPopularByGenre(ctx context.Context, genre string, limit int) ([]models.BookPopularity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.popularitySnapshot(func(r models.BookPopularity) bool { return r.Genre == genre })
	sort.Slice(records, func(i, j int) bool {
		if records[i].TotalUsers != records[j].TotalUsers {
			return records[i].TotalUsers > records[j].TotalUsers
		}
		return records[i].BookID < records[j].BookID
	})
	return truncate(records, limit), nil
}

// ListPopularityUpdatedBefore returns records last updated before t
func (m *MockDB) ListPopularityUpdatedBefore(ctx context.Context, t time.Time) ([]models.BookPopularity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.popularitySnapshot(func(r models.BookPopularity) bool { return r.LastUpdated.Before(t) })
	sort.Slice(records, func(i, j int) bool {
		return records[i].BookID < records[j].BookID
	})
	return records, nil
}

// GetUserAchievement returns one achievement record
func (m *MockDB) GetUserAchievement(ctx context.Context, userID, achievementID string) (models.UserAchievement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.achievements[userID][achievementID]
	if !ok {
		return models.UserAchievement{}, storage.ErrNotFound
	}
	return record, nil
}

// PutUserAchievement creates or replaces an achievement record
func (m *MockDB) PutUserAchievement(ctx context.Context, record models.UserAchievement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, ok := m.achievements[record.UserID]
	if !ok {
		records = make(map[string]models.UserAchievement)
		m.achievements[record.UserID] = records
	}
	records[record.AchievementID] = record
	return nil
}

// ListUserAchievements returns a user's achievement records ordered by id
func (m *MockDB) ListUserAchievements(ctx context.Context, userID string) ([]models.UserAchievement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]models.UserAchievement, 0, len(m.achievements[userID]))
	for _, record := range m.achievements[userID] {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].AchievementID < records[j].AchievementID
	})
	return records, nil
}

// GetUserProgress returns a user's aggregate progress
func (m *MockDB) GetUserProgress(ctx context.Context, userID string) (models.UserProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.progress[userID]
	if !ok {
		return models.UserProgress{}, storage.ErrNotFound
	}
	return record, nil
}

// PutUserProgress creates or replaces a user's aggregate progress
func (m *MockDB) PutUserProgress(ctx context.Context, record models.UserProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.progress[record.UserID] = record
	return nil
}

// GetSocialStats returns the counters for a user
func (m *MockDB) GetSocialStats(ctx context.Context, userID string) (models.SocialStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.social[userID], nil
}

// SetSocialStats sets the counters for a user
func (m *MockDB) SetSocialStats(userID string, stats models.SocialStats) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.social[userID] = stats
}

// FailCollection makes GetCollection return err for userID; nil clears it
func (m *MockDB) FailCollection(userID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.failCollection, userID)
		return
	}
	m.failCollection[userID] = err
}

// RunInTx serializes fn against every other RunInTx call.
// Calls must not be nested.
func (m *MockDB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.Storage) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, m)
}

// Close does nothing for mock DB
func (m *MockDB) Close() error {
	return nil
}

func (m *MockDB) popularitySnapshot(keep func(models.BookPopularity) bool) []models.BookPopularity {
	records := make([]models.BookPopularity, 0, len(m.popularity))
	for _, record := range m.popularity {
		if keep(record) {
			records = append(records, record)
		}
	}
	return records
}

func truncate(records []models.BookPopularity, limit int) []models.BookPopularity {
	if limit > 0 && limit < len(records) {
		return records[:limit]
	}
	return records
}
