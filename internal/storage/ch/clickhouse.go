package ch

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"bookrec/internal/models"
	"bookrec/internal/storage"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseDB stores records in ReplacingMergeTree tables keyed by their
// natural ids. Every write inserts a new row version and reads use FINAL, so
// a write behaves as an upsert.
type ClickHouseDB struct {
	conn clickhouse.Conn

	// ClickHouse has no multi-statement transactions; RunInTx serializes
	// read-modify-write units within this process
	txMu sync.Mutex
}

var _ storage.Storage = (*ClickHouseDB)(nil)

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(host string, port int, database, user, password string, useTLS bool) (*ClickHouseDB, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}

	// Configure TLS if enabled
	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// DSN builds the clickhouse:// URL used by database/sql clients such as goose
func DSN(host string, port int, database, user, password string, useTLS bool) string {
	u := url.URL{
		Scheme:   "clickhouse",
		User:     url.UserPassword(user, password),
		Host:     fmt.Sprintf("%s:%d", host, port),
		Path:     "/" + database,
		RawQuery: "dial_timeout=10s&max_execution_time=60",
	}
	if useTLS {
		u.RawQuery += "&secure=true"
	}
	return u.String()
}

// Initialize is a no-op - tables are managed via migrations
func (db *ClickHouseDB) Initialize(ctx context.Context) error {
	return nil
}

var lastVersion atomic.Uint64

// version orders row versions of ReplacingMergeTree tables. It is strictly
// increasing within the process.
func version() uint64 {
	for {
		last := lastVersion.Load()
		next := uint64(time.Now().UnixNano())
		if next <= last {
			next = last + 1
		}
		if lastVersion.CompareAndSwap(last, next) {
			return next
		}
	}
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// UpsertUser creates or replaces a user profile
func (db *ClickHouseDB) UpsertUser(ctx context.Context, user models.UserProfile) error {
	err := db.conn.Exec(ctx, `INSERT INTO users (user_id, username, email, version) VALUES (?, ?, ?, ?)`,
		user.UserID, user.Username, user.Email, version())
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUser returns a single user profile
func (db *ClickHouseDB) GetUser(ctx context.Context, userID string) (models.UserProfile, error) {
	var user models.UserProfile
	row := db.conn.QueryRow(ctx, `SELECT user_id, username, email FROM users FINAL WHERE user_id = ?`, userID)
	if err := row.Scan(&user.UserID, &user.Username, &user.Email); err != nil {
		return models.UserProfile{}, notFound(err, "user")
	}
	return user, nil
}

// ListUsers returns a page of users ordered by id
func (db *ClickHouseDB) ListUsers(ctx context.Context, afterUserID string, limit int) ([]models.UserProfile, error) {
	rows, err := db.conn.Query(ctx, `SELECT user_id, username, email FROM users FINAL
		WHERE user_id > ? ORDER BY user_id LIMIT ?`, afterUserID, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.UserProfile
	for rows.Next() {
		var user models.UserProfile
		if err := rows.Scan(&user.UserID, &user.Username, &user.Email); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// PutUserBook creates or replaces the entry for (user, book)
func (db *ClickHouseDB) PutUserBook(ctx context.Context, entry models.UserBookEntry) error {
	err := db.conn.Exec(ctx, `INSERT INTO user_books
		(user_id, book_id, title, author, genre, cover_image, status, rating, date_added, end_date, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.UserID, entry.BookID, entry.Title, entry.Author, entry.Genre, entry.CoverImage,
		string(entry.Status), int32(entry.Rating), entry.DateAdded, nullableTime(entry.EndDate), version())
	if err != nil {
		return fmt.Errorf("failed to save user book: %w", err)
	}
	return nil
}

const userBookColumns = `user_id, book_id, title, author, genre, cover_image, status, rating, date_added, end_date`

// GetCollection returns a user's entries ordered by date added
func (db *ClickHouseDB) GetCollection(ctx context.Context, userID string) ([]models.UserBookEntry, error) {
	rows, err := db.conn.Query(ctx, `SELECT `+userBookColumns+`
		FROM user_books FINAL WHERE user_id = ? ORDER BY date_added, book_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	defer rows.Close()

	entries := []models.UserBookEntry{}
	for rows.Next() {
		entry, err := scanUserBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user book: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetUserBook returns one entry of a user's library
func (db *ClickHouseDB) GetUserBook(ctx context.Context, userID, bookID string) (models.UserBookEntry, error) {
	row := db.conn.QueryRow(ctx, `SELECT `+userBookColumns+`
		FROM user_books FINAL WHERE user_id = ? AND book_id = ?`, userID, bookID)
	entry, err := scanUserBook(row)
	if err != nil {
		return models.UserBookEntry{}, notFound(err, "user book")
	}
	return entry, nil
}

func scanUserBook(s scanner) (models.UserBookEntry, error) {
	var (
		entry  models.UserBookEntry
		status string
		rating int32
		ended  *time.Time
	)
	if err := s.Scan(&entry.UserID, &entry.BookID, &entry.Title, &entry.Author, &entry.Genre,
		&entry.CoverImage, &status, &rating, &entry.DateAdded, &ended); err != nil {
		return models.UserBookEntry{}, err
	}
	entry.Status = models.ReadingStatus(status)
	entry.Rating = int(rating)
	if ended != nil {
		entry.EndDate = *ended
	}
	return entry, nil
}

const popularityColumns = `book_id, title, author, cover_image, genre, weekly_additions, total_users,
	average_rating, total_ratings, trending_score, last_updated`

// GetBookPopularity returns the popularity record of a book
func (db *ClickHouseDB) GetBookPopularity(ctx context.Context, bookID string) (models.BookPopularity, error) {
	row := db.conn.QueryRow(ctx, `SELECT `+popularityColumns+` FROM book_popularity FINAL WHERE book_id = ?`, bookID)
	record, err := scanPopularity(row)
	if err != nil {
		return models.BookPopularity{}, notFound(err, "book popularity")
	}
	return record, nil
}

// PutBookPopularity creates or replaces a popularity record
func (db *ClickHouseDB) PutBookPopularity(ctx context.Context, r models.BookPopularity) error {
	err := db.conn.Exec(ctx, `INSERT INTO book_popularity (`+popularityColumns+`, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BookID, r.Title, r.Author, r.CoverImage, r.Genre, int64(r.WeeklyAdditions), int64(r.TotalUsers),
		r.AverageRating, int64(r.TotalRatings), r.TrendingScore, r.LastUpdated, version())
	if err != nil {
		return fmt.Errorf("failed to save book popularity: %w", err)
	}
	return nil
}

// ListTrending returns records ordered by trending score
func (db *ClickHouseDB) ListTrending(ctx context.Context, limit int) ([]models.BookPopularity, error) {
	return db.queryPopularity(ctx, `SELECT `+popularityColumns+` FROM book_popularity FINAL
		ORDER BY trending_score DESC, book_id LIMIT ?`, limitOrAll(limit))
}

// ListPopularByGenre returns records of one genre ordered by total users
func (db *ClickHouseDB) ListPopularByGenre(ctx context.Context, genre string, limit int) ([]models.BookPopularity, error) {
	return db.queryPopularity(ctx, `SELECT `+popularityColumns+` FROM book_popularity FINAL
		WHERE genre = ? ORDER BY total_users DESC, book_id LIMIT ?`, genre, limitOrAll(limit))
}

// ListPopularityUpdatedBefore returns records last updated before t
func (db *ClickHouseDB) ListPopularityUpdatedBefore(ctx context.Context, t time.Time) ([]models.BookPopularity, error) {
	return db.queryPopularity(ctx, `SELECT `+popularityColumns+` FROM book_popularity FINAL
		WHERE last_updated < ? ORDER BY book_id`, t)
}

func (db *ClickHouseDB) queryPopularity(ctx context.Context, query string, args ...any) ([]models.BookPopularity, error) {
	rows, err := db.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query book popularity: %w", err)
	}
	defer rows.Close()

	records := []models.BookPopularity{}
	for rows.Next() {
		record, err := scanPopularity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book popularity: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPopularity(s scanner) (models.BookPopularity, error) {
	var (
		r                          models.BookPopularity
		weekly, total, ratingCount int64
	)
	err := s.Scan(&r.BookID, &r.Title, &r.Author, &r.CoverImage, &r.Genre, &weekly, &total,
		&r.AverageRating, &ratingCount, &r.TrendingScore, &r.LastUpdated)
	if err != nil {
		return models.BookPopularity{}, err
	}
	r.WeeklyAdditions = int(weekly)
	r.TotalUsers = int(total)
	r.TotalRatings = int(ratingCount)
	return r, nil
}

const achievementColumns = `user_id, achievement_id, progress, max_progress, is_completed, completed_at, unlocked_at`

// GetUserAchievement returns one achievement record of a user
func (db *ClickHouseDB) GetUserAchievement(ctx context.Context, userID, achievementID string) (models.UserAchievement, error) {
	row := db.conn.QueryRow(ctx, `SELECT `+achievementColumns+` FROM user_achievements FINAL
		WHERE user_id = ? AND achievement_id = ?`, userID, achievementID)
	record, err := scanAchievement(row)
	if err != nil {
		return models.UserAchievement{}, notFound(err, "user achievement")
	}
	return record, nil
}

// PutUserAchievement creates or replaces an achievement record
func (db *ClickHouseDB) PutUserAchievement(ctx context.Context, r models.UserAchievement) error {
	err := db.conn.Exec(ctx, `INSERT INTO user_achievements (`+achievementColumns+`, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.AchievementID, int64(r.Progress), int64(r.MaxProgress), r.IsCompleted,
		nullableTime(r.CompletedAt), r.UnlockedAt, version())
	if err != nil {
		return fmt.Errorf("failed to save user achievement: %w", err)
	}
	return nil
}

// ListUserAchievements returns a user's achievement records ordered by id
func (db *ClickHouseDB) ListUserAchievements(ctx context.Context, userID string) ([]models.UserAchievement, error) {
	rows, err := db.conn.Query(ctx, `SELECT `+achievementColumns+` FROM user_achievements FINAL
		WHERE user_id = ? ORDER BY achievement_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user achievements: %w", err)
	}
	defer rows.Close()

	records := []models.UserAchievement{}
	for rows.Next() {
		record, err := scanAchievement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user achievement: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanAchievement(s scanner) (models.UserAchievement, error) {
	var (
		r                     models.UserAchievement
		progress, maxProgress int64
		completedAt           *time.Time
	)
	err := s.Scan(&r.UserID, &r.AchievementID, &progress, &maxProgress, &r.IsCompleted, &completedAt, &r.UnlockedAt)
	if err != nil {
		return models.UserAchievement{}, err
	}
	r.Progress = int(progress)
	r.MaxProgress = int(maxProgress)
	if completedAt != nil {
		r.CompletedAt = *completedAt
	}
	return r, nil
}

// GetUserProgress returns a user's aggregate progress
func (db *ClickHouseDB) GetUserProgress(ctx context.Context, userID string) (models.UserProgress, error) {
	var (
		p                          models.UserProgress
		points, level, achievement int64
	)
	row := db.conn.QueryRow(ctx, `SELECT user_id, total_points, level, completed_achievements, last_updated
		FROM user_progress FINAL WHERE user_id = ?`, userID)
	if err := row.Scan(&p.UserID, &points, &level, &achievement, &p.LastUpdated); err != nil {
		return models.UserProgress{}, notFound(err, "user progress")
	}
	p.TotalPoints = int(points)
	p.Level = int(level)
	p.CompletedAchievements = int(achievement)
	return p, nil
}

// PutUserProgress creates or replaces a user's aggregate progress
func (db *ClickHouseDB) PutUserProgress(ctx context.Context, p models.UserProgress) error {
	err := db.conn.Exec(ctx, `INSERT INTO user_progress
		(user_id, total_points, level, completed_achievements, last_updated, version) VALUES (?, ?, ?, ?, ?, ?)`,
		p.UserID, int64(p.TotalPoints), int64(p.Level), int64(p.CompletedAchievements), p.LastUpdated, version())
	if err != nil {
		return fmt.Errorf("failed to save user progress: %w", err)
	}
	return nil
}

// GetSocialStats returns a user's social counters, zero when unknown
func (db *ClickHouseDB) GetSocialStats(ctx context.Context, userID string) (models.SocialStats, error) {
	var followers, following, reviews int64
	row := db.conn.QueryRow(ctx, `SELECT followers, following, reviews FROM social_stats FINAL WHERE user_id = ?`, userID)
	if err := row.Scan(&followers, &following, &reviews); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SocialStats{}, nil
		}
		return models.SocialStats{}, fmt.Errorf("failed to get social stats: %w", err)
	}
	return models.SocialStats{Followers: int(followers), Following: int(following), Reviews: int(reviews)}, nil
}

// PutSocialStats replaces a user's social counters
func (db *ClickHouseDB) PutSocialStats(ctx context.Context, userID string, stats models.SocialStats) error {
	err := db.conn.Exec(ctx, `INSERT INTO social_stats (user_id, followers, following, reviews, version) VALUES (?, ?, ?, ?, ?)`,
		userID, int64(stats.Followers), int64(stats.Following), int64(stats.Reviews), version())
	if err != nil {
		return fmt.Errorf("failed to save social stats: %w", err)
	}
	return nil
}

// RunInTx serializes fn against every other RunInTx call of this process.
// Calls must not be nested.
func (db *ClickHouseDB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.Storage) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, db)
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// limitOrAll maps a non-positive limit to no limit
func limitOrAll(limit int) uint64 {
	if limit <= 0 {
		return 1<<63 - 1
	}
	return uint64(limit)
}
