// Package sqldb implements the record store on gorm, backed by PostgreSQL in
// production and SQLite for local runs and tests.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"bookrec/internal/models"
	"bookrec/internal/storage"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	maxTxAttempts = 5
)

// GormDB is a gorm-backed implementation of storage.Storage
type GormDB struct {
	db      *gorm.DB
	dialect string
	logger  *zap.Logger
}

var _ storage.Storage = (*GormDB)(nil)

// Open connects to PostgreSQL or SQLite
func Open(dialect, dsn string, logger *zap.Logger) (*GormDB, error) {
	var dialector gorm.Dialector
	switch dialect {
	case DialectPostgres:
		dialector = postgres.Open(dsn)
	case DialectSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported SQL dialect %q", dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", dialect, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection pool: %w", err)
	}
	if dialect == DialectSQLite {
		// One writer; also keeps a :memory: database on a single connection
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	return &GormDB{db: db, dialect: dialect, logger: logger}, nil
}

// Initialize creates or updates the tables
func (g *GormDB) Initialize(ctx context.Context) error {
	err := g.db.WithContext(ctx).AutoMigrate(
		&userRow{}, &userBookRow{}, &popularityRow{},
		&achievementRow{}, &progressRow{}, &socialRow{},
	)
	if err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (g *GormDB) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *GormDB) with(ctx context.Context) *gorm.DB {
	return g.db.WithContext(ctx)
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

func upsert() clause.OnConflict {
	return clause.OnConflict{UpdateAll: true}
}

// limitOrAll maps a non-positive limit to gorm's "no limit"
func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// UpsertUser creates or replaces a user profile
func (g *GormDB) UpsertUser(ctx context.Context, user models.UserProfile) error {
	row := userRow{UserID: user.UserID, Username: user.Username, Email: user.Email}
	if err := g.with(ctx).Clauses(upsert()).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUser returns a single user profile
func (g *GormDB) GetUser(ctx context.Context, userID string) (models.UserProfile, error) {
	var row userRow
	if err := g.with(ctx).Where("user_id = ?", userID).First(&row).Error; err != nil {
		return models.UserProfile{}, notFound(err, "user")
	}
	return row.model(), nil
}

// ListUsers returns a page of users ordered by id
func (g *GormDB) ListUsers(ctx context.Context, afterUserID string, limit int) ([]models.UserProfile, error) {
	var rows []userRow
	err := g.with(ctx).
		Where("user_id > ?", afterUserID).
		Order("user_id").
		Limit(limitOrAll(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]models.UserProfile, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.model())
	}
	return users, nil
}

// PutUserBook creates or replaces the entry for (user, book)
func (g *GormDB) PutUserBook(ctx context.Context, entry models.UserBookEntry) error {
	row := newUserBookRow(entry)
	if err := g.with(ctx).Clauses(upsert()).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save user book: %w", err)
	}
	return nil
}

// GetCollection returns a user's entries ordered by date added
func (g *GormDB) GetCollection(ctx context.Context, userID string) ([]models.UserBookEntry, error) {
	var rows []userBookRow
	err := g.with(ctx).
		Where("user_id = ?", userID).
		Order("date_added, book_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	entries := make([]models.UserBookEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.model())
	}
	return entries, nil
}

// GetUserBook returns one entry of a user's library
func (g *GormDB) GetUserBook(ctx context.Context, userID, bookID string) (models.UserBookEntry, error) {
	var row userBookRow
	if err := g.forUpdate(ctx).Where("user_id = ? AND book_id = ?", userID, bookID).First(&row).Error; err != nil {
		return models.UserBookEntry{}, notFound(err, "user book")
	}
	return row.model(), nil
}

// GetBookPopularity returns the popularity record of a book
func (g *GormDB) GetBookPopularity(ctx context.Context, bookID string) (models.BookPopularity, error) {
	var row popularityRow
	if err := g.forUpdate(ctx).Where("book_id = ?", bookID).First(&row).Error; err != nil {
		return models.BookPopularity{}, notFound(err, "book popularity")
	}
	return row.model(), nil
}

// PutBookPopularity creates or replaces a popularity record
func (g *GormDB) PutBookPopularity(ctx context.Context, record models.BookPopularity) error {
	row := newPopularityRow(record)
	if err := g.with(ctx).Clauses(upsert()).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save book popularity: %w", err)
	}
	return nil
}

// ListTrending returns records ordered by trending score
func (g *GormDB) ListTrending(ctx context.Context, limit int) ([]models.BookPopularity, error) {
	return g.listPopularity(g.with(ctx).
		Order("trending_score DESC, book_id").
		Limit(limitOrAll(limit)))
}

// ListPopularByGenre returns records of one genre ordered by total users
func (g *GormDB) ListPopularByGenre(ctx context.Context, genre string, limit int) ([]models.BookPopularity, error) {
	return g.listPopularity(g.with(ctx).
		Where("genre = ?", genre).
		Order("total_users DESC, book_id").
		Limit(limitOrAll(limit)))
}

// ListPopularityUpdatedBefore returns records last updated before t
func (g *GormDB) ListPopularityUpdatedBefore(ctx context.Context, t time.Time) ([]models.BookPopularity, error) {
	return g.listPopularity(g.with(ctx).
		Where("last_updated < ?", t).
		Order("book_id"))
}

func (g *GormDB) listPopularity(query *gorm.DB) ([]models.BookPopularity, error) {
	var rows []popularityRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query book popularity: %w", err)
	}

	records := make([]models.BookPopularity, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.model())
	}
	return records, nil
}

// GetUserAchievement returns one achievement record of a user
func (g *GormDB) GetUserAchievement(ctx context.Context, userID, achievementID string) (models.UserAchievement, error) {
	var row achievementRow
	err := g.forUpdate(ctx).
		Where("user_id = ? AND achievement_id = ?", userID, achievementID).
		First(&row).Error
	if err != nil {
		return models.UserAchievement{}, notFound(err, "user achievement")
	}
	return row.model(), nil
}

// PutUserAchievement creates or replaces an achievement record
func (g *GormDB) PutUserAchievement(ctx context.Context, record models.UserAchievement) error {
	row := newAchievementRow(record)
	if err := g.with(ctx).Clauses(upsert()).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save user achievement: %w", err)
	}
	return nil
}

// ListUserAchievements returns a user's achievement records ordered by id
func (g *GormDB) ListUserAchievements(ctx context.Context, userID string) ([]models.UserAchievement, error) {
	var rows []achievementRow
	err := g.with(ctx).
		Where("user_id = ?", userID).
		Order("achievement_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list user achievements: %w", err)
	}

	records := make([]models.UserAchievement, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.model())
	}
	return records, nil
}

// GetUserProgress returns a user's aggregate progress
func (g *GormDB) GetUserProgress(ctx context.Context, userID string) (models.UserProgress, error) {
	var row progressRow
	if err := g.forUpdate(ctx).Where("user_id = ?", userID).First(&row).Error; err != nil {
		return models.UserProgress{}, notFound(err, "user progress")
	}
	return row.model(), nil
}

// PutUserProgress creates or replaces a user's aggregate progress
func (g *GormDB) PutUserProgress(ctx context.Context, record models.UserProgress) error {
	row := progressRow(record)
	if err := g.with(ctx).Clauses(upsert()).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save user progress: %w", err)
	}
	return nil
}

// GetSocialStats returns a user's social counters, zero when unknown
func (g *GormDB) GetSocialStats(ctx context.Context, userID string) (models.SocialStats, error) {
	var row socialRow
	err := g.with(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.SocialStats{}, nil
	}
	if err != nil {
		return models.SocialStats{}, fmt.Errorf("failed to get social stats: %w", err)
	}
	return models.SocialStats{Followers: row.Followers, Following: row.Following, Reviews: row.Reviews}, nil
}

// PutSocialStats replaces a user's social counters
func (g *GormDB) PutSocialStats(ctx context.Context, userID string, stats models.SocialStats) error {
	row := socialRow{UserID: userID, Followers: stats.Followers, Following: stats.Following, Reviews: stats.Reviews}
	if err := g.with(ctx).Clauses(upsert()).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save social stats: %w", err)
	}
	return nil
}

// RunInTx runs fn in a database transaction. On PostgreSQL the transaction is
// serializable and retried on serialization failures.
func (g *GormDB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.Storage) error) error {
	var opts *sql.TxOptions
	if g.dialect == DialectPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = g.with(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(ctx, &GormDB{db: tx, dialect: g.dialect, logger: g.logger})
		}, opts)
		if err == nil || !retryable(err) || ctx.Err() != nil {
			return err
		}
		g.logger.Debug("Retrying transaction after serialization failure",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", maxTxAttempts, err)
}

// forUpdate locks the selected rows when running inside a PostgreSQL transaction
func (g *GormDB) forUpdate(ctx context.Context) *gorm.DB {
	query := g.with(ctx)
	if g.dialect == DialectPostgres && g.inTx() {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return query
}

func (g *GormDB) inTx() bool {
	_, ok := g.db.Statement.ConnPool.(gorm.TxCommitter)
	return ok
}

// retryable reports serialization failures and deadlocks
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
