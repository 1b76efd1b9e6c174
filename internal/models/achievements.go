package models

import (
	"math"
	"time"
)

// Category groups achievements in the catalog
type Category string

const (
	CategoryReading     Category = "reading"
	CategorySocial      Category = "social"
	CategoryQuality     Category = "quality"
	CategoryMilestone   Category = "milestone"
	CategoryExploration Category = "exploration"
)

// Rarity of an achievement
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Timeframe is the window used by BooksInTimeframe
type Timeframe string

const (
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
	TimeframeYear  Timeframe = "year"
)

// Start returns the beginning of the window ending at now
func (tf Timeframe) Start(now time.Time) time.Time {
	switch tf {
	case TimeframeWeek:
		return now.AddDate(0, 0, -7)
	case TimeframeYear:
		return now.AddDate(-1, 0, 0)
	default:
		return now.AddDate(0, -1, 0)
	}
}

// Condition is the single measurable rule of an achievement.
// Each kind carries only the fields it needs.
type Condition interface {
	Kind() string
	// Target is the value progress must reach
	Target() int
}

// BooksRead counts every entry in the collection
type BooksRead struct{ Count int }

// BooksRated counts rated entries
type BooksRated struct{ Count int }

// ReviewsWritten uses the externally supplied review counter
type ReviewsWritten struct{ Count int }

// Followers uses the follower counter
type Followers struct{ Count int }

// Following uses the following counter
type Following struct{ Count int }

// GenresExplored counts distinct non-empty genres
type GenresExplored struct{ Count int }

// RatingGiven counts entries rated exactly Rating
type RatingGiven struct {
	Rating int
	Count  int
}

// BooksInTimeframe counts completed entries finished inside the window
type BooksInTimeframe struct {
	Count     int
	Timeframe Timeframe
}

func (c BooksRead) Kind() string        { return "books_read" }
func (c BooksRated) Kind() string       { return "books_rated" }
func (c ReviewsWritten) Kind() string   { return "reviews_written" }
func (c Followers) Kind() string        { return "followers" }
func (c Following) Kind() string        { return "following" }
func (c GenresExplored) Kind() string   { return "genres_explored" }
func (c RatingGiven) Kind() string      { return "rating_given" }
func (c BooksInTimeframe) Kind() string { return "books_in_timeframe" }

func (c BooksRead) Target() int        { return c.Count }
func (c BooksRated) Target() int       { return c.Count }
func (c ReviewsWritten) Target() int   { return c.Count }
func (c Followers) Target() int        { return c.Count }
func (c Following) Target() int        { return c.Count }
func (c GenresExplored) Target() int   { return c.Count }
func (c RatingGiven) Target() int      { return c.Count }
func (c BooksInTimeframe) Target() int { return c.Count }

// Achievement is an immutable catalog definition
type Achievement struct {
	ID          string
	Name        string
	Description string
	Category    Category
	Condition   Condition
	Points      int
	Rarity      Rarity
}

// UserAchievement is the persisted progress of one user on one achievement
type UserAchievement struct {
	UserID        string    `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	Progress      int       `json:"progress"`
	MaxProgress   int       `json:"max_progress"`
	IsCompleted   bool      `json:"is_completed"`
	CompletedAt   time.Time `json:"completed_at,omitempty"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

// UserProgress aggregates points and level for a user
type UserProgress struct {
	UserID                string    `json:"user_id"`
	TotalPoints           int       `json:"total_points"`
	Level                 int       `json:"level"`
	CompletedAchievements int       `json:"completed_achievements"`
	LastUpdated           time.Time `json:"last_updated"`
}

// LevelForPoints returns floor(sqrt(points/100)) + 1
func LevelForPoints(points int) int {
	if points < 0 {
		points = 0
	}
	return int(math.Floor(math.Sqrt(float64(points)/100))) + 1
}
