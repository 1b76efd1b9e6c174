package sqldb

import (
	"time"

	"bookrec/internal/models"
)

type userRow struct {
	UserID    string `gorm:"primaryKey;size:128"`
	Username  string `gorm:"size:255"`
	Email     string `gorm:"size:255"`
	UpdatedAt time.Time
}

func (userRow) TableName() string { return "users" }

func (r userRow) model() models.UserProfile {
	return models.UserProfile{UserID: r.UserID, Username: r.Username, Email: r.Email}
}

type userBookRow struct {
	UserID     string `gorm:"primaryKey;size:128"`
	BookID     string `gorm:"primaryKey;size:128"`
	Title      string
	Author     string
	Genre      string `gorm:"size:128"`
	CoverImage string
	Status     string `gorm:"size:20;not null"`
	Rating     int    `gorm:"not null;default:0;check:rating >= 0 AND rating <= 10"`
	DateAdded  time.Time
	EndDate    *time.Time
}

func (userBookRow) TableName() string { return "user_books" }

func newUserBookRow(e models.UserBookEntry) userBookRow {
	row := userBookRow{
		UserID:     e.UserID,
		BookID:     e.BookID,
		Title:      e.Title,
		Author:     e.Author,
		Genre:      e.Genre,
		CoverImage: e.CoverImage,
		Status:     string(e.Status),
		Rating:     e.Rating,
		DateAdded:  e.DateAdded,
	}
	if !e.EndDate.IsZero() {
		ended := e.EndDate
		row.EndDate = &ended
	}
	return row
}

func (r userBookRow) model() models.UserBookEntry {
	e := models.UserBookEntry{
		UserID:     r.UserID,
		BookID:     r.BookID,
		Title:      r.Title,
		Author:     r.Author,
		Genre:      r.Genre,
		CoverImage: r.CoverImage,
		Status:     models.ReadingStatus(r.Status),
		Rating:     r.Rating,
		DateAdded:  r.DateAdded,
	}
	if r.EndDate != nil {
		e.EndDate = *r.EndDate
	}
	return e
}

type popularityRow struct {
	BookID          string `gorm:"primaryKey;size:128"`
	Title           string
	Author          string
	CoverImage      string
	Genre           string `gorm:"size:128;index"`
	WeeklyAdditions int
	TotalUsers      int
	AverageRating   float64
	TotalRatings    int
	TrendingScore   float64   `gorm:"index"`
	LastUpdated     time.Time `gorm:"index"`
}

func (popularityRow) TableName() string { return "book_popularity" }

func newPopularityRow(p models.BookPopularity) popularityRow {
	return popularityRow(p)
}

func (r popularityRow) model() models.BookPopularity {
	return models.BookPopularity(r)
}

type achievementRow struct {
	UserID        string `gorm:"primaryKey;size:128"`
	AchievementID string `gorm:"primaryKey;size:64"`
	Progress      int
	MaxProgress   int
	IsCompleted   bool
	CompletedAt   *time.Time
	UnlockedAt    time.Time
}

func (achievementRow) TableName() string { return "user_achievements" }

func newAchievementRow(a models.UserAchievement) achievementRow {
	row := achievementRow{
		UserID:        a.UserID,
		AchievementID: a.AchievementID,
		Progress:      a.Progress,
		MaxProgress:   a.MaxProgress,
		IsCompleted:   a.IsCompleted,
		UnlockedAt:    a.UnlockedAt,
	}
	if !a.CompletedAt.IsZero() {
		completed := a.CompletedAt
		row.CompletedAt = &completed
	}
	return row
}

func (r achievementRow) model() models.UserAchievement {
	a := models.UserAchievement{
		UserID:        r.UserID,
		AchievementID: r.AchievementID,
		Progress:      r.Progress,
		MaxProgress:   r.MaxProgress,
		IsCompleted:   r.IsCompleted,
		UnlockedAt:    r.UnlockedAt,
	}
	if r.CompletedAt != nil {
		a.CompletedAt = *r.CompletedAt
	}
	return a
}

type progressRow struct {
	UserID                string `gorm:"primaryKey;size:128"`
	TotalPoints           int
	Level                 int
	CompletedAchievements int
	LastUpdated           time.Time
}

func (progressRow) TableName() string { return "user_progress" }

func (r progressRow) model() models.UserProgress {
	return models.UserProgress(r)
}

type socialRow struct {
	UserID    string `gorm:"primaryKey;size:128"`
	Followers int
	Following int
	Reviews   int
}

func (socialRow) TableName() string { return "social_stats" }
