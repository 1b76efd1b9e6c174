package models

import "time"

// ReadingStatus is the shelf a book sits on in a user's library
type ReadingStatus string

const (
	StatusPlanToRead ReadingStatus = "plan-to-read"
	StatusReading    ReadingStatus = "reading"
	StatusCompleted  ReadingStatus = "completed"
	StatusOnHold     ReadingStatus = "on-hold"
	StatusDropped    ReadingStatus = "dropped"
)

// Valid reports whether s is one of the known statuses
func (s ReadingStatus) Valid() bool {
	switch s {
	case StatusPlanToRead, StatusReading, StatusCompleted, StatusOnHold, StatusDropped:
		return true
	}
	return false
}

// UserBookEntry is one user's relationship to one book.
// Rating is 0 when the user has not rated the book, 1-10 otherwise.
type UserBookEntry struct {
	UserID     string        `json:"user_id"`
	BookID     string        `json:"book_id"`
	Title      string        `json:"title"`
	Author     string        `json:"author"`
	Genre      string        `json:"genre"`
	CoverImage string        `json:"cover_image,omitempty"`
	Status     ReadingStatus `json:"status"`
	Rating     int           `json:"rating,omitempty"`
	DateAdded  time.Time     `json:"date_added"`
	EndDate    time.Time     `json:"end_date,omitempty"`
}

// IsRated reports whether the entry carries a rating
func (e UserBookEntry) IsRated() bool {
	return e.Rating > 0
}

// CompletedAt returns the end date, falling back to the date added
func (e UserBookEntry) CompletedAt() time.Time {
	if !e.EndDate.IsZero() {
		return e.EndDate
	}
	return e.DateAdded
}

// Book returns the catalog attributes of the entry
func (e UserBookEntry) Book() Book {
	return Book{
		BookID:     e.BookID,
		Title:      e.Title,
		Author:     e.Author,
		Genre:      e.Genre,
		CoverImage: e.CoverImage,
	}
}

// UserProfile represents a reader
type UserProfile struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// DisplayName returns the username, the email or the id, whichever is set first
func (p UserProfile) DisplayName() string {
	if p.Username != "" {
		return p.Username
	}
	if p.Email != "" {
		return p.Email
	}
	return p.UserID
}

// Book holds catalog attributes shared by entries, recommendations and popularity records
type Book struct {
	BookID     string `json:"book_id"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	Genre      string `json:"genre"`
	CoverImage string `json:"cover_image,omitempty"`
}

// BookMeta is the metadata carried by an add or rate event
type BookMeta struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	CoverImage string `json:"cover_image,omitempty"`
	Genre      string `json:"genre"`
}

// UserSimilarity describes how close a candidate reader is to the requester
type UserSimilarity struct {
	UserID                  string  `json:"user_id"`
	Username                string  `json:"username,omitempty"`
	Email                   string  `json:"email,omitempty"`
	SimilarityScore         float64 `json:"similarity_score"`
	CommonBooks             int     `json:"common_books"`
	AverageRatingDifference float64 `json:"average_rating_difference"`
}

// DisplayName mirrors UserProfile.DisplayName
func (s UserSimilarity) DisplayName() string {
	return UserProfile{UserID: s.UserID, Username: s.Username, Email: s.Email}.DisplayName()
}

// CollaborativeRecommendation is a book suggested by similar readers
type CollaborativeRecommendation struct {
	Book
	RecommendationScore float64  `json:"recommendation_score"`
	RecommendedBy       []string `json:"recommended_by"`
	AverageRating       float64  `json:"average_rating"`
	Reason              string   `json:"reason"`
}

// TrendingBook is a book recently picked up by similar readers
type TrendingBook struct {
	Book
	SimilarReaders int     `json:"similar_readers"`
	AverageRating  float64 `json:"average_rating"`
}

// BookPopularity is the running popularity record of one book.
// TotalUsers counts add and rate events, not distinct users.
type BookPopularity struct {
	BookID          string    `json:"book_id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	CoverImage      string    `json:"cover_image,omitempty"`
	Genre           string    `json:"genre"`
	WeeklyAdditions int       `json:"weekly_additions"`
	TotalUsers      int       `json:"total_users"`
	AverageRating   float64   `json:"average_rating"`
	TotalRatings    int       `json:"total_ratings"`
	TrendingScore   float64   `json:"trending_score"`
	LastUpdated     time.Time `json:"last_updated"`
}

// SocialStats are the counters maintained outside this service
type SocialStats struct {
	Followers int `json:"followers"`
	Following int `json:"following"`
	Reviews   int `json:"reviews"`
}
