package achievements

import (
	"fmt"

	"bookrec/internal/models"
)

// Catalog is an immutable set of achievement definitions
type Catalog struct {
	entries []models.Achievement
	byID    map[string]int
}

// NewCatalog builds a catalog from definitions. IDs must be unique and
// every definition needs a condition with a positive target.
func NewCatalog(entries ...models.Achievement) (*Catalog, error) {
	c := &Catalog{
		entries: make([]models.Achievement, 0, len(entries)),
		byID:    make(map[string]int, len(entries)),
	}
	for _, a := range entries {
		if a.ID == "" {
			return nil, fmt.Errorf("achievement without id")
		}
		if _, dup := c.byID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate achievement id %q", a.ID)
		}
		if a.Condition == nil || a.Condition.Target() <= 0 {
			return nil, fmt.Errorf("achievement %q has no positive target", a.ID)
		}
		c.byID[a.ID] = len(c.entries)
		c.entries = append(c.entries, a)
	}
	return c, nil
}

// MustCatalog is NewCatalog that panics on invalid definitions
func MustCatalog(entries ...models.Achievement) *Catalog {
	c, err := NewCatalog(entries...)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns a copy of the definitions in catalog order
func (c *Catalog) All() []models.Achievement {
	out := make([]models.Achievement, len(c.entries))
	copy(out, c.entries)
	return out
}

// Get looks up a definition by id
func (c *Catalog) Get(id string) (models.Achievement, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Achievement{}, false
	}
	return c.entries[i], true
}

// Len returns the number of definitions
func (c *Catalog) Len() int {
	return len(c.entries)
}

// DefaultCatalog returns the built-in achievement set
func DefaultCatalog() *Catalog {
	return MustCatalog(
		// Reading
		models.Achievement{
			ID: "first_book", Name: "First Steps", Description: "Add your first book",
			Category: models.CategoryReading, Condition: models.BooksRead{Count: 1},
			Points: 10, Rarity: models.RarityCommon,
		},
		models.Achievement{
			ID: "bookworm", Name: "Bookworm", Description: "Have 10 books in your library",
			Category: models.CategoryReading, Condition: models.BooksRead{Count: 10},
			Points: 50, Rarity: models.RarityCommon,
		},
		models.Achievement{
			ID: "bibliophile", Name: "Bibliophile", Description: "Have 50 books in your library",
			Category: models.CategoryReading, Condition: models.BooksRead{Count: 50},
			Points: 200, Rarity: models.RarityRare,
		},
		models.Achievement{
			ID: "weekly_reader", Name: "Weekly Reader", Description: "Finish 3 books in a week",
			Category: models.CategoryReading, Condition: models.BooksInTimeframe{Count: 3, Timeframe: models.TimeframeWeek},
			Points: 75, Rarity: models.RarityRare,
		},
		models.Achievement{
			ID: "speed_reader", Name: "Speed Reader", Description: "Finish 5 books in a month",
			Category: models.CategoryReading, Condition: models.BooksInTimeframe{Count: 5, Timeframe: models.TimeframeMonth},
			Points: 100, Rarity: models.RarityRare,
		},
		models.Achievement{
			ID: "marathon", Name: "Reading Marathon", Description: "Finish 50 books in a year",
			Category: models.CategoryReading, Condition: models.BooksInTimeframe{Count: 50, Timeframe: models.TimeframeYear},
			Points: 500, Rarity: models.RarityEpic,
		},

		// Quality
		models.Achievement{
			ID: "first_rating", Name: "Critic in Training", Description: "Rate your first book",
			Category: models.CategoryQuality, Condition: models.BooksRated{Count: 1},
			Points: 10, Rarity: models.RarityCommon,
		},
		models.Achievement{
			ID: "critic", Name: "Critic", Description: "Rate 25 books",
			Category: models.CategoryQuality, Condition: models.BooksRated{Count: 25},
			Points: 100, Rarity: models.RarityRare,
		},
		models.Achievement{
			ID: "perfectionist", Name: "Perfectionist", Description: "Give a perfect 10 to 5 books",
			Category: models.CategoryQuality, Condition: models.RatingGiven{Rating: 10, Count: 5},
			Points: 75, Rarity: models.RarityRare,
		},
		models.Achievement{
			ID: "tough_crowd", Name: "Tough Crowd", Description: "Give the lowest rating to 3 books",
			Category: models.CategoryQuality, Condition: models.RatingGiven{Rating: 1, Count: 3},
			Points: 50, Rarity: models.RarityRare,
		},
		models.Achievement{
			ID: "first_review", Name: "Voice Heard", Description: "Write your first review",
			Category: models.CategoryQuality, Condition: models.ReviewsWritten{Count: 1},
			Points: 15, Rarity: models.RarityCommon,
		},
		models.Achievement{
			ID: "reviewer", Name: "Prolific Reviewer", Description: "Write 20 reviews",
			Category: models.CategoryQuality, Condition: models.ReviewsWritten{Count: 20},
			Points: 150, Rarity: models.RarityEpic,
		},

		// Social
		models.Achievement{
			ID: "first_follower", Name: "Noticed", Description: "Get your first follower",
			Category: models.CategorySocial, Condition: models.Followers{Count: 1},
			Points: 10, Rarity: models.RarityCommon,
		},
		models.Achievement{
			ID: "influencer", Name: "Influencer", Description: "Reach 100 followers",
			Category: models.CategorySocial, Condition: models.Followers{Count: 100},
			Points: 300, Rarity: models.RarityLegendary,
		},
		models.Achievement{
			ID: "social_butterfly", Name: "Social Butterfly", Description: "Follow 10 readers",
			Category: models.CategorySocial, Condition: models.Following{Count: 10},
			Points: 30, Rarity: models.RarityCommon,
		},

		// Exploration
		models.Achievement{
			ID: "genre_explorer", Name: "Genre Explorer", Description: "Read books from 5 genres",
			Category: models.CategoryExploration, Condition: models.GenresExplored{Count: 5},
			Points: 50, Rarity: models.RarityCommon,
		},
		models.Achievement{
			ID: "genre_master", Name: "Genre Master", Description: "Read books from 10 genres",
			Category: models.CategoryExploration, Condition: models.GenresExplored{Count: 10},
			Points: 150, Rarity: models.RarityEpic,
		},

		// Milestones
		models.Achievement{
			ID: "century", Name: "Centurion", Description: "Have 100 books in your library",
			Category: models.CategoryMilestone, Condition: models.BooksRead{Count: 100},
			Points: 500, Rarity: models.RarityEpic,
		},
		models.Achievement{
			ID: "master_critic", Name: "Master Critic", Description: "Rate 100 books",
			Category: models.CategoryMilestone, Condition: models.BooksRated{Count: 100},
			Points: 400, Rarity: models.RarityEpic,
		},
		models.Achievement{
			ID: "librarian", Name: "Librarian", Description: "Have 500 books in your library",
			Category: models.CategoryMilestone, Condition: models.BooksRead{Count: 500},
			Points: 1000, Rarity: models.RarityLegendary,
		},
	)
}
