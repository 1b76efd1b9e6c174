package bot

import (
	"fmt"
	"strings"

	"bookrec/internal/achievements"
	"bookrec/internal/models"
)

func formatSimilarUsers(similar []models.UserSimilarity) string {
	if len(similar) == 0 {
		return "No similar readers yet. Rate a few more books!"
	}
	var sb strings.Builder
	sb.WriteString("👥 Readers like you:\n")
	for i, s := range similar {
		fmt.Fprintf(&sb, "\n%d. %s: %.0f%% match, %d books in common",
			i+1, s.DisplayName(), s.SimilarityScore*100, s.CommonBooks)
	}
	return sb.String()
}

func formatRecommendations(recs []models.CollaborativeRecommendation) string {
	if len(recs) == 0 {
		return "No recommendations yet. Add and rate more books to find readers like you."
	}
	var sb strings.Builder
	sb.WriteString("📚 Recommended for you:\n")
	for i, r := range recs {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, bookLabel(r.Book))
		fmt.Fprintf(&sb, "\n   %s (avg %.1f)", r.Reason, r.AverageRating)
	}
	return sb.String()
}

func formatTrendingSimilar(books []models.TrendingBook) string {
	if len(books) == 0 {
		return "Similar readers have not picked up anything new recently."
	}
	var sb strings.Builder
	sb.WriteString("📈 Trending among readers like you:\n")
	for i, t := range books {
		fmt.Fprintf(&sb, "\n%d. %s: %d readers", i+1, bookLabel(t.Book), t.SimilarReaders)
		if t.AverageRating > 0 {
			fmt.Fprintf(&sb, ", avg %.1f", t.AverageRating)
		}
	}
	return sb.String()
}

func formatPopularity(title string, books []models.BookPopularity) string {
	if len(books) == 0 {
		return title + ": nothing here yet."
	}
	var sb strings.Builder
	sb.WriteString(title + ":\n")
	for i, p := range books {
		book := models.Book{BookID: p.BookID, Title: p.Title, Author: p.Author}
		fmt.Fprintf(&sb, "\n%d. %s: score %.1f, %d readers", i+1, bookLabel(book), p.TrendingScore, p.TotalUsers)
		if p.TotalRatings > 0 {
			fmt.Fprintf(&sb, ", avg %.1f", p.AverageRating)
		}
	}
	return sb.String()
}

// formatAchievements lists completed achievements first, then those in progress
func formatAchievements(catalog *achievements.Catalog, records []models.UserAchievement) string {
	if len(records) == 0 {
		return "No achievements yet. Add your first book with /add!"
	}

	var done, open []string
	for _, r := range records {
		name := r.AchievementID
		points := 0
		if a, ok := catalog.Get(r.AchievementID); ok {
			name = a.Name
			points = a.Points
		}
		if r.IsCompleted {
			done = append(done, fmt.Sprintf("✅ %s (+%d)", name, points))
		} else {
			open = append(open, fmt.Sprintf("⏳ %s: %d/%d", name, r.Progress, r.MaxProgress))
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🏆 Achievements (%d/%d completed)\n", len(done), catalog.Len())
	for _, line := range done {
		sb.WriteString("\n" + line)
	}
	for _, line := range open {
		sb.WriteString("\n" + line)
	}
	return sb.String()
}

func formatProgress(progress *models.UserProgress) string {
	if progress == nil {
		return "Level 1 with 0 points. Complete achievements to level up!"
	}
	return fmt.Sprintf("🎯 Level %d\nPoints: %d\nAchievements completed: %d",
		progress.Level, progress.TotalPoints, progress.CompletedAchievements)
}

func bookLabel(book models.Book) string {
	label := book.Title
	if label == "" {
		label = book.BookID
	}
	if book.Author != "" {
		label += " by " + book.Author
	}
	return label
}
