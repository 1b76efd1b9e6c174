package recommend

import (
	"math"

	"bookrec/internal/models"
)

const (
	// MinCommonBooks is the hard floor of shared books for a candidate to be scored.
	MinCommonBooks = 3

	overlapWeight = 0.4
	ratingWeight  = 0.4
	genreWeight   = 0.2

	// neutralRatingCompatibility is used when no common book was rated by both users.
	neutralRatingCompatibility = 0.5
)

// Similarity is the outcome of comparing a requester with one candidate.
type Similarity struct {
	Score                   float64
	CommonBooks             int
	AverageRatingDifference float64
	BookOverlap             float64
	RatingCompatibility     float64
	GenreJaccard            float64
}

// ComputeSimilarity scores candidate against requester. The second result is false
// when the candidate is excluded: an empty collection or fewer than MinCommonBooks
// shared books.
//
//	score = 0.4*overlap + 0.4*ratingCompatibility + 0.2*genreJaccard
func ComputeSimilarity(requester, candidate []models.UserBookEntry) (Similarity, bool) {
	if len(requester) == 0 || len(candidate) == 0 {
		return Similarity{}, false
	}

	own := indexByBook(requester)
	theirs := indexByBook(candidate)

	var common, rated int
	var diffSum float64
	for bookID, mine := range own {
		other, ok := theirs[bookID]
		if !ok {
			continue
		}
		common++
		if mine.IsRated() && other.IsRated() {
			rated++
			diffSum += math.Abs(float64(mine.Rating - other.Rating))
		}
	}

	if common < MinCommonBooks {
		return Similarity{}, false
	}

	sim := Similarity{CommonBooks: common}

	if rated > 0 {
		sim.AverageRatingDifference = diffSum / float64(rated)
		sim.RatingCompatibility = math.Max(0, 1-sim.AverageRatingDifference/10)
	} else {
		sim.RatingCompatibility = neutralRatingCompatibility
	}

	sim.GenreJaccard = jaccard(genreSet(requester), genreSet(candidate))
	sim.BookOverlap = float64(common) / float64(max(len(own), len(theirs)))

	sim.Score = overlapWeight*sim.BookOverlap +
		ratingWeight*sim.RatingCompatibility +
		genreWeight*sim.GenreJaccard

	return sim, true
}

// indexByBook keys entries by book id. Later duplicates win.
func indexByBook(entries []models.UserBookEntry) map[string]models.UserBookEntry {
	index := make(map[string]models.UserBookEntry, len(entries))
	for _, e := range entries {
		index[e.BookID] = e
	}
	return index
}

func genreSet(entries []models.UserBookEntry) map[string]bool {
	genres := make(map[string]bool)
	for _, e := range entries {
		if e.Genre != "" {
			genres[e.Genre] = true
		}
	}
	return genres
}

// jaccard returns |a ∩ b| / |a ∪ b|, or 0 for an empty union.
func jaccard(a, b map[string]bool) float64 {
	intersection := 0
	union := make(map[string]struct{}, len(a)+len(b))

	for item := range a {
		union[item] = struct{}{}
		if b[item] {
			intersection++
		}
	}
	for item := range b {
		union[item] = struct{}{}
	}

	if len(union) == 0 {
		return 0
	}
	return float64(intersection) / float64(len(union))
}
