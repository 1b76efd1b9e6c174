// Package recommend finds readers with similar taste and turns their libraries
// into book recommendations.
//
// All read failures degrade the result instead of failing the request: a candidate
// whose collection cannot be read is skipped, a requester whose collection cannot
// be read gets an empty result. Only context cancellation is returned as an error.
package recommend

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bookrec/internal/metrics"
	"bookrec/internal/models"
	"bookrec/internal/storage"
)

// Engine serves similarity and recommendation queries against a Storage.
type Engine struct {
	db     storage.Storage
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates a recommendation engine. Zero config fields take defaults.
func NewEngine(db storage.Storage, cfg Config, logger *zap.Logger) *Engine {
	return &Engine{
		db:     db,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// FindSimilarUsers returns up to limit users ranked by similarity to userID.
func (e *Engine) FindSimilarUsers(ctx context.Context, userID string, limit int) ([]models.UserSimilarity, error) {
	_, neighbours, err := e.neighbours(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	result := make([]models.UserSimilarity, len(neighbours))
	for i, n := range neighbours {
		result[i] = n.UserSimilarity
	}
	return result, nil
}

// GetCollaborativeRecommendations returns up to limit books userID does not own,
// scored from the libraries of the most similar users.
func (e *Engine) GetCollaborativeRecommendations(ctx context.Context, userID string, limit int) ([]models.CollaborativeRecommendation, error) {
	owned, neighbours, err := e.neighbours(ctx, userID, e.cfg.NeighbourLimit)
	if err != nil {
		return nil, err
	}
	if len(neighbours) == 0 {
		return []models.CollaborativeRecommendation{}, nil
	}

	recs := BuildRecommendations(owned, neighbours, limit)
	metrics.RecommendationsServed.WithLabelValues("collaborative").Add(float64(len(recs)))

	e.logger.Debug("Built collaborative recommendations",
		zap.String("user_id", userID),
		zap.Int("neighbours", len(neighbours)),
		zap.Int("recommendations", len(recs)),
	)
	return recs, nil
}

// GetTrendingAmongSimilarUsers returns books recently added by similar users.
func (e *Engine) GetTrendingAmongSimilarUsers(ctx context.Context, userID string, limit int) ([]models.TrendingBook, error) {
	owned, neighbours, err := e.neighbours(ctx, userID, e.cfg.NeighbourLimit)
	if err != nil {
		return nil, err
	}
	if len(neighbours) == 0 {
		return []models.TrendingBook{}, nil
	}

	since := e.now().Add(-e.cfg.TrendingWindow)
	books := BuildTrendingAmongSimilar(owned, neighbours, since, limit)
	metrics.RecommendationsServed.WithLabelValues("trending_similar").Add(float64(len(books)))
	return books, nil
}

// neighbours loads the requester's collection and ranks candidates against it.
func (e *Engine) neighbours(ctx context.Context, userID string, limit int) ([]models.UserBookEntry, []Neighbour, error) {
	timer := time.Now()
	defer func() {
		metrics.SimilarityDuration.Observe(time.Since(timer).Seconds())
	}()

	owned, err := e.db.GetCollection(ctx, userID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		e.logger.Warn("Failed to load requester collection",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, nil, nil
	}
	if len(owned) == 0 {
		return owned, nil, nil
	}

	candidates, err := e.loadCandidates(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	var neighbours []Neighbour
	for _, c := range candidates {
		sim, ok := ComputeSimilarity(owned, c.books)
		if !ok {
			continue
		}
		neighbours = append(neighbours, Neighbour{
			UserSimilarity: models.UserSimilarity{
				UserID:                  c.profile.UserID,
				Username:                c.profile.Username,
				Email:                   c.profile.Email,
				SimilarityScore:         sim.Score,
				CommonBooks:             sim.CommonBooks,
				AverageRatingDifference: sim.AverageRatingDifference,
			},
			Books: c.books,
		})
	}

	// Stable so that equal scores keep scan order
	sort.SliceStable(neighbours, func(i, j int) bool {
		return neighbours[i].SimilarityScore > neighbours[j].SimilarityScore
	})

	if limit > 0 && len(neighbours) > limit {
		neighbours = neighbours[:limit]
	}

	e.logger.Debug("Computed similar users",
		zap.String("user_id", userID),
		zap.Int("candidates", len(candidates)),
		zap.Int("similar", len(neighbours)),
	)
	return owned, neighbours, nil
}

type candidateLibrary struct {
	profile models.UserProfile
	books   []models.UserBookEntry
}

// loadCandidates pages through users up to MaxCandidates and reads their
// collections concurrently. The result keeps page order.
func (e *Engine) loadCandidates(ctx context.Context, requesterID string) ([]candidateLibrary, error) {
	var profiles []models.UserProfile
	after := ""
	for len(profiles) < e.cfg.MaxCandidates {
		pageSize := min(e.cfg.PageSize, e.cfg.MaxCandidates-len(profiles))
		page, err := e.db.ListUsers(ctx, after, pageSize)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn("Failed to list candidate users, scoring partial pool",
				zap.String("after", after),
				zap.Error(err),
			)
			break
		}
		if len(page) == 0 {
			break
		}
		after = page[len(page)-1].UserID

		for _, p := range page {
			if p.UserID != requesterID {
				profiles = append(profiles, p)
			}
		}
		if len(page) < pageSize {
			break
		}
	}
	if len(profiles) > e.cfg.MaxCandidates {
		profiles = profiles[:e.cfg.MaxCandidates]
	}

	libraries := make([]candidateLibrary, len(profiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.FetchWorkers)

	for i, p := range profiles {
		g.Go(func() error {
			books, err := e.db.GetCollection(gctx, p.UserID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				metrics.CandidateReadErrors.Inc()
				e.logger.Warn("Skipping candidate with unreadable collection",
					zap.String("candidate_id", p.UserID),
					zap.Error(err),
				)
				books = nil
			}
			libraries[i] = candidateLibrary{profile: p, books: books}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	metrics.CandidatesScanned.Add(float64(len(libraries)))
	return libraries, nil
}
