// Package httpapi exposes recommendations, trending books and achievements over HTTP.
package httpapi

import (
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"bookrec/internal/achievements"
	"bookrec/internal/activity"
	"bookrec/internal/recommend"
	"bookrec/internal/trending"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Server holds the HTTP handlers
type Server struct {
	engine    *recommend.Engine
	scorer    *trending.Scorer
	evaluator *achievements.Evaluator
	tracker   *activity.Tracker
	logger    *zap.Logger

	// webhook receives Telegram updates; nil disables the route
	webhook  func(tgbotapi.Update)
	webhooks sync.WaitGroup
}

// NewServer creates the HTTP API
func NewServer(engine *recommend.Engine, scorer *trending.Scorer, evaluator *achievements.Evaluator, tracker *activity.Tracker, logger *zap.Logger) *Server {
	return &Server{
		engine:    engine,
		scorer:    scorer,
		evaluator: evaluator,
		tracker:   tracker,
		logger:    logger,
	}
}

// HandleTelegramUpdates enables the webhook route
func (s *Server) HandleTelegramUpdates(fn func(tgbotapi.Update)) {
	s.webhook = fn
}

// Wait blocks until every webhook update handed off so far has been processed
func (s *Server) Wait() {
	s.webhooks.Wait()
}

// Routes returns the router
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/users/{id}/similar", s.handleSimilarUsers)
	mux.HandleFunc("GET /api/users/{id}/recommendations", s.handleRecommendations)
	mux.HandleFunc("GET /api/users/{id}/trending-similar", s.handleTrendingSimilar)
	mux.HandleFunc("GET /api/users/{id}/achievements", s.handleAchievements)
	mux.HandleFunc("GET /api/users/{id}/progress", s.handleProgress)
	mux.HandleFunc("POST /api/users/{id}/books", s.handleAddBook)
	mux.HandleFunc("PUT /api/users/{id}/books/{bookID}/rating", s.handleRateBook)
	mux.HandleFunc("POST /api/users/{id}/books/{bookID}/finish", s.handleFinishBook)

	mux.HandleFunc("GET /api/trending", s.handleTrending)
	mux.HandleFunc("GET /api/genres/{genre}/popular", s.handlePopularByGenre)

	if s.webhook != nil {
		mux.HandleFunc("POST /telegram-webhook", s.handleTelegramWebhook)
	}

	return mux
}
