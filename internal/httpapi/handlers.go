package httpapi

import (
	"net/http"

	"github.com/goccy/go-json"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"bookrec/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSimilarUsers(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limit(w, r)
	if !ok {
		return
	}
	similar, err := s.engine.FindSimilarUsers(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "failed to find similar users", err)
		return
	}
	s.respondJSON(w, http.StatusOK, orEmpty(similar))
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limit(w, r)
	if !ok {
		return
	}
	recs, err := s.engine.GetCollaborativeRecommendations(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "failed to build recommendations", err)
		return
	}
	s.respondJSON(w, http.StatusOK, orEmpty(recs))
}

func (s *Server) handleTrendingSimilar(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limit(w, r)
	if !ok {
		return
	}
	books, err := s.engine.GetTrendingAmongSimilarUsers(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "failed to load trending books", err)
		return
	}
	s.respondJSON(w, http.StatusOK, orEmpty(books))
}

// achievementView joins a progress record with its catalog definition
type achievementView struct {
	models.UserAchievement
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Rarity      string `json:"rarity"`
	Points      int    `json:"points"`
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	records, err := s.evaluator.GetUserAchievements(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "failed to load achievements", err)
		return
	}

	views := make([]achievementView, 0, len(records))
	for _, record := range records {
		view := achievementView{UserAchievement: record}
		if a, ok := s.evaluator.Catalog().Get(record.AchievementID); ok {
			view.Name = a.Name
			view.Description = a.Description
			view.Category = string(a.Category)
			view.Rarity = string(a.Rarity)
			view.Points = a.Points
		}
		views = append(views, view)
	}
	s.respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	progress, err := s.evaluator.GetUserProgress(r.Context(), userID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "failed to load progress", err)
		return
	}
	if progress == nil {
		progress = &models.UserProgress{UserID: userID, Level: models.LevelForPoints(0)}
	}
	s.respondJSON(w, http.StatusOK, progress)
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limit(w, r)
	if !ok {
		return
	}
	books, err := s.scorer.GetTrendingBooks(r.Context(), limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "failed to load trending books", err)
		return
	}
	s.respondJSON(w, http.StatusOK, orEmpty(books))
}

func (s *Server) handlePopularByGenre(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limit(w, r)
	if !ok {
		return
	}
	books, err := s.scorer.GetPopularBooksByGenre(r.Context(), r.PathValue("genre"), limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "failed to load popular books", err)
		return
	}
	s.respondJSON(w, http.StatusOK, orEmpty(books))
}

func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var entry models.UserBookEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		s.respondError(w, http.StatusBadRequest, "INVALID_JSON", "request body is not a valid book entry", err)
		return
	}
	entry.UserID = r.PathValue("id")

	if err := s.tracker.AddBook(r.Context(), entry); err != nil {
		s.respondWriteError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"user_id": entry.UserID, "book_id": entry.BookID})
}

type ratingRequest struct {
	Rating int `json:"rating"`
}

func (s *Server) handleRateBook(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "INVALID_JSON", "expected {\"rating\": 1-10}", err)
		return
	}

	if err := s.tracker.RateBook(r.Context(), r.PathValue("id"), r.PathValue("bookID"), req.Rating); err != nil {
		s.respondWriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFinishBook(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.FinishBook(r.Context(), r.PathValue("id"), r.PathValue("bookID")); err != nil {
		s.respondWriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTelegramWebhook acknowledges at once and processes the update in the background
func (s *Server) handleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.logger.Warn("Error decoding webhook update", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.webhooks.Go(func() { s.webhook(update) })
	w.WriteHeader(http.StatusOK)
}

func (s *Server) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit, err := limitParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return 0, false
	}
	return limit, true
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
