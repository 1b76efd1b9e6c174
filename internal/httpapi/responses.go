package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"bookrec/internal/activity"
	"bookrec/internal/storage"
)

// response is the envelope of every API reply
type response struct {
	Status    string      `json:"status"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
	Error     *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondJSON sends a success envelope
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	s.write(w, status, &response{Status: "success", Data: data, Timestamp: time.Now().UTC()})
}

// respondError sends an error envelope, logging server side failures
func (s *Server) respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil && status >= http.StatusInternalServerError {
		s.logger.Error("API error", zap.String("code", code), zap.Error(err))
	}
	s.write(w, status, &response{
		Status:    "error",
		Timestamp: time.Now().UTC(),
		Error:     &apiError{Code: code, Message: message},
	})
}

func (s *Server) write(w http.ResponseWriter, status int, body *response) {
	data, err := json.Marshal(body)
	if err != nil {
		s.logger.Error("Failed to marshal JSON response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("Failed to write JSON response", zap.Error(err))
	}
}

// respondWriteError maps tracker errors onto status codes
func (s *Server) respondWriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, activity.ErrInvalidEntry), errors.Is(err, activity.ErrInvalidRating):
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), err)
	case errors.Is(err, activity.ErrAlreadyAdded):
		s.respondError(w, http.StatusConflict, "CONFLICT", err.Error(), err)
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), err)
	default:
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to record activity", err)
	}
}

// limitParam reads ?limit=, defaulting to 10 and capped at 100
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, nil
}
