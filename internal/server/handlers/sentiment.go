// internal/server/handlers/sentiment.go

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tweetpulse/internal/domain/sentiment"
	"tweetpulse/internal/logging"
)

// MaxListLimit caps the number of records a single list request returns
const MaxListLimit = 100

// ResultReader is the read side of the sentiment store
type ResultReader interface {
	ListRecent(ctx context.Context, limit int) ([]sentiment.Record, error)
	GetResult(ctx context.Context, tweetID string) (*sentiment.Result, error)
}

// SentimentHandler handles sentiment-related HTTP requests
type SentimentHandler struct {
	results     ResultReader
	recentLimit int
	logger      logging.Logger
}

// NewSentimentHandler creates a new sentiment handler
func NewSentimentHandler(results ResultReader, recentLimit int, logger logging.Logger) *SentimentHandler {
	if recentLimit <= 0 {
		recentLimit = 5
	}
	return &SentimentHandler{
		results:     results,
		recentLimit: recentLimit,
		logger:      logger,
	}
}

// ListRecent returns the latest records, newest first
func (h *SentimentHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := h.recentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	records, err := h.results.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list sentiment records")
		respondWithError(w, http.StatusInternalServerError, "Failed to get sentiments")
		return
	}

	respondWithJSON(w, http.StatusOK, records)
}

// GetResult returns one record with its sentence details, entities and key phrases
func (h *SentimentHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	tweetID := chi.URLParam(r, "tweetID")
	if tweetID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing tweet ID")
		return
	}

	result, err := h.results.GetResult(r.Context(), tweetID)
	if err != nil {
		if errors.Is(err, sentiment.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Sentiment not found")
		} else {
			h.logger.WithError(err).WithField("tweet_id", tweetID).Error("Failed to get sentiment result")
			respondWithError(w, http.StatusInternalServerError, "Failed to get sentiment")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
