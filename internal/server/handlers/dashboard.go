// internal/server/handlers/dashboard.go

package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"tweetpulse/internal/domain/sentiment"
	"tweetpulse/internal/logging"
)

//go:embed templates/dashboard.html
var templates embed.FS

var dashboardTemplate = template.Must(template.ParseFS(templates, "templates/dashboard.html"))

type dashboardView struct {
	Records []sentiment.Record
	Live    bool
}

// DashboardHandler renders the latest results as HTML
type DashboardHandler struct {
	results ResultReader
	limit   int
	live    bool
	logger  logging.Logger
}

// NewDashboardHandler creates a new dashboard handler. live enables the websocket refresh.
func NewDashboardHandler(results ResultReader, limit int, live bool, logger logging.Logger) *DashboardHandler {
	if limit <= 0 {
		limit = 5
	}
	return &DashboardHandler{
		results: results,
		limit:   limit,
		live:    live,
		logger:  logger,
	}
}

// Index renders the most recent records
func (h *DashboardHandler) Index(w http.ResponseWriter, r *http.Request) {
	records, err := h.results.ListRecent(r.Context(), h.limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list sentiment records")
		http.Error(w, "Failed to load results", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, dashboardView{Records: records, Live: h.live}); err != nil {
		h.logger.WithError(err).Error("Failed to render dashboard")
		http.Error(w, "Failed to render dashboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
