// Package server exposes the search service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/japaniel/kotoba/pkg/ctxutil"
	"github.com/japaniel/kotoba/pkg/search"
	"github.com/japaniel/kotoba/pkg/tags"
)

// Searcher answers dictionary queries.
type Searcher interface {
	Search(ctx context.Context, rawQuery, mode string) (*search.Response, error)
}

// TagLister lists every known tag.
type TagLister interface {
	All() []tags.Tag
}

// Handler serves the JSON API.
type Handler struct {
	log      *slog.Logger
	searcher Searcher
	tags     TagLister
	ready    func() bool
	version  string
}

// NewHandler creates a Handler. ready reports whether the dictionary has
// finished loading; nil means always ready.
func NewHandler(logger *slog.Logger, searcher Searcher, tagList TagLister, ready func() bool, version string) *Handler {
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Handler{
		log:      logger.With("component", "http"),
		searcher: searcher,
		tags:     tagList,
		ready:    ready,
		version:  version,
	}
}

// Routes registers every endpoint on mux. metrics may be nil.
func (h *Handler) Routes(mux *http.ServeMux, metricsPath string, metrics http.Handler) {
	mux.HandleFunc("GET /search", h.Search)
	mux.HandleFunc("GET /tags", h.Tags)
	mux.HandleFunc("GET /health", h.Live)
	mux.HandleFunc("GET /ready", h.Ready)
	if metrics != nil {
		mux.Handle("GET "+metricsPath, metrics)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// Search handles GET /search?query=&mode=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := h.searcher.Search(r.Context(), q.Get("query"), q.Get("mode"))
	if err != nil {
		var ve *search.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Field+": "+ve.Message)
			return
		}
		h.log.ErrorContext(r.Context(), "search failed",
			slog.String("query", q.Get("query")),
			slog.String("mode", q.Get("mode")),
			slog.String("request_id", ctxutil.RequestIDFromCtx(r.Context())),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type tagsResponse struct {
	Total int        `json:"total"`
	Tags  []tags.Tag `json:"tags"`
}

// Tags handles GET /tags.
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	all := h.tags.All()
	if all == nil {
		all = []tags.Tag{}
	}
	writeJSON(w, http.StatusOK, tagsResponse{Total: len(all), Tags: all})
}

// HealthResponse is the JSON response for /health and /ready.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Live is the liveness probe. Always returns 200.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Version:   h.version,
		Timestamp: time.Now(),
	})
}

// Ready returns 503 until the dictionary is loaded.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.ready() {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "loading",
			Timestamp: time.Now(),
		})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
