package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/searcher"
	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/proto"
)

// ReloadFunc rebuilds and publishes the index, returning the new build id.
type ReloadFunc func(ctx context.Context) (string, error)

type Handler struct {
	svc    *searcher.Service
	reload ReloadFunc
	logger *slog.Logger
}

// New creates a Handler. reload may be nil, which disables POST /reload.
func New(svc *searcher.Service, reload ReloadFunc) *Handler {
	return &Handler{
		svc:    svc,
		reload: reload,
		logger: slog.Default().With("component", "search-handler"),
	}
}

// Register adds the routes to mux. The admin middlewares wrap only the
// routes that change state (reload, cache invalidation).
func (h *Handler) Register(mux *http.ServeMux, admin ...func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/autocomplete", h.Autocomplete)
	mux.HandleFunc("GET /api/v1/status", h.Status)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.Handle("POST /api/v1/reload", middleware.Chain(http.HandlerFunc(h.Reload), admin...))
	mux.Handle("POST /api/v1/cache/invalidate", middleware.Chain(http.HandlerFunc(h.CacheInvalidate), admin...))
}

// Search serves GET /api/v1/search?q=&mode=&page=&topK=&expandLimit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := proto.SearchRequest{
		Query: q.Get("q"),
		Mode:  q.Get("mode"),
	}
	var err error
	if req.Page, err = intParam(q.Get("page")); err != nil {
		h.writeError(w, r, apperrors.InvalidArgumentf("page: %v", err))
		return
	}
	if req.TopK, err = intParam(q.Get("topK")); err != nil {
		h.writeError(w, r, apperrors.InvalidArgumentf("topK: %v", err))
		return
	}
	if req.ExpandLimit, err = intParam(q.Get("expandLimit")); err != nil {
		h.writeError(w, r, apperrors.InvalidArgumentf("expandLimit: %v", err))
		return
	}

	resp, err := h.svc.Search(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Autocomplete serves GET /api/v1/autocomplete?prefix=&limit=.
func (h *Handler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		h.writeError(w, r, apperrors.InvalidArgumentf("limit: %v", err))
		return
	}
	resp, err := h.svc.Autocomplete(r.Context(), proto.AutocompleteRequest{
		Prefix: q.Get("prefix"),
		Limit:  limit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Status(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.reload == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrIndexUnavailable, http.StatusServiceUnavailable, "reload is not available"))
		return
	}
	buildID, err := h.reload(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, proto.ReloadResponse{
		Success: true,
		BuildID: buildID,
		Message: "index rebuilt",
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	hits, misses, ok := h.svc.CacheStats()
	if !ok {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.svc.CacheStats(); !ok {
		h.writeError(w, r, apperrors.New(apperrors.ErrInternal, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	if err := h.svc.InvalidateCache(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// intParam parses an optional positive integer. Empty means zero, which the
// service replaces with its default.
func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("must be a positive integer, got %q", raw)
	}
	return v, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		err = apperrors.New(apperrors.ErrTimeout, http.StatusGatewayTimeout, "request timed out")
	}
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	h.writeJSON(w, status, proto.ErrorResponse{
		Error: apperrors.Message(err),
		Code:  errorCode(err),
	})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, apperrors.ErrIndexUnavailable):
		return "index_unavailable"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrTimeout):
		return "timeout"
	default:
		return "internal"
	}
}
