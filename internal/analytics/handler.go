package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/proto"
)

// Handler serves the aggregated query statistics.
type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics"),
	}
}

// Stats serves GET /api/v1/analytics. ?top=N trims both query lists to N
// entries; ?mode= keeps only that mode's count in by_mode.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.aggregator.Stats()

	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.respond(w, http.StatusBadRequest, proto.ErrorResponse{
				Error: "top must be a non-negative integer",
				Code:  "invalid_argument",
			})
			return
		}
		stats.TopQueries = stats.TopQueries[:min(n, len(stats.TopQueries))]
		stats.ZeroResultQueries = stats.ZeroResultQueries[:min(n, len(stats.ZeroResultQueries))]
	}
	if mode := r.URL.Query().Get("mode"); mode != "" {
		stats.ByMode = map[string]int64{mode: stats.ByMode[mode]}
	}
	h.respond(w, http.StatusOK, stats)
}

func (h *Handler) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("writing analytics response", "error", err)
	}
}
