package analytics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"

	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

// SnapshotLister reads persisted snapshots, newest first.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error)
}

// Handler serves the aggregated stats. snapshots may be nil when no
// snapshot store is configured.
type Handler struct {
	aggregator *Aggregator
	snapshots  SnapshotLister
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator, snapshots SnapshotLister) *Handler {
	return &Handler{
		aggregator: aggregator,
		snapshots:  snapshots,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", h.Snapshots)
}

// Stats handles GET /api/v1/analytics?top=N.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top, ok := positiveParam(r, "top", defaultTop)
	if !ok {
		h.writeErr(w, apperrors.Newf(apperrors.ErrInvalidInput, 0, "top must be a positive integer"))
		return
	}
	h.writeJSON(w, http.StatusOK, h.aggregator.StatsTop(top))
}

// Snapshots handles GET /api/v1/analytics/snapshots?limit=N.
func (h *Handler) Snapshots(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		h.writeErr(w, apperrors.Newf(apperrors.ErrUnavailable, http.StatusNotFound, "snapshot store is not configured"))
		return
	}
	limit, ok := positiveParam(r, "limit", 20)
	if !ok {
		h.writeErr(w, apperrors.Newf(apperrors.ErrInvalidInput, 0, "limit must be a positive integer"))
		return
	}
	snaps, err := h.snapshots.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing snapshots failed", "error", err)
		h.writeErr(w, errors.New("listing snapshots failed"))
		return
	}
	if snaps == nil {
		snaps = []Snapshot{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

func positiveParam(r *http.Request, name string, def int) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), apperrors.Body(err))
}
