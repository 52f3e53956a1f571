package indexer

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/catalog"
	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

// BuildLister is implemented by *catalog.Catalog.
type BuildLister interface {
	List(ctx context.Context, limit int) ([]catalog.Build, error)
}

// Handler exposes the engine's state over HTTP.
type Handler struct {
	engine *Engine
	builds BuildLister
	logger *slog.Logger
}

// NewHandler creates a Handler. builds may be nil when no catalog is
// configured.
func NewHandler(engine *Engine, builds BuildLister) *Handler {
	return &Handler{
		engine: engine,
		builds: builds,
		logger: slog.Default().With("component", "indexer-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/index/build", h.Build)
	mux.HandleFunc("GET /api/v1/index/status", h.Status)
	mux.HandleFunc("GET /api/v1/builds", h.Builds)
}

// Build schedules a rebuild and returns immediately.
func (h *Handler) Build(w http.ResponseWriter, r *http.Request) {
	h.engine.TriggerRebuild()
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

type statusResponse struct {
	Generation string `json:"generation"`
	Documents  int    `json:"documents"`
	Terms      int    `json:"terms"`
	TitleTerms int    `json:"title_terms"`
	SizeBytes  int64  `json:"size_bytes"`
	Checksum   uint32 `json:"checksum"`
	Path       string `json:"path"`
	LoadedAt   string `json:"loaded_at"`

	// Dependencies maps catalog and kafka to their circuit state.
	Dependencies map[string]string `json:"dependencies"`
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	gen := h.engine.CurrentGeneration()
	if gen == nil {
		h.writeErr(w, apperrors.Newf(apperrors.ErrIndexNotLoaded, 0, "no generation built yet"))
		return
	}
	stats := gen.Index.Stats()
	h.writeJSON(w, http.StatusOK, statusResponse{
		Generation: gen.ID,
		Documents:  stats.Documents,
		Terms:      stats.Terms,
		TitleTerms: stats.TitleTerms,
		SizeBytes:  gen.Manifest.Size,
		Checksum:   gen.Manifest.Checksum,
		Path:       gen.Manifest.Path,
		LoadedAt:   gen.LoadedAt.UTC().Format("2006-01-02T15:04:05Z"),

		Dependencies: h.engine.Dependencies(),
	})
}

func (h *Handler) Builds(w http.ResponseWriter, r *http.Request) {
	if h.builds == nil {
		h.writeErr(w, apperrors.Newf(apperrors.ErrUnavailable, http.StatusNotFound, "build catalog not configured"))
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.writeErr(w, apperrors.Newf(apperrors.ErrInvalidInput, 0, "limit must be a positive integer"))
			return
		}
		limit = n
	}
	builds, err := h.builds.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing builds failed", "error", err)
		h.writeErr(w, errors.New("listing builds failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"builds": builds, "count": len(builds)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), apperrors.Body(err))
}
