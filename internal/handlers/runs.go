package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"
	"go.uber.org/zap"

	"github.com/shrimpsizemoose/attemptlog/internal/app"
	"github.com/shrimpsizemoose/attemptlog/internal/metrics"
	"github.com/shrimpsizemoose/attemptlog/internal/models"
)

type StatusReader interface {
	Enabled() bool
	LastRun(ctx context.Context) (*app.RunStatus, error)
	History(ctx context.Context, log *zap.SugaredLogger) ([]models.RunSummary, error)
}

// RunHandler exposes the recorded run status over HTTP.
type RunHandler struct {
	status StatusReader
}

func NewRunHandler(status StatusReader) *RunHandler {
	return &RunHandler{
		status: status,
	}
}

// Register mounts the handlers on mux.
func (h *RunHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/runs/last", h.HandleLastRun)
	mux.HandleFunc("GET /api/v1/runs", h.HandleHistory)
}

func observe(r *http.Request, start time.Time, status int) {
	metrics.APIRequestDuration.WithLabelValues(
		r.URL.Path,
		r.Method,
		strconv.Itoa(status),
	).Observe(time.Since(start).Seconds())
}

func (h *RunHandler) HandleLastRun(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() { observe(r, start, status) }()

	if !h.status.Enabled() {
		status = http.StatusNotFound
		http.Error(w, "Run status recording is disabled", status)
		return
	}

	last, err := h.status.LastRun(r.Context())
	if err != nil {
		logger.Debug.Printf("No last run: %v", err)
		status = http.StatusNotFound
		http.Error(w, "No run recorded yet", status)
		return
	}

	writeJSON(w, map[string]interface{}{
		"window_start": last.WindowStart,
		"window_end":   last.WindowEnd,
		"finished":     last.Finished,
		"fetched":      last.Fetched,
		"inserted":     last.Inserted,
		"skipped":      last.Skipped,
		"ok":           last.OK,
	})
}

func (h *RunHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() { observe(r, start, status) }()

	if !h.status.Enabled() {
		status = http.StatusNotFound
		http.Error(w, "Run status recording is disabled", status)
		return
	}

	runs, err := h.status.History(r.Context(), nil)
	if err != nil {
		logger.Error.Printf("ERROR: %v", err)
		status = http.StatusInternalServerError
		http.Error(w, "Failed to fetch run history", status)
		return
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			status = http.StatusBadRequest
			http.Error(w, "Invalid limit", status)
			return
		}
		if n < len(runs) {
			runs = runs[:n]
		}
	}

	writeJSON(w, map[string]interface{}{
		"runs": runs,
	})
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Debug.Printf("Error encoding response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
