// Package gateway exposes the supervisor and watcher over HTTP: health,
// metrics, and the operator-triggered resync endpoint.
package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andr9528/inews-ftp-gateway/internal/model"
	"github.com/andr9528/inews-ftp-gateway/internal/platform/metrics"
)

// Resyncer is the subset of the device supervisor's contract the HTTP
// surface needs. Implemented by *supervisor.Supervisor.
type Resyncer interface {
	ResyncRundown(rundownID model.RundownID)
	Healthy() bool
}

// Handler exposes gateway HTTP endpoints using go-chi.
type Handler struct {
	sup     Resyncer
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler backed by sup. Metrics may be nil to
// disable metric recording (e.g. in tests).
func NewHandler(sup Resyncer, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{sup: sup, log: log, metrics: m}
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if !h.sup.Healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type resyncResponse struct {
	RundownID string `json:"rundownId"`
	Accepted  bool   `json:"accepted"`
}

// Resync handles POST /queues/{queueId}/resync. The path param is in fact
// a rundownId — "queue" in the URL matches the control plane's own naming
// for the parent NRCS queue a rundown belongs to.
func (h *Handler) Resync(w http.ResponseWriter, r *http.Request) {
	rundownID := model.RundownID(chi.URLParam(r, "queueId"))
	if rundownID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.sup.ResyncRundown(rundownID)
	if h.metrics != nil {
		h.metrics.IncResyncRequests()
	}

	h.log.Info("resync requested", slog.String("rundown_id", string(rundownID)))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(resyncResponse{RundownID: string(rundownID), Accepted: true})
}
