package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Run states reported by the status endpoint
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// RunStatus describes the latest generate-and-train run.
type RunStatus struct {
	RunID      string     `json:"run_id"`
	State      string     `json:"state"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// GenerateAndTrain starts an ingestion and training run in the background
// @Summary Generate dataset and train models
// @Description Only one run may be active; a second request while running gets 409
// @Tags Admin
// @Produce json
// @Success 202 {object} map[string]string "Accepted"
// @Failure 409 {object} map[string]string "Run already in progress"
// @Failure 501 {object} map[string]string
// @Router /api/v1/generate-and-train [post]
func (h *Handler) GenerateAndTrain(w http.ResponseWriter, r *http.Request) {
	if h.runJob == nil {
		h.errorResponse(w, http.StatusNotImplemented, "generate-and-train is not configured")
		return
	}

	h.runMu.Lock()
	if h.lastRun != nil && h.lastRun.State == RunRunning {
		running := h.lastRun.RunID
		h.runMu.Unlock()
		h.jsonResponse(w, http.StatusConflict, map[string]string{
			"error":  "a run is already in progress",
			"run_id": running,
		})
		return
	}
	status := &RunStatus{RunID: uuid.NewString(), State: RunRunning, StartedAt: time.Now().UTC()}
	h.lastRun = status
	h.runMu.Unlock()

	h.jobs.Add(1)
	go h.execute(status.RunID)

	h.logger.Infow("Generate-and-train run accepted", "runID", status.RunID)
	h.jsonResponse(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"run_id": status.RunID,
	})
}

func (h *Handler) execute(runID string) {
	defer h.jobs.Done()

	err := h.runJob(h.jobCtx, runID)

	h.runMu.Lock()
	defer h.runMu.Unlock()
	now := time.Now().UTC()
	h.lastRun.FinishedAt = &now
	if err != nil {
		h.lastRun.State = RunFailed
		h.lastRun.Error = err.Error()
		h.logger.Errorw("Generate-and-train run failed", "runID", runID, "error", err)
		return
	}
	h.lastRun.State = RunSucceeded
	h.logger.Infow("Generate-and-train run finished", "runID", runID, "duration", now.Sub(h.lastRun.StartedAt))
}

// GenerateAndTrainStatus reports the latest run
// @Summary Latest generate-and-train run
// @Tags Admin
// @Produce json
// @Success 200 {object} RunStatus
// @Failure 404 {object} map[string]string
// @Router /api/v1/generate-and-train/status [get]
func (h *Handler) GenerateAndTrainStatus(w http.ResponseWriter, r *http.Request) {
	h.runMu.Lock()
	var status RunStatus
	found := h.lastRun != nil
	if found {
		status = *h.lastRun
	}
	h.runMu.Unlock()

	if !found {
		h.errorResponse(w, http.StatusNotFound, "no run has been started")
		return
	}
	h.jsonResponse(w, http.StatusOK, status)
}
