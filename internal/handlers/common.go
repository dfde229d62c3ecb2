package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/hoopstats/propcast/internal/models"
)

// readyTimeout bounds each dependency ping
const readyTimeout = 3 * time.Second

// Health check endpoint
// @Summary Liveness probe
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// Ready check endpoint. Dependencies are pinged concurrently.
// @Summary Readiness probe
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /ready [get]
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	var mu sync.Mutex
	checks := make(map[string]bool, len(h.checks))

	var g errgroup.Group
	for name, p := range h.checks {
		name, p := name, p
		g.Go(func() error {
			err := p.Ping(ctx)
			if err != nil {
				h.logger.Warnw("Readiness check failed", "dependency", name, "error", err)
			}
			mu.Lock()
			checks[name] = err == nil
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	allHealthy := true
	for _, ok := range checks {
		if !ok {
			allHealthy = false
			break
		}
	}

	status := http.StatusOK
	if !allHealthy {
		status = http.StatusServiceUnavailable
	}
	h.jsonResponse(w, status, map[string]interface{}{
		"ready":  allHealthy,
		"checks": checks,
	})
}

// requestLogger logs one line per request
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Infow("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"requestID", middleware.GetReqID(r.Context()),
		)
	})
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrSourceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// serviceError logs and writes err. Internal errors are not echoed to the caller.
func (h *Handler) serviceError(w http.ResponseWriter, msg string, err error, keysAndValues ...interface{}) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Errorw(msg, append(keysAndValues, "error", err)...)
		h.errorResponse(w, status, msg)
		return
	}
	h.logger.Warnw(msg, append(keysAndValues, "error", err, "status", status)...)
	h.errorResponse(w, status, err.Error())
}

func (h *Handler) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) errorResponse(w http.ResponseWriter, status int, message string) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}
