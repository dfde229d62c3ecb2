package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hoopstats/propcast/internal/models"
)

// Predict returns how often an athlete met a stat threshold in recent games and against an opponent
// @Summary Predict likelihood
// @Tags Predictions
// @Produce json
// @Param category path string true "Category (points, rebounds, assists, blocks, steals, threes)"
// @Param athlete path string true "Athlete full name"
// @Param opponent path string true "Opponent team abbreviation"
// @Param threshold query number false "Stat threshold; omitted or 0 uses the dynamic threshold"
// @Success 200 {object} models.PredictionResult
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string "Insufficient data"
// @Failure 503 {object} map[string]string "Model unavailable"
// @Router /api/v1/predict/{category}/{athlete}/{opponent} [get]
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	req, err := h.predictRequest(r, r.URL.Query().Get("threshold"))
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	h.predict(w, r, req)
}

// PredictLegacy serves the per-category URL shape with the threshold in the path
// @Summary Predict likelihood (path threshold)
// @Tags Predictions
// @Produce json
// @Param category path string true "Category"
// @Param athlete path string true "Athlete full name"
// @Param opponent path string true "Opponent team abbreviation"
// @Param threshold path number true "Stat threshold; 0 uses the dynamic threshold"
// @Success 200 {object} models.PredictionResult
// @Router /api/v1/predict-{category}/{athlete}/{opponent}/{threshold} [get]
func (h *Handler) PredictLegacy(w http.ResponseWriter, r *http.Request) {
	req, err := h.predictRequest(r, pathParam(r, "threshold"))
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	h.predict(w, r, req)
}

func (h *Handler) predict(w http.ResponseWriter, r *http.Request, req models.PredictRequest) {
	res, err := h.prediction.Predict(r.Context(), req)
	if err != nil {
		h.serviceError(w, "Failed to compute prediction", err,
			"athlete", req.Athlete, "opponent", req.Opponent, "category", req.Category)
		return
	}
	h.jsonResponse(w, http.StatusOK, res)
}

// predictRequest reads category, athlete and opponent from the path.
func (h *Handler) predictRequest(r *http.Request, rawThreshold string) (models.PredictRequest, error) {
	category, err := models.ParseCategory(pathParam(r, "category"))
	if err != nil {
		return models.PredictRequest{}, err
	}
	req := models.PredictRequest{
		Athlete:  pathParam(r, "athlete"),
		Opponent: pathParam(r, "opponent"),
		Category: category,
	}

	if t := strings.TrimSpace(rawThreshold); t != "" {
		v, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return req, fmt.Errorf("%w: threshold %q is not a number", models.ErrValidation, rawThreshold)
		}
		req.Threshold = &v
	}

	if err := h.validator.Struct(req); err != nil {
		return req, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	return req, nil
}

// pathParam returns the unescaped, trimmed URL parameter.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		raw = v
	}
	return strings.TrimSpace(raw)
}
