package handlers

import (
	"net/http"
)

// RecommendSimilar ranks athletes by distance between mean points, rebounds and assists
// @Summary Similar athletes
// @Tags Recommendations
// @Produce json
// @Param athlete path string true "Athlete full name"
// @Success 200 {object} models.RecommendationResult
// @Failure 404 {object} map[string]string
// @Router /api/v1/recommend/similar/{athlete} [get]
func (h *Handler) RecommendSimilar(w http.ResponseWriter, r *http.Request) {
	athlete := pathParam(r, "athlete")
	if athlete == "" {
		h.errorResponse(w, http.StatusBadRequest, "athlete is required")
		return
	}

	res, err := h.recommendation.BySimilarity(r.Context(), athlete)
	if err != nil {
		h.serviceError(w, "Failed to rank similar athletes", err, "athlete", athlete)
		return
	}
	h.jsonResponse(w, http.StatusOK, res)
}

// RecommendTeammates ranks the athlete's teammates by likelihood for the same query
// @Summary Teammates by likelihood
// @Tags Recommendations
// @Produce json
// @Param category path string true "Category"
// @Param athlete path string true "Athlete full name"
// @Param opponent path string true "Opponent team abbreviation"
// @Param threshold query number false "Stat threshold; omitted or 0 uses each teammate's dynamic threshold"
// @Success 200 {object} models.RecommendationResult
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 503 {object} map[string]string "Model unavailable"
// @Router /api/v1/recommend/teammates/{category}/{athlete}/{opponent} [get]
func (h *Handler) RecommendTeammates(w http.ResponseWriter, r *http.Request) {
	req, err := h.predictRequest(r, r.URL.Query().Get("threshold"))
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.recommendation.ByPrediction(r.Context(), req)
	if err != nil {
		h.serviceError(w, "Failed to rank teammates", err,
			"athlete", req.Athlete, "opponent", req.Opponent, "category", req.Category)
		return
	}
	h.jsonResponse(w, http.StatusOK, res)
}
