package handlers

import (
	"net/http"
)

// PlayerNames lists every athlete in the feature store
// @Summary Athlete names
// @Tags Listings
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/player-names [get]
func (h *Handler) PlayerNames(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.ListAthletes(r.Context())
	if err != nil {
		h.serviceError(w, "Failed to list athletes", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	h.jsonResponse(w, http.StatusOK, map[string][]string{"players": names})
}

// TeamNames lists every team appearing in a matchup
// @Summary Team names
// @Tags Listings
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/team-names [get]
func (h *Handler) TeamNames(w http.ResponseWriter, r *http.Request) {
	teams, err := h.store.ListTeams(r.Context())
	if err != nil {
		h.serviceError(w, "Failed to list teams", err)
		return
	}
	if teams == nil {
		teams = []string{}
	}
	h.jsonResponse(w, http.StatusOK, map[string][]string{"teams": teams})
}
