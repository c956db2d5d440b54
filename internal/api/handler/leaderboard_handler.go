package handler

import (
	"net/http"
	"strconv"
	"strings"

	"contest_tracker/internal/app/service"
	"contest_tracker/internal/common"
	"contest_tracker/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type LeaderboardHandler struct {
	leaderboardService *service.LeaderboardService
}

func NewLeaderboardHandler(ls *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardService: ls}
}

type leaderboardResponse struct {
	Players []model.LeaderboardEntry `json:"players"`
}

func (h *LeaderboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.getTopPlayers) // GET /leaderboard?limit=3&exclude=admin,organizer
}

func (h *LeaderboardHandler) getTopPlayers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Missing or non-numeric limits fall back to the default.
	limit, err := strconv.Atoi(strings.TrimSpace(q.Get("limit")))
	if err != nil {
		limit = h.leaderboardService.DefaultLimit()
	}

	exclude := h.leaderboardService.DefaultExcludedRoles()
	if q.Has("exclude") {
		exclude = parseRoles(q.Get("exclude"))
	}

	players, err := h.leaderboardService.GetTopPlayers(r.Context(), limit, exclude)
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, leaderboardResponse{Players: players})
}

// parseRoles reads a comma-separated role list; unknown names are dropped.
func parseRoles(raw string) []model.Role {
	roles := []model.Role{}
	for _, part := range strings.Split(raw, ",") {
		role := model.Role(strings.ToLower(strings.TrimSpace(part)))
		if role.Valid() {
			roles = append(roles, role)
		}
	}
	return roles
}
