package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"contest_tracker/internal/api/middleware"
	"contest_tracker/internal/app/service"
	"contest_tracker/internal/common"

	"github.com/go-chi/chi/v5"
)

const defaultAdminUserLimit = 50

type AdminHandler struct {
	adminService *service.AdminService
	adminKey     string
}

func NewAdminHandler(as *service.AdminService, adminKey string) *AdminHandler {
	return &AdminHandler{adminService: as, adminKey: adminKey}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.RequireAdminKey(h.adminKey))
	r.Get("/summary", h.summary)
	r.Get("/users", h.listUsers)
	r.Post("/assign-role", h.assignRole)
	r.Post("/award-win", h.awardWin)
}

func (h *AdminHandler) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.adminService.GetSummary(r.Context())
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, summary)
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultAdminUserLimit
	}
	users, err := h.adminService.ListUsers(r.Context(), limit)
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) assignRole(w http.ResponseWriter, r *http.Request) {
	var req service.AssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	user, err := h.adminService.AssignRole(r.Context(), req)
	if err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) awardWin(w http.ResponseWriter, r *http.Request) {
	var req service.AwardWinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if err := h.adminService.AwardWin(r.Context(), req); err != nil {
		common.RespondWithAppError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
