package api

import (
	"net/http"
	"time"

	"contest_tracker/internal/api/handler"
	"contest_tracker/internal/api/middleware"
	"contest_tracker/internal/app/service"
	"contest_tracker/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	authService *service.AuthService,
	profileService *service.ProfileService,
	leaderboardService *service.LeaderboardService,
	contestService *service.ContestService,
	adminService *service.AdminService,
	statusHandler *handler.StatusHandler,
	adminKey string,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Verifies "Authorization: Bearer T" when present and puts the token in
	// context; middleware.Authenticator enforces it per route.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	// Public health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	authHandler := handler.NewAuthHandler(authService)
	profileHandler := handler.NewProfileHandler(profileService)
	leaderboardHandler := handler.NewLeaderboardHandler(leaderboardService)
	contestHandler := handler.NewContestHandler(contestService)
	adminHandler := handler.NewAdminHandler(adminService, adminKey)

	routes := func(rt chi.Router) {
		rt.Get("/status", statusHandler.Status)
		rt.Route("/auth", authHandler.RegisterRoutes)
		rt.Route("/profile", profileHandler.RegisterRoutes)
		rt.Route("/leaderboard", leaderboardHandler.RegisterRoutes)
		rt.Route("/contests", contestHandler.RegisterRoutes)
		rt.Route("/admin", adminHandler.RegisterRoutes)
	}

	// API v1 Routes
	r.Route("/api/v1", routes)
	// Unversioned paths kept for existing clients.
	r.Group(routes)

	return r
}
