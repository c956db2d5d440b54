package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contest_tracker/internal/api"
	"contest_tracker/internal/api/handler"
	"contest_tracker/internal/app/service"
	"contest_tracker/internal/common/security"
	"contest_tracker/internal/domain/model"
	"contest_tracker/internal/domain/repository"
	"contest_tracker/internal/domain/repository/memory"
	"contest_tracker/internal/platform/cache"
	"contest_tracker/internal/platform/config"
	"contest_tracker/internal/platform/database"
	"contest_tracker/internal/platform/logger"

	"go.uber.org/zap"
)

type stores struct {
	users    repository.UserRepository
	contests repository.ContestRepository
	results  repository.ContestResultRepository
	tx       database.TxRunner
	ping     func(ctx context.Context) error
}

func openStores(log *zap.Logger) (stores, func()) {
	cfg := config.AppConfig
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn("Using in-memory store, data is lost on restart")
		m := memory.NewStore()
		return stores{users: m.Users(), contests: m.Contests(), results: m.Results(), tx: m}, func() {}

	case config.StoreDriverPostgres:
		database.Connect()
		if cfg.DBAutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := database.RunMigrations(ctx, database.DB); err != nil {
				log.Fatal("Database migration failed", zap.Error(err))
			}
		}
		db := database.DB
		return stores{
			users:    repository.NewPgUserRepository(db),
			contests: repository.NewPgContestRepository(db),
			results:  repository.NewPgContestResultRepository(db),
			tx:       database.NewSQLTxRunner(db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}),
			ping:     func(ctx context.Context) error { return database.Ping(ctx, db) },
		}, database.Close

	default:
		log.Fatal("Unknown STORE_DRIVER", zap.String("driver", cfg.StoreDriver))
		return stores{}, nil
	}
}

func main() {
	// 1. Load Configuration
	config.Load()
	cfg := config.AppConfig

	zl, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zl.Info("Configuration loaded", zap.String("version", cfg.AppVersion), zap.String("store", cfg.StoreDriver))

	// 2. Initialize JWT
	security.InitJWT()

	// 3. Initialize storage
	st, closeStores := openStores(zl)
	defer closeStores()

	// 4. Initialize Redis
	cache.ConnectRedis()
	defer cache.CloseRedis()
	leaderboardCache := service.NewLeaderboardCache(cache.RDB, cfg.LeaderboardCacheTTL)

	// 5. Initialize Services
	excluded := make([]model.Role, 0, len(cfg.LeaderboardExcludedRoles))
	for _, r := range cfg.LeaderboardExcludedRoles {
		if role := model.Role(r); role.Valid() {
			excluded = append(excluded, role)
		} else {
			zl.Warn("Ignoring unknown role in LEADERBOARD_EXCLUDE_ROLES", zap.String("role", r))
		}
	}

	authService := service.NewAuthService(st.users)
	profileService := service.NewProfileService(st.users, st.contests, st.results, st.tx, leaderboardCache,
		service.ProfileOptions{PrivilegedWinsFloor: cfg.PrivilegedWinsFloor}, zl.Named("profile"))
	leaderboardService := service.NewLeaderboardService(st.users, leaderboardCache, service.LeaderboardOptions{
		DefaultLimit:  cfg.LeaderboardDefaultLimit,
		MaxLimit:      cfg.LeaderboardMaxLimit,
		ExcludedRoles: excluded,
	}, zl.Named("leaderboard"))
	contestService := service.NewContestService(st.contests, st.results, st.tx, zl.Named("contest"))
	adminService := service.NewAdminService(st.users, st.contests, st.results, st.tx, leaderboardCache, zl.Named("admin"))
	statusHandler := handler.NewStatusHandler(st.ping, leaderboardCache, cfg.AppVersion)

	// 6. Initialize Router & HTTP Server
	router := api.NewRouter(authService, profileService, leaderboardService, contestService, adminService, statusHandler, cfg.AdminKey)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 7. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		zl.Info("Server starting", zap.String("port", cfg.APIPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Could not listen", zap.String("port", cfg.APIPort), zap.Error(err))
		}
	}()

	<-stop // Wait for interrupt signal

	zl.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Error("Server shutdown failed", zap.Error(err))
		return
	}
	zl.Info("Server stopped gracefully")
}
