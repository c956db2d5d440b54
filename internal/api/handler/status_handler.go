package handler

import (
	"context"
	"net/http"
	"time"

	"contest_tracker/internal/app/service"
	"contest_tracker/internal/common"
	"contest_tracker/internal/platform/logger"

	"go.uber.org/zap"
)

const statusProbeTimeout = 2 * time.Second

// StatusHandler reports the health of the API and its backing stores.
type StatusHandler struct {
	pingDB  func(ctx context.Context) error
	cache   *service.LeaderboardCache
	version string
}

// NewStatusHandler takes a nil pingDB when there is no database to probe.
func NewStatusHandler(pingDB func(ctx context.Context) error, cache *service.LeaderboardCache, version string) *StatusHandler {
	return &StatusHandler{pingDB: pingDB, cache: cache, version: version}
}

type statusResponse struct {
	API       string    `json:"api"`
	Database  string    `json:"database"`
	Cache     string    `json:"cache"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusProbeTimeout)
	defer cancel()

	resp := statusResponse{
		API:       "ok",
		Database:  "ok",
		Cache:     h.cache.Ping(ctx),
		Version:   h.version,
		Timestamp: time.Now().UTC(),
	}
	if h.pingDB != nil {
		if err := h.pingDB(ctx); err != nil {
			logger.L().Warn("database ping failed", zap.Error(err))
			resp.Database = "down"
		}
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}
