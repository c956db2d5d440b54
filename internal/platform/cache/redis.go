package cache

import (
	"context"
	"time"

	"contest_tracker/internal/platform/config"
	"contest_tracker/internal/platform/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var RDB *redis.Client

// ConnectRedis opens the shared client. When Redis is disabled or unreachable
// RDB stays nil and callers run without a cache.
func ConnectRedis() {
	if !config.AppConfig.RedisEnabled {
		logger.L().Info("Redis disabled, leaderboard cache off")
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.L().Warn("Could not connect to Redis, leaderboard cache off", zap.String("addr", config.AppConfig.RedisAddr), zap.Error(err))
		client.Close()
		return
	}
	RDB = client
	logger.L().Info("Connected to Redis", zap.String("addr", config.AppConfig.RedisAddr))
}

func CloseRedis() {
	if RDB != nil {
		RDB.Close()
		logger.L().Info("Redis connection closed")
	}
}
