package database

import (
	"context"
	"database/sql"
	"time"

	"contest_tracker/internal/platform/config"
	"contest_tracker/internal/platform/logger"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"go.uber.org/zap"
)

var DB *sql.DB

func Connect() {
	var err error
	DB, err = sql.Open("pgx", config.AppConfig.DBConnStr)
	if err != nil {
		logger.L().Fatal("Error opening database", zap.Error(err))
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = DB.PingContext(ctx); err != nil {
		logger.L().Fatal("Error connecting to database", zap.Error(err))
	}

	logger.L().Info("Connected to PostgreSQL", zap.String("host", config.AppConfig.DBHost), zap.String("db", config.AppConfig.DBName))
}

func Close() {
	if DB != nil {
		DB.Close()
		logger.L().Info("Database connection closed")
	}
}
