package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"contest_tracker/internal/app/seed"
	"contest_tracker/internal/domain/repository"
	"contest_tracker/internal/platform/config"
	"contest_tracker/internal/platform/database"
	"contest_tracker/internal/platform/logger"

	"go.uber.org/zap"
)

func main() {
	file := flag.String("file", "", "YAML fixture to load (defaults to the built-in demo data)")
	flag.Parse()

	config.Load()
	zl, err := logger.Init(config.AppConfig.LogLevel, config.AppConfig.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	raw := seed.DefaultFixture
	if *file != "" {
		if raw, err = os.ReadFile(*file); err != nil {
			zl.Fatal("Cannot read fixture", zap.String("file", *file), zap.Error(err))
		}
	}
	fixture, err := seed.Parse(raw)
	if err != nil {
		zl.Fatal("Invalid fixture", zap.Error(err))
	}

	database.Connect()
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := database.RunMigrations(ctx, database.DB); err != nil {
		zl.Fatal("Database migration failed", zap.Error(err))
	}

	res, err := seed.Apply(ctx, fixture,
		repository.NewPgUserRepository(database.DB),
		repository.NewPgContestRepository(database.DB),
	)
	if err != nil {
		zl.Fatal("Seeding failed", zap.Error(err))
	}
	zl.Info("Seeding finished",
		zap.Int("contests_created", res.ContestsCreated),
		zap.Int("users_created", res.UsersCreated),
		zap.Int("skipped", res.Skipped),
	)
}
