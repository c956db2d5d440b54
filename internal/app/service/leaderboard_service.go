package service

import (
	"context"

	"contest_tracker/internal/common"
	"contest_tracker/internal/domain/model"
	"contest_tracker/internal/domain/repository"
	"contest_tracker/internal/platform/logger"

	"go.uber.org/zap"
)

type LeaderboardOptions struct {
	DefaultLimit  int
	MaxLimit      int
	ExcludedRoles []model.Role
}

type LeaderboardService struct {
	userRepo repository.UserRepository
	cache    *LeaderboardCache
	opts     LeaderboardOptions
	log      *zap.Logger
}

func NewLeaderboardService(userRepo repository.UserRepository, cache *LeaderboardCache, opts LeaderboardOptions, log *zap.Logger) *LeaderboardService {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 3
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 100
	}
	return &LeaderboardService{userRepo: userRepo, cache: cache, opts: opts, log: logger.OrNop(log)}
}

func (s *LeaderboardService) DefaultLimit() int { return s.opts.DefaultLimit }

func (s *LeaderboardService) DefaultExcludedRoles() []model.Role { return s.opts.ExcludedRoles }

// GetTopPlayers returns up to limit users ordered by rating, highest first.
// A non-positive limit yields an empty list; limits above the configured
// maximum are clamped.
func (s *LeaderboardService) GetTopPlayers(ctx context.Context, limit int, excludeRoles []model.Role) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		return []model.LeaderboardEntry{}, nil
	}
	if limit > s.opts.MaxLimit {
		limit = s.opts.MaxLimit
	}

	gen, err := s.cache.Generation(ctx)
	cacheable := err == nil
	if err != nil {
		s.log.Warn("leaderboard cache generation read failed", zap.Error(err))
	} else if cached, ok, err := s.cache.Get(ctx, gen, limit, excludeRoles); err != nil {
		s.log.Warn("leaderboard cache read failed", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	users, err := s.userRepo.FindTopRated(ctx, limit, excludeRoles)
	if err != nil {
		return nil, common.Errorf("failed to load top players: %w", err)
	}

	entries := make([]model.LeaderboardEntry, 0, len(users))
	for i := range users {
		entries = append(entries, model.NewLeaderboardEntry(&users[i]))
	}

	if cacheable {
		if err := s.cache.Set(ctx, gen, limit, excludeRoles, entries); err != nil {
			s.log.Warn("leaderboard cache write failed", zap.Error(err))
		}
	}
	return entries, nil
}
