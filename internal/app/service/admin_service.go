package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"contest_tracker/internal/common"
	"contest_tracker/internal/domain/model"
	"contest_tracker/internal/domain/repository"
	"contest_tracker/internal/platform/database"
	"contest_tracker/internal/platform/logger"

	"go.uber.org/zap"
)

type AdminService struct {
	userRepo    repository.UserRepository
	contestRepo repository.ContestRepository
	resultRepo  repository.ContestResultRepository
	tx          database.TxRunner
	cache       *LeaderboardCache
	log         *zap.Logger
}

func NewAdminService(
	userRepo repository.UserRepository,
	contestRepo repository.ContestRepository,
	resultRepo repository.ContestResultRepository,
	tx database.TxRunner,
	cache *LeaderboardCache,
	log *zap.Logger,
) *AdminService {
	return &AdminService{
		userRepo:    userRepo,
		contestRepo: contestRepo,
		resultRepo:  resultRepo,
		tx:          tx,
		cache:       cache,
		log:         logger.OrNop(log),
	}
}

type AssignRoleRequest struct {
	UserID string     `json:"userId"`
	Role   model.Role `json:"role"`
}

type AwardWinRequest struct {
	ContestID string `json:"contestId"`
	UserID    string `json:"userId"`
}

// AdminUserView is a user row plus its stored win count.
type AdminUserView struct {
	model.User
	Wins int `json:"wins"`
}

func (s *AdminService) GetSummary(ctx context.Context) (*model.AdminSummary, error) {
	users, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, common.Errorf("failed to count users: %w", err)
	}
	contests, err := s.contestRepo.Count(ctx)
	if err != nil {
		return nil, common.Errorf("failed to count contests: %w", err)
	}
	results, err := s.resultRepo.Count(ctx)
	if err != nil {
		return nil, common.Errorf("failed to count results: %w", err)
	}
	return &model.AdminSummary{Users: users, Contests: contests, Results: results}, nil
}

func (s *AdminService) ListUsers(ctx context.Context, limit int) ([]AdminUserView, error) {
	users, err := s.userRepo.FindAll(ctx, limit)
	if err != nil {
		return nil, common.Errorf("failed to list users: %w", err)
	}
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	wins, err := s.resultRepo.CountWinsByUsers(ctx, ids)
	if err != nil {
		return nil, common.Errorf("failed to count wins: %w", err)
	}
	views := make([]AdminUserView, 0, len(users))
	for _, u := range users {
		views = append(views, AdminUserView{User: u, Wins: wins[u.ID]})
	}
	return views, nil
}

func (s *AdminService) AssignRole(ctx context.Context, req AssignRoleRequest) (*model.User, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, common.Validation("user id required")
	}
	if !req.Role.Valid() {
		return nil, common.Validation("invalid role")
	}

	user, err := s.userRepo.UpdateRole(ctx, userID, req.Role)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NotFound("user not found")
		}
		return nil, common.Errorf("failed to assign role: %w", err)
	}

	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("leaderboard cache invalidation failed", zap.Error(err))
	}
	s.log.Info("role assigned", zap.String("user_id", userID), zap.String("role", string(req.Role)))
	return user, nil
}

// AwardWin makes userID the single winner of contestID. The contest row is
// locked for the whole clear-then-set so concurrent awards serialize.
func (s *AdminService) AwardWin(ctx context.Context, req AwardWinRequest) error {
	contestID := strings.TrimSpace(req.ContestID)
	userID := strings.TrimSpace(req.UserID)
	if contestID == "" || userID == "" {
		return common.Validation("contest id and user id required")
	}

	var cleared int64
	err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.contestRepo.GetByIDForUpdate(ctx, tx, contestID); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.NotFound("contest not found")
			}
			return common.Errorf("failed to lock contest: %w", err)
		}

		result, err := s.resultRepo.FindByUserAndContest(ctx, tx, userID, contestID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.NotFound("result not found for user and contest")
			}
			return common.Errorf("failed to load result: %w", err)
		}

		cleared, err = s.resultRepo.ClearWinnersByContest(ctx, tx, contestID)
		if err != nil {
			return common.Errorf("failed to clear contest winners: %w", err)
		}

		result.IsWinner = true
		if err := s.resultRepo.Save(ctx, tx, result); err != nil {
			return common.Errorf("failed to mark winner: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("contest win awarded",
		zap.String("contest_id", contestID),
		zap.String("user_id", userID),
		zap.Int64("previous_winners_cleared", cleared),
	)
	return nil
}
