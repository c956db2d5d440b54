package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"contest_tracker/internal/common"
	"contest_tracker/internal/domain/model"
	"contest_tracker/internal/domain/repository"
	"contest_tracker/internal/platform/database"
	"contest_tracker/internal/platform/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OptionalNumber decodes any JSON value. Only finite numbers are kept; every
// other value (null, strings, objects) reads as absent.
type OptionalNumber struct {
	Value float64
	Valid bool
}

func (n *OptionalNumber) UnmarshalJSON(data []byte) error {
	*n = OptionalNumber{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	*n = OptionalNumber{Value: f, Valid: true}
	return nil
}

func Number(v float64) OptionalNumber { return OptionalNumber{Value: v, Valid: true} }

// Int truncates toward zero and saturates at the int32 range; absent reads as 0.
func (n OptionalNumber) Int() int {
	if !n.Valid {
		return 0
	}
	v := math.Trunc(n.Value)
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int(v)
}

// NonNegativeInt is Int floored at zero.
func (n OptionalNumber) NonNegativeInt() int {
	if v := n.Int(); v > 0 {
		return v
	}
	return 0
}

type SubmitResultRequest struct {
	ContestID   string         `json:"contestId"`
	Rank        OptionalNumber `json:"rank"`
	Solved      OptionalNumber `json:"solved"`
	RatingDelta OptionalNumber `json:"ratingDelta"`
	IsWinner    *bool          `json:"isWinner"`
}

type ProfileOptions struct {
	// PrivilegedWinsFloor is the minimum wins shown for a privileged display account.
	PrivilegedWinsFloor int
}

type ProfileService struct {
	userRepo    repository.UserRepository
	contestRepo repository.ContestRepository
	resultRepo  repository.ContestResultRepository
	tx          database.TxRunner
	cache       *LeaderboardCache
	opts        ProfileOptions
	log         *zap.Logger
	now         func() time.Time
}

func NewProfileService(
	userRepo repository.UserRepository,
	contestRepo repository.ContestRepository,
	resultRepo repository.ContestResultRepository,
	tx database.TxRunner,
	cache *LeaderboardCache,
	opts ProfileOptions,
	log *zap.Logger,
) *ProfileService {
	return &ProfileService{
		userRepo:    userRepo,
		contestRepo: contestRepo,
		resultRepo:  resultRepo,
		tx:          tx,
		cache:       cache,
		opts:        opts,
		log:         logger.OrNop(log),
		now:         time.Now,
	}
}

func (s *ProfileService) loadUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NotFound("user not found")
		}
		return nil, common.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// GetProfile reconciles the stored counters with the user's result history.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*model.ProfileSummary, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.resultRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, common.Errorf("failed to load result history: %w", err)
	}

	history := make([]model.ProfileHistoryItem, 0, len(rows))
	computedSolved, wins := 0, 0
	for _, row := range rows {
		res, contest := row.Result, row.Contest
		history = append(history, model.ProfileHistoryItem{
			ID:          res.ID,
			ContestID:   contest.ID,
			Title:       contest.Title,
			Platform:    contest.Platform,
			StartTime:   contest.StartTime,
			Rank:        res.Rank,
			RatingDelta: res.RatingDelta,
			Solved:      res.Solved,
			IsWinner:    res.IsWinner,
		})
		computedSolved += res.Solved
		if res.IsWinner {
			wins++
		}
	}

	if user.IsPrivilegedDisplayAccount && wins < s.opts.PrivilegedWinsFloor {
		wins = s.opts.PrivilegedWinsFloor
	}

	return &model.ProfileSummary{
		Stats: model.ProfileStats{
			Rating:         user.Rating,
			Participations: max(user.Participations, len(rows)),
			Solved:         max(user.Solved, computedSolved),
			Wins:           wins,
		},
		History: history,
	}, nil
}

// SubmitResult records one contest result for userID and returns the
// refreshed profile. The result row and the counter update commit together.
func (s *ProfileService) SubmitResult(ctx context.Context, userID string, req SubmitResultRequest) (*model.ProfileSummary, error) {
	contestID := strings.TrimSpace(req.ContestID)
	if contestID == "" {
		return nil, common.Validation("contest id required")
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.CanParticipate() {
		return nil, common.Policy("admins cannot participate")
	}

	if _, err := s.contestRepo.GetByID(ctx, contestID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NotFound("contest not found")
		}
		return nil, common.Errorf("failed to load contest: %w", err)
	}

	rank := req.Rank.NonNegativeInt()
	isWinner := model.DeriveDefaultWinner(req.Rank.Value)
	if req.IsWinner != nil {
		isWinner = *req.IsWinner
	}
	result := &model.ContestResult{
		ID:          uuid.NewString(),
		UserID:      userID,
		ContestID:   contestID,
		Rank:        rank,
		Solved:      req.Solved.NonNegativeInt(),
		RatingDelta: req.RatingDelta.Int(),
		IsWinner:    isWinner,
		CreatedAt:   s.now().UTC(),
	}

	err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		locked, err := s.userRepo.FindByIDForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.NotFound("user not found")
			}
			return common.Errorf("failed to lock user: %w", err)
		}
		if !locked.CanParticipate() {
			return common.Policy("admins cannot participate")
		}

		if err := s.resultRepo.Create(ctx, tx, result); err != nil {
			return common.Errorf("failed to create contest result: %w", err)
		}

		locked.ApplyResult(result.RatingDelta, result.Solved)
		if err := s.userRepo.Save(ctx, tx, locked); err != nil {
			return common.Errorf("failed to update user stats: %w", err)
		}

		// The submission path does not clear other winners; flag the overlap instead.
		if result.IsWinner {
			winners, err := s.resultRepo.CountWinnersByContest(ctx, tx, contestID)
			if err != nil {
				return common.Errorf("failed to count contest winners: %w", err)
			}
			if winners > 1 {
				s.log.Warn("contest has more than one winner after submission",
					zap.String("contest_id", contestID),
					zap.String("result_id", result.ID),
					zap.Int("winners", winners),
				)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("leaderboard cache invalidation failed", zap.Error(err))
	}
	s.log.Info("contest result submitted",
		zap.String("user_id", userID),
		zap.String("contest_id", contestID),
		zap.String("result_id", result.ID),
		zap.Int("rank", result.Rank),
		zap.Int("rating_delta", result.RatingDelta),
		zap.Bool("is_winner", result.IsWinner),
	)

	return s.GetProfile(ctx, userID)
}
