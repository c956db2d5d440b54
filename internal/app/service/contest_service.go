package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"contest_tracker/internal/common"
	"contest_tracker/internal/domain/model"
	"contest_tracker/internal/domain/repository"
	"contest_tracker/internal/platform/database"
	"contest_tracker/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

type ContestService struct {
	contestRepo repository.ContestRepository
	resultRepo  repository.ContestResultRepository
	tx          database.TxRunner
	log         *zap.Logger
}

func NewContestService(contestRepo repository.ContestRepository, resultRepo repository.ContestResultRepository, tx database.TxRunner, log *zap.Logger) *ContestService {
	return &ContestService{contestRepo: contestRepo, resultRepo: resultRepo, tx: tx, log: logger.OrNop(log)}
}

// CreateContestRequest accepts either StartTime (RFC3339) or Date + Time
// ("2006-01-02" and "15:04", UTC).
type CreateContestRequest struct {
	Title       string  `json:"title"`
	Platform    string  `json:"platform"`
	StartTime   string  `json:"startTime"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Duration    *string `json:"duration"`
	URL         *string `json:"url"`
	Description *string `json:"description"`
	Difficulty  *string `json:"difficulty"`
	Icon        *string `json:"icon"`
	ImageURL    *string `json:"imageUrl"`
	Background  *string `json:"background"`
}

func (req CreateContestRequest) parseStartTime() (time.Time, bool) {
	if s := strings.TrimSpace(req.StartTime); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		return t, err == nil
	}
	date, clock := strings.TrimSpace(req.Date), strings.TrimSpace(req.Time)
	if date == "" || clock == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, date+"T"+clock); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// normalizeText maps blank strings to nil.
func normalizeText(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

func (s *ContestService) ListContests(ctx context.Context) ([]model.Contest, error) {
	contests, err := s.contestRepo.List(ctx)
	if err != nil {
		return nil, common.Errorf("failed to list contests: %w", err)
	}
	return contests, nil
}

func (s *ContestService) GetContest(ctx context.Context, id string) (*model.Contest, error) {
	contest, err := s.contestRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NotFound("contest not found")
		}
		return nil, common.Errorf("failed to load contest: %w", err)
	}
	return contest, nil
}

func (s *ContestService) CreateContest(ctx context.Context, req CreateContestRequest) (*model.Contest, error) {
	title, platform := strings.TrimSpace(req.Title), strings.TrimSpace(req.Platform)
	start, ok := req.parseStartTime()
	if title == "" || platform == "" || !ok {
		return nil, common.Validation("invalid contest payload")
	}

	contest := &model.Contest{
		ID:          uuid.NewString(),
		Title:       title,
		Slug:        slug.Make(title + " " + platform),
		Platform:    platform,
		StartTime:   start.UTC(),
		Duration:    normalizeText(req.Duration),
		URL:         normalizeText(req.URL),
		Description: normalizeText(req.Description),
		Difficulty:  normalizeText(req.Difficulty),
		Icon:        normalizeText(req.Icon),
		ImageURL:    normalizeText(req.ImageURL),
		Background:  normalizeText(req.Background),
	}

	err := s.contestRepo.Create(ctx, contest)
	if errors.Is(err, common.ErrConflict) {
		// Same title on the same platform: disambiguate with the id prefix.
		contest.Slug = contest.Slug + "-" + contest.ID[:8]
		err = s.contestRepo.Create(ctx, contest)
	}
	if err != nil {
		return nil, common.Errorf("failed to create contest: %w", err)
	}

	s.log.Info("contest created", zap.String("contest_id", contest.ID), zap.String("slug", contest.Slug))
	return contest, nil
}

// DeleteContest removes a contest nobody has results for.
func (s *ContestService) DeleteContest(ctx context.Context, id string) error {
	return s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.contestRepo.GetByIDForUpdate(ctx, tx, id); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.NotFound("contest not found")
			}
			return common.Errorf("failed to lock contest: %w", err)
		}
		n, err := s.resultRepo.CountByContest(ctx, tx, id)
		if err != nil {
			return common.Errorf("failed to count contest results: %w", err)
		}
		if n > 0 {
			return common.Conflict("contest has results and cannot be deleted")
		}
		if err := s.contestRepo.Delete(ctx, tx, id); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.NotFound("contest not found")
			}
			return common.Errorf("failed to delete contest: %w", err)
		}
		return nil
	})
}
