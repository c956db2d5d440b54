package repository

import (
	"context"
	"database/sql"
	"fmt"

	"contest_tracker/internal/common"
	"contest_tracker/internal/domain/model"
)

// ContestResultRepository stores one row per result submission. Several rows
// may exist for the same (user, contest) pair.
type ContestResultRepository interface {
	Create(ctx context.Context, tx *sql.Tx, result *model.ContestResult) error
	// FindByUserID returns the user's results joined with their contests,
	// most recent first.
	FindByUserID(ctx context.Context, userID string) ([]model.ContestResultWithContest, error)
	// CountWinsByUsers returns win counts keyed by user id. Users without
	// wins are absent from the map.
	CountWinsByUsers(ctx context.Context, userIDs []string) (map[string]int, error)
	// FindByUserAndContest returns the most recent matching row. Inside a
	// transaction the row is locked until tx ends.
	FindByUserAndContest(ctx context.Context, tx *sql.Tx, userID, contestID string) (*model.ContestResult, error)
	ClearWinnersByContest(ctx context.Context, tx *sql.Tx, contestID string) (int64, error)
	CountWinnersByContest(ctx context.Context, tx *sql.Tx, contestID string) (int, error)
	CountByContest(ctx context.Context, tx *sql.Tx, contestID string) (int, error)
	Save(ctx context.Context, tx *sql.Tx, result *model.ContestResult) error
	Count(ctx context.Context) (int, error)
}

const resultColumns = `id, user_id, contest_id, rank, solved, rating_delta, is_winner, created_at`

type pgContestResultRepository struct {
	db *sql.DB
}

func NewPgContestResultRepository(db *sql.DB) ContestResultRepository {
	return &pgContestResultRepository{db: db}
}

func (r *pgContestResultRepository) Create(ctx context.Context, tx *sql.Tx, res *model.ContestResult) error {
	query := `INSERT INTO contest_results (id, user_id, contest_id, rank, solved, rating_delta, is_winner, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := conn(r.db, tx).ExecContext(ctx, query,
		res.ID, res.UserID, res.ContestID, res.Rank, res.Solved, res.RatingDelta, res.IsWinner, res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("pgContestResultRepository.Create: %w", err)
	}
	return nil
}

func (r *pgContestResultRepository) FindByUserID(ctx context.Context, userID string) ([]model.ContestResultWithContest, error) {
	query := `
        SELECT cr.id, cr.user_id, cr.contest_id, cr.rank, cr.solved, cr.rating_delta, cr.is_winner, cr.created_at,
               c.title, c.platform, c.start_time
        FROM contest_results cr
        JOIN contests c ON c.id = cr.contest_id
        WHERE cr.user_id = $1
        ORDER BY cr.created_at DESC, cr.id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		if missingRow(err) {
			return []model.ContestResultWithContest{}, nil
		}
		return nil, fmt.Errorf("pgContestResultRepository.FindByUserID query: %w", err)
	}
	defer rows.Close()

	results := []model.ContestResultWithContest{}
	for rows.Next() {
		var row model.ContestResultWithContest
		res := &row.Result
		if err := rows.Scan(
			&res.ID, &res.UserID, &res.ContestID, &res.Rank, &res.Solved, &res.RatingDelta, &res.IsWinner, &res.CreatedAt,
			&row.Contest.Title, &row.Contest.Platform, &row.Contest.StartTime,
		); err != nil {
			return nil, fmt.Errorf("pgContestResultRepository.FindByUserID scan: %w", err)
		}
		row.Contest.ID = res.ContestID
		results = append(results, row)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContestResultRepository.FindByUserID rows.Err: %w", err)
	}
	return results, nil
}

func (r *pgContestResultRepository) CountWinsByUsers(ctx context.Context, userIDs []string) (map[string]int, error) {
	wins := make(map[string]int, len(userIDs))
	if len(userIDs) == 0 {
		return wins, nil
	}
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}
	query := `SELECT user_id, COUNT(*) FROM contest_results
	          WHERE is_winner = TRUE AND user_id IN (` + placeholders(1, len(userIDs)) + `)
	          GROUP BY user_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgContestResultRepository.CountWinsByUsers query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("pgContestResultRepository.CountWinsByUsers scan: %w", err)
		}
		wins[id] = n
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContestResultRepository.CountWinsByUsers rows.Err: %w", err)
	}
	return wins, nil
}

func (r *pgContestResultRepository) FindByUserAndContest(ctx context.Context, tx *sql.Tx, userID, contestID string) (*model.ContestResult, error) {
	query := `SELECT ` + resultColumns + ` FROM contest_results
	          WHERE user_id = $1 AND contest_id = $2
	          ORDER BY created_at DESC, id DESC LIMIT 1`
	if tx != nil {
		query += ` FOR UPDATE`
	}

	res := &model.ContestResult{}
	err := conn(r.db, tx).QueryRowContext(ctx, query, userID, contestID).Scan(
		&res.ID, &res.UserID, &res.ContestID, &res.Rank, &res.Solved, &res.RatingDelta, &res.IsWinner, &res.CreatedAt,
	)
	if err != nil {
		if missingRow(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestResultRepository.FindByUserAndContest: %w", err)
	}
	return res, nil
}

func (r *pgContestResultRepository) ClearWinnersByContest(ctx context.Context, tx *sql.Tx, contestID string) (int64, error) {
	res, err := conn(r.db, tx).ExecContext(ctx,
		`UPDATE contest_results SET is_winner = FALSE WHERE contest_id = $1 AND is_winner = TRUE`, contestID)
	if err != nil {
		return 0, fmt.Errorf("pgContestResultRepository.ClearWinnersByContest: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pgContestResultRepository.ClearWinnersByContest rows affected: %w", err)
	}
	return n, nil
}

func (r *pgContestResultRepository) CountWinnersByContest(ctx context.Context, tx *sql.Tx, contestID string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM contest_results WHERE contest_id = $1 AND is_winner = TRUE`
	if err := conn(r.db, tx).QueryRowContext(ctx, query, contestID).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgContestResultRepository.CountWinnersByContest: %w", err)
	}
	return n, nil
}

func (r *pgContestResultRepository) CountByContest(ctx context.Context, tx *sql.Tx, contestID string) (int, error) {
	var n int
	if err := conn(r.db, tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM contest_results WHERE contest_id = $1`, contestID).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgContestResultRepository.CountByContest: %w", err)
	}
	return n, nil
}

func (r *pgContestResultRepository) Save(ctx context.Context, tx *sql.Tx, res *model.ContestResult) error {
	query := `UPDATE contest_results SET rank = $1, solved = $2, rating_delta = $3, is_winner = $4 WHERE id = $5`
	out, err := conn(r.db, tx).ExecContext(ctx, query, res.Rank, res.Solved, res.RatingDelta, res.IsWinner, res.ID)
	if err != nil {
		return fmt.Errorf("pgContestResultRepository.Save: %w", err)
	}
	n, err := out.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgContestResultRepository.Save rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgContestResultRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contest_results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgContestResultRepository.Count: %w", err)
	}
	return n, nil
}
