package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"contest_tracker/internal/common"
	"contest_tracker/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type ContestRepository interface {
	Create(ctx context.Context, contest *model.Contest) error
	GetByID(ctx context.Context, id string) (*model.Contest, error)
	// GetByIDForUpdate locks the contest row until tx ends.
	GetByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.Contest, error)
	List(ctx context.Context) ([]model.Contest, error)
	Delete(ctx context.Context, tx *sql.Tx, id string) error
	Count(ctx context.Context) (int, error)
}

const contestColumns = `id, title, slug, platform, start_time, duration, url, description, difficulty, icon, image_url, background, created_at`

type pgContestRepository struct {
	db *sql.DB
}

func NewPgContestRepository(db *sql.DB) ContestRepository {
	return &pgContestRepository{db: db}
}

func scanContest(row rowScanner) (*model.Contest, error) {
	c := &model.Contest{}
	err := row.Scan(
		&c.ID, &c.Title, &c.Slug, &c.Platform, &c.StartTime, &c.Duration, &c.URL,
		&c.Description, &c.Difficulty, &c.Icon, &c.ImageURL, &c.Background, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *pgContestRepository) Create(ctx context.Context, c *model.Contest) error {
	query := `INSERT INTO contests (id, title, slug, platform, start_time, duration, url, description, difficulty, icon, image_url, background)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	          RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query,
		c.ID, c.Title, c.Slug, c.Platform, c.StartTime, c.Duration, c.URL,
		c.Description, c.Difficulty, c.Icon, c.ImageURL, c.Background,
	).Scan(&c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint for slug
			return common.Conflict("contest with this slug already exists")
		}
		return fmt.Errorf("pgContestRepository.Create: %w", err)
	}
	return nil
}

func (r *pgContestRepository) GetByID(ctx context.Context, id string) (*model.Contest, error) {
	c, err := scanContest(r.db.QueryRowContext(ctx, `SELECT `+contestColumns+` FROM contests WHERE id = $1`, id))
	if err != nil {
		if missingRow(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.GetByID: %w", err)
	}
	return c, nil
}

func (r *pgContestRepository) GetByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.Contest, error) {
	c, err := scanContest(conn(r.db, tx).QueryRowContext(ctx, `SELECT `+contestColumns+` FROM contests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if missingRow(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.GetByIDForUpdate: %w", err)
	}
	return c, nil
}

func (r *pgContestRepository) List(ctx context.Context) ([]model.Contest, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+contestColumns+` FROM contests ORDER BY start_time ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.List query: %w", err)
	}
	defer rows.Close()

	contests := []model.Contest{}
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, fmt.Errorf("pgContestRepository.List scan: %w", err)
		}
		contests = append(contests, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContestRepository.List rows.Err: %w", err)
	}
	return contests, nil
}

func (r *pgContestRepository) Delete(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := conn(r.db, tx).ExecContext(ctx, `DELETE FROM contests WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // Foreign key violation
			return common.Conflict("contest is referenced by results")
		}
		if missingRow(err) {
			return common.ErrNotFound
		}
		return fmt.Errorf("pgContestRepository.Delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgContestRepository.Delete rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgContestRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contests`).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgContestRepository.Count: %w", err)
	}
	return n, nil
}
