package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"contest_tracker/internal/common"
	"contest_tracker/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	// FindByIDForUpdate locks the user row until tx ends.
	FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByName(ctx context.Context, name string) (*model.User, error)
	Save(ctx context.Context, tx *sql.Tx, user *model.User) error
	UpdateRole(ctx context.Context, id string, role model.Role) (*model.User, error)
	FindAll(ctx context.Context, limit int) ([]model.User, error)
	// FindTopRated orders by rating descending, then id ascending. Users whose
	// role is in excludeRoles are filtered out before the limit applies.
	FindTopRated(ctx context.Context, limit int, excludeRoles []model.Role) ([]model.User, error)
	Count(ctx context.Context) (int, error)
}

const userColumns = `id, name, email, hashed_password, role, rating, participations, solved, avatar, is_privileged_display_account, created_at, updated_at`

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var role string
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.HashedPassword, &role,
		&user.Rating, &user.Participations, &user.Solved, &user.Avatar,
		&user.IsPrivilegedDisplayAccount, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Role = model.Role(role)
	return user, nil
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, name, email, hashed_password, role, rating, participations, solved, avatar, is_privileged_display_account)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Name, user.Email, user.HashedPassword, string(user.Role),
		user.Rating, user.Participations, user.Solved, user.Avatar, user.IsPrivilegedDisplayAccount,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint violation
			return common.Conflict("user with given name or email already exists")
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) findOne(ctx context.Context, q querier, op, where string, arg interface{}) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	user, err := scanUser(q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if missingRow(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.%s: %w", op, err)
	}
	return user, nil
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, r.db, "FindByID", "id = $1", id)
}

func (r *pgUserRepository) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.User, error) {
	return r.findOne(ctx, conn(r.db, tx), "FindByIDForUpdate", "id = $1 FOR UPDATE", id)
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, r.db, "FindByEmail", "email = $1", email)
}

func (r *pgUserRepository) FindByName(ctx context.Context, name string) (*model.User, error) {
	return r.findOne(ctx, r.db, "FindByName", "name = $1", name)
}

func (r *pgUserRepository) Save(ctx context.Context, tx *sql.Tx, user *model.User) error {
	query := `UPDATE users SET
                name = $1, email = $2, role = $3, rating = $4, participations = $5,
                solved = $6, avatar = $7, updated_at = CURRENT_TIMESTAMP
              WHERE id = $8
              RETURNING updated_at`
	err := conn(r.db, tx).QueryRowContext(ctx, query,
		user.Name, user.Email, string(user.Role), user.Rating, user.Participations,
		user.Solved, user.Avatar, user.ID,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if missingRow(err) {
			return common.ErrNotFound
		}
		return fmt.Errorf("pgUserRepository.Save: %w", err)
	}
	return nil
}

func (r *pgUserRepository) UpdateRole(ctx context.Context, id string, role model.Role) (*model.User, error) {
	query := `UPDATE users SET role = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRowContext(ctx, query, string(role), id))
	if err != nil {
		if missingRow(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.UpdateRole: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) FindAll(ctx context.Context, limit int) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id LIMIT $1`
	return r.list(ctx, "FindAll", query, limit)
}

func (r *pgUserRepository) FindTopRated(ctx context.Context, limit int, excludeRoles []model.Role) ([]model.User, error) {
	var query strings.Builder
	query.WriteString(`SELECT ` + userColumns + ` FROM users`)

	args := make([]interface{}, 0, len(excludeRoles)+1)
	if len(excludeRoles) > 0 {
		query.WriteString(` WHERE role NOT IN (` + placeholders(1, len(excludeRoles)) + `)`)
		for _, role := range excludeRoles {
			args = append(args, string(role))
		}
	}
	query.WriteString(fmt.Sprintf(` ORDER BY rating DESC, id ASC LIMIT $%d`, len(args)+1))
	args = append(args, limit)

	return r.list(ctx, "FindTopRated", query.String(), args...)
}

func (r *pgUserRepository) list(ctx context.Context, op, query string, args ...interface{}) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.%s query: %w", op, err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("pgUserRepository.%s scan: %w", op, err)
		}
		users = append(users, *user)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgUserRepository.%s rows.Err: %w", op, err)
	}
	return users, nil
}

func (r *pgUserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgUserRepository.Count: %w", err)
	}
	return n, nil
}
