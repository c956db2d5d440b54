// Package memory keeps every repository in process memory. It backs the
// "memory" store driver and the service tests.
package memory

import (
	"context"
	"database/sql"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"contest_tracker/internal/common"
	"contest_tracker/internal/domain/model"
	"contest_tracker/internal/domain/repository"
)

// state is one consistent copy of every table.
type state struct {
	users    map[string]model.User
	contests map[string]model.Contest
	results  []model.ContestResult
}

func (st *state) clone() *state {
	users := make(map[string]model.User, len(st.users))
	for k, v := range st.users {
		users[k] = v
	}
	contests := make(map[string]model.Contest, len(st.contests))
	for k, v := range st.contests {
		contests[k] = v
	}
	return &state{users: users, contests: contests, results: slices.Clone(st.results)}
}

// Store holds users, contests and results.
//
// Writers are serialized by txMu, whether they run inside WithinTx or alone.
// A transaction works on a private copy that replaces the committed state
// only when fn succeeds, so readers outside it never see partial writes.
type Store struct {
	txMu sync.Mutex

	mu        sync.RWMutex // guards committed
	committed *state

	// Owned by the goroutine holding txMu inside WithinTx.
	tx   *sql.Tx
	work *state

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		committed: &state{users: map[string]model.User{}, contests: map[string]model.Contest{}},
		now:       time.Now,
	}
}

// WithinTx runs fn against a snapshot of the store. The snapshot is published
// if fn returns nil and discarded otherwise. The *sql.Tx handed to fn is only
// a handle identifying the transaction to this store's repositories.
func (s *Store) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.committed.clone()
	s.mu.RUnlock()

	s.tx, s.work = new(sql.Tx), work
	err := fn(s.tx)
	s.tx, s.work = nil, nil
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.committed = work
	s.mu.Unlock()
	return nil
}

func (s *Store) inTx(tx *sql.Tx) bool { return tx != nil && tx == s.tx }

// read runs fn against the state visible to tx.
func (s *Store) read(tx *sql.Tx, fn func(st *state)) {
	if s.inTx(tx) {
		fn(s.work)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.committed)
}

// write runs fn against the transaction's copy, or applies it to the
// committed state directly when tx is nil.
func (s *Store) write(tx *sql.Tx, fn func(st *state) error) error {
	if s.inTx(tx) {
		return fn(s.work)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.committed)
}

func (s *Store) Users() repository.UserRepository { return userStore{s} }

func (s *Store) Contests() repository.ContestRepository { return contestStore{s} }

func (s *Store) Results() repository.ContestResultRepository { return resultStore{s} }

type userStore struct{ s *Store }

func (u userStore) Create(ctx context.Context, user *model.User) error {
	return u.s.write(nil, func(st *state) error {
		for _, existing := range st.users {
			if existing.ID == user.ID || strings.EqualFold(existing.Email, user.Email) || existing.Name == user.Name {
				return common.Conflict("user with given name or email already exists")
			}
		}
		now := u.s.now()
		user.CreatedAt, user.UpdatedAt = now, now
		st.users[user.ID] = *user
		return nil
	})
}

func (u userStore) find(tx *sql.Tx, match func(model.User) bool) (*model.User, error) {
	var found *model.User
	u.s.read(tx, func(st *state) {
		for _, user := range st.users {
			if match(user) {
				found = &user
				return
			}
		}
	})
	if found == nil {
		return nil, common.ErrNotFound
	}
	return found, nil
}

func (u userStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	return u.find(nil, func(x model.User) bool { return x.ID == id })
}

func (u userStore) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.User, error) {
	return u.find(tx, func(x model.User) bool { return x.ID == id })
}

func (u userStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.find(nil, func(x model.User) bool { return strings.EqualFold(x.Email, email) })
}

func (u userStore) FindByName(ctx context.Context, name string) (*model.User, error) {
	return u.find(nil, func(x model.User) bool { return x.Name == name })
}

func (u userStore) Save(ctx context.Context, tx *sql.Tx, user *model.User) error {
	return u.s.write(tx, func(st *state) error {
		existing, ok := st.users[user.ID]
		if !ok {
			return common.ErrNotFound
		}
		user.HashedPassword = existing.HashedPassword
		user.IsPrivilegedDisplayAccount = existing.IsPrivilegedDisplayAccount
		user.CreatedAt = existing.CreatedAt
		user.UpdatedAt = u.s.now()
		st.users[user.ID] = *user
		return nil
	})
}

func (u userStore) UpdateRole(ctx context.Context, id string, role model.Role) (*model.User, error) {
	var updated model.User
	err := u.s.write(nil, func(st *state) error {
		user, ok := st.users[id]
		if !ok {
			return common.ErrNotFound
		}
		user.Role = role
		user.UpdatedAt = u.s.now()
		st.users[id] = user
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (u userStore) sorted(less func(a, b model.User) bool) []model.User {
	var out []model.User
	u.s.read(nil, func(st *state) {
		out = make([]model.User, 0, len(st.users))
		for _, user := range st.users {
			out = append(out, user)
		}
	})
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (u userStore) FindAll(ctx context.Context, limit int) ([]model.User, error) {
	all := u.sorted(func(a, b model.User) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return truncate(all, limit), nil
}

func (u userStore) FindTopRated(ctx context.Context, limit int, excludeRoles []model.Role) ([]model.User, error) {
	excluded := make(map[model.Role]bool, len(excludeRoles))
	for _, r := range excludeRoles {
		excluded[r] = true
	}
	all := u.sorted(func(a, b model.User) bool {
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		return a.ID < b.ID
	})
	ranked := make([]model.User, 0, len(all))
	for _, user := range all {
		if !excluded[user.Role] {
			ranked = append(ranked, user)
		}
	}
	return truncate(ranked, limit), nil
}

func (u userStore) Count(ctx context.Context) (int, error) {
	var n int
	u.s.read(nil, func(st *state) { n = len(st.users) })
	return n, nil
}

func truncate[T any](items []T, limit int) []T {
	if limit < 0 {
		limit = 0
	}
	if len(items) > limit {
		return items[:limit]
	}
	return items
}
