package memory

import (
	"context"
	"database/sql"
	"sort"

	"contest_tracker/internal/common"
	"contest_tracker/internal/domain/model"
)

type contestStore struct{ s *Store }

func (c contestStore) Create(ctx context.Context, contest *model.Contest) error {
	return c.s.write(nil, func(st *state) error {
		for _, existing := range st.contests {
			if existing.ID == contest.ID || existing.Slug == contest.Slug {
				return common.Conflict("contest with this slug already exists")
			}
		}
		contest.CreatedAt = c.s.now()
		st.contests[contest.ID] = *contest
		return nil
	})
}

func (c contestStore) get(tx *sql.Tx, id string) (*model.Contest, error) {
	var contest model.Contest
	var ok bool
	c.s.read(tx, func(st *state) { contest, ok = st.contests[id] })
	if !ok {
		return nil, common.ErrNotFound
	}
	return &contest, nil
}

func (c contestStore) GetByID(ctx context.Context, id string) (*model.Contest, error) {
	return c.get(nil, id)
}

func (c contestStore) GetByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.Contest, error) {
	return c.get(tx, id)
}

func (c contestStore) List(ctx context.Context) ([]model.Contest, error) {
	var out []model.Contest
	c.s.read(nil, func(st *state) {
		out = make([]model.Contest, 0, len(st.contests))
		for _, contest := range st.contests {
			out = append(out, contest)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c contestStore) Delete(ctx context.Context, tx *sql.Tx, id string) error {
	return c.s.write(tx, func(st *state) error {
		if _, ok := st.contests[id]; !ok {
			return common.ErrNotFound
		}
		for _, res := range st.results {
			if res.ContestID == id {
				return common.Conflict("contest is referenced by results")
			}
		}
		delete(st.contests, id)
		return nil
	})
}

func (c contestStore) Count(ctx context.Context) (int, error) {
	var n int
	c.s.read(nil, func(st *state) { n = len(st.contests) })
	return n, nil
}

type resultStore struct{ s *Store }

func (r resultStore) Create(ctx context.Context, tx *sql.Tx, res *model.ContestResult) error {
	return r.s.write(tx, func(st *state) error {
		if _, ok := st.users[res.UserID]; !ok {
			return common.ErrNotFound
		}
		if _, ok := st.contests[res.ContestID]; !ok {
			return common.ErrNotFound
		}
		st.results = append(st.results, *res)
		return nil
	})
}

// newestFirst orders by createdAt descending, then id descending.
func newestFirst(a, b model.ContestResult) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func (r resultStore) FindByUserID(ctx context.Context, userID string) ([]model.ContestResultWithContest, error) {
	out := []model.ContestResultWithContest{}
	r.s.read(nil, func(st *state) {
		for _, res := range st.results {
			if res.UserID != userID {
				continue
			}
			contest, ok := st.contests[res.ContestID]
			if !ok {
				continue // inner join semantics
			}
			out = append(out, model.ContestResultWithContest{
				Result: res,
				Contest: model.ContestRef{
					ID:        contest.ID,
					Title:     contest.Title,
					Platform:  contest.Platform,
					StartTime: contest.StartTime,
				},
			})
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return newestFirst(out[i].Result, out[j].Result) })
	return out, nil
}

func (r resultStore) count(tx *sql.Tx, match func(model.ContestResult) bool) int {
	n := 0
	r.s.read(tx, func(st *state) {
		for _, res := range st.results {
			if match(res) {
				n++
			}
		}
	})
	return n
}

func (r resultStore) CountWinsByUsers(ctx context.Context, userIDs []string) (map[string]int, error) {
	wins := make(map[string]int, len(userIDs))
	wanted := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	r.s.read(nil, func(st *state) {
		for _, res := range st.results {
			if res.IsWinner && wanted[res.UserID] {
				wins[res.UserID]++
			}
		}
	})
	return wins, nil
}

func (r resultStore) FindByUserAndContest(ctx context.Context, tx *sql.Tx, userID, contestID string) (*model.ContestResult, error) {
	var found *model.ContestResult
	r.s.read(tx, func(st *state) {
		for _, res := range st.results {
			res := res
			if res.UserID != userID || res.ContestID != contestID {
				continue
			}
			if found == nil || newestFirst(res, *found) {
				found = &res
			}
		}
	})
	if found == nil {
		return nil, common.ErrNotFound
	}
	return found, nil
}

func (r resultStore) ClearWinnersByContest(ctx context.Context, tx *sql.Tx, contestID string) (int64, error) {
	var n int64
	err := r.s.write(tx, func(st *state) error {
		for i := range st.results {
			if st.results[i].ContestID == contestID && st.results[i].IsWinner {
				st.results[i].IsWinner = false
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r resultStore) CountWinnersByContest(ctx context.Context, tx *sql.Tx, contestID string) (int, error) {
	return r.count(tx, func(x model.ContestResult) bool { return x.ContestID == contestID && x.IsWinner }), nil
}

func (r resultStore) CountByContest(ctx context.Context, tx *sql.Tx, contestID string) (int, error) {
	return r.count(tx, func(x model.ContestResult) bool { return x.ContestID == contestID }), nil
}

func (r resultStore) Save(ctx context.Context, tx *sql.Tx, res *model.ContestResult) error {
	return r.s.write(tx, func(st *state) error {
		for i := range st.results {
			if st.results[i].ID == res.ID {
				st.results[i].Rank = res.Rank
				st.results[i].Solved = res.Solved
				st.results[i].RatingDelta = res.RatingDelta
				st.results[i].IsWinner = res.IsWinner
				return nil
			}
		}
		return common.ErrNotFound
	})
}

func (r resultStore) Count(ctx context.Context) (int, error) {
	return r.count(nil, func(model.ContestResult) bool { return true }), nil
}
