package memory

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"contest_tracker/internal/common"
	"contest_tracker/internal/domain/model"
)

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	for _, u := range []model.User{
		{ID: "u1", Name: "ann", Email: "ann@x", Role: model.RoleRegular, Rating: 10},
		{ID: "u2", Name: "bob", Email: "bob@x", Role: model.RoleRegular, Rating: 50},
		{ID: "u3", Name: "cid", Email: "cid@x", Role: model.RoleAdmin, Rating: 90},
		{ID: "u4", Name: "dee", Email: "dee@x", Role: model.RoleRegular, Rating: 50},
	} {
		u := u
		if err := s.Users().Create(ctx, &u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	if err := s.Contests().Create(ctx, &model.Contest{ID: "c1", Title: "Round 1", Slug: "round-1", Platform: "cf", StartTime: time.Now()}); err != nil {
		t.Fatalf("create contest: %v", err)
	}
}

func TestTopRatedFiltersThenTruncates(t *testing.T) {
	s := NewStore()
	seed(t, s)

	users, err := s.Users().FindTopRated(context.Background(), 2, []model.Role{model.RoleAdmin})
	if err != nil {
		t.Fatalf("FindTopRated: %v", err)
	}
	if len(users) != 2 || users[0].ID != "u2" || users[1].ID != "u4" {
		t.Fatalf("unexpected order: %+v", users)
	}

	users, _ = s.Users().FindTopRated(context.Background(), -1, nil)
	if len(users) != 0 {
		t.Fatalf("negative limit should yield nothing, got %d", len(users))
	}
}

func TestDuplicateUserRejected(t *testing.T) {
	s := NewStore()
	seed(t, s)
	err := s.Users().Create(context.Background(), &model.User{ID: "u9", Name: "zed", Email: "ANN@x"})
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestFindByUserAndContestPicksNewest(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2"} {
		res := &model.ContestResult{ID: id, UserID: "u1", ContestID: "c1", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.Results().Create(ctx, nil, res); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	got, err := s.Results().FindByUserAndContest(ctx, nil, "u1", "c1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != "r2" {
		t.Fatalf("expected newest row r2, got %s", got.ID)
	}
	if _, err := s.Results().FindByUserAndContest(ctx, nil, "u2", "c1"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestContestDeleteRefusedWhenReferenced(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()
	if err := s.Results().Create(ctx, nil, &model.ContestResult{ID: "r1", UserID: "u1", ContestID: "c1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Contests().Delete(ctx, nil, "c1"); !errors.Is(err, common.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestWithinTxHonoursCancelledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.WithinTx(ctx, func(*sql.Tx) error { called = true; return nil })
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("expected cancellation before fn, err=%v called=%v", err, called)
	}
}

func TestWithinTxDiscardsWritesOnError(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := s.Results().Create(ctx, tx, &model.ContestResult{ID: "r1", UserID: "u1", ContestID: "c1", IsWinner: true}); err != nil {
			return err
		}
		user, err := s.Users().FindByIDForUpdate(ctx, tx, "u1")
		if err != nil {
			return err
		}
		user.ApplyResult(25, 3)
		if err := s.Users().Save(ctx, tx, user); err != nil {
			return err
		}
		if n, _ := s.Results().CountByContest(ctx, tx, "c1"); n != 1 {
			t.Errorf("transaction should see its own write, got %d rows", n)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if n, _ := s.Results().Count(ctx); n != 0 {
		t.Fatalf("rolled back result is visible: %d rows", n)
	}
	user, _ := s.Users().FindByID(ctx, "u1")
	if user.Rating != 10 || user.Participations != 0 {
		t.Fatalf("rolled back user update is visible: %+v", user)
	}
}

func TestReadersNeverSeeHalfAppliedTransaction(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()
	for _, id := range []string{"u1", "u2"} {
		if err := s.Results().Create(ctx, nil, &model.ContestResult{ID: "r-" + id, UserID: id, ContestID: "c1", IsWinner: id == "u1"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	// Clear every winner then mark one, the way a win award does.
	swap := func(winner string) error {
		return s.WithinTx(ctx, func(tx *sql.Tx) error {
			res, err := s.Results().FindByUserAndContest(ctx, tx, winner, "c1")
			if err != nil {
				return err
			}
			if _, err := s.Results().ClearWinnersByContest(ctx, tx, "c1"); err != nil {
				return err
			}
			res.IsWinner = true
			return s.Results().Save(ctx, tx, res)
		})
	}

	done := make(chan struct{})
	bad := make(chan int, 1)
	go func() {
		defer close(bad)
		for {
			select {
			case <-done:
				return
			default:
			}
			if n, _ := s.Results().CountWinnersByContest(ctx, nil, "c1"); n != 1 {
				bad <- n
				return
			}
		}
	}()

	for i := 0; i < 2000; i++ {
		winner := "u1"
		if i%2 == 0 {
			winner = "u2"
		}
		if err := swap(winner); err != nil {
			t.Fatalf("swap %d: %v", i, err)
		}
	}
	close(done)
	if n, ok := <-bad; ok {
		t.Fatalf("reader observed %d winners", n)
	}
}
