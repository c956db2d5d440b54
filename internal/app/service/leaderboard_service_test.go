package service

import (
	"context"
	"testing"
	"time"

	"contest_tracker/internal/domain/model"
	"contest_tracker/internal/domain/repository"
	"contest_tracker/internal/domain/repository/memory"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func seedRatings(t *testing.T, s *memory.Store, users ...model.User) {
	t.Helper()
	for _, u := range users {
		u.Name = u.ID
		u.Email = u.ID + "@example.com"
		if u.Role == "" {
			u.Role = model.RoleRegular
		}
		if err := s.Users().Create(context.Background(), &u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
}

func ratings(entries []model.LeaderboardEntry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.Rating
	}
	return out
}

func TestGetTopPlayersOrdersByRating(t *testing.T) {
	s := memory.NewStore()
	seedRatings(t, s,
		model.User{ID: "a", Rating: 10},
		model.User{ID: "b", Rating: 50},
		model.User{ID: "c", Rating: 30},
		model.User{ID: "d", Rating: 5},
	)
	svc := NewLeaderboardService(s.Users(), nil, LeaderboardOptions{}, nil)

	got, err := svc.GetTopPlayers(context.Background(), 3, nil)
	if err != nil {
		t.Fatalf("GetTopPlayers: %v", err)
	}
	r := ratings(got)
	if len(r) != 3 || r[0] != 50 || r[1] != 30 || r[2] != 10 {
		t.Fatalf("ratings = %v, want [50 30 10]", r)
	}
}

func TestGetTopPlayersLimits(t *testing.T) {
	s := memory.NewStore()
	seedRatings(t, s,
		model.User{ID: "a", Rating: 1},
		model.User{ID: "b", Rating: 2},
		model.User{ID: "c", Rating: 3},
	)
	svc := NewLeaderboardService(s.Users(), nil, LeaderboardOptions{MaxLimit: 2}, nil)
	ctx := context.Background()

	for _, limit := range []int{0, -5} {
		got, err := svc.GetTopPlayers(ctx, limit, nil)
		if err != nil || got == nil || len(got) != 0 {
			t.Fatalf("limit %d: got %v, %v; want empty list", limit, got, err)
		}
	}
	got, _ := svc.GetTopPlayers(ctx, 50, nil)
	if len(got) != 2 {
		t.Fatalf("limit above max returned %d entries, want 2", len(got))
	}
	if svc.DefaultLimit() != 3 {
		t.Fatalf("default limit = %d, want 3", svc.DefaultLimit())
	}
}

func TestGetTopPlayersTiesAndExclusion(t *testing.T) {
	s := memory.NewStore()
	seedRatings(t, s,
		model.User{ID: "zed", Rating: 40},
		model.User{ID: "amy", Rating: 40},
		model.User{ID: "boss", Rating: 99, Role: model.RoleAdmin},
		model.User{ID: "org", Rating: 70, Role: model.RoleOrganizer},
	)
	svc := NewLeaderboardService(s.Users(), nil, LeaderboardOptions{}, nil)

	got, err := svc.GetTopPlayers(context.Background(), 2, []model.Role{model.RoleAdmin, model.RoleOrganizer})
	if err != nil {
		t.Fatalf("GetTopPlayers: %v", err)
	}
	if len(got) != 2 || got[0].ID != "amy" || got[1].ID != "zed" {
		t.Fatalf("got %+v, want amy then zed", got)
	}
}

func TestLeaderboardCacheInvalidatedOnSubmit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cache := NewLeaderboardCache(rdb, time.Minute)

	s := memory.NewStore()
	seedRatings(t, s, model.User{ID: "a", Rating: 10}, model.User{ID: "b", Rating: 20})
	if err := s.Contests().Create(context.Background(), &model.Contest{ID: "c1", Slug: "c1", Title: "c1", Platform: "atcoder"}); err != nil {
		t.Fatalf("create contest: %v", err)
	}
	board := NewLeaderboardService(s.Users(), cache, LeaderboardOptions{}, nil)
	profile := NewProfileService(s.Users(), s.Contests(), s.Results(), s, cache, ProfileOptions{}, nil)
	ctx := context.Background()

	first, err := board.GetTopPlayers(ctx, 3, nil)
	if err != nil {
		t.Fatalf("GetTopPlayers: %v", err)
	}
	if first[0].ID != "b" {
		t.Fatalf("leader = %s, want b", first[0].ID)
	}
	if !mr.Exists(leaderboardKey(0, 3, nil)) {
		t.Fatal("page was not cached")
	}

	if _, err := profile.SubmitResult(ctx, "a", SubmitResultRequest{ContestID: "c1", RatingDelta: Number(100)}); err != nil {
		t.Fatalf("SubmitResult: %v", err)
	}
	gen, err := cache.Generation(ctx)
	if err != nil || gen != 1 {
		t.Fatalf("generation after submit = %d, %v; want 1", gen, err)
	}
	if _, ok, _ := cache.Get(ctx, gen, 3, nil); ok {
		t.Fatal("submission did not invalidate the cached page")
	}

	second, _ := board.GetTopPlayers(ctx, 3, nil)
	if second[0].ID != "a" || second[0].Rating != 110 {
		t.Fatalf("leader after submit = %+v, want a at 110", second[0])
	}
}

func TestLeaderboardCacheServesHits(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cache := NewLeaderboardCache(rdb, time.Minute)
	ctx := context.Background()

	roles := []model.Role{model.RoleOrganizer, model.RoleAdmin}
	want := []model.LeaderboardEntry{{ID: "x", Name: "x", Rating: 7}}
	if err := cache.Set(ctx, 0, 5, roles, want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	// Role order does not change the key.
	got, ok, err := cache.Get(ctx, 0, 5, []model.Role{model.RoleAdmin, model.RoleOrganizer})
	if err != nil || !ok || len(got) != 1 || got[0].ID != "x" {
		t.Fatalf("Get = %v, %v, %v", got, ok, err)
	}
	if cache.Ping(ctx) != "ok" {
		t.Fatalf("ping = %s", cache.Ping(ctx))
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := cache.Get(ctx, 0, 5, roles); ok {
		t.Fatal("entry outlived its ttl")
	}
}

func TestNilLeaderboardCacheIsDisabled(t *testing.T) {
	var cache *LeaderboardCache
	ctx := context.Background()
	if gen, err := cache.Generation(ctx); gen != 0 || err != nil {
		t.Fatalf("nil cache Generation = %d, %v", gen, err)
	}
	if _, ok, err := cache.Get(ctx, 0, 3, nil); ok || err != nil {
		t.Fatalf("nil cache Get = %v, %v", ok, err)
	}
	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("nil cache Invalidate: %v", err)
	}
	if cache.Ping(ctx) != "disabled" {
		t.Fatalf("ping = %s", cache.Ping(ctx))
	}
}

// racingUsers applies a rating change and invalidates the cache while the
// first top-rated query is in flight, then returns that query's stale rows.
type racingUsers struct {
	repository.UserRepository
	store *memory.Store
	cache *LeaderboardCache
	raced bool
}

func (r *racingUsers) FindTopRated(ctx context.Context, limit int, excludeRoles []model.Role) ([]model.User, error) {
	users, err := r.UserRepository.FindTopRated(ctx, limit, excludeRoles)
	if err != nil || r.raced {
		return users, err
	}
	r.raced = true
	a, err := r.store.Users().FindByID(ctx, "a")
	if err != nil {
		return nil, err
	}
	a.Rating = 500
	if err := r.store.Users().Save(ctx, nil, a); err != nil {
		return nil, err
	}
	if err := r.cache.Invalidate(ctx); err != nil {
		return nil, err
	}
	return users, nil
}

func TestLeaderboardCacheIgnoresPageLoadedBeforeInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cache := NewLeaderboardCache(rdb, time.Minute)

	s := memory.NewStore()
	seedRatings(t, s, model.User{ID: "a", Rating: 10}, model.User{ID: "b", Rating: 20})
	users := &racingUsers{UserRepository: s.Users(), store: s, cache: cache}
	board := NewLeaderboardService(users, cache, LeaderboardOptions{}, nil)
	ctx := context.Background()

	stale, err := board.GetTopPlayers(ctx, 3, nil)
	if err != nil {
		t.Fatalf("GetTopPlayers: %v", err)
	}
	if stale[0].ID != "b" {
		t.Fatalf("in-flight leader = %s, want b", stale[0].ID)
	}

	fresh, err := board.GetTopPlayers(ctx, 3, nil)
	if err != nil {
		t.Fatalf("GetTopPlayers: %v", err)
	}
	if fresh[0].ID != "a" || fresh[0].Rating != 500 {
		t.Fatalf("leader after invalidation = %+v, want a at 500", fresh[0])
	}
}
