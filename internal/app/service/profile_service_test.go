package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"contest_tracker/internal/common"
	"contest_tracker/internal/domain/model"
	"contest_tracker/internal/domain/repository"
	"contest_tracker/internal/domain/repository/memory"
)

type fixture struct {
	store   *memory.Store
	profile *ProfileService
	admin   *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.NewStore()
	return &fixture{
		store:   s,
		profile: NewProfileService(s.Users(), s.Contests(), s.Results(), s, nil, ProfileOptions{PrivilegedWinsFloor: 5}, nil),
		admin:   NewAdminService(s.Users(), s.Contests(), s.Results(), s, nil, nil),
	}
}

func (f *fixture) addUser(t *testing.T, u model.User) {
	t.Helper()
	if u.Email == "" {
		u.Email = u.ID + "@example.com"
	}
	if u.Name == "" {
		u.Name = u.ID
	}
	if u.Role == "" {
		u.Role = model.RoleRegular
	}
	if err := f.store.Users().Create(context.Background(), &u); err != nil {
		t.Fatalf("create user %s: %v", u.ID, err)
	}
}

func (f *fixture) addContest(t *testing.T, id string) {
	t.Helper()
	c := &model.Contest{ID: id, Title: "Contest " + id, Slug: id, Platform: "codeforces", StartTime: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	if err := f.store.Contests().Create(context.Background(), c); err != nil {
		t.Fatalf("create contest %s: %v", id, err)
	}
}

func (f *fixture) submit(t *testing.T, userID string, req SubmitResultRequest) *model.ProfileSummary {
	t.Helper()
	summary, err := f.profile.SubmitResult(context.Background(), userID, req)
	if err != nil {
		t.Fatalf("SubmitResult: %v", err)
	}
	return summary
}

func TestSubmitResultIncrementsCounters(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, model.User{ID: "u1", Rating: 1500, Participations: 2, Solved: 7})
	f.addContest(t, "c1")

	summary := f.submit(t, "u1", SubmitResultRequest{ContestID: "c1", Rank: Number(4), Solved: Number(3), RatingDelta: Number(-25)})

	if summary.Stats.Participations != 3 {
		t.Errorf("participations = %d, want 3", summary.Stats.Participations)
	}
	if summary.Stats.Solved != 10 {
		t.Errorf("solved = %d, want 10", summary.Stats.Solved)
	}
	if summary.Stats.Rating != 1475 {
		t.Errorf("rating = %d, want 1475", summary.Stats.Rating)
	}

	stored, _ := f.store.Users().FindByID(context.Background(), "u1")
	if stored.Participations != 3 || stored.Solved != 10 || stored.Rating != 1475 {
		t.Errorf("stored counters not persisted: %+v", stored)
	}
}

func TestSubmitResultAbsentNumbersCountAsZero(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, model.User{ID: "u1"})
	f.addContest(t, "c1")

	var req SubmitResultRequest
	if err := json.Unmarshal([]byte(`{"contestId":"c1","rank":"first","solved":null,"ratingDelta":{}}`), &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	summary := f.submit(t, "u1", req)

	if summary.Stats.Participations != 1 || summary.Stats.Solved != 0 || summary.Stats.Rating != 0 {
		t.Fatalf("unexpected stats: %+v", summary.Stats)
	}
	if len(summary.History) != 1 {
		t.Fatalf("history length = %d, want 1", len(summary.History))
	}
	if h := summary.History[0]; h.Rank != 0 || h.IsWinner {
		t.Errorf("unranked result should not win: %+v", h)
	}
}

func TestSubmitResultRankOneDefaultsToWinner(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, model.User{ID: "u1"})
	f.addContest(t, "c1")

	f.submit(t, "u1", SubmitResultRequest{ContestID: "c1", Rank: Number(1)})

	res, err := f.store.Results().FindByUserAndContest(context.Background(), nil, "u1", "c1")
	if err != nil {
		t.Fatalf("FindByUserAndContest: %v", err)
	}
	if !res.IsWinner {
		t.Fatal("rank 1 without isWinner should be stored as winner")
	}
}

func TestSubmitResultFractionalRankIsNotDefaultWinner(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, model.User{ID: "u1"})
	f.addContest(t, "c1")

	summary := f.submit(t, "u1", SubmitResultRequest{ContestID: "c1", Rank: Number(1.5)})

	h := summary.History[0]
	if h.Rank != 1 {
		t.Fatalf("stored rank = %d, want 1", h.Rank)
	}
	if h.IsWinner {
		t.Fatal("rank 1.5 without isWinner must not be stored as winner")
	}
}

func TestSubmitResultExplicitWinnerFlagWins(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, model.User{ID: "u1"})
	f.addContest(t, "c1")
	f.addContest(t, "c2")

	no, yes := false, true
	f.submit(t, "u1", SubmitResultRequest{ContestID: "c1", Rank: Number(1), IsWinner: &no})
	summary := f.submit(t, "u1", SubmitResultRequest{ContestID: "c2", Rank: Number(7), IsWinner: &yes})

	if summary.Stats.Wins != 1 {
		t.Fatalf("wins = %d, want 1", summary.Stats.Wins)
	}
}

func TestSubmitResultTruncatesAndClamps(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, model.User{ID: "u1"})
	f.addContest(t, "c1")

	summary := f.submit(t, "u1", SubmitResultRequest{ContestID: "c1", Rank: Number(-3), Solved: Number(2.9), RatingDelta: Number(-12.7)})

	h := summary.History[0]
	if h.Rank != 0 || h.Solved != 2 || h.RatingDelta != -12 {
		t.Fatalf("unexpected normalization: %+v", h)
	}
}

func TestSubmitResultValidationOrder(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, model.User{ID: "admin", Role: model.RoleAdmin})
	f.addUser(t, model.User{ID: "u1"})

	tests := []struct {
		name    string
		userID  string
		req     SubmitResultRequest
		kind    error
		message string
	}{
		{"missing contest id", "ghost", SubmitResultRequest{}, common.ErrValidation, "contest id required"},
		{"unknown user", "ghost", SubmitResultRequest{ContestID: "c1"}, common.ErrNotFound, "user not found"},
		{"admin before contest lookup", "admin", SubmitResultRequest{ContestID: "missing"}, common.ErrPolicy, "admins cannot participate"},
		{"unknown contest", "u1", SubmitResultRequest{ContestID: "missing"}, common.ErrNotFound, "contest not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.profile.SubmitResult(context.Background(), tt.userID, tt.req)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("err = %v, want kind %v", err, tt.kind)
			}
			if err.Error() != tt.message {
				t.Errorf("message = %q, want %q", err.Error(), tt.message)
			}
		})
	}

	if n, _ := f.store.Results().Count(context.Background()); n != 0 {
		t.Fatalf("failed submissions left %d results", n)
	}
}

func TestAdminsAlwaysRejected(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, model.User{ID: "admin", Role: model.RoleAdmin})
	f.addUser(t, model.User{ID: "display", IsPrivilegedDisplayAccount: true})
	f.addContest(t, "c1")

	yes := true
	for _, id := range []string{"admin", "display"} {
		_, err := f.profile.SubmitResult(context.Background(), id, SubmitResultRequest{ContestID: "c1", Rank: Number(1), Solved: Number(5), IsWinner: &yes})
		if !errors.Is(err, common.ErrPolicy) {
			t.Errorf("%s: err = %v, want policy error", id, err)
		}
	}
}

// The untouched* stubs fail the test on any store access.
type untouchedUsers struct {
	repository.UserRepository
	t *testing.T
}

func (u untouchedUsers) FindByID(ctx context.Context, id string) (*model.User, error) {
	u.t.Fatal("user store touched")
	return nil, nil
}

type untouchedContests struct {
	repository.ContestRepository
	t *testing.T
}

func (c untouchedContests) GetByID(ctx context.Context, id string) (*model.Contest, error) {
	c.t.Fatal("contest store touched")
	return nil, nil
}

type untouchedTx struct{ t *testing.T }

func (u untouchedTx) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	u.t.Fatal("transaction started")
	return nil
}

func TestMissingContestIDTouchesNoStore(t *testing.T) {
	svc := NewProfileService(untouchedUsers{t: t}, untouchedContests{t: t}, nil, untouchedTx{t: t}, nil, ProfileOptions{}, nil)

	_, err := svc.SubmitResult(context.Background(), "u1", SubmitResultRequest{ContestID: "   ", Rank: Number(1)})
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestGetProfileUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.profile.GetProfile(context.Background(), "ghost")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if common.HTTPStatusFromError(err) != 404 {
		t.Fatalf("status = %d, want 404", common.HTTPStatusFromError(err))
	}
}

func TestGetProfileReconcilesDriftedCounters(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, model.User{ID: "u1", Rating: 42, Participations: 1, Solved: 1})
	f.addContest(t, "c1")
	f.addContest(t, "c2")

	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, r := range []model.ContestResult{
		{ID: "r1", UserID: "u1", ContestID: "c1", Solved: 4, IsWinner: true},
		{ID: "r2", UserID: "u1", ContestID: "c2", Solved: 3},
		{ID: "r3", UserID: "u1", ContestID: "c2", Solved: 1},
	} {
		r.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := f.store.Results().Create(context.Background(), nil, &r); err != nil {
			t.Fatalf("create result: %v", err)
		}
	}

	summary, err := f.profile.GetProfile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	want := model.ProfileStats{Rating: 42, Participations: 3, Solved: 8, Wins: 1}
	if summary.Stats != want {
		t.Fatalf("stats = %+v, want %+v", summary.Stats, want)
	}
	if got := []string{summary.History[0].ID, summary.History[1].ID, summary.History[2].ID}; got[0] != "r3" || got[1] != "r2" || got[2] != "r1" {
		t.Fatalf("history not newest first: %v", got)
	}
	if summary.History[2].Title != "Contest c1" || summary.History[2].Platform != "codeforces" {
		t.Errorf("history missing contest metadata: %+v", summary.History[2])
	}
}

func TestGetProfileKeepsHigherStoredCounters(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, model.User{ID: "u1", Participations: 9, Solved: 30})

	summary, err := f.profile.GetProfile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if summary.Stats.Participations != 9 || summary.Stats.Solved != 30 {
		t.Fatalf("stored counters should win: %+v", summary.Stats)
	}
	if summary.History == nil || len(summary.History) != 0 {
		t.Fatalf("history should be an empty list, got %#v", summary.History)
	}
}

func TestGetProfilePrivilegedWinsFloor(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, model.User{ID: "display", IsPrivilegedDisplayAccount: true})
	f.addUser(t, model.User{ID: "u1"})

	for id, want := range map[string]int{"display": 5, "u1": 0} {
		summary, err := f.profile.GetProfile(context.Background(), id)
		if err != nil {
			t.Fatalf("GetProfile(%s): %v", id, err)
		}
		if summary.Stats.Wins != want {
			t.Errorf("%s wins = %d, want %d", id, summary.Stats.Wins, want)
		}
	}
}

func TestParticipationsNeverBelowHistory(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, model.User{ID: "u1"})
	f.addContest(t, "c1")

	for i := 0; i < 4; i++ {
		summary := f.submit(t, "u1", SubmitResultRequest{ContestID: "c1", Rank: Number(float64(i + 2))})
		if summary.Stats.Participations < len(summary.History) {
			t.Fatalf("participations %d below history %d", summary.Stats.Participations, len(summary.History))
		}
	}
}

func TestOptionalNumberDecoding(t *testing.T) {
	tests := []struct {
		raw   string
		valid bool
		want  int
	}{
		{`3`, true, 3},
		{`-4.8`, true, -4},
		{`1e12`, true, 2147483647},
		{`null`, false, 0},
		{`"7"`, false, 0},
		{`true`, false, 0},
		{`[1]`, false, 0},
	}
	for _, tt := range tests {
		var n OptionalNumber
		if err := json.Unmarshal([]byte(tt.raw), &n); err != nil {
			t.Fatalf("%s: unexpected error %v", tt.raw, err)
		}
		if n.Valid != tt.valid || n.Int() != tt.want {
			t.Errorf("%s: got (%v, %d), want (%v, %d)", tt.raw, n.Valid, n.Int(), tt.valid, tt.want)
		}
	}
}
