// Package seed loads demo contests and accounts from a YAML fixture.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"contest_tracker/internal/common"
	"contest_tracker/internal/common/security"
	"contest_tracker/internal/domain/model"
	"contest_tracker/internal/domain/repository"
	"contest_tracker/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"
)

//go:embed fixture.yaml
var DefaultFixture []byte

type Fixture struct {
	Contests []ContestFixture `yaml:"contests"`
	Users    []UserFixture    `yaml:"users"`
}

type ContestFixture struct {
	Title       string    `yaml:"title"`
	Platform    string    `yaml:"platform"`
	StartTime   time.Time `yaml:"start_time"`
	Duration    string    `yaml:"duration"`
	URL         string    `yaml:"url"`
	Description string    `yaml:"description"`
	Difficulty  string    `yaml:"difficulty"`
}

type UserFixture struct {
	Name              string     `yaml:"name"`
	Email             string     `yaml:"email"`
	Password          string     `yaml:"password"`
	Role              model.Role `yaml:"role"`
	Rating            int        `yaml:"rating"`
	PrivilegedDisplay bool       `yaml:"privileged_display"`
}

// Parse decodes and checks a fixture.
func Parse(raw []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	for i, c := range f.Contests {
		if strings.TrimSpace(c.Title) == "" || strings.TrimSpace(c.Platform) == "" || c.StartTime.IsZero() {
			return nil, fmt.Errorf("contest %d: title, platform and start_time are required", i)
		}
	}
	for i, u := range f.Users {
		if u.Name == "" || u.Email == "" || u.Password == "" {
			return nil, fmt.Errorf("user %d: name, email and password are required", i)
		}
		if u.Role == "" {
			f.Users[i].Role = model.RoleRegular
		} else if !u.Role.Valid() {
			return nil, fmt.Errorf("user %q: invalid role %q", u.Name, u.Role)
		}
	}
	return &f, nil
}

type Result struct {
	ContestsCreated int
	UsersCreated    int
	Skipped         int
}

// Apply inserts the fixture rows that are not present yet. Rows that collide
// with an existing slug, name or email are skipped.
func Apply(ctx context.Context, f *Fixture, users repository.UserRepository, contests repository.ContestRepository) (Result, error) {
	log := logger.L()
	var res Result

	for _, c := range f.Contests {
		contest := &model.Contest{
			ID:          uuid.NewString(),
			Title:       strings.TrimSpace(c.Title),
			Slug:        slug.Make(c.Title + " " + c.Platform),
			Platform:    strings.TrimSpace(c.Platform),
			StartTime:   c.StartTime.UTC(),
			Duration:    optional(c.Duration),
			URL:         optional(c.URL),
			Description: optional(c.Description),
			Difficulty:  optional(c.Difficulty),
		}
		err := contests.Create(ctx, contest)
		switch {
		case errors.Is(err, common.ErrConflict):
			res.Skipped++
		case err != nil:
			return res, fmt.Errorf("create contest %q: %w", c.Title, err)
		default:
			res.ContestsCreated++
			log.Info("Seeded contest", zap.String("slug", contest.Slug))
		}
	}

	for _, u := range f.Users {
		hashed, err := security.HashPassword(u.Password)
		if err != nil {
			return res, fmt.Errorf("hash password for %q: %w", u.Name, err)
		}
		user := &model.User{
			ID:                         uuid.NewString(),
			Name:                       u.Name,
			Email:                      strings.ToLower(u.Email),
			HashedPassword:             hashed,
			Role:                       u.Role,
			Rating:                     u.Rating,
			IsPrivilegedDisplayAccount: u.PrivilegedDisplay,
		}
		err = users.Create(ctx, user)
		switch {
		case errors.Is(err, common.ErrConflict):
			res.Skipped++
		case err != nil:
			return res, fmt.Errorf("create user %q: %w", u.Name, err)
		default:
			res.UsersCreated++
			log.Info("Seeded user", zap.String("name", user.Name), zap.String("role", string(user.Role)))
		}
	}
	return res, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
