package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"contest_tracker/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

const (
	leaderboardKeyPrefix = "leaderboard:top:"
	leaderboardGenKey    = "leaderboard:gen"
)

// LeaderboardCache keeps rendered top-player pages in Redis. A nil cache or a
// nil client is valid and caches nothing.
//
// Pages are keyed by a generation number. Invalidate bumps the generation, so
// a page computed from data read before the bump lands under a key nobody
// asks for again and simply expires.
type LeaderboardCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewLeaderboardCache(rdb *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{rdb: rdb, ttl: ttl}
}

func (c *LeaderboardCache) enabled() bool {
	return c != nil && c.rdb != nil && c.ttl > 0
}

func leaderboardKey(gen int64, limit int, excludeRoles []model.Role) string {
	roles := make([]string, len(excludeRoles))
	for i, r := range excludeRoles {
		roles[i] = string(r)
	}
	sort.Strings(roles)
	return fmt.Sprintf("%s%d:%d:%s", leaderboardKeyPrefix, gen, limit, strings.Join(roles, ","))
}

// Generation returns the current cache generation. Read it before loading
// the data that will be passed to Set.
func (c *LeaderboardCache) Generation(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	gen, err := c.rdb.Get(ctx, leaderboardGenKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

// Get returns the page cached for gen and whether it was present.
func (c *LeaderboardCache) Get(ctx context.Context, gen int64, limit int, excludeRoles []model.Role) ([]model.LeaderboardEntry, bool, error) {
	if !c.enabled() {
		return nil, false, nil
	}
	raw, err := c.rdb.Get(ctx, leaderboardKey(gen, limit, excludeRoles)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var entries []model.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

// Set stores entries under gen, which must be the generation read before the
// entries were loaded.
func (c *LeaderboardCache) Set(ctx context.Context, gen int64, limit int, excludeRoles []model.Role, entries []model.LeaderboardEntry) error {
	if !c.enabled() {
		return nil
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, leaderboardKey(gen, limit, excludeRoles), raw, c.ttl).Err()
}

// Invalidate retires every cached page by starting a new generation.
func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.rdb.Incr(ctx, leaderboardGenKey).Err()
}

// Ping reports the cache state for the status endpoint.
func (c *LeaderboardCache) Ping(ctx context.Context) string {
	if !c.enabled() {
		return "disabled"
	}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return "down"
	}
	return "ok"
}
