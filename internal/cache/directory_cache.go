// Package cache fronts the user directory with Redis so ticket creation does
// not hit Postgres for the candidate pool on every request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/assignment"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const keyPrefix = "helpdesk:directory:active:"

// candidate is the cached projection of a user. Credentials never leave the
// primary store.
type candidate struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Role       domain.Role `json:"role"`
	Department string      `json:"department"`
}

// DirectoryCache caches active-user lookups by role set.
type DirectoryCache struct {
	next   assignment.Directory
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewDirectoryCache wraps next. A nil client or non-positive ttl disables
// caching and every call goes straight to next.
func NewDirectoryCache(next assignment.Directory, client *redis.Client, ttl time.Duration, logger *zap.Logger) *DirectoryCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryCache{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *DirectoryCache) enabled() bool {
	return c.client != nil && c.ttl > 0
}

// FindActiveByRoles serves from Redis when possible. Redis failures degrade
// to a direct lookup.
func (c *DirectoryCache) FindActiveByRoles(ctx context.Context, roles []domain.Role) ([]domain.User, error) {
	if !c.enabled() {
		return c.next.FindActiveByRoles(ctx, roles)
	}

	key := Key(roles)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []candidate
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return toUsers(cached), nil
		}
		c.logger.Warn("discarding malformed directory cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("directory cache read failed", zap.String("key", key), zap.Error(err))
	}

	users, err := c.next.FindActiveByRoles(ctx, roles)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(fromUsers(users))
	if err != nil {
		return users, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("directory cache write failed", zap.String("key", key), zap.Error(err))
	}
	return users, nil
}

// Invalidate drops every cached candidate pool. It is called after a user's
// role or active flag changes.
func (c *DirectoryCache) Invalidate(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	keys := make([]string, 0, 3)
	for _, category := range []domain.Category{domain.CategoryIT, domain.CategoryHR, domain.CategoryAdmin} {
		keys = append(keys, Key(assignment.EligibleRoles(category)))
	}
	return c.client.Del(ctx, keys...).Err()
}

// Key returns the cache key for a role set, independent of role order.
func Key(roles []domain.Role) string {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	sort.Strings(names)
	return keyPrefix + strings.Join(names, ",")
}

func fromUsers(users []domain.User) []candidate {
	out := make([]candidate, 0, len(users))
	for _, u := range users {
		out = append(out, candidate{ID: u.ID, Name: u.Name, Role: u.Role, Department: u.Department})
	}
	return out
}

func toUsers(cached []candidate) []domain.User {
	out := make([]domain.User, 0, len(cached))
	for _, c := range cached {
		out = append(out, domain.User{ID: c.ID, Name: c.Name, Role: c.Role, Department: c.Department, IsActive: true})
	}
	return out
}
