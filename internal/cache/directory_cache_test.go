package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/cache"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

type countingDirectory struct {
	calls int
	users []domain.User
}

func (d *countingDirectory) FindActiveByRoles(context.Context, []domain.Role) ([]domain.User, error) {
	d.calls++
	return d.users, nil
}

func TestKeyIgnoresRoleOrder(t *testing.T) {
	a := cache.Key([]domain.Role{domain.RoleIT, domain.RoleAdmin, domain.RoleSuperAdmin})
	b := cache.Key([]domain.Role{domain.RoleSuperAdmin, domain.RoleIT, domain.RoleAdmin})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, cache.Key([]domain.Role{domain.RoleHR, domain.RoleAdmin, domain.RoleSuperAdmin}))
}

func TestDisabledCachePassesThrough(t *testing.T) {
	next := &countingDirectory{users: []domain.User{{ID: "u1", Role: domain.RoleIT, IsActive: true}}}
	dc := cache.NewDirectoryCache(next, nil, time.Minute, nil)

	for i := 0; i < 3; i++ {
		users, err := dc.FindActiveByRoles(context.Background(), []domain.Role{domain.RoleIT})
		require.NoError(t, err)
		assert.Len(t, users, 1)
	}
	assert.Equal(t, 3, next.calls)
	assert.NoError(t, dc.Invalidate(context.Background()))
}

// Runs against a real Redis when REDIS_TEST_ADDR is set.
func TestDirectoryCacheWithRedis(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	next := &countingDirectory{users: []domain.User{
		{ID: "u1", Name: "Ivy", Role: domain.RoleIT, PasswordHash: "secret", IsActive: true},
	}}
	dc := cache.NewDirectoryCache(next, client, time.Minute, nil)
	require.NoError(t, dc.Invalidate(ctx))

	roles := []domain.Role{domain.RoleIT, domain.RoleAdmin, domain.RoleSuperAdmin}
	first, err := dc.FindActiveByRoles(ctx, roles)
	require.NoError(t, err)
	second, err := dc.FindActiveByRoles(ctx, roles)
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Empty(t, second[0].PasswordHash)
	assert.True(t, second[0].IsActive)

	require.NoError(t, dc.Invalidate(ctx))
	_, err = dc.FindActiveByRoles(ctx, roles)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}
