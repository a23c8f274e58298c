package auth

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"classroom/internal/metrics"
)

func TestRedisRegistry(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	reg := NewRedisRegistry(client, "classroom-test:session:")
	t.Cleanup(func() { _ = reg.Clear(ctx) })

	before := testutil.ToFloat64(metrics.ActiveSessions)
	s, err := reg.Issue(ctx, RoleStudent, "stu-1")
	require.NoError(t, err)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.ActiveSessions))

	got, ok, err := reg.Resolve(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, RoleStudent, got.Role)
	require.Equal(t, "stu-1", got.Identity)

	ttl, err := client.TTL(ctx, "classroom-test:session:"+s.ID).Result()
	require.NoError(t, err)
	require.Equal(t, time.Duration(-1), ttl, "session keys must not expire")

	require.NoError(t, reg.Revoke(ctx, s.ID))
	require.Equal(t, before, testutil.ToFloat64(metrics.ActiveSessions))
	require.NoError(t, reg.Revoke(ctx, s.ID))
	require.Equal(t, before, testutil.ToFloat64(metrics.ActiveSessions))
	_, ok, err = reg.Resolve(ctx, s.ID)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = reg.Issue(ctx, RoleAdmin, "admin")
	require.NoError(t, err)
	require.NoError(t, reg.Clear(ctx))
	keys, err := client.Keys(ctx, "classroom-test:session:*").Result()
	require.NoError(t, err)
	require.Empty(t, keys)
}
