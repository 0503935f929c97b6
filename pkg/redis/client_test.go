package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/config"
)

func TestClientAgainstMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewClient(config.RedisConfig{Addr: mr.Addr(), PoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Set(ctx, "search:1:a", "x", time.Minute))
	require.NoError(t, c.Set(ctx, "search:1:b", "y", time.Minute))
	require.NoError(t, c.Set(ctx, "other", "z", 0))

	v, err := c.Get(ctx, "search:1:a")
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	_, err = c.Get(ctx, "missing")
	assert.True(t, IsNilError(err))

	n, err := c.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	count, err := c.CountByPattern(ctx, "search:*")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	deleted, err := c.FlushByPattern(ctx, "search:*")
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
	assert.True(t, mr.Exists("other"))

	require.NoError(t, c.Del(ctx, "other"))
	assert.False(t, mr.Exists("other"))
}

func TestNewClientFailsFast(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}

func TestWrap(t *testing.T) {
	mr := miniredis.RunT(t)
	c := Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	assert.NoError(t, c.Ping(context.Background()))
}
