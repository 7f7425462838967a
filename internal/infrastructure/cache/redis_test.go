package cache

import (
	"context"
	"testing"

	"cvalign/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedis_UnreachableServerBypasses(t *testing.T) {
	r := NewRedis(config.RedisConfig{Host: "127.0.0.1", Port: "1"}, nil)
	ctx := context.Background()

	require.Error(t, r.Ping(ctx))

	var out map[string]int
	hit, err := r.GetJSON(ctx, KeyStats, &out)
	assert.NoError(t, err)
	assert.False(t, hit)

	assert.NoError(t, r.SetJSON(ctx, KeyStats, map[string]int{"a": 1}, 0))
	assert.NoError(t, r.Delete(ctx, KeyStats))
	assert.NotPanics(t, func() {
		r.InvalidateGraphQueries(ctx)
		r.InvalidateSkillListings(ctx)
	})
}

func TestRedis_NilIsSafe(t *testing.T) {
	var r *Redis
	hit, err := r.GetJSON(context.Background(), "k", &struct{}{})
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NotPanics(t, func() { r.InvalidateGraphQueries(context.Background()) })
}
