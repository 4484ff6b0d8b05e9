package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader/internal/grading"
)

func TestRedisResultCacheRoundTrip(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	cache := NewRedisResultCache(client, time.Hour, zerolog.Nop())
	ctx := context.Background()

	_, ok := cache.Get(ctx, "digest")
	require.False(t, ok)

	result := grading.GradingResult{Analysis: "ok", Scores: map[string]int{"layout": 2}, TotalScore: 2}
	cache.Set(ctx, "digest", result)

	require.True(t, server.Exists("grader:result:digest"))
	require.Equal(t, time.Hour, server.TTL("grader:result:digest"))

	cached, ok := cache.Get(ctx, "digest")
	require.True(t, ok)
	require.Equal(t, result, cached)

	server.FastForward(2 * time.Hour)
	_, ok = cache.Get(ctx, "digest")
	require.False(t, ok)
}

func TestRedisResultCacheTreatsFailuresAsMisses(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	defer client.Close()

	cache := NewRedisResultCache(client, time.Hour, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, server.Set("grader:result:corrupt", "not json"))
	_, ok := cache.Get(ctx, "corrupt")
	require.False(t, ok)

	server.Close()
	cache.Set(ctx, "digest", grading.GradingResult{TotalScore: 1})
	_, ok = cache.Get(ctx, "digest")
	require.False(t, ok)
}
