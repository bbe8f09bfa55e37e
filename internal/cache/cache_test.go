package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	c, err := Connect(context.Background(), Config{URL: "redis://" + mr.Addr(), TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return mr, c
}

func completeAnalysis() *domain.Analysis {
	done := time.Date(2026, 3, 14, 12, 0, 5, 0, time.UTC)
	return &domain.Analysis{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Status:      domain.AnalysisStatusComplete,
		MealName:    "Dinner",
		ImageKey:    "analyses/x/image.jpg",
		ContentType: "image/jpeg",
		Result: &domain.AnalysisResult{
			Items:   []domain.FoodItem{{FoodName: "rice", Confidence: 0.8, Calories: 200}},
			Summary: domain.Summary{TotalCalories: 200},
		},
		CreatedAt:   done.Add(-5 * time.Second),
		UpdatedAt:   done,
		CompletedAt: &done,
	}
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, c := setupMiniredis(t)
	ctx := context.Background()
	a := completeAnalysis()

	require.NoError(t, c.Set(ctx, a))
	assert.True(t, mr.Exists(key(a.ID)))
	assert.Equal(t, time.Minute, mr.TTL(key(a.ID)))

	got, ok, err := c.Get(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a.UserID, got.UserID)
	assert.Equal(t, domain.AnalysisStatusComplete, got.Status)
	assert.Equal(t, "analyses/x/image.jpg", got.ImageKey)
	assert.Equal(t, "rice", got.Result.Items[0].FoodName)
	assert.True(t, a.CompletedAt.Equal(*got.CompletedAt))
}

func TestRedisCache_IgnoresProcessing(t *testing.T) {
	mr, c := setupMiniredis(t)
	a := completeAnalysis()
	a.Status = domain.AnalysisStatusProcessing

	require.NoError(t, c.Set(context.Background(), a))
	assert.False(t, mr.Exists(key(a.ID)))
}

func TestRedisCache_MissAndExpiry(t *testing.T) {
	mr, c := setupMiniredis(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	a := completeAnalysis()
	require.NoError(t, c.Set(ctx, a))
	mr.FastForward(2 * time.Minute)

	_, ok, err = c.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	mr, c := setupMiniredis(t)
	id := uuid.New()
	require.NoError(t, mr.Set(key(id), "{not json"))

	_, ok, err := c.Get(context.Background(), id)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedisCache_ServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	c := New(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}), 0)
	defer c.Close()
	mr.Close()

	_, _, err = c.Get(context.Background(), uuid.New())
	assert.Error(t, err)
	assert.Error(t, c.Set(context.Background(), completeAnalysis()))
}

func TestConnect_BadURL(t *testing.T) {
	_, err := Connect(context.Background(), Config{URL: "://nope"})
	assert.Error(t, err)
}
