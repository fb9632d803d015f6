package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAnswerCacheSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryAnswerCache()

	require.NoError(t, cache.SaveAnswer(ctx, "exam-1", 7, "q1", "A"))
	require.NoError(t, cache.SaveAnswer(ctx, "exam-1", 7, "q2", "C"))
	// Last write wins on re-answer.
	require.NoError(t, cache.SaveAnswer(ctx, "exam-1", 7, "q1", "B"))

	answers, err := cache.Load(ctx, "exam-1", 7)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"q1": "B", "q2": "C"}, answers)
}

func TestMemoryAnswerCacheIsolatesCandidates(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryAnswerCache()

	require.NoError(t, cache.SaveAnswer(ctx, "exam-1", 7, "q1", "A"))
	require.NoError(t, cache.SaveAnswer(ctx, "exam-1", 8, "q1", "D"))
	require.NoError(t, cache.SaveAnswer(ctx, "exam-2", 7, "q1", "B"))

	answers, err := cache.Load(ctx, "exam-1", 7)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"q1": "A"}, answers)
}

func TestMemoryAnswerCacheFlags(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryAnswerCache()

	require.NoError(t, cache.SetFlag(ctx, "exam-1", 7, "q3", true))
	require.NoError(t, cache.SetFlag(ctx, "exam-1", 7, "q5", true))
	require.NoError(t, cache.SetFlag(ctx, "exam-1", 7, "q3", false))

	flags, err := cache.Flags(ctx, "exam-1", 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"q5"}, flags)
}

func TestMemoryAnswerCacheClear(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryAnswerCache()

	require.NoError(t, cache.SaveAnswer(ctx, "exam-1", 7, "q1", "A"))
	require.NoError(t, cache.SetFlag(ctx, "exam-1", 7, "q1", true))
	require.NoError(t, cache.Clear(ctx, "exam-1", 7))

	answers, err := cache.Load(ctx, "exam-1", 7)
	require.NoError(t, err)
	assert.Empty(t, answers)

	flags, err := cache.Flags(ctx, "exam-1", 7)
	require.NoError(t, err)
	assert.Empty(t, flags)
}
