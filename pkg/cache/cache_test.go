package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huskychat/huskychat/internal/models"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewWithClient(client, time.Minute, zerolog.Nop())
	t.Cleanup(func() { c.Close() })

	return c, mr
}

func TestAnswerRoundTrip(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	answer := &models.Answer{
		Text:              "The co-op program alternates classroom semesters with work terms.",
		Confidence:        "high",
		ConfidencePercent: 82,
		Sources: []models.Source{
			{Title: "Co-op Overview", URL: "https://example.edu/coop", Similarity: 0.91, Rank: 1},
		},
		DocumentsSearched: 12,
	}
	c.SetAnswer(ctx, "What is the co-op program?", answer)

	got, ok := c.GetAnswer(ctx, "What is the co-op program?")
	require.True(t, ok)
	assert.Equal(t, answer, got)
}

func TestAnswerMiss(t *testing.T) {
	c, _ := setupTestCache(t)

	got, ok := c.GetAnswer(context.Background(), "never asked")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestAnswerKeyNormalization(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	c.SetAnswer(ctx, "  What Is The Co-op Program?  ", &models.Answer{Text: "cached"})

	got, ok := c.GetAnswer(ctx, "what is the co-op program?")
	require.True(t, ok)
	assert.Equal(t, "cached", got.Text)
}

func TestAnswerExpires(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	c.SetAnswer(ctx, "question", &models.Answer{Text: "cached"})
	mr.FastForward(2 * time.Minute)

	_, ok := c.GetAnswer(ctx, "question")
	assert.False(t, ok)
}

func TestEmbeddingRoundTrip(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	embedding := []float32{0.1, -0.25, 0.333}
	c.SetEmbedding(ctx, "housing deadlines", embedding)

	got, ok := c.GetEmbedding(ctx, "housing deadlines")
	require.True(t, ok)
	assert.Equal(t, embedding, got)
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	c, mr := setupTestCache(t)

	require.NoError(t, mr.Set(answerPrefix+questionKey("question"), "not json"))

	got, ok := c.GetAnswer(context.Background(), "question")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestRedisDownIsAMiss(t *testing.T) {
	c, mr := setupTestCache(t)
	mr.Close()

	_, ok := c.GetAnswer(context.Background(), "question")
	assert.False(t, ok)

	// Writes must not panic either.
	c.SetAnswer(context.Background(), "question", &models.Answer{Text: "x"})
}
