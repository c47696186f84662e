package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/huskychat/huskychat/internal/models"
)

const (
	answerPrefix    = "answer:"
	embeddingPrefix = "embedding:"

	defaultTTL = time.Hour
)

type Config struct {
	Addr string
	TTL  time.Duration
}

// Cache is a Redis-backed answer and embedding cache. It is strictly
// best-effort: every failure degrades to a cache miss so a Redis outage
// never takes down chat.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func New(config Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{Addr: config.Addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", config.Addr, err)
	}
	return NewWithClient(client, config.TTL, logger), nil
}

// NewWithClient wraps an existing client. The caller keeps ownership of the
// client's lifetime when constructed this way, but Close still closes it.
func NewWithClient(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

func (c *Cache) GetAnswer(ctx context.Context, question string) (*models.Answer, bool) {
	data, err := c.client.Get(ctx, answerPrefix+questionKey(question)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("answer cache read failed")
		return nil, false
	}

	var answer models.Answer
	if err := json.Unmarshal(data, &answer); err != nil {
		c.logger.Warn().Err(err).Msg("discarding corrupt cached answer")
		return nil, false
	}
	return &answer, true
}

func (c *Cache) SetAnswer(ctx context.Context, question string, answer *models.Answer) {
	data, err := json.Marshal(answer)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to marshal answer for cache")
		return
	}
	if err := c.client.Set(ctx, answerPrefix+questionKey(question), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("answer cache write failed")
	}
}

func (c *Cache) GetEmbedding(ctx context.Context, text string) ([]float32, bool) {
	data, err := c.client.Get(ctx, embeddingPrefix+hashKey(text)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("embedding cache read failed")
		return nil, false
	}

	var embedding []float32
	if err := json.Unmarshal(data, &embedding); err != nil {
		c.logger.Warn().Err(err).Msg("discarding corrupt cached embedding")
		return nil, false
	}
	return embedding, true
}

func (c *Cache) SetEmbedding(ctx context.Context, text string, embedding []float32) {
	data, err := json.Marshal(embedding)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to marshal embedding for cache")
		return
	}
	if err := c.client.Set(ctx, embeddingPrefix+hashKey(text), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("embedding cache write failed")
	}
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// questionKey normalizes before hashing so trivially different phrasings of
// the same question share an entry.
func questionKey(question string) string {
	return hashKey(strings.ToLower(strings.TrimSpace(question)))
}

func hashKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
