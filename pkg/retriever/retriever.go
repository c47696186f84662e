package retriever

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/huskychat/huskychat/internal/models"
	"github.com/huskychat/huskychat/internal/types"
)

// ErrRetrieval means not a single shard search succeeded. The caller must
// degrade to an explicit "insufficient information" answer.
var ErrRetrieval = errors.New("retrieval failed: no shard searched successfully")

type Config struct {
	Workers         int
	PerShardK       int
	PerShardTimeout time.Duration
	ShardBudget     int
	MinHits         int
}

// Retriever fans a single query embedding out across shards with a bounded
// worker pool. Slow or broken shards count as empty, never as fatal.
type Retriever struct {
	index  types.VectorIndex
	config Config
	logger zerolog.Logger
}

func New(index types.VectorIndex, config Config, logger zerolog.Logger) *Retriever {
	if config.Workers == 0 {
		config.Workers = 12
	}
	if config.PerShardK == 0 {
		config.PerShardK = 10
	}
	if config.PerShardTimeout == 0 {
		config.PerShardTimeout = 5 * time.Second
	}
	if config.ShardBudget == 0 {
		config.ShardBudget = 150
	}
	if config.MinHits == 0 {
		config.MinHits = 30
	}

	return &Retriever{
		index:  index,
		config: config,
		logger: logger,
	}
}

// Search queries the selected shards concurrently and returns every hit
// gathered before the exit condition. Dispatch stops once MinHits results
// have accumulated or the shard budget is spent; aggregation starts only
// after all dispatched shard queries finished or timed out.
func (r *Retriever) Search(ctx context.Context, embedding []float32, shards []string, query string) ([]models.DocumentHit, error) {
	targets := r.selectShards(query, shards)
	if len(targets) == 0 {
		return nil, ErrRetrieval
	}

	var (
		hitCount  atomic.Int64
		succeeded atomic.Int64
	)

	jobs := make(chan string)
	results := make(chan []models.DocumentHit, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < r.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for shard := range jobs {
				hits := r.searchShard(ctx, shard, embedding)
				if hits == nil {
					continue
				}
				succeeded.Add(1)
				hitCount.Add(int64(len(hits)))
				if len(hits) > 0 {
					results <- hits
				}
			}
		}()
	}

	start := time.Now()
	dispatched := 0

dispatch:
	for _, shard := range targets {
		if hitCount.Load() >= int64(r.config.MinHits) {
			break
		}
		select {
		case jobs <- shard:
			dispatched++
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	var all []models.DocumentHit
	for hits := range results {
		all = append(all, hits...)
	}

	r.logger.Info().
		Int("shards_dispatched", dispatched).
		Int64("shards_succeeded", succeeded.Load()).
		Int("hits", len(all)).
		Dur("elapsed", time.Since(start)).
		Msg("fan-out search complete")

	if succeeded.Load() == 0 {
		return nil, ErrRetrieval
	}

	return all, nil
}

// searchShard runs one bounded nearest-neighbor query. A timeout or error
// yields nil; the overall request never waits on a dead shard.
func (r *Retriever) searchShard(ctx context.Context, shard string, embedding []float32) []models.DocumentHit {
	qctx, cancel := context.WithTimeout(ctx, r.config.PerShardTimeout)
	defer cancel()

	hits, err := r.index.Query(qctx, shard, embedding, r.config.PerShardK)
	if err != nil {
		r.logger.Warn().Err(err).Str("shard", shard).Msg("shard search failed")
		return nil
	}
	if hits == nil {
		hits = []models.DocumentHit{}
	}
	return hits
}

// selectShards narrows the shard list by topic when the query matches a
// known category, otherwise samples the full list evenly. Either way the
// result is capped at the shard budget.
func (r *Retriever) selectShards(query string, shards []string) []string {
	if t, ok := matchTopic(query); ok {
		if matched := shardsForTopic(t, shards); len(matched) > 0 {
			r.logger.Debug().
				Str("category", t.name).
				Int("shards", len(matched)).
				Msg("topic-targeted shard selection")
			return sampleEvenly(matched, r.config.ShardBudget)
		}
	}

	return sampleEvenly(shards, r.config.ShardBudget)
}
