package discovery

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huskychat/huskychat/internal/models"
)

// pagedIndex serves a fixed shard list through the paging API and counts
// ListShards calls.
type pagedIndex struct {
	shards  []string
	calls   int
	failAt  int // page number (1-based) that returns an error, 0 = never
	failAll bool
}

func (f *pagedIndex) ListShards(_ context.Context, limit, offset int) ([]string, error) {
	f.calls++
	if f.failAll {
		return nil, fmt.Errorf("connection refused")
	}
	if f.failAt > 0 && f.calls == f.failAt {
		return nil, fmt.Errorf("listing timed out")
	}
	if offset >= len(f.shards) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.shards) {
		end = len(f.shards)
	}
	return f.shards[offset:end], nil
}

func (f *pagedIndex) Query(context.Context, string, []float32, int) ([]models.DocumentHit, error) {
	return nil, nil
}

func makeShards(n int) []string {
	shards := make([]string, n)
	for i := range shards {
		shards[i] = fmt.Sprintf("documents_batch_%d", i+1)
	}
	return shards
}

func TestShardsPaginationCompleteness(t *testing.T) {
	// 3 full pages of 10 plus a partial page of 4
	index := &pagedIndex{shards: makeShards(34)}
	d := New(index, Config{PageSize: 10}, zerolog.Nop())

	names, err := d.Shards(context.Background())
	require.NoError(t, err)

	require.Len(t, names, 34)
	seen := make(map[string]bool)
	for _, name := range names {
		assert.False(t, seen[name], "duplicate shard %s", name)
		seen[name] = true
	}
	assert.Equal(t, 4, index.calls)
}

func TestShardsExactPageBoundary(t *testing.T) {
	// 2 exactly-full pages: a trailing empty page terminates the loop
	index := &pagedIndex{shards: makeShards(20)}
	d := New(index, Config{PageSize: 10}, zerolog.Nop())

	names, err := d.Shards(context.Background())
	require.NoError(t, err)
	assert.Len(t, names, 20)
	assert.Equal(t, 3, index.calls)
}

func TestShardsPartialFailure(t *testing.T) {
	// Second page errors: the first page is still returned
	index := &pagedIndex{shards: makeShards(25), failAt: 2}
	d := New(index, Config{PageSize: 10}, zerolog.Nop())

	names, err := d.Shards(context.Background())
	require.NoError(t, err)
	assert.Len(t, names, 10)
}

func TestShardsTotalFailure(t *testing.T) {
	index := &pagedIndex{failAll: true}
	d := New(index, Config{PageSize: 10}, zerolog.Nop())

	_, err := d.Shards(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDiscovery)
}

func TestShardsCached(t *testing.T) {
	index := &pagedIndex{shards: makeShards(5)}
	d := New(index, Config{PageSize: 10, TTL: time.Minute}, zerolog.Nop())

	_, err := d.Shards(context.Background())
	require.NoError(t, err)
	callsAfterFirst := index.calls

	names, err := d.Shards(context.Background())
	require.NoError(t, err)
	assert.Len(t, names, 5)
	assert.Equal(t, callsAfterFirst, index.calls, "second lookup must hit the cache")
}

func TestShardsStaleWhileRevalidate(t *testing.T) {
	index := &pagedIndex{shards: makeShards(5)}
	d := New(index, Config{PageSize: 10, TTL: time.Nanosecond}, zerolog.Nop())

	first, err := d.Shards(context.Background())
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	// Stale read returns immediately with the old snapshot
	second, err := d.Shards(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestInvalidate(t *testing.T) {
	index := &pagedIndex{shards: makeShards(5)}
	d := New(index, Config{PageSize: 10, TTL: time.Minute}, zerolog.Nop())

	_, err := d.Shards(context.Background())
	require.NoError(t, err)

	d.Invalidate()

	_, err = d.Shards(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, index.calls)
}
