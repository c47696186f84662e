package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/huskychat/huskychat/internal/types"
)

// ErrDiscovery means shard enumeration failed entirely: the store was
// unreachable before a single page came back.
var ErrDiscovery = errors.New("shard discovery failed")

type Config struct {
	PageSize int
	TTL      time.Duration
}

// Discoverer enumerates the shard list page by page and caches the result.
// The cache is refreshed lazily: stale readers get the previous snapshot
// immediately while one goroutine refreshes in the background.
type Discoverer struct {
	index  types.VectorIndex
	config Config
	logger zerolog.Logger

	snapshot   atomic.Pointer[snapshot]
	refreshing atomic.Bool
	fetchMu    sync.Mutex // serializes cold-cache fetches
}

type snapshot struct {
	names   []string
	fetched time.Time
}

func New(index types.VectorIndex, config Config, logger zerolog.Logger) *Discoverer {
	if config.PageSize == 0 {
		config.PageSize = 1000
	}
	if config.TTL == 0 {
		config.TTL = 5 * time.Minute
	}

	return &Discoverer{
		index:  index,
		config: config,
		logger: logger,
	}
}

// Shards returns the full shard list, fetching it on a cold cache and
// serving the cached copy otherwise. A stale cache is returned as-is while
// a background refresh runs.
func (d *Discoverer) Shards(ctx context.Context) ([]string, error) {
	snap := d.snapshot.Load()
	if snap != nil {
		if time.Since(snap.fetched) < d.config.TTL {
			return snap.names, nil
		}

		if d.refreshing.CompareAndSwap(false, true) {
			go d.refresh()
		}
		return snap.names, nil
	}

	d.fetchMu.Lock()
	defer d.fetchMu.Unlock()

	// Another caller may have filled the cache while we waited.
	if snap := d.snapshot.Load(); snap != nil && time.Since(snap.fetched) < d.config.TTL {
		return snap.names, nil
	}

	names, err := d.fetchAll(ctx)
	if err != nil {
		return nil, err
	}

	d.snapshot.Store(&snapshot{names: names, fetched: time.Now()})
	return names, nil
}

// Invalidate drops the cached shard list.
func (d *Discoverer) Invalidate() {
	d.snapshot.Store(nil)
}

func (d *Discoverer) refresh() {
	defer d.refreshing.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	names, err := d.fetchAll(ctx)
	if err != nil {
		d.logger.Warn().Err(err).Msg("shard list refresh failed, keeping stale cache")
		return
	}

	d.snapshot.Store(&snapshot{names: names, fetched: time.Now()})
	d.logger.Info().Int("shards", len(names)).Msg("shard list refreshed")
}

// fetchAll pages through the store's listing until a short page. A failure
// after at least one successful page returns the partial list: degraded
// coverage beats refusing every query.
func (d *Discoverer) fetchAll(ctx context.Context) ([]string, error) {
	var all []string
	offset := 0

	for {
		page, err := d.index.ListShards(ctx, d.config.PageSize, offset)
		if err != nil {
			if len(all) > 0 {
				d.logger.Warn().Err(err).
					Int("shards", len(all)).
					Int("offset", offset).
					Msg("shard listing failed mid-pagination, returning partial list")
				return all, nil
			}
			return nil, fmt.Errorf("%w: %v", ErrDiscovery, err)
		}

		all = append(all, page...)
		if len(page) < d.config.PageSize {
			break
		}
		offset += d.config.PageSize
	}

	d.logger.Debug().Int("shards", len(all)).Msg("shard list fetched")
	return all, nil
}
