package ledger

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"vaultdao/internal/platform/redis"
)

// refreshInterval bounds how stale a cached height may be before CurrentHeight
// refreshes from the network. Kept well above the ledger cadence so routine
// reads stay off the wire.
const refreshInterval = 30 * time.Second

// Clock tracks the network's current ledger height and the cadence used to
// turn height deltas into wait-time estimates.
//
// The last synced height is authoritative. Between refreshes the clock only
// serves the synced value; display-layer interpolation is the caller's
// business and is corrected at every refresh. When a redis client is set the
// synced pair is shared across processes so restarts resume from the last
// known height instead of zero.
type Clock struct {
	rpc              RPC
	cache            *redis.Client
	cacheKey         string
	secondsPerLedger int

	sf singleflight.Group

	mu       sync.RWMutex
	height   uint64
	syncedAt time.Time
}

// NewClock builds a clock. cache may be nil when redis is not configured.
func NewClock(rpc RPC, cache *redis.Client, network string, secondsPerLedger int) *Clock {
	if secondsPerLedger <= 0 {
		secondsPerLedger = 5
	}
	return &Clock{
		rpc:              rpc,
		cache:            cache,
		cacheKey:         "vaultdao:ledger_height:" + network,
		secondsPerLedger: secondsPerLedger,
	}
}

// SecondsPerLedger returns the configured network cadence.
func (c *Clock) SecondsPerLedger() int { return c.secondsPerLedger }

// Synced returns the last synced height and when it was synced.
func (c *Clock) Synced() (uint64, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height, c.syncedAt
}

// CurrentHeight returns the authoritative height, refreshing from the network
// when the synced value is stale. Concurrent refreshes collapse into one RPC.
func (c *Clock) CurrentHeight(ctx context.Context) (uint64, error) {
	c.mu.RLock()
	height, syncedAt := c.height, c.syncedAt
	c.mu.RUnlock()
	if height > 0 && time.Since(syncedAt) < refreshInterval {
		return height, nil
	}
	return c.Refresh(ctx)
}

// Refresh queries the network for the latest height and replaces the synced
// pair. On network failure it falls back to the shared cache, and only then
// to the in-memory value.
func (c *Clock) Refresh(ctx context.Context) (uint64, error) {
	v, err, _ := c.sf.Do("refresh", func() (any, error) {
		height, err := c.rpc.GetLatestLedger(ctx)
		if err != nil {
			if cached, ok := c.cachedHeight(ctx); ok {
				c.store(cached)
				return cached, nil
			}
			c.mu.RLock()
			stale := c.height
			c.mu.RUnlock()
			if stale > 0 {
				return stale, nil
			}
			return uint64(0), fmt.Errorf("refresh ledger height: %w", err)
		}
		c.store(height)
		c.persist(ctx, height)
		return height, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

// EstimateWait converts a ledger delta into a wall-clock estimate.
func (c *Clock) EstimateWait(deltaLedgers uint64) time.Duration {
	return time.Duration(deltaLedgers) * time.Duration(c.secondsPerLedger) * time.Second
}

func (c *Clock) store(height uint64) {
	c.mu.Lock()
	// Heights only move forward; a lagging RPC node never rewinds the clock.
	if height > c.height {
		c.height = height
	}
	c.syncedAt = time.Now()
	c.mu.Unlock()
}

func (c *Clock) persist(ctx context.Context, height uint64) {
	if c.cache == nil {
		return
	}
	c.cache.Set(ctx, c.cacheKey, strconv.FormatUint(height, 10), time.Hour)
}

func (c *Clock) cachedHeight(ctx context.Context) (uint64, bool) {
	if c.cache == nil {
		return 0, false
	}
	raw, err := c.cache.Get(ctx, c.cacheKey).Result()
	if err != nil {
		return 0, false
	}
	height, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return height, true
}
