// Package cache contains the two-tier listing cache for the market engine.
package cache // import "github.com/9Nieo/petworld-market/pkg/cache"

import (
	"sync"
	"time"

	log "github.com/golang/glog"

	"github.com/9Nieo/petworld-market/pkg/model"
	"github.com/9Nieo/petworld-market/pkg/utils"
)

// DefaultTTL is the default expiry applied to cached listing entries
const DefaultTTL = 30 * time.Minute

// NewListingCacheParams contains the fields to init a ListingCache
type NewListingCacheParams struct {
	// Persister is the durable tier, required. Pass a
	// persistence.NullPersister for a memory-only cache.
	Persister model.CachePersister

	// TTL is the entry expiry, defaults to DefaultTTL
	TTL time.Duration

	// Now is the clock function, defaults to time.Now
	Now utils.NowFn
}

// NewListingCache creates a ListingCache
func NewListingCache(params *NewListingCacheParams) *ListingCache {
	ttl := params.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &ListingCache{
		mem:       map[uint64]*model.CacheEntry{},
		persister: params.Persister,
		ttl:       ttl,
		now:       now,
	}
}

// ListingCache is the two-tier per-token cache of listing entries: a fast
// in-memory map backed by a durable persister. The durable tier is
// best-effort; its failures degrade the cache to memory-only and are never
// surfaced to callers. Per-token operations are atomic with respect to each
// other.
type ListingCache struct {
	mu        sync.Mutex
	mem       map[uint64]*model.CacheEntry
	persister model.CachePersister
	ttl       time.Duration
	now       utils.NowFn
}

// TTL returns the entry expiry applied by this cache
func (c *ListingCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached entry for a token ID, consulting the memory tier
// first, then the durable tier, promoting a durable hit into memory. An
// expired entry is removed and reported as a miss. The returned entry may
// be a tombstone; callers must check.
func (c *ListingCache) Get(tokenID uint64) (*model.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, ok := c.mem[tokenID]
	if ok {
		if !entry.Expired(now, c.ttl) {
			return entry, true
		}
		c.removeLocked(tokenID)
		return nil, false
	}

	entry, err := c.persister.ListingEntry(tokenID)
	if err != nil {
		if err != model.ErrPersisterNoResults {
			log.V(2).Infof("Durable cache read failed for token %v: err: %v", tokenID, err)
		}
		return nil, false
	}
	if entry.Expired(now, c.ttl) {
		c.removeLocked(tokenID)
		return nil, false
	}
	c.mem[tokenID] = entry
	return entry, true
}

// Put writes a fetched record to both tiers with a fresh timestamp
func (c *ListingCache) Put(record *model.ListingRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := model.NewCacheEntry(record, c.now().Unix())
	c.putLocked(entry)
}

// PutTombstone records that a token is known-inactive so the engine does
// not immediately re-query the remote for it
func (c *ListingCache) PutTombstone(tokenID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := model.NewTombstoneEntry(tokenID, c.now().Unix())
	c.putLocked(entry)
}

// Invalidate removes the entry for a token ID from both tiers. Idempotent.
func (c *ListingCache) Invalidate(tokenID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(tokenID)
}

// SweepExpired removes all entries older than the TTL from both tiers
func (c *ListingCache) SweepExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for tokenID, entry := range c.mem {
		if entry.Expired(now, c.ttl) {
			delete(c.mem, tokenID)
		}
	}

	cutoffTs := now.Unix() - int64(c.ttl/time.Second) - 1
	err := c.persister.DeleteExpiredEntries(cutoffTs)
	if err != nil {
		log.V(2).Infof("Durable cache sweep failed: err: %v", err)
	}
}

// Clear drops every entry from both tiers
func (c *ListingCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem = map[uint64]*model.CacheEntry{}
	err := c.persister.DeleteAllEntries()
	if err != nil {
		log.V(2).Infof("Durable cache clear failed: err: %v", err)
	}
}

func (c *ListingCache) putLocked(entry *model.CacheEntry) {
	c.mem[entry.TokenID()] = entry
	err := c.persister.UpdateListingEntry(entry)
	if err != nil {
		log.V(2).Infof("Durable cache write failed for token %v: err: %v", entry.TokenID(), err)
	}
}

func (c *ListingCache) removeLocked(tokenID uint64) {
	delete(c.mem, tokenID)
	err := c.persister.DeleteListingEntry(tokenID)
	if err != nil {
		log.V(2).Infof("Durable cache delete failed for token %v: err: %v", tokenID, err)
	}
}
