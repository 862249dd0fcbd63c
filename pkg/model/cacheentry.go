package model // import "github.com/9Nieo/petworld-market/pkg/model"

import (
	"time"
)

// CacheEntry wraps a ListingRecord (or a tombstone marking the token as not
// purchasable) with its write timestamp for TTL expiry.
type CacheEntry struct {
	tokenID uint64

	record *ListingRecord

	tombstone bool

	createdTs int64
}

// NewCacheEntry creates a cache entry for a fetched listing record
func NewCacheEntry(record *ListingRecord, createdTs int64) *CacheEntry {
	return &CacheEntry{
		tokenID:   record.TokenID(),
		record:    record,
		createdTs: createdTs,
	}
}

// NewTombstoneEntry creates a cache entry marking a token as known-inactive,
// so the engine does not immediately re-query the remote for it
func NewTombstoneEntry(tokenID uint64, createdTs int64) *CacheEntry {
	return &CacheEntry{
		tokenID:   tokenID,
		tombstone: true,
		createdTs: createdTs,
	}
}

// TokenID returns the token the entry is for
func (c *CacheEntry) TokenID() uint64 {
	return c.tokenID
}

// Record returns the cached listing record, nil for a tombstone
func (c *CacheEntry) Record() *ListingRecord {
	return c.record
}

// Tombstone returns true if the entry marks the token as known-inactive
func (c *CacheEntry) Tombstone() bool {
	return c.tombstone
}

// CreatedTs returns the epoch secs the entry was written
func (c *CacheEntry) CreatedTs() int64 {
	return c.createdTs
}

// Expired returns true if the entry is older than ttl at the given time
func (c *CacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Unix()-c.createdTs > int64(ttl/time.Second)
}
