package model // import "github.com/9Nieo/petworld-market/pkg/model"

import (
	"errors"
)

// ErrPersisterNoResults is returned by persister retrievals when no entry
// exists for the given key
var ErrPersisterNoResults = errors.New("No results from persister")

// CachePersister is the interface to the durable tier of the listing cache.
// Implementations must treat all operations as best-effort from the caller's
// point of view: the cache degrades to memory-only when a persister fails.
type CachePersister interface {
	// ListingEntry retrieves the cached entry for a token ID.
	// Returns ErrPersisterNoResults if there is no entry.
	ListingEntry(tokenID uint64) (*CacheEntry, error)
	// UpdateListingEntry creates or overwrites the entry for a token ID
	UpdateListingEntry(entry *CacheEntry) error
	// DeleteListingEntry removes the entry for a token ID; idempotent
	DeleteListingEntry(tokenID uint64) error
	// DeleteExpiredEntries removes all entries written at or before cutoffTs
	DeleteExpiredEntries(cutoffTs int64) error
	// DeleteAllEntries removes every entry
	DeleteAllEntries() error
}

// MetadataScraper is the interface to the display metadata resolver
type MetadataScraper interface {
	// ScrapeMetadata resolves a token URI to display metadata
	ScrapeMetadata(uri string) (*ScraperPetMetadata, error)
}
