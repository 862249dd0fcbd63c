package persistence // import "github.com/9Nieo/petworld-market/pkg/persistence"

import (
	"github.com/9Nieo/petworld-market/pkg/model"
)

// NullPersister is a persister that does nothing but return default values,
// leaving the listing cache memory-only
type NullPersister struct{}

// ListingEntry returns no results
func (n *NullPersister) ListingEntry(tokenID uint64) (*model.CacheEntry, error) {
	return nil, model.ErrPersisterNoResults
}

// UpdateListingEntry does nothing
func (n *NullPersister) UpdateListingEntry(entry *model.CacheEntry) error {
	return nil
}

// DeleteListingEntry does nothing
func (n *NullPersister) DeleteListingEntry(tokenID uint64) error {
	return nil
}

// DeleteExpiredEntries does nothing
func (n *NullPersister) DeleteExpiredEntries(cutoffTs int64) error {
	return nil
}

// DeleteAllEntries does nothing
func (n *NullPersister) DeleteAllEntries() error {
	return nil
}
