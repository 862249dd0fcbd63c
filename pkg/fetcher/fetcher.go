// Package fetcher resolves listing identifiers to normalized listing
// records, consulting the cache before the remote contract.
package fetcher // import "github.com/9Nieo/petworld-market/pkg/fetcher"

import (
	"context"
	"math/big"
	"time"

	"github.com/davecgh/go-spew/spew"
	log "github.com/golang/glog"

	"github.com/9Nieo/petworld-market/pkg/cache"
	"github.com/9Nieo/petworld-market/pkg/contract"
	"github.com/9Nieo/petworld-market/pkg/model"
	"github.com/9Nieo/petworld-market/pkg/utils"
)

const (
	defaultRetryAttempts = 3

	defaultRetryDelay = 2 * time.Second
)

// ListingReader is the contract read surface the fetcher needs
type ListingReader interface {
	ListingAt(ctx context.Context, tokenID uint64) (*contract.RawListing, error)
	TokenURI(ctx context.Context, tokenID uint64) (string, error)
}

// NewRecordFetcherParams contains the fields to init a RecordFetcher
type NewRecordFetcherParams struct {
	Reader ListingReader
	Cache  *cache.ListingCache

	// Scraper resolves display metadata, optional. When nil, records keep
	// their placeholder names.
	Scraper model.MetadataScraper

	// RetryAttempts and RetryDelay bound transient-failure retries on the
	// remote point read, defaulting to 3 attempts 2s apart
	RetryAttempts int
	RetryDelay    time.Duration
}

// NewRecordFetcher creates a RecordFetcher
func NewRecordFetcher(params *NewRecordFetcherParams) *RecordFetcher {
	attempts := params.RetryAttempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	delay := params.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	return &RecordFetcher{
		reader:        params.Reader,
		cache:         params.Cache,
		scraper:       params.Scraper,
		retryAttempts: attempts,
		retryDelay:    delay,
	}
}

// RecordFetcher resolves a token ID to a full ListingRecord. Remote reads
// are normalized into the canonical record shape and written through to the
// cache; inactive or nonexistent listings are cached as tombstones.
type RecordFetcher struct {
	reader        ListingReader
	cache         *cache.ListingCache
	scraper       model.MetadataScraper
	retryAttempts int
	retryDelay    time.Duration
}

// Resolve returns the listing record for a token ID, or nil if the token
// is not currently purchasable. A nil record with a nil error means the
// token must be excluded from aggregation. quality is the bucket the token
// was discovered under; the engine trusts the scanned bucket.
func (f *RecordFetcher) Resolve(ctx context.Context, tokenID uint64, quality model.Quality,
	forceRefresh bool) (*model.ListingRecord, error) {
	if !forceRefresh {
		entry, ok := f.cache.Get(tokenID)
		if ok {
			if entry.Tombstone() {
				return nil, nil
			}
			return entry.Record(), nil
		}
	}

	var raw *contract.RawListing
	err := utils.Retry(ctx, f.retryAttempts, f.retryDelay, func() error {
		var readErr error
		raw, readErr = f.reader.ListingAt(ctx, tokenID)
		if readErr != nil && contract.IsEndOfBucket(readErr) {
			return utils.Permanent(readErr)
		}
		return readErr
	})
	if err != nil {
		if contract.IsEndOfBucket(err) {
			// Nonexistent listing: cache the negative fact
			f.cache.PutTombstone(tokenID)
			return nil, nil
		}
		return nil, err
	}

	record, ok := f.normalize(tokenID, quality, raw)
	if !ok {
		return nil, nil
	}
	if record == nil {
		f.cache.PutTombstone(tokenID)
		return nil, nil
	}

	f.enrich(ctx, record)
	f.cache.Put(record)
	return record, nil
}

// normalize converts a raw listing tuple into the canonical record shape.
// Returns (nil, true) for an inactive listing and (nil, false) for a
// malformed one that must be dropped with a logged reason.
func (f *RecordFetcher) normalize(tokenID uint64, quality model.Quality,
	raw *contract.RawListing) (*model.ListingRecord, bool) {
	if !raw.Active {
		return nil, true
	}

	price := raw.Price
	if price == nil {
		price = big.NewInt(0)
	}
	if price.Sign() < 0 {
		log.Errorf("Dropping listing %v with negative price: %v", tokenID, spew.Sdump(raw))
		return nil, false
	}

	if model.Quality(raw.Quality) != quality {
		// The scanned bucket stays the source of truth
		log.V(2).Infof("Listing %v reports quality %v but was scanned in bucket %v",
			tokenID, raw.Quality, quality)
	}

	return model.NewListingRecord(&model.NewListingRecordParams{
		TokenID:         tokenID,
		Seller:          raw.Seller,
		PaymentToken:    raw.PaymentToken,
		Price:           price,
		Active:          true,
		LastListTime:    bigToInt64(raw.LastListTime),
		Quality:         quality,
		Level:           bigToUint64(raw.Level),
		AccumulatedFood: bigToUint64(raw.AccumulatedFood),
	}), true
}

// enrich resolves display metadata best-effort. A failed enrichment leaves
// the placeholder name in place and never fails the fetch.
func (f *RecordFetcher) enrich(ctx context.Context, record *model.ListingRecord) {
	if f.scraper == nil {
		return
	}
	uri, err := f.reader.TokenURI(ctx, record.TokenID())
	if err != nil || uri == "" {
		log.V(2).Infof("No token URI for %v: err: %v", record.TokenID(), err)
		return
	}
	metadata, err := f.scraper.ScrapeMetadata(uri)
	if err != nil {
		log.V(2).Infof("Error scraping metadata for %v: err: %v", record.TokenID(), err)
		return
	}
	record.SetMetadata(metadata.Name(), metadata.Image(), metadata.Description())
}

func bigToUint64(value *big.Int) uint64 {
	if value == nil || !value.IsUint64() {
		return 0
	}
	return value.Uint64()
}

func bigToInt64(value *big.Int) int64 {
	if value == nil || !value.IsInt64() {
		return 0
	}
	return value.Int64()
}
