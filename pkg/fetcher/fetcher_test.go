package fetcher_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/9Nieo/petworld-market/pkg/cache"
	"github.com/9Nieo/petworld-market/pkg/contract"
	"github.com/9Nieo/petworld-market/pkg/fetcher"
	"github.com/9Nieo/petworld-market/pkg/model"
	"github.com/9Nieo/petworld-market/pkg/persistence"
)

type fakeReader struct {
	listings map[uint64]*contract.RawListing
	uris     map[uint64]string

	// transientFailures injects this many i/o failures before a read
	// of any token succeeds
	transientFailures int

	listingCalls int
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		listings: map[uint64]*contract.RawListing{},
		uris:     map[uint64]string{},
	}
}

func (f *fakeReader) ListingAt(ctx context.Context, tokenID uint64) (*contract.RawListing, error) {
	f.listingCalls++
	if f.transientFailures > 0 {
		f.transientFailures--
		return nil, errors.New("read tcp: i/o timeout")
	}
	raw, ok := f.listings[tokenID]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	copied := *raw
	return &copied, nil
}

func (f *fakeReader) TokenURI(ctx context.Context, tokenID uint64) (string, error) {
	uri, ok := f.uris[tokenID]
	if !ok {
		return "", errors.New("execution reverted")
	}
	return uri, nil
}

type fakeScraper struct {
	metadata map[string]*model.ScraperPetMetadata
}

func (f *fakeScraper) ScrapeMetadata(uri string) (*model.ScraperPetMetadata, error) {
	metadata, ok := f.metadata[uri]
	if !ok {
		return nil, errors.New("metadata not found")
	}
	return metadata, nil
}

func rawActiveListing(price *big.Int, quality uint8) *contract.RawListing {
	return &contract.RawListing{
		Seller:       common.HexToAddress("0xDFe273082089bB7f70Ee36Eebcde64832FE97E55"),
		Price:        price,
		Active:       true,
		LastListTime: big.NewInt(1257894000),
		Quality:      quality,
		Level:        big.NewInt(3),
	}
}

func newTestFetcher(reader *fakeReader, scraper model.MetadataScraper) (*fetcher.RecordFetcher, *cache.ListingCache) {
	listingCache := cache.NewListingCache(&cache.NewListingCacheParams{
		Persister: &persistence.NullPersister{},
	})
	recordFetcher := fetcher.NewRecordFetcher(&fetcher.NewRecordFetcherParams{
		Reader:        reader,
		Cache:         listingCache,
		Scraper:       scraper,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	})
	return recordFetcher, listingCache
}

func TestResolveNormalizes(t *testing.T) {
	reader := newFakeReader()
	reader.listings[42] = rawActiveListing(big.NewInt(100), 1)

	recordFetcher, listingCache := newTestFetcher(reader, nil)
	record, err := recordFetcher.Resolve(context.Background(), 42, model.QualityGood, false)
	if err != nil {
		t.Fatalf("Should not have gotten error resolving: err: %v", err)
	}
	if record == nil {
		t.Fatalf("Should have gotten a record")
	}
	if record.Name() != "Pet #42" {
		t.Errorf("Should have gotten the placeholder name, got %v", record.Name())
	}
	if record.Level() != 3 {
		t.Errorf("Should have kept the raw level")
	}
	if _, ok := listingCache.Get(42); !ok {
		t.Errorf("Resolve should write through to the cache")
	}
}

func TestResolveCacheFirst(t *testing.T) {
	reader := newFakeReader()
	reader.listings[42] = rawActiveListing(big.NewInt(100), 1)

	recordFetcher, _ := newTestFetcher(reader, nil)
	_, err := recordFetcher.Resolve(context.Background(), 42, model.QualityGood, false)
	if err != nil {
		t.Fatalf("Should not have gotten error resolving: err: %v", err)
	}
	_, err = recordFetcher.Resolve(context.Background(), 42, model.QualityGood, false)
	if err != nil {
		t.Fatalf("Should not have gotten error resolving: err: %v", err)
	}
	if reader.listingCalls != 1 {
		t.Errorf("Second resolve should have been served from cache, %v remote calls", reader.listingCalls)
	}
}

func TestResolveForceRefreshSkipsCache(t *testing.T) {
	reader := newFakeReader()
	reader.listings[42] = rawActiveListing(big.NewInt(100), 1)

	recordFetcher, _ := newTestFetcher(reader, nil)
	_, err := recordFetcher.Resolve(context.Background(), 42, model.QualityGood, false)
	if err != nil {
		t.Fatalf("Should not have gotten error resolving: err: %v", err)
	}
	_, err = recordFetcher.Resolve(context.Background(), 42, model.QualityGood, true)
	if err != nil {
		t.Fatalf("Should not have gotten error resolving: err: %v", err)
	}
	if reader.listingCalls != 2 {
		t.Errorf("Force refresh should hit the remote, %v remote calls", reader.listingCalls)
	}
}

func TestResolveNonexistentCachesTombstone(t *testing.T) {
	reader := newFakeReader()

	recordFetcher, listingCache := newTestFetcher(reader, nil)
	record, err := recordFetcher.Resolve(context.Background(), 42, model.QualityGood, false)
	if err != nil {
		t.Fatalf("A reverted point read is not an error: err: %v", err)
	}
	if record != nil {
		t.Errorf("Should not have gotten a record")
	}
	entry, ok := listingCache.Get(42)
	if !ok || !entry.Tombstone() {
		t.Errorf("Nonexistent listing should leave a tombstone")
	}

	// The tombstone answers the next resolve without a remote call
	calls := reader.listingCalls
	record, err = recordFetcher.Resolve(context.Background(), 42, model.QualityGood, false)
	if err != nil || record != nil {
		t.Errorf("Tombstone should resolve to nil, nil")
	}
	if reader.listingCalls != calls {
		t.Errorf("Tombstone hit should not reach the remote")
	}
}

func TestResolveInactiveCachesTombstone(t *testing.T) {
	reader := newFakeReader()
	raw := rawActiveListing(big.NewInt(100), 1)
	raw.Active = false
	reader.listings[42] = raw

	recordFetcher, listingCache := newTestFetcher(reader, nil)
	record, err := recordFetcher.Resolve(context.Background(), 42, model.QualityGood, false)
	if err != nil {
		t.Fatalf("Should not have gotten error resolving: err: %v", err)
	}
	if record != nil {
		t.Errorf("Inactive listing should resolve to nil")
	}
	entry, ok := listingCache.Get(42)
	if !ok || !entry.Tombstone() {
		t.Errorf("Inactive listing should leave a tombstone")
	}
}

func TestResolveRetriesTransientFailures(t *testing.T) {
	reader := newFakeReader()
	reader.listings[42] = rawActiveListing(big.NewInt(100), 1)
	reader.transientFailures = 2

	recordFetcher, _ := newTestFetcher(reader, nil)
	record, err := recordFetcher.Resolve(context.Background(), 42, model.QualityGood, false)
	if err != nil {
		t.Fatalf("Should have recovered after retries: err: %v", err)
	}
	if record == nil {
		t.Errorf("Should have gotten a record")
	}
	if reader.listingCalls != 3 {
		t.Errorf("Should have taken 3 attempts, took %v", reader.listingCalls)
	}
}

func TestResolveGivesUpAfterRetryCeiling(t *testing.T) {
	reader := newFakeReader()
	reader.listings[42] = rawActiveListing(big.NewInt(100), 1)
	reader.transientFailures = 5

	recordFetcher, listingCache := newTestFetcher(reader, nil)
	_, err := recordFetcher.Resolve(context.Background(), 42, model.QualityGood, false)
	if err == nil {
		t.Errorf("Exhausted retries should surface the error")
	}
	if _, ok := listingCache.Get(42); ok {
		t.Errorf("A transient failure must not leave a tombstone")
	}
}

func TestResolveNilPriceDefaultsToZero(t *testing.T) {
	reader := newFakeReader()
	reader.listings[42] = rawActiveListing(nil, 1)

	recordFetcher, _ := newTestFetcher(reader, nil)
	record, err := recordFetcher.Resolve(context.Background(), 42, model.QualityGood, false)
	if err != nil {
		t.Fatalf("Should not have gotten error resolving: err: %v", err)
	}
	if record.Price().Sign() != 0 {
		t.Errorf("Nil price should default to 0, got %v", record.Price())
	}
}

func TestResolveNegativePriceDropped(t *testing.T) {
	reader := newFakeReader()
	reader.listings[42] = rawActiveListing(big.NewInt(-1), 1)

	recordFetcher, listingCache := newTestFetcher(reader, nil)
	record, err := recordFetcher.Resolve(context.Background(), 42, model.QualityGood, false)
	if err != nil {
		t.Fatalf("A malformed listing is dropped, not errored: err: %v", err)
	}
	if record != nil {
		t.Errorf("Should not have gotten a record")
	}
	if _, ok := listingCache.Get(42); ok {
		t.Errorf("A malformed listing should not be cached at all")
	}
}

func TestResolveQualityMismatchTrustsBucket(t *testing.T) {
	reader := newFakeReader()
	reader.listings[42] = rawActiveListing(big.NewInt(100), 4)

	recordFetcher, _ := newTestFetcher(reader, nil)
	record, err := recordFetcher.Resolve(context.Background(), 42, model.QualityGood, false)
	if err != nil {
		t.Fatalf("Should not have gotten error resolving: err: %v", err)
	}
	if record.Quality() != model.QualityGood {
		t.Errorf("Scanned bucket should win on quality mismatch, got %v", record.Quality())
	}
}

func TestResolveEnrichesMetadata(t *testing.T) {
	reader := newFakeReader()
	reader.listings[42] = rawActiveListing(big.NewInt(100), 1)
	reader.uris[42] = "ipfs://QmPet42"
	scraper := &fakeScraper{metadata: map[string]*model.ScraperPetMetadata{
		"ipfs://QmPet42": model.NewScraperPetMetadata("Fluffy", "https://img.example/42.png", "A good pet"),
	}}

	recordFetcher, _ := newTestFetcher(reader, scraper)
	record, err := recordFetcher.Resolve(context.Background(), 42, model.QualityGood, false)
	if err != nil {
		t.Fatalf("Should not have gotten error resolving: err: %v", err)
	}
	if record.Name() != "Fluffy" {
		t.Errorf("Should have gotten the scraped name, got %v", record.Name())
	}
	if record.Image() != "https://img.example/42.png" {
		t.Errorf("Should have gotten the scraped image")
	}
}

func TestResolveEnrichFailureKeepsPlaceholder(t *testing.T) {
	reader := newFakeReader()
	reader.listings[42] = rawActiveListing(big.NewInt(100), 1)
	reader.uris[42] = "ipfs://QmPet42"
	scraper := &fakeScraper{metadata: map[string]*model.ScraperPetMetadata{}}

	recordFetcher, _ := newTestFetcher(reader, scraper)
	record, err := recordFetcher.Resolve(context.Background(), 42, model.QualityGood, false)
	if err != nil {
		t.Fatalf("Enrichment failure must not fail the fetch: err: %v", err)
	}
	if record.Name() != "Pet #42" {
		t.Errorf("Should have kept the placeholder name, got %v", record.Name())
	}
}
