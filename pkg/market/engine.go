package market // import "github.com/9Nieo/petworld-market/pkg/market"

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/golang/glog"

	"github.com/9Nieo/petworld-market/pkg/cache"
	"github.com/9Nieo/petworld-market/pkg/eth"
	"github.com/9Nieo/petworld-market/pkg/fetcher"
	"github.com/9Nieo/petworld-market/pkg/model"
)

var (
	// ErrNetworkUnavailable is the user-visible condition for an unusable
	// API endpoint
	ErrNetworkUnavailable = errors.New("cannot reach network")

	// ErrMarketplaceUnavailable is the user-visible condition for a
	// reachable endpoint whose marketplace contract cannot serve yet
	ErrMarketplaceUnavailable = errors.New("marketplace temporarily unavailable")
)

// DefaultPageSize is the default number of listings per page
const DefaultPageSize = 10

// refreshTimeout bounds one scheduled background re-aggregation
const refreshTimeout = 2 * time.Minute

// ConnectionGuard validates the transport before the engine uses it
type ConnectionGuard interface {
	EnsureUsable(ctx context.Context) *eth.Report
}

// NewMarketEngineParams contains the fields to init a MarketEngine
type NewMarketEngineParams struct {
	// Guard is the connection health guard, optional. When nil the
	// transport is assumed usable.
	Guard ConnectionGuard

	Enumerator *BucketEnumerator
	Fetcher    *fetcher.RecordFetcher
	Cache      *cache.ListingCache

	// PageSize defaults to DefaultPageSize
	PageSize int
}

// NewMarketEngine creates a MarketEngine
func NewMarketEngine(params *NewMarketEngineParams) *MarketEngine {
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &MarketEngine{
		guard:        params.Guard,
		enumerator:   params.Enumerator,
		fetcher:      params.Fetcher,
		listingCache: params.Cache,
		pageSize:     pageSize,
		pageResults:  map[model.PageKey]*model.PageResult{},
	}
}

// MarketEngine aggregates, sorts, and paginates the active listings for a
// quality filter, caching page results until a mutation or expiry
// invalidates them.
type MarketEngine struct {
	guard        ConnectionGuard
	enumerator   *BucketEnumerator
	fetcher      *fetcher.RecordFetcher
	listingCache *cache.ListingCache
	pageSize     int

	mu          sync.Mutex
	pageResults map[model.PageKey]*model.PageResult
	currentView *model.PageKey
	refreshing  bool
}

// PageSize returns the number of listings per page
func (e *MarketEngine) PageSize() int {
	return e.pageSize
}

// GetPage returns one page of the sorted, filtered set of active listings
// for a quality. The result is cached under (page, quality, sort, search)
// and served from cache until invalidated, unless forceRefresh is set.
// A page request beyond the total page count returns an empty page.
func (e *MarketEngine) GetPage(ctx context.Context, quality model.Quality, sortMethod model.SortMethod,
	searchText string, page int, forceRefresh bool) (*model.PageResult, error) {
	if !quality.Valid() {
		return nil, fmt.Errorf("Invalid quality filter: %v", int(quality))
	}
	if page < 1 {
		page = 1
	}
	key := model.NewPageKey(page, quality, sortMethod, searchText)
	e.setCurrentView(key)

	if !forceRefresh {
		result, ok := e.cachedPage(key)
		if ok {
			return result, nil
		}
	}

	if e.guard != nil {
		report := e.guard.EnsureUsable(ctx)
		switch report.Status {
		case eth.StatusUnusable:
			log.Errorf("Cannot aggregate, endpoint unusable: %v", report.Reason)
			return nil, ErrNetworkUnavailable
		case eth.StatusDegraded:
			log.Errorf("Cannot aggregate, endpoint degraded: %v", report.Reason)
			return nil, ErrMarketplaceUnavailable
		}
	}

	e.SweepExpired()

	records, err := e.collectRecords(ctx, quality, forceRefresh)
	if err != nil {
		return nil, err
	}
	records = filterBySearch(records, key.Search)
	sortRecords(records, sortMethod)
	return e.storePages(key, records), nil
}

// InvalidateOnMutation reacts to one marketplace mutation: the token's
// cache entry and every cached page are dropped, and a forced
// re-aggregation of the current view is scheduled. Idempotent.
func (e *MarketEngine) InvalidateOnMutation(kind model.MutationKind, tokenID uint64) {
	log.Infof("Marketplace mutation %v for token %v", kind, tokenID)
	e.listingCache.Invalidate(tokenID)
	e.dropPageResults()
	e.scheduleRefresh()
}

// SweepExpired removes expired listing entries from both cache tiers and
// drops every page result, since any cached page may have been assembled
// from entries the sweep removed
func (e *MarketEngine) SweepExpired() {
	e.listingCache.SweepExpired()
	e.dropPageResults()
}

// ClearAll drops every cache tier entry and all page results. Used on a
// network switch.
func (e *MarketEngine) ClearAll() {
	e.listingCache.Clear()
	e.dropPageResults()
}

// ListedCountByQuality enumerates every bucket and returns the listed
// count per quality
func (e *MarketEngine) ListedCountByQuality(ctx context.Context) (map[model.Quality]int, error) {
	counts := map[model.Quality]int{}
	for quality := model.QualityCommon; quality <= model.QualityLegendary; quality++ {
		tokenIDs, err := e.enumerator.Enumerate(ctx, quality)
		if err != nil {
			return counts, err
		}
		counts[quality] = len(tokenIDs)
	}
	return counts, nil
}

func (e *MarketEngine) collectRecords(ctx context.Context, quality model.Quality,
	forceRefresh bool) ([]*model.ListingRecord, error) {
	if !e.enumerator.AnyListings(ctx) {
		return []*model.ListingRecord{}, ctx.Err()
	}

	tokenIDs, err := e.enumerator.Enumerate(ctx, quality)
	if err != nil {
		return nil, err
	}

	// Resolve all candidates concurrently and join at the barrier; a slow
	// or failing resolution for one token must not block the others
	resolved := make([]*model.ListingRecord, len(tokenIDs))
	var wg sync.WaitGroup
	for index, tokenID := range tokenIDs {
		wg.Add(1)
		go func(index int, tokenID uint64) {
			defer wg.Done()
			record, resolveErr := e.fetcher.Resolve(ctx, tokenID, quality, forceRefresh)
			if resolveErr != nil {
				log.Errorf("Dropping listing %v from aggregation: err: %v", tokenID, resolveErr)
				return
			}
			resolved[index] = record
		}(index, tokenID)
	}
	wg.Wait()

	records := []*model.ListingRecord{}
	for _, record := range resolved {
		if record != nil && record.Active() {
			records = append(records, record)
		}
	}
	return records, nil
}

func (e *MarketEngine) storePages(key model.PageKey, records []*model.ListingRecord) *model.PageResult {
	totalPages := (len(records) + e.pageSize - 1) / e.pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for page := 1; page <= totalPages; page++ {
		start := (page - 1) * e.pageSize
		end := min(start+e.pageSize, len(records))
		pageKey := key
		pageKey.Page = page
		e.pageResults[pageKey] = model.NewPageResult(records[start:end], totalPages)
	}
	if key.Page > totalPages {
		empty := model.NewPageResult([]*model.ListingRecord{}, totalPages)
		e.pageResults[key] = empty
		return empty
	}
	return e.pageResults[key]
}

func (e *MarketEngine) cachedPage(key model.PageKey) (*model.PageResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	result, ok := e.pageResults[key]
	return result, ok
}

func (e *MarketEngine) dropPageResults() {
	e.mu.Lock()
	e.pageResults = map[model.PageKey]*model.PageResult{}
	e.mu.Unlock()
}

func (e *MarketEngine) setCurrentView(key model.PageKey) {
	e.mu.Lock()
	e.currentView = &key
	e.mu.Unlock()
}

// scheduleRefresh re-aggregates the most recently requested view in the
// background so the next UI read hits a fresh page cache. At most one
// refresh runs at a time; a mutation arriving mid-refresh is covered by
// the page-cache drop that preceded it.
func (e *MarketEngine) scheduleRefresh() {
	e.mu.Lock()
	view := e.currentView
	if view == nil || e.refreshing {
		e.mu.Unlock()
		return
	}
	e.refreshing = true
	e.mu.Unlock()

	go func() {
		defer func() {
			e.mu.Lock()
			e.refreshing = false
			e.mu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		_, err := e.GetPage(ctx, view.Quality, view.Sort, view.Search, view.Page, true)
		if err != nil {
			log.Errorf("Error refreshing view after mutation: err: %v", err)
		}
	}()
}

func filterBySearch(records []*model.ListingRecord, loweredSearch string) []*model.ListingRecord {
	if loweredSearch == "" {
		return records
	}
	filtered := []*model.ListingRecord{}
	for _, record := range records {
		if strings.Contains(strings.ToLower(record.Name()), loweredSearch) {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

// sortRecords applies the total order for a sort method in place. Prices
// compare as arbitrary-precision integers; price ties break by ascending
// token ID.
func sortRecords(records []*model.ListingRecord, method model.SortMethod) {
	sort.Slice(records, func(i int, j int) bool {
		a := records[i]
		b := records[j]
		switch method {
		case model.SortPriceAsc:
			cmp := a.Price().Cmp(b.Price())
			if cmp != 0 {
				return cmp < 0
			}
			return a.TokenID() < b.TokenID()
		case model.SortPriceDesc:
			cmp := a.Price().Cmp(b.Price())
			if cmp != 0 {
				return cmp > 0
			}
			return a.TokenID() < b.TokenID()
		case model.SortTokenIDDesc:
			return a.TokenID() > b.TokenID()
		default: // SortTokenIDAsc
			return a.TokenID() < b.TokenID()
		}
	})
}
