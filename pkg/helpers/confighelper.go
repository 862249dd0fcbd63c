// Package helpers contains various common helper functions.
// Normally they are shared functions used by the cmds.
package helpers

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/9Nieo/petworld-market/pkg/cache"
	"github.com/9Nieo/petworld-market/pkg/contract"
	"github.com/9Nieo/petworld-market/pkg/eth"
	"github.com/9Nieo/petworld-market/pkg/fetcher"
	"github.com/9Nieo/petworld-market/pkg/market"
	"github.com/9Nieo/petworld-market/pkg/model"
	"github.com/9Nieo/petworld-market/pkg/persistence"
	"github.com/9Nieo/petworld-market/pkg/scraper"
	"github.com/9Nieo/petworld-market/pkg/utils"
)

// CachePersister is a helper function to return an initialized persister
// for the durable cache tier based on the given configuration
func CachePersister(config *utils.MarketConfig) (model.CachePersister, error) {
	switch config.PersisterType {
	case utils.PersisterTypeSqlite:
		return persistence.NewSqlitePersister(config.PersisterSqlitePath)
	case utils.PersisterTypePostgresql:
		return persistence.NewPostgresPersister(
			config.PersisterPostgresAddress,
			config.PersisterPostgresPort,
			config.PersisterPostgresUser,
			config.PersisterPostgresPw,
			config.PersisterPostgresDbname,
		)
	}
	// Default to the NullPersister
	return &persistence.NullPersister{}, nil
}

// HealthGuard is a helper function to return an initialized health guard
// based on the given configuration
func HealthGuard(config *utils.MarketConfig) *eth.HealthGuard {
	return eth.NewHealthGuard(&eth.HealthGuardParams{
		APIURL:          config.EthAPIURL,
		NetworkID:       config.NetworkID,
		ContractAddress: common.HexToAddress(config.ContractAddress),
	})
}

// MarketEngine is a helper function to build the full engine stack from
// the given configuration: guard, caller, cache, fetcher, enumerator.
func MarketEngine(config *utils.MarketConfig) (*market.MarketEngine, *eth.HealthGuard, error) {
	persister, err := CachePersister(config)
	if err != nil {
		return nil, nil, err
	}

	guard := HealthGuard(config)
	backend := eth.NewGuardedBackend(guard)
	caller, err := contract.NewMarketplaceCaller(common.HexToAddress(config.ContractAddress), backend)
	if err != nil {
		return nil, nil, err
	}

	listingCache := cache.NewListingCache(&cache.NewListingCacheParams{
		Persister: persister,
		TTL:       time.Duration(config.CacheTTLSecs) * time.Second,
	})

	recordFetcher := fetcher.NewRecordFetcher(&fetcher.NewRecordFetcherParams{
		Reader:  caller,
		Cache:   listingCache,
		Scraper: scraper.NewPetMetadataScraper(),
	})

	enumerator := market.NewBucketEnumerator(&market.NewBucketEnumeratorParams{
		Reader: caller,
	})

	engine := market.NewMarketEngine(&market.NewMarketEngineParams{
		Guard:      guard,
		Enumerator: enumerator,
		Fetcher:    recordFetcher,
		Cache:      listingCache,
		PageSize:   config.PageSize,
	})
	return engine, guard, nil
}
