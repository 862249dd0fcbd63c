// Package sqldb contains the table schemas and row models shared by the
// SQL-backed cache persisters.
package sqldb // import "github.com/9Nieo/petworld-market/pkg/persistence/sqldb"

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/9Nieo/petworld-market/pkg/model"
)

// ListingCacheTableName is the default table for cached listing entries
const ListingCacheTableName = "listing_cache"

// CacheEntrySchema returns the query to create the listing cache table
func CacheEntrySchema() string {
	return CacheEntrySchemaString(ListingCacheTableName)
}

// CacheEntrySchemaString returns the query to create this table.
// Price is TEXT: it is an arbitrary-precision integer and must survive the
// round trip without loss.
func CacheEntrySchemaString(tableName string) string {
	schema := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s(
            token_id BIGINT PRIMARY KEY,
            seller TEXT,
            payment_token TEXT,
            price TEXT,
            active BOOL,
            last_list_time BIGINT,
            quality BIGINT,
            level BIGINT,
            accumulated_food BIGINT,
            name TEXT,
            image TEXT,
            description TEXT,
            tombstone BOOL,
            created_ts BIGINT
        );
    `, tableName)
	return schema
}

// CacheEntry is the model definition for the listing cache table
type CacheEntry struct {
	TokenID int64 `db:"token_id"`

	Seller string `db:"seller"`

	PaymentToken string `db:"payment_token"`

	Price string `db:"price"`

	Active bool `db:"active"`

	LastListTime int64 `db:"last_list_time"`

	Quality int `db:"quality"`

	Level int64 `db:"level"`

	AccumulatedFood int64 `db:"accumulated_food"`

	Name string `db:"name"`

	Image string `db:"image"`

	Description string `db:"description"`

	Tombstone bool `db:"tombstone"`

	CreatedTs int64 `db:"created_ts"`
}

// NewCacheEntry constructs a cache entry row for DB from a model.CacheEntry
func NewCacheEntry(entry *model.CacheEntry) *CacheEntry {
	dbEntry := &CacheEntry{
		TokenID:   int64(entry.TokenID()), // nolint: gosec
		Tombstone: entry.Tombstone(),
		CreatedTs: entry.CreatedTs(),
	}
	record := entry.Record()
	if record != nil {
		dbEntry.Seller = record.Seller().Hex()
		dbEntry.PaymentToken = record.PaymentToken().Hex()
		dbEntry.Price = record.Price().String()
		dbEntry.Active = record.Active()
		dbEntry.LastListTime = record.LastListTime()
		dbEntry.Quality = int(record.Quality())
		dbEntry.Level = int64(record.Level())                     // nolint: gosec
		dbEntry.AccumulatedFood = int64(record.AccumulatedFood()) // nolint: gosec
		dbEntry.Name = record.Name()
		dbEntry.Image = record.Image()
		dbEntry.Description = record.Description()
	}
	return dbEntry
}

// DbToCacheEntryData creates a model.CacheEntry from a cache entry row
func (c *CacheEntry) DbToCacheEntryData() (*model.CacheEntry, error) {
	if c.TokenID < 0 {
		return nil, fmt.Errorf("Invalid token ID in cache row: %v", c.TokenID)
	}
	tokenID := uint64(c.TokenID)
	if c.Tombstone {
		return model.NewTombstoneEntry(tokenID, c.CreatedTs), nil
	}
	price, ok := new(big.Int).SetString(c.Price, 10)
	if !ok {
		return nil, fmt.Errorf("Invalid price in cache row for token %v: '%v'", tokenID, c.Price)
	}
	record := model.NewListingRecord(&model.NewListingRecordParams{
		TokenID:         tokenID,
		Seller:          common.HexToAddress(c.Seller),
		PaymentToken:    common.HexToAddress(c.PaymentToken),
		Price:           price,
		Active:          c.Active,
		LastListTime:    c.LastListTime,
		Quality:         model.Quality(c.Quality),
		Level:           uint64(c.Level),           // nolint: gosec
		AccumulatedFood: uint64(c.AccumulatedFood), // nolint: gosec
		Name:            c.Name,
		Image:           c.Image,
		Description:     c.Description,
	})
	return model.NewCacheEntry(record, c.CreatedTs), nil
}
