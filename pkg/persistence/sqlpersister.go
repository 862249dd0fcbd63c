// Package persistence contains components to interact with the durable
// cache tier.
package persistence // import "github.com/9Nieo/petworld-market/pkg/persistence"

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/9Nieo/petworld-market/pkg/model"
	"github.com/9Nieo/petworld-market/pkg/persistence/sqldb"

	// drivers for sqlite and postgresql
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// NewSqlitePersister creates a new persister backed by a local SQLite file
func NewSqlitePersister(dbPath string) (*SQLPersister, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("Error connecting to sqlite via sqlx: %v", err)
	}
	return NewSQLPersisterFromSqlx(db)
}

// NewPostgresPersister creates a new persister backed by PostgreSQL
func NewPostgresPersister(host string, port int, user string, password string,
	dbname string) (*SQLPersister, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
	db, err := sqlx.Connect("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("Error connecting to postgres via sqlx: %v", err)
	}
	return NewSQLPersisterFromSqlx(db)
}

// NewSQLPersisterFromSqlx creates a persister from an initialized sqlx.DB
// and ensures the cache table exists
func NewSQLPersisterFromSqlx(db *sqlx.DB) (*SQLPersister, error) {
	persister := &SQLPersister{db: db}
	err := persister.CreateTables()
	if err != nil {
		return nil, err
	}
	return persister, nil
}

// SQLPersister holds the DB connection and implements the durable tier of
// the listing cache over any sqlx-supported driver
type SQLPersister struct {
	db *sqlx.DB
}

// CreateTables creates the cache tables if they don't exist
func (p *SQLPersister) CreateTables() error {
	_, err := p.db.Exec(sqldb.CacheEntrySchema())
	if err != nil {
		return fmt.Errorf("Error creating listing_cache table: %v", err)
	}
	return nil
}

// ListingEntry retrieves the cached entry for a token ID
func (p *SQLPersister) ListingEntry(tokenID uint64) (*model.CacheEntry, error) {
	dbEntry := sqldb.CacheEntry{}
	queryString := p.db.Rebind(p.listingEntryQuery(sqldb.ListingCacheTableName))
	err := p.db.Get(&dbEntry, queryString, int64(tokenID)) // nolint: gosec
	if err == sql.ErrNoRows {
		return nil, model.ErrPersisterNoResults
	}
	if err != nil {
		return nil, fmt.Errorf("Wasn't able to get cache entry from table: %v", err)
	}
	return dbEntry.DbToCacheEntryData()
}

// UpdateListingEntry creates or overwrites the cached entry for a token ID
func (p *SQLPersister) UpdateListingEntry(entry *model.CacheEntry) error {
	queryString := p.updateListingEntryQuery(sqldb.ListingCacheTableName)
	dbEntry := sqldb.NewCacheEntry(entry)
	_, err := p.db.NamedExec(queryString, dbEntry)
	if err != nil {
		return fmt.Errorf("Error saving cache entry to table: %v", err)
	}
	return nil
}

// DeleteListingEntry removes the cached entry for a token ID. Idempotent.
func (p *SQLPersister) DeleteListingEntry(tokenID uint64) error {
	queryString := p.db.Rebind(
		fmt.Sprintf("DELETE FROM %s WHERE token_id=?;", sqldb.ListingCacheTableName))
	_, err := p.db.Exec(queryString, int64(tokenID)) // nolint: gosec
	if err != nil {
		return fmt.Errorf("Error deleting cache entry: %v", err)
	}
	return nil
}

// DeleteExpiredEntries removes all entries written at or before cutoffTs
func (p *SQLPersister) DeleteExpiredEntries(cutoffTs int64) error {
	queryString := p.db.Rebind(
		fmt.Sprintf("DELETE FROM %s WHERE created_ts<=?;", sqldb.ListingCacheTableName))
	_, err := p.db.Exec(queryString, cutoffTs)
	if err != nil {
		return fmt.Errorf("Error deleting expired cache entries: %v", err)
	}
	return nil
}

// DeleteAllEntries removes every cached entry
func (p *SQLPersister) DeleteAllEntries() error {
	queryString := fmt.Sprintf("DELETE FROM %s;", sqldb.ListingCacheTableName)
	_, err := p.db.Exec(queryString)
	if err != nil {
		return fmt.Errorf("Error deleting all cache entries: %v", err)
	}
	return nil
}

// Close closes the underlying DB connection
func (p *SQLPersister) Close() error {
	return p.db.Close()
}

func (p *SQLPersister) listingEntryQuery(tableName string) string {
	return fmt.Sprintf("SELECT token_id, seller, payment_token, price, active, last_list_time, "+
		"quality, level, accumulated_food, name, image, description, tombstone, created_ts "+
		"FROM %s WHERE token_id=?;", tableName)
}

func (p *SQLPersister) updateListingEntryQuery(tableName string) string {
	return fmt.Sprintf("INSERT INTO %s (token_id, seller, payment_token, price, active, "+
		"last_list_time, quality, level, accumulated_food, name, image, description, tombstone, created_ts) "+
		"VALUES (:token_id, :seller, :payment_token, :price, :active, :last_list_time, :quality, "+
		":level, :accumulated_food, :name, :image, :description, :tombstone, :created_ts) "+
		"ON CONFLICT (token_id) DO UPDATE SET seller=excluded.seller, payment_token=excluded.payment_token, "+
		"price=excluded.price, active=excluded.active, last_list_time=excluded.last_list_time, "+
		"quality=excluded.quality, level=excluded.level, accumulated_food=excluded.accumulated_food, "+
		"name=excluded.name, image=excluded.image, description=excluded.description, "+
		"tombstone=excluded.tombstone, created_ts=excluded.created_ts;", tableName)
}
