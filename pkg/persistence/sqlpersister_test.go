package persistence_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/9Nieo/petworld-market/pkg/model"
	"github.com/9Nieo/petworld-market/pkg/persistence"
)

func setupTestPersister(t *testing.T) *persistence.SQLPersister {
	persister, err := persistence.NewSqlitePersister(":memory:")
	if err != nil {
		t.Fatalf("Should have created the sqlite persister: err: %v", err)
	}
	t.Cleanup(func() {
		_ = persister.Close() // nolint: gosec
	})
	return persister
}

func sampleEntry(tokenID uint64, price string, createdTs int64) *model.CacheEntry {
	priceInt, _ := new(big.Int).SetString(price, 10)
	record := model.NewListingRecord(&model.NewListingRecordParams{
		TokenID:      tokenID,
		Seller:       common.HexToAddress("0xDFe273082089bB7f70Ee36Eebcde64832FE97E55"),
		Price:        priceInt,
		Active:       true,
		LastListTime: createdTs - 60,
		Quality:      model.QualityGood,
		Level:        2,
	})
	return model.NewCacheEntry(record, createdTs)
}

func TestSQLPersisterRoundTrip(t *testing.T) {
	persister := setupTestPersister(t)

	saved := sampleEntry(42, "123456789012345678901234567890", 1257894000)
	err := persister.UpdateListingEntry(saved)
	if err != nil {
		t.Fatalf("Should have saved the entry: err: %v", err)
	}

	entry, err := persister.ListingEntry(42)
	if err != nil {
		t.Fatalf("Should have retrieved the entry: err: %v", err)
	}
	if entry.TokenID() != 42 || entry.CreatedTs() != 1257894000 {
		t.Errorf("Entry identity should survive the round trip")
	}
	if entry.Record().Price().Cmp(saved.Record().Price()) != 0 {
		t.Errorf("Price should survive without loss, got %v", entry.Record().Price())
	}
}

func TestSQLPersisterNoResults(t *testing.T) {
	persister := setupTestPersister(t)

	_, err := persister.ListingEntry(42)
	if err != model.ErrPersisterNoResults {
		t.Errorf("Should have gotten ErrPersisterNoResults, got %v", err)
	}
}

func TestSQLPersisterUpsert(t *testing.T) {
	persister := setupTestPersister(t)

	err := persister.UpdateListingEntry(sampleEntry(42, "100", 1257894000))
	if err != nil {
		t.Fatalf("Should have saved the entry: err: %v", err)
	}
	err = persister.UpdateListingEntry(sampleEntry(42, "200", 1257894100))
	if err != nil {
		t.Fatalf("Should have overwritten the entry: err: %v", err)
	}

	entry, err := persister.ListingEntry(42)
	if err != nil {
		t.Fatalf("Should have retrieved the entry: err: %v", err)
	}
	if entry.Record().Price().Int64() != 200 || entry.CreatedTs() != 1257894100 {
		t.Errorf("Second save should win, got price %v", entry.Record().Price())
	}
}

func TestSQLPersisterTombstone(t *testing.T) {
	persister := setupTestPersister(t)

	err := persister.UpdateListingEntry(model.NewTombstoneEntry(42, 1257894000))
	if err != nil {
		t.Fatalf("Should have saved the tombstone: err: %v", err)
	}

	entry, err := persister.ListingEntry(42)
	if err != nil {
		t.Fatalf("Should have retrieved the tombstone: err: %v", err)
	}
	if !entry.Tombstone() {
		t.Errorf("Should have gotten a tombstone back")
	}
}

func TestSQLPersisterDelete(t *testing.T) {
	persister := setupTestPersister(t)

	err := persister.UpdateListingEntry(sampleEntry(42, "100", 1257894000))
	if err != nil {
		t.Fatalf("Should have saved the entry: err: %v", err)
	}
	err = persister.DeleteListingEntry(42)
	if err != nil {
		t.Fatalf("Should have deleted the entry: err: %v", err)
	}
	if _, err = persister.ListingEntry(42); err != model.ErrPersisterNoResults {
		t.Errorf("Entry should be gone")
	}

	// Deleting again is idempotent
	if err = persister.DeleteListingEntry(42); err != nil {
		t.Errorf("Second delete should not error: err: %v", err)
	}
}

func TestSQLPersisterDeleteExpired(t *testing.T) {
	persister := setupTestPersister(t)

	_ = persister.UpdateListingEntry(sampleEntry(1, "100", 1000)) // nolint: gosec
	_ = persister.UpdateListingEntry(sampleEntry(2, "100", 2000)) // nolint: gosec
	_ = persister.UpdateListingEntry(sampleEntry(3, "100", 3000)) // nolint: gosec

	err := persister.DeleteExpiredEntries(2000)
	if err != nil {
		t.Fatalf("Should have deleted expired entries: err: %v", err)
	}
	if _, err = persister.ListingEntry(1); err != model.ErrPersisterNoResults {
		t.Errorf("Entry at ts 1000 should be gone")
	}
	if _, err = persister.ListingEntry(2); err != model.ErrPersisterNoResults {
		t.Errorf("Entry at the cutoff should be gone")
	}
	if _, err = persister.ListingEntry(3); err != nil {
		t.Errorf("Entry after the cutoff should remain: err: %v", err)
	}
}

func TestSQLPersisterDeleteAll(t *testing.T) {
	persister := setupTestPersister(t)

	_ = persister.UpdateListingEntry(sampleEntry(1, "100", 1000)) // nolint: gosec
	_ = persister.UpdateListingEntry(sampleEntry(2, "100", 2000)) // nolint: gosec

	err := persister.DeleteAllEntries()
	if err != nil {
		t.Fatalf("Should have deleted all entries: err: %v", err)
	}
	if _, err = persister.ListingEntry(1); err != model.ErrPersisterNoResults {
		t.Errorf("All entries should be gone")
	}
}
