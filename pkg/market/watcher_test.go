package market_test

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/9Nieo/petworld-market/pkg/market"
	"github.com/9Nieo/petworld-market/pkg/model"
)

var (
	watchedAddress = common.HexToAddress("0x04C0587AE52e1Cca3a321ef1bA86a277c538F8F4")
	petSoldTopic   = crypto.Keccak256Hash([]byte("PetSold(uint256,address,uint256)"))
)

// fakeFilterer serves a scripted chain: the head advances on every block
// number query and pending logs drain on the first filter that covers them
type fakeFilterer struct {
	mu      sync.Mutex
	head    uint64
	pending []types.Log

	queries []ethereum.FilterQuery
}

func (f *fakeFilterer) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head++
	return f.head, nil
}

func (f *fakeFilterer) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	logs := f.pending
	f.pending = nil
	return logs, nil
}

func (f *fakeFilterer) emit(rawLog types.Log) {
	f.mu.Lock()
	f.pending = append(f.pending, rawLog)
	f.mu.Unlock()
}

func TestWatcherDeliversMutationLogs(t *testing.T) {
	backend := newFakeMarket()
	backend.addListing(model.QualityGood, 42, big.NewInt(100), true)

	engine, _ := newTestEngine(backend, 10)
	_, err := engine.GetPage(context.Background(), model.QualityGood, model.SortPriceAsc, "", 1, false)
	if err != nil {
		t.Fatalf("Should not have gotten error getting page: err: %v", err)
	}

	synchronizer := market.NewMutationSynchronizer(engine)
	filterer := &fakeFilterer{head: 100}
	watcher, err := market.NewLogWatcher(&market.NewLogWatcherParams{
		Filterer:        filterer,
		ContractAddress: watchedAddress,
		Synchronizer:    synchronizer,
		PollInterval:    5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Should have created the watcher: err: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go synchronizer.Run(ctx)
	go watcher.Run(ctx)

	// Give the watcher its cursor-setting first poll, then sell the pet
	time.Sleep(30 * time.Millisecond)
	backend.deactivate(42)
	filterer.emit(types.Log{
		Address: watchedAddress,
		Topics: []common.Hash{
			petSoldTopic,
			common.BigToHash(big.NewInt(42)),
			common.HexToHash("0xDFe273082089bB7f70Ee36Eebcde64832FE97E55"),
		},
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		result, pageErr := engine.GetPage(context.Background(), model.QualityGood, model.SortPriceAsc, "", 1, false)
		if pageErr != nil {
			t.Fatalf("Should not have gotten error getting page: err: %v", pageErr)
		}
		if len(result.Items()) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("The sold log should have invalidated the aggregated page")
}

func TestWatcherQueriesOnlyMarketplaceTopics(t *testing.T) {
	engine, _ := newTestEngine(newFakeMarket(), 10)
	synchronizer := market.NewMutationSynchronizer(engine)
	filterer := &fakeFilterer{head: 100}
	watcher, err := market.NewLogWatcher(&market.NewLogWatcherParams{
		Filterer:        filterer,
		ContractAddress: watchedAddress,
		Synchronizer:    synchronizer,
		PollInterval:    5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Should have created the watcher: err: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		filterer.mu.Lock()
		queries := len(filterer.queries)
		filterer.mu.Unlock()
		if queries > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	filterer.mu.Lock()
	defer filterer.mu.Unlock()
	if len(filterer.queries) == 0 {
		t.Fatalf("Watcher should have issued a filter query")
	}
	query := filterer.queries[0]
	if len(query.Addresses) != 1 || query.Addresses[0] != watchedAddress {
		t.Errorf("Filter should pin the marketplace address")
	}
	if len(query.Topics) != 1 || len(query.Topics[0]) != 4 {
		t.Errorf("Filter should pin the 4 mutation event topics")
	}
	if query.FromBlock == nil || query.ToBlock == nil || query.FromBlock.Cmp(query.ToBlock) > 0 {
		t.Errorf("Filter block range should be well formed")
	}
}
