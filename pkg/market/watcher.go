package market // import "github.com/9Nieo/petworld-market/pkg/market"

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	log "github.com/golang/glog"

	"github.com/9Nieo/petworld-market/pkg/contract"
)

const defaultPollInterval = 15 * time.Second

// LogFilterer is the log query surface the watcher needs
type LogFilterer interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
}

// NewLogWatcherParams contains the fields to init a LogWatcher
type NewLogWatcherParams struct {
	Filterer        LogFilterer
	ContractAddress common.Address
	Synchronizer    *MutationSynchronizer

	// PollInterval defaults to 15s
	PollInterval time.Duration
}

// NewLogWatcher creates a LogWatcher
func NewLogWatcher(params *NewLogWatcherParams) (*LogWatcher, error) {
	parser, err := contract.NewEventParser()
	if err != nil {
		return nil, err
	}
	interval := params.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &LogWatcher{
		filterer:     params.Filterer,
		parser:       parser,
		address:      params.ContractAddress,
		synchronizer: params.Synchronizer,
		interval:     interval,
	}, nil
}

// LogWatcher polls the chain for marketplace mutation logs and posts them
// to the synchronizer. It is the event bus adapter for deployments without
// a push transport.
type LogWatcher struct {
	filterer     LogFilterer
	parser       *contract.EventParser
	address      common.Address
	synchronizer *MutationSynchronizer
	interval     time.Duration

	nextBlock uint64
}

// Run polls for new logs until ctx is done. Blocks; run it on its own
// goroutine.
func (w *LogWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *LogWatcher) poll(ctx context.Context) {
	head, err := w.filterer.BlockNumber(ctx)
	if err != nil {
		log.Errorf("Error getting head block for log poll: err: %v", err)
		return
	}
	if w.nextBlock == 0 {
		// First poll only sets the cursor; history predates the caches
		w.nextBlock = head + 1
		return
	}
	if head < w.nextBlock {
		return
	}

	logs, err := w.filterer.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(w.nextBlock),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: []common.Address{w.address},
		Topics:    [][]common.Hash{w.parser.TopicFilter()},
	})
	if err != nil {
		log.Errorf("Error filtering marketplace logs: err: %v", err)
		return
	}
	w.nextBlock = head + 1

	for _, rawLog := range logs {
		mutation, parseErr := w.parser.ParseMutationLog(rawLog)
		if parseErr != nil {
			log.V(2).Infof("Skipping log: %v", parseErr)
			continue
		}
		w.synchronizer.Notify(*mutation)
	}
}
