package market // import "github.com/9Nieo/petworld-market/pkg/market"

import (
	"context"

	"github.com/ethereum/go-ethereum/event"
	log "github.com/golang/glog"

	"github.com/9Nieo/petworld-market/pkg/model"
)

// mutationChanSize buffers bursts of mutation notifications
const mutationChanSize = 64

// MutationSynchronizer delivers marketplace mutation events to the engine.
// It has no polling loop of its own; producers post events with Notify and
// the synchronizer reacts by invalidating the affected caches. Duplicate
// delivery is safe since invalidation is idempotent.
type MutationSynchronizer struct {
	engine *MarketEngine
	feed   event.Feed
}

// NewMutationSynchronizer creates a MutationSynchronizer for the engine
func NewMutationSynchronizer(engine *MarketEngine) *MutationSynchronizer {
	return &MutationSynchronizer{engine: engine}
}

// Notify posts one mutation event to the synchronizer. Safe for concurrent
// use; delivery to the engine is asynchronous once Run has started.
func (s *MutationSynchronizer) Notify(mutation model.MutationEvent) {
	nsent := s.feed.Send(mutation)
	if nsent == 0 {
		log.V(2).Infof("Mutation %v for token %v had no subscriber", mutation.Kind, mutation.TokenID)
	}
}

// Run subscribes to the event feed and applies mutations to the engine
// until ctx is done. Blocks; run it on its own goroutine.
func (s *MutationSynchronizer) Run(ctx context.Context) {
	ch := make(chan model.MutationEvent, mutationChanSize)
	sub := s.feed.Subscribe(ch)
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			log.Errorf("Mutation subscription failed: err: %v", err)
			return
		case mutation := <-ch:
			s.engine.InvalidateOnMutation(mutation.Kind, mutation.TokenID)
		}
	}
}
