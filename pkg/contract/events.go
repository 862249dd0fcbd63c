package contract // import "github.com/9Nieo/petworld-market/pkg/contract"

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/9Nieo/petworld-market/pkg/model"
)

// marketplaceEventsABI lists the marketplace mutation events the watcher
// translates into cache invalidations. The token ID is the first indexed
// topic of every event.
const marketplaceEventsABI = `[
	{"anonymous":false,"inputs":[{"indexed":true,"name":"tokenId","type":"uint256"},{"indexed":true,"name":"seller","type":"address"},{"indexed":false,"name":"price","type":"uint256"}],"name":"PetListed","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"tokenId","type":"uint256"},{"indexed":true,"name":"seller","type":"address"}],"name":"PetDelisted","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"tokenId","type":"uint256"},{"indexed":false,"name":"newPrice","type":"uint256"}],"name":"PetPriceUpdated","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"tokenId","type":"uint256"},{"indexed":true,"name":"buyer","type":"address"},{"indexed":false,"name":"price","type":"uint256"}],"name":"PetSold","type":"event"}
]`

var eventNameToMutationKind = map[string]model.MutationKind{
	"PetListed":       model.MutationListed,
	"PetDelisted":     model.MutationDelisted,
	"PetPriceUpdated": model.MutationPriceUpdated,
	"PetSold":         model.MutationBought,
}

// EventParser maps raw marketplace logs to mutation events
type EventParser struct {
	abi         abi.ABI
	idToKind    map[common.Hash]model.MutationKind
	topicFilter []common.Hash
}

// NewEventParser creates an EventParser for the marketplace mutation events
func NewEventParser() (*EventParser, error) {
	parsed, err := abi.JSON(strings.NewReader(marketplaceEventsABI))
	if err != nil {
		return nil, fmt.Errorf("Error parsing marketplace events ABI: %v", err)
	}
	idToKind := map[common.Hash]model.MutationKind{}
	topics := []common.Hash{}
	for name, kind := range eventNameToMutationKind {
		ev, ok := parsed.Events[name]
		if !ok {
			return nil, fmt.Errorf("Marketplace events ABI missing event %v", name)
		}
		idToKind[ev.ID] = kind
		topics = append(topics, ev.ID)
	}
	return &EventParser{
		abi:         parsed,
		idToKind:    idToKind,
		topicFilter: topics,
	}, nil
}

// TopicFilter returns the topic0 hashes of all mutation events, usable as
// the first position of a FilterQuery topics list
func (p *EventParser) TopicFilter() []common.Hash {
	return p.topicFilter
}

// ParseMutationLog translates one raw log into a MutationEvent. Returns an
// error for logs that are not marketplace mutation events or are missing
// the token ID topic.
func (p *EventParser) ParseMutationLog(raw types.Log) (*model.MutationEvent, error) {
	if len(raw.Topics) < 2 {
		return nil, fmt.Errorf("Log in tx %v has no token ID topic", raw.TxHash.Hex())
	}
	kind, ok := p.idToKind[raw.Topics[0]]
	if !ok {
		return nil, fmt.Errorf("Log in tx %v is not a marketplace mutation event", raw.TxHash.Hex())
	}
	tokenID := raw.Topics[1].Big()
	if !tokenID.IsUint64() {
		return nil, fmt.Errorf("Token ID topic out of range in tx %v", raw.TxHash.Hex())
	}
	return &model.MutationEvent{
		Kind:    kind,
		TokenID: tokenID.Uint64(),
	}, nil
}
