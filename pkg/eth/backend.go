package eth // import "github.com/9Nieo/petworld-market/pkg/eth"

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
)

// ErrNoUsableEndpoint is returned by the guarded backend when no endpoint
// has passed the health checks yet
var ErrNoUsableEndpoint = errors.New("no usable API endpoint")

// GuardedBackend is a contract backend that always delegates to the
// guard's last-known-good client, so callers follow an endpoint swap
// without being rebuilt.
type GuardedBackend struct {
	guard *HealthGuard
}

// NewGuardedBackend creates a GuardedBackend over the guard
func NewGuardedBackend(guard *HealthGuard) *GuardedBackend {
	return &GuardedBackend{guard: guard}
}

// CallContract issues a read-only call through the last-known-good client
func (b *GuardedBackend) CallContract(ctx context.Context, call ethereum.CallMsg,
	blockNumber *big.Int) ([]byte, error) {
	client := b.guard.Client()
	if client == nil {
		return nil, ErrNoUsableEndpoint
	}
	return client.CallContract(ctx, call, blockNumber)
}
