// Package contract wraps the read-only surface of the marketplace contract
// behind typed callers.
package contract // import "github.com/9Nieo/petworld-market/pkg/contract"

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// marketplaceABI is the read-only subset of the marketplace contract ABI
// the engine needs: the per-quality listing index arrays, the listing
// mapping getter, the init flag, and the token URI getter.
const marketplaceABI = `[
	{"constant":true,"inputs":[{"name":"quality","type":"uint8"},{"name":"index","type":"uint256"}],"name":"qualityListings","outputs":[{"name":"","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"listings","outputs":[{"name":"seller","type":"address"},{"name":"paymentToken","type":"address"},{"name":"price","type":"uint256"},{"name":"active","type":"bool"},{"name":"lastListTime","type":"uint256"},{"name":"quality","type":"uint8"},{"name":"level","type":"uint256"},{"name":"accumulatedFood","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"initialized","outputs":[{"name":"","type":"bool"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"name":"","type":"string"}],"payable":false,"stateMutability":"view","type":"function"}
]`

// Backend is the subset of an eth client the caller needs to issue
// read-only contract calls
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// RawListing is the unnormalized listing tuple as returned by the contract's
// listings getter. Fields may be zero values for nonexistent listings.
type RawListing struct {
	Seller          common.Address
	PaymentToken    common.Address
	Price           *big.Int
	Active          bool
	LastListTime    *big.Int
	Quality         uint8
	Level           *big.Int
	AccumulatedFood *big.Int
}

// MarketplaceCaller issues read-only calls against the marketplace contract
type MarketplaceCaller struct {
	address common.Address
	abi     abi.ABI
	backend Backend
}

// NewMarketplaceCaller creates a caller bound to the contract at address
func NewMarketplaceCaller(address common.Address, backend Backend) (*MarketplaceCaller, error) {
	parsed, err := abi.JSON(strings.NewReader(marketplaceABI))
	if err != nil {
		return nil, fmt.Errorf("Error parsing marketplace ABI: %v", err)
	}
	return &MarketplaceCaller{
		address: address,
		abi:     parsed,
		backend: backend,
	}, nil
}

// Address returns the bound contract address
func (m *MarketplaceCaller) Address() common.Address {
	return m.address
}

func (m *MarketplaceCaller) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	input, err := m.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("Error packing %v call: %v", method, err)
	}
	output, err := m.backend.CallContract(ctx, ethereum.CallMsg{To: &m.address, Data: input}, nil)
	if err != nil {
		return nil, err
	}
	results, err := m.abi.Unpack(method, output)
	if err != nil {
		// An empty or short return from a call that should return data is
		// the same termination signal as an explicit revert.
		return nil, &invalidReturnError{method: method, err: err}
	}
	return results, nil
}

// BucketTokenAt reads the token ID at the given index of a quality's
// listing array. An out-of-range index surfaces as an error classified
// as a termination signal by IsEndOfBucket.
func (m *MarketplaceCaller) BucketTokenAt(ctx context.Context, quality uint8, index uint64) (*big.Int, error) {
	results, err := m.call(ctx, "qualityListings", quality, new(big.Int).SetUint64(index))
	if err != nil {
		return nil, err
	}
	tokenID, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("Unexpected type for qualityListings result: %T", results[0])
	}
	return tokenID, nil
}

// ListingAt reads the full listing tuple for a token ID
func (m *MarketplaceCaller) ListingAt(ctx context.Context, tokenID uint64) (*RawListing, error) {
	results, err := m.call(ctx, "listings", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return nil, err
	}
	if len(results) < 8 {
		return nil, fmt.Errorf("Short listings result for token %v: %v values", tokenID, len(results))
	}
	raw := &RawListing{}
	raw.Seller, _ = results[0].(common.Address)
	raw.PaymentToken, _ = results[1].(common.Address)
	raw.Price, _ = results[2].(*big.Int)
	raw.Active, _ = results[3].(bool)
	raw.LastListTime, _ = results[4].(*big.Int)
	raw.Quality, _ = results[5].(uint8)
	raw.Level, _ = results[6].(*big.Int)
	raw.AccumulatedFood, _ = results[7].(*big.Int)
	return raw, nil
}

// Initialized reads the contract's initialization flag
func (m *MarketplaceCaller) Initialized(ctx context.Context) (bool, error) {
	results, err := m.call(ctx, "initialized")
	if err != nil {
		return false, err
	}
	flag, ok := results[0].(bool)
	if !ok {
		return false, fmt.Errorf("Unexpected type for initialized result: %T", results[0])
	}
	return flag, nil
}

// TokenURI reads the metadata URI for a token ID
func (m *MarketplaceCaller) TokenURI(ctx context.Context, tokenID uint64) (string, error) {
	results, err := m.call(ctx, "tokenURI", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return "", err
	}
	uri, ok := results[0].(string)
	if !ok {
		return "", fmt.Errorf("Unexpected type for tokenURI result: %T", results[0])
	}
	return uri, nil
}

type invalidReturnError struct {
	method string
	err    error
}

func (e *invalidReturnError) Error() string {
	return fmt.Sprintf("Invalid return data from %v: %v", e.method, e.err)
}

func (e *invalidReturnError) Unwrap() error {
	return e.err
}

// endOfBucketMarkers are error message fragments the node returns for a
// reverted or otherwise invalid read past the end of an on-chain array
var endOfBucketMarkers = []string{
	"execution reverted",
	"invalid opcode",
	"revert",
	"vm exception",
	"missing trie node",
	"abi: ",
}

// IsEndOfBucket returns true if the error from a bucket index read is the
// termination signal for enumeration (a revert/invalid-return class error)
// rather than a transport failure.
func IsEndOfBucket(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*invalidReturnError); ok {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range endOfBucketMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
