// Package eth contains components to validate and maintain the connection
// to the Ethereum API endpoint.
package eth // import "github.com/9Nieo/petworld-market/pkg/eth"

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/golang/glog"

	"github.com/9Nieo/petworld-market/pkg/contract"
)

// Status is the usability of an API endpoint as determined by the guard
type Status int

const (
	// StatusReady means the endpoint passed every check
	StatusReady Status = iota

	// StatusDegraded means the endpoint is reachable and on the right
	// network, but the contract is not fully usable yet
	StatusDegraded

	// StatusUnusable means the endpoint cannot serve the engine
	StatusUnusable
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusDegraded:
		return "degraded"
	case StatusUnusable:
		return "unusable"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// checkTimeout bounds every individual connectivity check
const checkTimeout = 15 * time.Second

// FallbackAPIURLs maps a network ID to the hard-coded fallback endpoint
// tried when the configured endpoint is unusable
var FallbackAPIURLs = map[int64]string{
	56: "https://bsc-dataseed1.binance.org",
	97: "https://data-seed-prebsc-1-s1.binance.org:8545",
}

// NodeClient is the subset of an eth client the guard and the engine use
type NodeClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	contract.Backend
}

// DialFn dials an endpoint URL and returns a client for it
type DialFn func(ctx context.Context, rawurl string) (NodeClient, error)

// DialEthClient is the default DialFn backed by ethclient
func DialEthClient(ctx context.Context, rawurl string) (NodeClient, error) {
	return ethclient.DialContext(ctx, rawurl)
}

// Report is the outcome of one EnsureUsable run
type Report struct {
	Status Status

	// Reason describes the failing check for degraded/unusable endpoints
	Reason string

	// Client is the usable client, set when Status != StatusUnusable
	Client NodeClient
}

// HealthGuardParams contains the fields to init a HealthGuard
type HealthGuardParams struct {
	APIURL          string
	NetworkID       int64
	ContractAddress common.Address

	// Dial is the dial function, defaults to DialEthClient
	Dial DialFn

	// FallbackAPIURL overrides the hard-coded fallback for the network
	FallbackAPIURL string
}

// NewHealthGuard creates a HealthGuard
func NewHealthGuard(params *HealthGuardParams) *HealthGuard {
	dial := params.Dial
	if dial == nil {
		dial = DialEthClient
	}
	fallback := params.FallbackAPIURL
	if fallback == "" {
		fallback = FallbackAPIURLs[params.NetworkID]
	}
	return &HealthGuard{
		apiURL:          params.APIURL,
		fallbackAPIURL:  fallback,
		networkID:       big.NewInt(params.NetworkID),
		contractAddress: params.ContractAddress,
		dial:            dial,
	}
}

// HealthGuard validates an API endpoint before the engine uses it: network
// identity, deployed contract code, and contract initialization. It keeps
// the last-known-good client for reuse and can swap to a fallback endpoint.
type HealthGuard struct {
	apiURL          string
	fallbackAPIURL  string
	networkID       *big.Int
	contractAddress common.Address
	dial            DialFn

	mu       sync.Mutex
	lastGood NodeClient
}

// Client returns the last-known-good client, nil if no endpoint has passed
// the checks yet
func (g *HealthGuard) Client() NodeClient {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastGood
}

// EnsureUsable runs the connectivity checks against the configured endpoint
// and, if that endpoint is unusable, against the fallback endpoint for the
// network. Never mutates remote state.
func (g *HealthGuard) EnsureUsable(ctx context.Context) *Report {
	report := g.checkEndpoint(ctx, g.apiURL)
	if report.Status != StatusUnusable {
		g.setLastGood(report.Client)
		return report
	}

	if g.fallbackAPIURL == "" || g.fallbackAPIURL == g.apiURL {
		return report
	}

	log.Infof("Primary endpoint unusable (%v), trying fallback: %v", report.Reason, g.fallbackAPIURL)
	fallbackReport := g.checkEndpoint(ctx, g.fallbackAPIURL)
	if fallbackReport.Status != StatusUnusable {
		g.setLastGood(fallbackReport.Client)
		return fallbackReport
	}

	// Report the primary endpoint's failure; the fallback one is logged
	log.Errorf("Fallback endpoint unusable: %v", fallbackReport.Reason)
	return report
}

func (g *HealthGuard) setLastGood(client NodeClient) {
	g.mu.Lock()
	g.lastGood = client
	g.mu.Unlock()
}

func (g *HealthGuard) checkEndpoint(ctx context.Context, rawurl string) *Report {
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	client, err := g.dial(checkCtx, rawurl)
	if err != nil {
		return &Report{
			Status: StatusUnusable,
			Reason: fmt.Sprintf("Error dialing endpoint %v: %v", rawurl, err),
		}
	}

	_, err = client.BlockNumber(checkCtx)
	if err != nil {
		return &Report{
			Status: StatusUnusable,
			Reason: fmt.Sprintf("Error getting block number from %v: %v", rawurl, err),
		}
	}

	chainID, err := client.ChainID(checkCtx)
	if err != nil {
		return &Report{
			Status: StatusUnusable,
			Reason: fmt.Sprintf("Error getting chain ID from %v: %v", rawurl, err),
		}
	}
	if chainID.Cmp(g.networkID) != 0 {
		return &Report{
			Status: StatusUnusable,
			Reason: fmt.Sprintf("Wrong network: endpoint %v is chain %v, want %v", rawurl, chainID, g.networkID),
		}
	}

	code, err := client.CodeAt(checkCtx, g.contractAddress, nil)
	if err != nil {
		return &Report{
			Status: StatusUnusable,
			Reason: fmt.Sprintf("Error getting contract code: %v", err),
		}
	}
	if len(code) == 0 {
		return &Report{
			Status: StatusUnusable,
			Reason: fmt.Sprintf("No contract code at %v on chain %v", g.contractAddress.Hex(), g.networkID),
		}
	}

	caller, err := contract.NewMarketplaceCaller(g.contractAddress, client)
	if err != nil {
		return &Report{
			Status: StatusUnusable,
			Reason: fmt.Sprintf("Error creating marketplace caller: %v", err),
		}
	}
	initialized, err := caller.Initialized(checkCtx)
	if err != nil {
		return &Report{
			Status: StatusDegraded,
			Reason: fmt.Sprintf("Error reading initialized flag: %v", err),
			Client: client,
		}
	}
	if !initialized {
		return &Report{
			Status: StatusDegraded,
			Reason: "Marketplace contract not initialized",
			Client: client,
		}
	}

	return &Report{Status: StatusReady, Client: client}
}
