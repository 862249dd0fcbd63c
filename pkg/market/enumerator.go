// Package market contains the aggregation engine over the marketplace
// contract: bucket enumeration, page assembly, and mutation handling.
package market // import "github.com/9Nieo/petworld-market/pkg/market"

import (
	"context"
	"math/big"
	"time"

	log "github.com/golang/glog"

	"github.com/9Nieo/petworld-market/pkg/contract"
	"github.com/9Nieo/petworld-market/pkg/model"
	"github.com/9Nieo/petworld-market/pkg/utils"
)

const (
	// DefaultMaxBucketEntries is the hard ceiling on entries scanned per
	// bucket, protecting against a misbehaving remote
	DefaultMaxBucketEntries = 1000

	defaultProbeAttempts = 3

	defaultProbeDelay = 2 * time.Second

	defaultProbeTimeout = 5 * time.Second
)

// BucketReader is the contract read surface the enumerator needs
type BucketReader interface {
	BucketTokenAt(ctx context.Context, quality uint8, index uint64) (*big.Int, error)
}

type indexReadState int

const (
	indexValue indexReadState = iota
	indexEndOfBucket
	indexTransientFailure
)

// indexRead is the tagged result of one bucket index probe
type indexRead struct {
	state   indexReadState
	tokenID uint64
}

// NewBucketEnumeratorParams contains the fields to init a BucketEnumerator
type NewBucketEnumeratorParams struct {
	Reader BucketReader

	// ProbeAttempts and ProbeDelay bound retries on one index read,
	// defaulting to 3 attempts 2s apart
	ProbeAttempts int
	ProbeDelay    time.Duration

	// ProbeTimeout bounds one index read, defaults to 5s
	ProbeTimeout time.Duration

	// MaxEntries is the per-bucket scan ceiling, defaults to
	// DefaultMaxBucketEntries
	MaxEntries int
}

// NewBucketEnumerator creates a BucketEnumerator
func NewBucketEnumerator(params *NewBucketEnumeratorParams) *BucketEnumerator {
	attempts := params.ProbeAttempts
	if attempts <= 0 {
		attempts = defaultProbeAttempts
	}
	delay := params.ProbeDelay
	if delay <= 0 {
		delay = defaultProbeDelay
	}
	timeout := params.ProbeTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	maxEntries := params.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMaxBucketEntries
	}
	return &BucketEnumerator{
		reader:        params.Reader,
		probeAttempts: attempts,
		probeDelay:    delay,
		probeTimeout:  timeout,
		maxEntries:    maxEntries,
	}
}

// BucketEnumerator walks a quality's indexed listing array on the contract
// to discover candidate token IDs. A reverted read past the end of the
// array is the normal termination signal, not an error.
type BucketEnumerator struct {
	reader        BucketReader
	probeAttempts int
	probeDelay    time.Duration
	probeTimeout  time.Duration
	maxEntries    int
}

// Enumerate scans the bucket for the given quality from index 0 and
// returns the discovered token IDs. A re-invocation re-scans from index 0.
// Always terminates within the configured ceiling, and never returns the
// same token ID twice. Token ID 0 is a legitimate value.
func (e *BucketEnumerator) Enumerate(ctx context.Context, quality model.Quality) ([]uint64, error) {
	tokenIDs := []uint64{}
	seen := map[uint64]bool{}
	for index := 0; index < e.maxEntries; index++ {
		read := e.readIndex(ctx, quality, uint64(index)) // nolint: gosec
		switch read.state {
		case indexEndOfBucket:
			return tokenIDs, nil
		case indexTransientFailure:
			// Fail-safe: stop scanning rather than hang
			log.Errorf("Probe of bucket %v index %v kept failing, stopping scan with %v entries",
				quality, index, len(tokenIDs))
			return tokenIDs, nil
		}
		if seen[read.tokenID] {
			log.Errorf("Bucket %v repeats token %v at index %v, stopping scan", quality, read.tokenID, index)
			return tokenIDs, nil
		}
		seen[read.tokenID] = true
		tokenIDs = append(tokenIDs, read.tokenID)
		if ctx.Err() != nil {
			return tokenIDs, ctx.Err()
		}
	}
	log.Errorf("Bucket %v hit the %v entry scan ceiling", quality, e.maxEntries)
	return tokenIDs, nil
}

// AnyListings probes index 0 of every quality bucket and returns true as
// soon as one has an entry. Used to skip full scans against an empty
// marketplace.
func (e *BucketEnumerator) AnyListings(ctx context.Context) bool {
	for quality := model.QualityCommon; quality <= model.QualityLegendary; quality++ {
		read := e.readIndex(ctx, quality, 0)
		if read.state == indexValue {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
	}
	return false
}

// readIndex probes one bucket index with bounded retries and returns the
// tagged result. Only an explicit revert/invalid-return is the end of the
// bucket; a probe that keeps timing out is a transient failure.
func (e *BucketEnumerator) readIndex(ctx context.Context, quality model.Quality, index uint64) indexRead {
	var value *big.Int
	err := utils.Retry(ctx, e.probeAttempts, e.probeDelay, func() error {
		probeCtx, cancel := context.WithTimeout(ctx, e.probeTimeout)
		defer cancel()
		var readErr error
		value, readErr = e.reader.BucketTokenAt(probeCtx, uint8(quality), index) // nolint: gosec
		if readErr != nil && contract.IsEndOfBucket(readErr) {
			return utils.Permanent(readErr)
		}
		return readErr
	})
	if err != nil {
		if contract.IsEndOfBucket(err) {
			return indexRead{state: indexEndOfBucket}
		}
		log.V(2).Infof("Transient failure probing bucket %v index %v: err: %v", quality, index, err)
		return indexRead{state: indexTransientFailure}
	}
	if value == nil || !value.IsUint64() {
		log.Errorf("Bucket %v index %v returned out-of-range token ID: %v", quality, index, value)
		return indexRead{state: indexEndOfBucket}
	}
	return indexRead{state: indexValue, tokenID: value.Uint64()}
}
