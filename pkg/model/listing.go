// Package model contains the general data models and interfaces for the market engine.
package model // import "github.com/9Nieo/petworld-market/pkg/model"

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Quality is the rarity bucket a pet NFT is listed under on the marketplace
// contract. Each quality has its own indexed listing array on chain.
type Quality int

const (
	// QualityCommon is the COMMON rarity bucket
	QualityCommon Quality = iota

	// QualityGood is the GOOD rarity bucket
	QualityGood

	// QualityExcellent is the EXCELLENT rarity bucket
	QualityExcellent

	// QualityRare is the RARE rarity bucket
	QualityRare

	// QualityLegendary is the LEGENDARY rarity bucket
	QualityLegendary
)

// NumQualities is the number of quality buckets on the marketplace contract
const NumQualities = 5

var qualityNames = map[Quality]string{
	QualityCommon:    "COMMON",
	QualityGood:      "GOOD",
	QualityExcellent: "EXCELLENT",
	QualityRare:      "RARE",
	QualityLegendary: "LEGENDARY",
}

func (q Quality) String() string {
	name, ok := qualityNames[q]
	if !ok {
		return fmt.Sprintf("QUALITY(%d)", int(q))
	}
	return name
}

// Valid returns true if the quality is a known bucket value
func (q Quality) Valid() bool {
	return q >= QualityCommon && q <= QualityLegendary
}

// ListingRecord represents one active pet listing on the marketplace contract.
// Numeric fields are normalized at fetch time; see NewListingRecord.
type ListingRecord struct {
	tokenID uint64

	seller common.Address

	paymentToken common.Address

	price *big.Int

	active bool

	lastListTime int64

	quality Quality

	level uint64

	accumulatedFood uint64

	name string

	image string

	description string
}

// NewListingRecordParams contains the fields to init a ListingRecord
type NewListingRecordParams struct {
	TokenID         uint64
	Seller          common.Address
	PaymentToken    common.Address
	Price           *big.Int
	Active          bool
	LastListTime    int64
	Quality         Quality
	Level           uint64
	AccumulatedFood uint64
	Name            string
	Image           string
	Description     string
}

// NewListingRecord is a convenience function to init a ListingRecord.
// Applies the normalization defaults: a nil price becomes 0, a zero level
// becomes 1, and an empty name becomes the "Pet #<tokenId>" placeholder.
func NewListingRecord(params *NewListingRecordParams) *ListingRecord {
	price := params.Price
	if price == nil {
		price = big.NewInt(0)
	}
	level := params.Level
	if level == 0 {
		level = 1
	}
	name := params.Name
	if name == "" {
		name = DefaultListingName(params.TokenID)
	}
	return &ListingRecord{
		tokenID:         params.TokenID,
		seller:          params.Seller,
		paymentToken:    params.PaymentToken,
		price:           price,
		active:          params.Active,
		lastListTime:    params.LastListTime,
		quality:         params.Quality,
		level:           level,
		accumulatedFood: params.AccumulatedFood,
		name:            name,
		image:           params.Image,
		description:     params.Description,
	}
}

// DefaultListingName returns the placeholder display name used when the
// metadata resolver has not produced a real name for a token.
func DefaultListingName(tokenID uint64) string {
	return fmt.Sprintf("Pet #%d", tokenID)
}

// TokenID returns the token ID of the listed pet
func (l *ListingRecord) TokenID() uint64 {
	return l.tokenID
}

// Seller returns the address of the current lister
func (l *ListingRecord) Seller() common.Address {
	return l.seller
}

// PaymentToken returns the address of the accepted payment currency. The
// zero address means the chain's native currency.
func (l *ListingRecord) PaymentToken() common.Address {
	return l.paymentToken
}

// IsNativePayment returns true if the listing is priced in the native currency
func (l *ListingRecord) IsNativePayment() bool {
	return l.paymentToken == (common.Address{})
}

// Price returns the listing price in the payment token's smallest unit
func (l *ListingRecord) Price() *big.Int {
	return l.price
}

// Active returns true if the listing is currently purchasable
func (l *ListingRecord) Active() bool {
	return l.active
}

// LastListTime returns the epoch secs timestamp of the latest (re)listing
func (l *ListingRecord) LastListTime() int64 {
	return l.lastListTime
}

// Quality returns the rarity bucket the pet was discovered under
func (l *ListingRecord) Quality() Quality {
	return l.quality
}

// Level returns the pet's game level, minimum 1
func (l *ListingRecord) Level() uint64 {
	return l.level
}

// AccumulatedFood returns the pet's accumulated feeding amount
func (l *ListingRecord) AccumulatedFood() uint64 {
	return l.accumulatedFood
}

// Name returns the display name of the pet
func (l *ListingRecord) Name() string {
	return l.name
}

// Image returns the display image URL of the pet, may be empty
func (l *ListingRecord) Image() string {
	return l.image
}

// Description returns the display description of the pet, may be empty
func (l *ListingRecord) Description() string {
	return l.description
}

// HasMetadata returns true if display metadata has been resolved beyond
// the placeholder name
func (l *ListingRecord) HasMetadata() bool {
	return l.name != DefaultListingName(l.tokenID) || l.image != ""
}

// SetMetadata sets the lazily-resolved display fields on the record.
// An empty name leaves the placeholder in place.
func (l *ListingRecord) SetMetadata(name string, image string, description string) {
	if name != "" {
		l.name = name
	}
	l.image = image
	l.description = description
}
