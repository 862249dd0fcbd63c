package model // import "github.com/9Nieo/petworld-market/pkg/model"

import (
	"fmt"
	"strings"
)

// SortMethod specifies the total order applied to aggregated listings
type SortMethod int

const (
	// SortPriceAsc orders by price ascending, ties broken by token ID ascending
	SortPriceAsc SortMethod = iota

	// SortPriceDesc orders by price descending, ties broken by token ID ascending
	SortPriceDesc

	// SortTokenIDAsc orders by token ID ascending
	SortTokenIDAsc

	// SortTokenIDDesc orders by token ID descending
	SortTokenIDDesc
)

var sortMethodNames = map[SortMethod]string{
	SortPriceAsc:    "priceAsc",
	SortPriceDesc:   "priceDesc",
	SortTokenIDAsc:  "idAsc",
	SortTokenIDDesc: "idDesc",
}

func (s SortMethod) String() string {
	name, ok := sortMethodNames[s]
	if !ok {
		return fmt.Sprintf("sort(%d)", int(s))
	}
	return name
}

// SortMethodFromName maps a sort name (as received from the UI layer) to a
// SortMethod. Unknown names fall back to priceAsc.
func SortMethodFromName(name string) SortMethod {
	for method, methodName := range sortMethodNames {
		if methodName == name {
			return method
		}
	}
	return SortPriceAsc
}

// MutationKind is the kind of marketplace mutation reported by the event bus
type MutationKind int

const (
	// MutationListed is a new listing for a token
	MutationListed MutationKind = iota

	// MutationDelisted is a cancelled listing
	MutationDelisted

	// MutationPriceUpdated is a price change on an existing listing
	MutationPriceUpdated

	// MutationBought is a completed purchase
	MutationBought
)

var mutationKindNames = map[MutationKind]string{
	MutationListed:       "listed",
	MutationDelisted:     "delisted",
	MutationPriceUpdated: "priceUpdated",
	MutationBought:       "bought",
}

func (k MutationKind) String() string {
	name, ok := mutationKindNames[k]
	if !ok {
		return fmt.Sprintf("mutation(%d)", int(k))
	}
	return name
}

// MutationEvent is one marketplace mutation notification delivered by the
// event bus adapter
type MutationEvent struct {
	Kind    MutationKind
	TokenID uint64
}

// PageKey identifies one cached page of aggregation output. The search text
// is normalized to lower case so lookups are case-insensitive.
type PageKey struct {
	Page    int
	Quality Quality
	Sort    SortMethod
	Search  string
}

// NewPageKey creates a PageKey with normalized search text
func NewPageKey(page int, quality Quality, sort SortMethod, search string) PageKey {
	return PageKey{
		Page:    page,
		Quality: quality,
		Sort:    sort,
		Search:  strings.ToLower(strings.TrimSpace(search)),
	}
}

// PageResult is the already-sorted-and-sliced output of one aggregation call
type PageResult struct {
	items []*ListingRecord

	totalPages int
}

// NewPageResult creates a PageResult
func NewPageResult(items []*ListingRecord, totalPages int) *PageResult {
	if totalPages < 1 {
		totalPages = 1
	}
	return &PageResult{items: items, totalPages: totalPages}
}

// Items returns the records on this page in sorted order
func (p *PageResult) Items() []*ListingRecord {
	return p.items
}

// TotalPages returns the total page count for the key's filtered set,
// minimum 1 even for an empty set
func (p *PageResult) TotalPages() int {
	return p.totalPages
}
