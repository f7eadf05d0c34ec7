package catalog

import (
	"cmp"
	"slices"

	"github.com/sakif/craftmarket/internal/model"
)

// SortMode selects the listing order.
type SortMode string

const (
	SortNone  SortMode = ""
	SortPrice SortMode = "price" // ascending
	SortDate  SortMode = "date"  // newest first
)

// ParseSortMode returns the mode named by s, or SortNone for anything unknown.
func ParseSortMode(s string) SortMode {
	switch SortMode(s) {
	case SortPrice, SortDate:
		return SortMode(s)
	default:
		return SortNone
	}
}

// Sort returns a stably sorted copy of listings. The input is not modified.
func Sort(listings []model.Listing, mode SortMode) []model.Listing {
	out := slices.Clone(listings)
	if out == nil {
		out = []model.Listing{}
	}
	switch mode {
	case SortPrice:
		slices.SortStableFunc(out, func(a, b model.Listing) int {
			return cmp.Compare(a.Price, b.Price)
		})
	case SortDate:
		slices.SortStableFunc(out, func(a, b model.Listing) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	}
	return out
}

// View filters then sorts. Switching mode on the result of Apply does not
// re-run the filter, so callers holding a filtered slice can call Sort alone.
func View(listings []model.Listing, f Filter, mode SortMode) []model.Listing {
	return Sort(Apply(listings, f), mode)
}
