// Package catalog is the listing filter/sort engine.
//
// Everything here is a pure function over []model.Listing; the store applies
// it to its cache and the backend client uses the same Filter to build query
// parameters for server-side filtering.
package catalog

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/sakif/craftmarket/internal/model"
)

// Range is an inclusive numeric range entered as free text.
// Empty or non-numeric bounds impose no constraint; they are never read as 0.
type Range struct {
	Min string `json:"min,omitempty"`
	Max string `json:"max,omitempty"`
}

// Bounds returns the parsed bounds and whether each one is present.
func (r Range) Bounds() (lo float64, hasLo bool, hi float64, hasHi bool) {
	lo, hasLo = parseBound(r.Min)
	hi, hasHi = parseBound(r.Max)
	return
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	lo, hasLo, hi, hasHi := r.Bounds()
	if hasLo && v < lo {
		return false
	}
	if hasHi && v > hi {
		return false
	}
	return true
}

// IsEmpty reports whether the range has no usable bound.
func (r Range) IsEmpty() bool {
	_, hasLo, _, hasHi := r.Bounds()
	return !hasLo && !hasHi
}

func parseBound(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Filter is the full set of listing criteria. All criteria are ANDed.
type Filter struct {
	Title    string `json:"title,omitempty"`
	Master   string `json:"master,omitempty"` // seller display name
	Address  string `json:"address,omitempty"`
	Width    Range  `json:"width"`
	Height   Range  `json:"height"`
	Length   Range  `json:"length"`
	Weight   Range  `json:"weight"`
	Quantity Range  `json:"quantity"`
	Price    Range  `json:"price"`
}

// IsEmpty reports whether the filter imposes no constraint at all.
func (f Filter) IsEmpty() bool {
	return strings.TrimSpace(f.Title) == "" &&
		strings.TrimSpace(f.Master) == "" &&
		strings.TrimSpace(f.Address) == "" &&
		f.Width.IsEmpty() && f.Height.IsEmpty() && f.Length.IsEmpty() &&
		f.Weight.IsEmpty() && f.Quantity.IsEmpty() && f.Price.IsEmpty()
}

// Matches reports whether l passes every criterion.
func (f Filter) Matches(l model.Listing) bool {
	if !containsFold(l.Title, f.Title) ||
		!containsFold(l.MasterName, f.Master) ||
		!containsFold(l.Address, f.Address) {
		return false
	}
	return f.Width.Contains(float64(l.Width)) &&
		f.Height.Contains(float64(l.Height)) &&
		f.Length.Contains(float64(l.Length)) &&
		f.Weight.Contains(float64(l.Weight)) &&
		f.Quantity.Contains(float64(l.Quantity)) &&
		f.Price.Contains(float64(l.Price))
}

// Apply returns the listings that match f, in their original order.
func Apply(listings []model.Listing, f Filter) []model.Listing {
	out := make([]model.Listing, 0, len(listings))
	if f.IsEmpty() {
		return append(out, listings...)
	}
	for _, l := range listings {
		if f.Matches(l) {
			out = append(out, l)
		}
	}
	return out
}

func containsFold(s, substr string) bool {
	substr = strings.TrimSpace(substr)
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Query parameter names understood by the backend's listing endpoint.
// Quantity is called "amount" on the wire, and the backend rejects amount
// bounds that are not whole numbers.
var rangeParams = []struct {
	name    string
	integer bool
	get     func(*Filter) *Range
}{
	{"width", false, func(f *Filter) *Range { return &f.Width }},
	{"height", false, func(f *Filter) *Range { return &f.Height }},
	{"length", false, func(f *Filter) *Range { return &f.Length }},
	{"weight", false, func(f *Filter) *Range { return &f.Weight }},
	{"amount", true, func(f *Filter) *Range { return &f.Quantity }},
	{"price", false, func(f *Filter) *Range { return &f.Price }},
}

// Values encodes the filter as backend query parameters. Text criteria are
// sent trimmed; only parseable bounds are sent. Bounds of integer parameters
// are narrowed to whole numbers (min rounded up, max rounded down), which
// selects the same integer values.
func (f Filter) Values() url.Values {
	v := url.Values{}
	if s := strings.TrimSpace(f.Title); s != "" {
		v.Set("name", s)
	}
	if s := strings.TrimSpace(f.Master); s != "" {
		v.Set("master", s)
	}
	for _, p := range rangeParams {
		r := p.get(&f)
		if lo, ok := parseBound(r.Min); ok {
			if p.integer {
				lo = math.Ceil(lo)
			}
			v.Set(p.name+"_min", formatBound(lo))
		}
		if hi, ok := parseBound(r.Max); ok {
			if p.integer {
				hi = math.Floor(hi)
			}
			v.Set(p.name+"_max", formatBound(hi))
		}
	}
	if s := strings.TrimSpace(f.Address); s != "" {
		v.Set("address", s)
	}
	return v
}

// FilterFromValues is the inverse of Values. It accepts both the backend
// names ("name", "amount_min") and the display names ("title",
// "quantity_min") so the gateway can pass browser query strings through.
func FilterFromValues(v url.Values) Filter {
	f := Filter{
		Title:   first(v, "title", "name"),
		Master:  v.Get("master"),
		Address: v.Get("address"),
	}
	for _, p := range rangeParams {
		r := p.get(&f)
		alias := p.name
		if alias == "amount" {
			alias = "quantity"
		}
		r.Min = first(v, p.name+"_min", alias+"_min")
		r.Max = first(v, p.name+"_max", alias+"_max")
	}
	return f
}

func first(v url.Values, keys ...string) string {
	for _, k := range keys {
		if s := v.Get(k); s != "" {
			return s
		}
	}
	return ""
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
