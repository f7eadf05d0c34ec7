package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ListingIDSeparator joins a seller login and the per-seller sequence number.
const ListingIDSeparator = "_"

// Listing is an item for sale.
//
// ID is the composite "<MasterID>_<Number>". MasterName is denormalized from
// the seller's profile and falls back to MasterID when the lookup fails.
type Listing struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	MasterID    string    `json:"masterId"`
	MasterName  string    `json:"masterName"`
	Number      int       `json:"number"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Length      int       `json:"length"`
	Weight      int       `json:"weight"`
	Quantity    int       `json:"quantity"`
	Price       int       `json:"price"`
	Address     string    `json:"address"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FormatListingID builds the composite listing id.
func FormatListingID(masterID string, number int) string {
	return masterID + ListingIDSeparator + strconv.Itoa(number)
}

// ParseListingID splits a composite id on its LAST separator, so logins that
// themselves contain "_" still parse: "ann_lee_7" -> ("ann_lee", 7).
func ParseListingID(id string) (masterID string, number int, err error) {
	i := strings.LastIndex(id, ListingIDSeparator)
	if i <= 0 || i == len(id)-1 {
		return "", 0, fmt.Errorf("listing id %q: want <login>%s<number>", id, ListingIDSeparator)
	}
	number, err = strconv.Atoi(id[i+1:])
	if err != nil || number < 0 {
		return "", 0, fmt.Errorf("listing id %q: invalid number", id)
	}
	return id[:i], number, nil
}

// ListingDraft is the seller-supplied content of a new listing.
type ListingDraft struct {
	Title       string `json:"title"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Length      int    `json:"length"`
	Weight      int    `json:"weight"`
	Quantity    int    `json:"quantity"`
	Price       int    `json:"price"`
	Address     string `json:"address"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
}

// Validate checks the draft against the listing invariants and returns the
// name of the first offending field with a message.
func (d ListingDraft) Validate() (field, message string, ok bool) {
	if strings.TrimSpace(d.Title) == "" {
		return "title", "title is required", false
	}
	if strings.TrimSpace(d.Address) == "" {
		return "address", "address is required", false
	}
	dims := []struct {
		name  string
		value int
	}{
		{"width", d.Width},
		{"height", d.Height},
		{"length", d.Length},
		{"weight", d.Weight},
		{"quantity", d.Quantity},
	}
	for _, dim := range dims {
		if dim.value <= 0 {
			return dim.name, dim.name + " must be a positive integer", false
		}
	}
	if d.Price < 0 {
		return "price", "price must not be negative", false
	}
	return "", "", true
}

// ListingUpdate is a partial edit of a listing. Nil fields are absent.
type ListingUpdate struct {
	Title       *string `json:"title,omitempty"`
	Width       *int    `json:"width,omitempty"`
	Height      *int    `json:"height,omitempty"`
	Length      *int    `json:"length,omitempty"`
	Weight      *int    `json:"weight,omitempty"`
	Quantity    *int    `json:"quantity,omitempty"`
	Price       *int    `json:"price,omitempty"`
	Address     *string `json:"address,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"imageUrl,omitempty"`
}

// IsEmpty reports whether no field is present.
func (u ListingUpdate) IsEmpty() bool {
	return u.Title == nil && u.Width == nil && u.Height == nil && u.Length == nil &&
		u.Weight == nil && u.Quantity == nil && u.Price == nil && u.Address == nil &&
		u.Description == nil && u.ImageURL == nil
}

// Validate applies the draft rules to the fields that are present.
func (u ListingUpdate) Validate() (field, message string, ok bool) {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return "title", "title must not be blank", false
	}
	if u.Address != nil && strings.TrimSpace(*u.Address) == "" {
		return "address", "address must not be blank", false
	}
	dims := []struct {
		name  string
		value *int
	}{
		{"width", u.Width},
		{"height", u.Height},
		{"length", u.Length},
		{"weight", u.Weight},
		{"quantity", u.Quantity},
	}
	for _, dim := range dims {
		if dim.value != nil && *dim.value <= 0 {
			return dim.name, dim.name + " must be a positive integer", false
		}
	}
	if u.Price != nil && *u.Price < 0 {
		return "price", "price must not be negative", false
	}
	return "", "", true
}

// Apply copies the present fields onto l and stamps UpdatedAt.
func (u ListingUpdate) Apply(l *Listing, now time.Time) {
	setString(&l.Title, u.Title)
	setInt(&l.Width, u.Width)
	setInt(&l.Height, u.Height)
	setInt(&l.Length, u.Length)
	setInt(&l.Weight, u.Weight)
	setInt(&l.Quantity, u.Quantity)
	setInt(&l.Price, u.Price)
	setString(&l.Address, u.Address)
	setString(&l.Description, u.Description)
	setString(&l.ImageURL, u.ImageURL)
	l.UpdatedAt = now
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
