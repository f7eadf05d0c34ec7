package model

import "time"

// Comment is free text attached to one listing by one user.
// The backend assigns no ids to comments; ID is synthesized on the client and
// must not be used to match a comment against a later fetch.
type Comment struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listingId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// SameComment compares comments by natural key (listing, author, text).
func SameComment(a, b Comment) bool {
	return a.ListingID == b.ListingID && a.UserID == b.UserID && a.Text == b.Text
}

// Rating bounds for reviews.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is one user's rating of another user.
// UserID is the reviewed user; AuthorID is the reviewer.
type Review struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Text       string    `json:"text"`
	Rating     int       `json:"rating"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SameReview compares reviews by natural key (target, author, text). Two
// distinct reviews with identical text from the same author are
// indistinguishable under this key.
func SameReview(a, b Review) bool {
	return a.UserID == b.UserID && a.AuthorID == b.AuthorID && a.Text == b.Text
}

// AverageRating is the arithmetic mean of the ratings, 0 for no reviews.
func AverageRating(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews))
}
