package backend

import (
	"time"

	"github.com/sakif/craftmarket/internal/format"
	"github.com/sakif/craftmarket/internal/model"
)

// DefaultListingImage is used when a listing has no photo.
const DefaultListingImage = "/static/listing-placeholder.png"

// apiUser is the backend's user record. Every field is optional on read.
type apiUser struct {
	Login       string `json:"login"`
	FullName    string `json:"full_name"`
	Role        string `json:"role"`
	Age         int    `json:"age"`
	Description string `json:"description"`
	Education   string `json:"education"`
	PhotoURL    string `json:"photo_url"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func mapUser(u apiUser) model.User {
	status := model.Status(u.Status)
	if !status.Valid() {
		status = model.StatusActive
	}
	return model.User{
		ID:               u.Login,
		FullName:         u.FullName,
		UserType:         model.RoleFromBackend(u.Role),
		Login:            u.Login,
		Bio:              u.Description,
		Age:              u.Age,
		Education:        u.Education,
		RegistrationDate: format.DateOnly(u.CreatedAt),
		LastUpdate:       format.DateOnly(u.UpdatedAt),
		Image:            u.PhotoURL,
		Status:           status,
	}
}

// apiListing is the backend's announcement record.
type apiListing struct {
	Master      string `json:"master"`
	Number      int    `json:"number"`
	Name        string `json:"name"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Length      int    `json:"length"`
	Weight      int    `json:"weight"`
	Amount      int    `json:"amount"`
	Price       int    `json:"price"`
	Address     string `json:"address"`
	Description string `json:"description"`
	PhotoURL    string `json:"photo_url"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// mapListing converts a wire listing. masterName falls back to the login when
// the seller lookup did not produce a name.
func mapListing(l apiListing, names map[string]model.User, now time.Time) model.Listing {
	masterName := l.Master
	if u, ok := names[l.Master]; ok && u.FullName != "" {
		masterName = u.FullName
	}
	image := l.PhotoURL
	if image == "" {
		image = DefaultListingImage
	}
	return model.Listing{
		ID:          model.FormatListingID(l.Master, l.Number),
		Title:       l.Name,
		MasterID:    l.Master,
		MasterName:  masterName,
		Number:      l.Number,
		Width:       l.Width,
		Height:      l.Height,
		Length:      l.Length,
		Weight:      l.Weight,
		Quantity:    l.Amount,
		Price:       l.Price,
		Address:     l.Address,
		Description: l.Description,
		ImageURL:    image,
		CreatedAt:   format.ParseTimestamp(l.CreatedAt, now),
		UpdatedAt:   format.ParseTimestamp(l.UpdatedAt, now),
	}
}

// apiFeedback is one entry of a comment or review list. Reviews carry
// an estimation; comments do not.
type apiFeedback struct {
	Author     string `json:"author"`
	Text       string `json:"text"`
	Estimation int    `json:"estimation"`
	CreatedAt  string `json:"created_at"`
}

func displayName(login string, names map[string]model.User) string {
	if u, ok := names[login]; ok && u.FullName != "" {
		return u.FullName
	}
	return login
}

// Request bodies.

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message  string `json:"message"`
	Login    string `json:"login"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
}

type registerRequest struct {
	Login       string `json:"login"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	FullName    string `json:"full_name"`
	Age         int    `json:"age"`
	Education   string `json:"education,omitempty"`
	Description string `json:"description,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

type profilePatch struct {
	FullName    *string `json:"full_name,omitempty"`
	Age         *int    `json:"age,omitempty"`
	Description *string `json:"description,omitempty"`
	Education   *string `json:"education,omitempty"`
	PhotoURL    *string `json:"photo_url,omitempty"`
}

type statusPatch struct {
	Status string `json:"status"`
}

type createListingRequest struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Length      int    `json:"length"`
	Weight      int    `json:"weight"`
	Amount      int    `json:"amount"`
	Price       int    `json:"price"`
	Address     string `json:"address"`
	Description string `json:"description"`
	PhotoURL    string `json:"photo_url"`
}

type listingPatch struct {
	Name        *string `json:"name,omitempty"`
	Width       *int    `json:"width,omitempty"`
	Height      *int    `json:"height,omitempty"`
	Length      *int    `json:"length,omitempty"`
	Weight      *int    `json:"weight,omitempty"`
	Amount      *int    `json:"amount,omitempty"`
	Price       *int    `json:"price,omitempty"`
	Address     *string `json:"address,omitempty"`
	Description *string `json:"description,omitempty"`
	PhotoURL    *string `json:"photo_url,omitempty"`
}

type commentRequest struct {
	SenderLogin string `json:"sender_login"`
	Text        string `json:"text"`
}

type reviewRequest struct {
	SenderLogin string `json:"sender_login"`
	Text        string `json:"text"`
	Estimation  int    `json:"estimation"`
}
