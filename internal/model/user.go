// Package model defines the domain types shared by the API client, the state
// store, the listing engine and the gateway.
package model

// Role is the display form of a user's role.
//
// The backend stores a different vocabulary ("master", "admin", "buyer");
// conversion happens only in the backend package via BackendRole and
// RoleFromBackend.
type Role string

const (
	RoleBuyer  Role = "Buyer"
	RoleSeller Role = "Seller"
	RoleAdmin  Role = "Admin"
)

// BackendRole maps the display role to the backend enum.
// Seller -> "master", Admin -> "admin", anything else -> "buyer".
func (r Role) BackendRole() string {
	switch r {
	case RoleSeller:
		return "master"
	case RoleAdmin:
		return "admin"
	default:
		return "buyer"
	}
}

// RoleFromBackend is the inverse of BackendRole. Unknown values are buyers.
func RoleFromBackend(role string) Role {
	switch role {
	case "master":
		return RoleSeller
	case "admin":
		return RoleAdmin
	default:
		return RoleBuyer
	}
}

// Status is the administrative state of an account.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusSuspended
}

// User is a registered account as seen by the client.
//
// ID always equals Login. Rating is derived from reviews on read and is never
// sent to the backend.
type User struct {
	ID               string  `json:"id"`
	FullName         string  `json:"fullName"`
	UserType         Role    `json:"userType"`
	Login            string  `json:"login"`
	Bio              string  `json:"bio"`
	Age              int     `json:"age,omitempty"`
	Education        string  `json:"education"`
	Rating           float64 `json:"rating"`
	RegistrationDate string  `json:"registrationDate"` // YYYY-MM-DD
	LastUpdate       string  `json:"lastUpdate"`       // YYYY-MM-DD
	Image            string  `json:"image"`
	Status           Status  `json:"status"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.UserType == RoleAdmin
}

// Registration is the input of a sign-up.
type Registration struct {
	FullName  string `json:"fullName"`
	UserType  Role   `json:"userType"`
	Login     string `json:"login"`
	Password  string `json:"password"`
	Age       int    `json:"age,omitempty"`
	Education string `json:"education,omitempty"`
	Bio       string `json:"bio,omitempty"`
	ImageURL  string `json:"image,omitempty"`
}

// ProfileUpdate is a partial profile edit. Nil fields are absent and are
// neither sent to the backend nor overwritten.
type ProfileUpdate struct {
	FullName  *string `json:"fullName,omitempty"`
	Age       *int    `json:"age,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	Education *string `json:"education,omitempty"`
	Image     *string `json:"image,omitempty"`
}

// IsEmpty reports whether no field is present.
func (p ProfileUpdate) IsEmpty() bool {
	return p.FullName == nil && p.Age == nil && p.Bio == nil && p.Education == nil && p.Image == nil
}
