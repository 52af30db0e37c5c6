package domain

import "time"

type Role string

const (
	RoleRequester Role = "requester"
	RoleVolunteer Role = "volunteer"
)

// ValidRole reports whether s names a switchable role.
func ValidRole(s string) bool {
	return Role(s) == RoleRequester || Role(s) == RoleVolunteer
}

// Actor is a registered person. Role is a mutable field, not a fixed type:
// the same account switches between requesting and volunteering at will.
type Actor struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Location     *GeoPoint `json:"location,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
