package models

import "time"

// Roles a staff account can hold.
const (
	RoleAdmin    = "admin"
	RoleReferent = "referent"
	RoleSimple   = "simple"
)

// AllRoles lists every role, for routes open to any authenticated user.
var AllRoles = []string{RoleAdmin, RoleReferent, RoleSimple}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleReferent, RoleSimple:
		return true
	}
	return false
}

// User is a staff account. PasswordHash is empty until the user follows the
// create-account link; Validated turns true at that moment.
type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Project      string    `json:"project"`
	Validated    bool      `json:"validated"`
	CreatedAt    time.Time `json:"createdAt"`
}
