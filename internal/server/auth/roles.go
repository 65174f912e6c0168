package auth

import "slices"

// Allowed reports whether role is one of roles.
func Allowed(role string, roles ...string) bool {
	if role == "" {
		return false
	}
	return slices.Contains(roles, role)
}
