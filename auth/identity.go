package auth

import (
	"slices"
	"time"
)

// Identity is an authenticated admin principal.
type Identity struct {
	// Principal is the token subject.
	Principal string

	// Roles come from the configured roles claim.
	Roles []string

	// Claims contains the raw token claims.
	Claims map[string]any

	ExpiresAt time.Time
	IssuedAt  time.Time
}

// HasRole checks if the identity has a specific role.
func (id *Identity) HasRole(role string) bool {
	return id != nil && slices.Contains(id.Roles, role)
}
