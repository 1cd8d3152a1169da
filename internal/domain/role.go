package domain

import "fmt"

// Role enumerates the helpdesk roles a user can hold.
type Role string

const (
	RoleEmployee   Role = "employee"
	RoleIT         Role = "it"
	RoleHR         Role = "hr"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super-admin"
)

var roles = []Role{RoleEmployee, RoleIT, RoleHR, RoleAdmin, RoleSuperAdmin}

// Roles returns every known role.
func Roles() []Role {
	return append([]Role(nil), roles...)
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range roles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
	return role, nil
}

// ScopedCategory returns the ticket category a category-scoped staff role
// is responsible for. Employees and super-admins have no scoped category.
func (r Role) ScopedCategory() (Category, bool) {
	switch r {
	case RoleIT:
		return CategoryIT, true
	case RoleHR:
		return CategoryHR, true
	case RoleAdmin:
		return CategoryAdmin, true
	default:
		return "", false
	}
}

// Principal is the authenticated caller. It is resolved once per request
// and never mutated afterwards.
type Principal struct {
	ID         string
	Role       Role
	Department string
}
