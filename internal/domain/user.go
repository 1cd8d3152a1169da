package domain

import "time"

// User is a helpdesk account. Staff and employees share the same record and
// are told apart by Role.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Department   string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal returns the request identity for the user.
func (u *User) Principal() Principal {
	return Principal{ID: u.ID, Role: u.Role, Department: u.Department}
}
