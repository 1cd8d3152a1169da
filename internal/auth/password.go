package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordMaxBytes is the longest secret bcrypt hashes without truncation.
const PasswordMaxBytes = 72

// ErrPasswordMismatch is returned when a password does not match its hash.
var ErrPasswordMismatch = errors.New("password mismatch")

// HashPassword hashes a plaintext password. Costs outside bcrypt's accepted
// range fall back to bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if len(password) > PasswordMaxBytes {
		return "", fmt.Errorf("hash password: longer than %d bytes", PasswordMaxBytes)
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hash. A wrong password
// yields ErrPasswordMismatch; a malformed hash yields any other error.
func ComparePassword(hashed, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return fmt.Errorf("compare password: %w", err)
	}
}
