package service

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// Input bounds, measured in characters after trimming.
const (
	TitleMinLength       = 5
	TitleMaxLength       = 200
	DescriptionMinLength = 10
	DescriptionMaxLength = 2000
	CommentMinLength     = 1
	CommentMaxLength     = 1000
	PasswordMinLength    = 6
	NameMaxLength        = 100
)

func validateLength(field, raw string, minLen, maxLen int) (string, error) {
	value := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(value)
	if n < minLen || n > maxLen {
		return "", apperrors.NewValidationError(field+" length out of range", map[string]any{
			"field": field,
			"min":   minLen,
			"max":   maxLen,
		})
	}
	return value, nil
}

// validatePassword bounds a password in bytes, since that is what bcrypt
// consumes.
func validatePassword(password string) error {
	if len(password) < PasswordMinLength || len(password) > auth.PasswordMaxBytes {
		return apperrors.NewValidationError("password length out of range", map[string]any{
			"field": "password",
			"min":   PasswordMinLength,
			"max":   auth.PasswordMaxBytes,
		})
	}
	return nil
}

func validateTicketID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewValidationError("invalid ticket id", map[string]any{"field": "id"})
	}
	return nil
}

func validateUserID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewValidationError("invalid user id", map[string]any{"field": "id"})
	}
	return nil
}

func parseCategory(raw string) (domain.Category, error) {
	category, err := domain.ParseCategory(strings.TrimSpace(raw))
	if err != nil {
		return "", apperrors.NewValidationError(err.Error(), map[string]any{"field": "category"})
	}
	return category, nil
}

func parsePriority(raw string) (domain.TicketPriority, error) {
	priority, err := domain.ParsePriority(strings.TrimSpace(raw))
	if err != nil {
		return "", apperrors.NewValidationError(err.Error(), map[string]any{"field": "priority"})
	}
	return priority, nil
}

func parseStatus(raw string) (domain.TicketStatus, error) {
	status, err := domain.ParseStatus(strings.TrimSpace(raw))
	if err != nil {
		return "", apperrors.NewValidationError(err.Error(), map[string]any{"field": "status"})
	}
	return status, nil
}

func parseRole(raw string) (domain.Role, error) {
	role, err := domain.ParseRole(strings.TrimSpace(raw))
	if err != nil {
		return "", apperrors.NewValidationError(err.Error(), map[string]any{"field": "role"})
	}
	return role, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 || !strings.Contains(email[at:], ".") {
		return "", apperrors.NewValidationError("invalid email", map[string]any{"field": "email"})
	}
	return email, nil
}
