package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// DirectoryInvalidator drops cached assignment pools after account changes.
type DirectoryInvalidator interface {
	Invalidate(ctx context.Context) error
}

// UserService administers helpdesk accounts. Only super-admins may use it.
type UserService struct {
	users     repository.UserRepository
	directory DirectoryInvalidator
	logger    *zap.Logger
}

// UserListInput defines listing parameters.
type UserListInput struct {
	Role   string
	Active *bool
	Page   int
	Limit  int
}

// UserUpdateInput carries administrable account fields.
type UserUpdateInput struct {
	Role       *string
	Department *string
	IsActive   *bool
}

// NewUserService constructs the service. directory may be nil.
func NewUserService(users repository.UserRepository, directory DirectoryInvalidator, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, directory: directory, logger: logger}
}

func requireSuperAdmin(p domain.Principal) error {
	if p.Role != domain.RoleSuperAdmin {
		return apperrors.NewPermissionDenied("super-admin role required")
	}
	return nil
}

// ListUsers returns accounts matching the filter.
func (s *UserService) ListUsers(ctx context.Context, p domain.Principal, input UserListInput) ([]domain.User, error) {
	if err := requireSuperAdmin(p); err != nil {
		return nil, err
	}
	page, limit := normalizePaging(input.Page, input.Limit)
	filter := repository.UserFilter{
		Active: input.Active,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if strings.TrimSpace(input.Role) != "" {
		role, err := parseRole(input.Role)
		if err != nil {
			return nil, err
		}
		filter.Role = &role
	}
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// UpdateUser changes role, department or activation of an account.
func (s *UserService) UpdateUser(ctx context.Context, p domain.Principal, userID string, input UserUpdateInput) (*domain.User, error) {
	if err := requireSuperAdmin(p); err != nil {
		return nil, err
	}
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if input.Role != nil {
		role, err := parseRole(*input.Role)
		if err != nil {
			return nil, err
		}
		if user.ID == p.ID && role != domain.RoleSuperAdmin {
			return nil, apperrors.NewValidationError("cannot demote own account", map[string]any{"field": "role"})
		}
		user.Role = role
	}
	if input.Department != nil {
		user.Department = strings.TrimSpace(*input.Department)
	}
	if input.IsActive != nil {
		if !*input.IsActive && user.ID == p.ID {
			return nil, apperrors.NewValidationError("cannot deactivate own account", map[string]any{"field": "isActive"})
		}
		user.IsActive = *input.IsActive
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	if s.directory != nil {
		if err := s.directory.Invalidate(ctx); err != nil {
			s.logger.Warn("directory cache invalidation failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	s.logger.Info("user updated",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.Bool("active", user.IsActive),
		zap.String("actor_id", p.ID))
	return user, nil
}
