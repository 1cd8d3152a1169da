package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// RegisterInput describes a self-service sign-up.
type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	Department string
}

// Session is an authenticated user with its access token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, users repository.UserRepository, tokens *auth.TokenManager, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      users,
		tokenMgr:   tokens,
		bcryptCost: cfg.Auth.BcryptCost,
		logger:     logger,
	}
}

// Register creates an employee account. Staff roles are granted only through
// user administration.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	name, err := validateLength("name", input.Name, 1, NameMaxLength)
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleEmployee,
		Department:   strings.TrimSpace(input.Department),
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return s.issue(user)
}

// Login authenticates a user by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("stored password hash unreadable", zap.String("user_id", user.ID), zap.Error(err))
		}
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.IsActive {
		return nil, apperrors.NewUnauthorized("account is deactivated")
	}
	return s.issue(user)
}

// Me returns the account behind the principal.
func (s *AuthService) Me(ctx context.Context, p domain.Principal) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, p.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

func (s *AuthService) issue(user *domain.User) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}

// EnsureSuperAdmin creates a super-admin account for email unless one is
// already registered. It is used to bootstrap an empty directory.
func (s *AuthService) EnsureSuperAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, apperrors.MapError(err)
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Name:         "Administrator",
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleSuperAdmin,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("super-admin bootstrapped", zap.String("user_id", user.ID))
	return user, nil
}
