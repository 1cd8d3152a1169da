// Package assignment picks an assignee for newly created tickets.
//
// Selection is stateless: each call draws uniformly at random from the
// active users eligible for the ticket's category. No round-robin position
// is persisted between calls, so load is only balanced on average.
package assignment

import (
	"context"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// Directory is the user lookup the router depends on.
type Directory interface {
	FindActiveByRoles(ctx context.Context, roles []domain.Role) ([]domain.User, error)
}

// Picker chooses an index in [0, n).
type Picker interface {
	IntN(n int) int
}

// EligibleRoles maps a ticket category to the roles that may be assigned to it.
func EligibleRoles(category domain.Category) []domain.Role {
	switch category {
	case domain.CategoryIT:
		return []domain.Role{domain.RoleIT, domain.RoleAdmin, domain.RoleSuperAdmin}
	case domain.CategoryHR:
		return []domain.Role{domain.RoleHR, domain.RoleAdmin, domain.RoleSuperAdmin}
	case domain.CategoryAdmin:
		return []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin}
	default:
		return nil
	}
}

// Router selects assignees from the directory.
type Router struct {
	directory Directory
	logger    *zap.Logger

	mu     sync.Mutex
	picker Picker
}

// NewRouter constructs a router. A nil picker falls back to a randomly
// seeded generator.
func NewRouter(directory Directory, picker Picker, logger *zap.Logger) *Router {
	if picker == nil {
		picker = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{directory: directory, picker: picker, logger: logger}
}

// Choose returns the id of the selected assignee. It fails with an
// ASSIGNMENT_UNAVAILABLE error when the pool is empty or the directory
// cannot be queried.
func (r *Router) Choose(ctx context.Context, category domain.Category) (string, error) {
	roles := EligibleRoles(category)
	if len(roles) == 0 {
		return "", apperrors.NewAssignmentUnavailable(nil, map[string]any{"category": category})
	}
	candidates, err := r.directory.FindActiveByRoles(ctx, roles)
	if err != nil {
		return "", apperrors.NewAssignmentUnavailable(err, map[string]any{"category": category})
	}
	if len(candidates) == 0 {
		return "", apperrors.NewAssignmentUnavailable(nil, map[string]any{"category": category})
	}

	r.mu.Lock()
	idx := r.picker.IntN(len(candidates))
	r.mu.Unlock()

	chosen := candidates[idx]
	r.logger.Debug("assignee selected",
		zap.String("category", string(category)),
		zap.String("assignee_id", chosen.ID),
		zap.Int("pool_size", len(candidates)))
	return chosen.ID, nil
}
