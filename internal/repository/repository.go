package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/policy"
)

// TicketFilter combines the policy listing scope with optional caller filters.
type TicketFilter struct {
	Scope    policy.Scope
	Status   *domain.TicketStatus
	Category *domain.Category
	Priority *domain.TicketPriority
	Limit    int
	Offset   int
}

// MutateFunc edits a ticket inside an atomic update. Returning an error
// aborts the update with nothing written.
type MutateFunc func(ticket *domain.Ticket) error

// TicketRepository encapsulates ticket persistence. Implementations must
// serialize Update and AppendComment calls on the same ticket.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Count(ctx context.Context, filter TicketFilter) (int, error)
	Update(ctx context.Context, id string, mutate MutateFunc) (*domain.Ticket, error)
	AppendComment(ctx context.Context, ticketID string, comment *domain.Comment) error
}

// UserFilter defines query params for user listing.
type UserFilter struct {
	Role   *domain.Role
	Active *bool
	Limit  int
	Offset int
}

// UserRepository defines persistence access for helpdesk accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	FindActiveByRoles(ctx context.Context, roles []domain.Role) ([]domain.User, error)
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

func normalizePage(limit, offset int) (uint64, uint64) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return uint64(limit), uint64(offset)
}
