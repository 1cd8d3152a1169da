package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

var (
	_ TicketRepository = (*MemoryTicketStore)(nil)
	_ UserRepository   = (*MemoryUserStore)(nil)
)

// MemoryTicketStore keeps tickets in process memory. A single mutex
// serializes every write, which satisfies the per-ticket atomicity the
// service relies on.
type MemoryTicketStore struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	now     func() time.Time
}

// NewMemoryTicketStore builds an empty store.
func NewMemoryTicketStore() *MemoryTicketStore {
	return &MemoryTicketStore{
		tickets: make(map[string]*domain.Ticket),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryTicketStore) Create(_ context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	now := s.now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	if ticket.Comments == nil {
		ticket.Comments = []domain.Comment{}
	}
	s.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (s *MemoryTicketStore) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[id]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	return cloneTicket(ticket), nil
}

func (s *MemoryTicketStore) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	s.mu.Lock()
	matched := s.matching(filter)
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit, offset := normalizePage(filter.Limit, filter.Offset)
	if offset >= uint64(len(matched)) {
		return []domain.Ticket{}, nil
	}
	end := offset + limit
	if end > uint64(len(matched)) {
		end = uint64(len(matched))
	}
	return matched[offset:end], nil
}

func (s *MemoryTicketStore) Count(_ context.Context, filter TicketFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matching(filter)), nil
}

func (s *MemoryTicketStore) matching(filter TicketFilter) []domain.Ticket {
	result := []domain.Ticket{}
	for _, ticket := range s.tickets {
		if !filter.Scope.Matches(ticket) {
			continue
		}
		if filter.Status != nil && ticket.Status != *filter.Status {
			continue
		}
		if filter.Category != nil && ticket.Category != *filter.Category {
			continue
		}
		if filter.Priority != nil && ticket.Priority != *filter.Priority {
			continue
		}
		result = append(result, *cloneTicket(ticket))
	}
	return result
}

func (s *MemoryTicketStore) Update(_ context.Context, id string, mutate MutateFunc) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tickets[id]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	working := cloneTicket(current)
	if err := mutate(working); err != nil {
		return nil, err
	}

	current.Title = working.Title
	current.Description = working.Description
	current.Priority = working.Priority
	current.Status = working.Status
	current.AssigneeID = cloneString(working.AssigneeID)
	current.ResolvedAt = cloneTime(working.ResolvedAt)
	current.ClosedAt = cloneTime(working.ClosedAt)
	current.UpdatedAt = s.now()
	return cloneTicket(current), nil
}

func (s *MemoryTicketStore) AppendComment(_ context.Context, ticketID string, comment *domain.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return domain.ErrTicketNotFound
	}
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	comment.TicketID = ticketID
	comment.CreatedAt = s.now()
	ticket.Comments = append(ticket.Comments, *comment)
	ticket.UpdatedAt = comment.CreatedAt
	return nil
}

// MemoryUserStore keeps accounts in process memory.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*domain.User
	now   func() time.Time
}

// NewMemoryUserStore builds a store seeded with users.
func NewMemoryUserStore(seed ...domain.User) *MemoryUserStore {
	s := &MemoryUserStore{
		users: make(map[string]*domain.User),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for i := range seed {
		user := seed[i]
		_ = s.Create(context.Background(), &user)
	}
	return s
}

func (s *MemoryUserStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return domain.ErrEmailTaken
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *MemoryUserStore) Update(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	user.UpdatedAt = s.now()
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *MemoryUserStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *user
	return &out, nil
}

func (s *MemoryUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			out := *user
			return &out, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *MemoryUserStore) List(_ context.Context, filter UserFilter) ([]domain.User, error) {
	s.mu.RLock()
	result := []domain.User{}
	for _, user := range s.users {
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && user.IsActive != *filter.Active {
			continue
		}
		result = append(result, *user)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	limit, offset := normalizePage(filter.Limit, filter.Offset)
	if offset >= uint64(len(result)) {
		return []domain.User{}, nil
	}
	end := offset + limit
	if end > uint64(len(result)) {
		end = uint64(len(result))
	}
	return result[offset:end], nil
}

func (s *MemoryUserStore) FindActiveByRoles(_ context.Context, roles []domain.Role) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[domain.Role]struct{}, len(roles))
	for _, role := range roles {
		wanted[role] = struct{}{}
	}
	result := []domain.User{}
	for _, user := range s.users {
		if !user.IsActive {
			continue
		}
		if _, ok := wanted[user.Role]; ok {
			result = append(result, *user)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	out := *t
	out.AssigneeID = cloneString(t.AssigneeID)
	out.ResolvedAt = cloneTime(t.ResolvedAt)
	out.ClosedAt = cloneTime(t.ClosedAt)
	out.Comments = append([]domain.Comment{}, t.Comments...)
	return &out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
