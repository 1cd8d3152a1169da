package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/policy"
)

type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) tick() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTicketStore() *MemoryTicketStore {
	store := NewMemoryTicketStore()
	clock := &steppingClock{now: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)}
	store.now = clock.tick
	return store
}

func newTicket(category domain.Category, requesterID string) *domain.Ticket {
	return &domain.Ticket{
		Title:       "Printer jam",
		Description: "Paper stuck in tray two",
		Category:    category,
		Priority:    domain.PriorityMedium,
		Status:      domain.StatusOpen,
		RequesterID: requesterID,
	}
}

func TestMemoryTicketStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTicketStore()

	ticket := newTicket(domain.CategoryIT, "emp")
	require.NoError(t, store.Create(ctx, ticket))
	assert.NotEmpty(t, ticket.ID)
	assert.False(t, ticket.CreatedAt.IsZero())

	got, err := store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.Title, got.Title)
	assert.Empty(t, got.Comments)

	got.Title = "mutated"
	again, err := store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Printer jam", again.Title, "reads return copies")

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
}

func TestMemoryTicketStoreUpdateIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := newTicketStore()
	ticket := newTicket(domain.CategoryIT, "emp")
	require.NoError(t, store.Create(ctx, ticket))

	boom := errors.New("refused")
	_, err := store.Update(ctx, ticket.ID, func(t *domain.Ticket) error {
		t.Title = "half written"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Printer jam", got.Title)

	updated, err := store.Update(ctx, ticket.ID, func(t *domain.Ticket) error {
		t.Status = domain.StatusInProgress
		t.Category = domain.CategoryHR
		t.RequesterID = "someone-else"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, updated.Status)
	assert.Equal(t, domain.CategoryIT, updated.Category, "category is immutable")
	assert.Equal(t, "emp", updated.RequesterID, "requester is immutable")
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	_, err = store.Update(ctx, "missing", func(*domain.Ticket) error { return nil })
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
}

func TestMemoryTicketStoreConcurrentAppendsAreKept(t *testing.T) {
	ctx := context.Background()
	store := newTicketStore()
	ticket := newTicket(domain.CategoryHR, "emp")
	require.NoError(t, store.Create(ctx, ticket))

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.AppendComment(ctx, ticket.ID, &domain.Comment{AuthorID: "emp", Content: fmt.Sprintf("comment %d", i)})
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Update(ctx, ticket.ID, func(t *domain.Ticket) error {
				t.Status = domain.StatusInProgress
				return nil
			})
		}()
	}
	wg.Wait()

	got, err := store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, got.Comments, writers)

	err = store.AppendComment(ctx, "missing", &domain.Comment{Content: "x"})
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
}

func TestMemoryTicketStoreListScopesAndPages(t *testing.T) {
	ctx := context.Background()
	store := newTicketStore()

	var ids []string
	for _, category := range []domain.Category{domain.CategoryIT, domain.CategoryHR, domain.CategoryIT, domain.CategoryAdmin} {
		ticket := newTicket(category, "emp")
		require.NoError(t, store.Create(ctx, ticket))
		ids = append(ids, ticket.ID)
	}
	other := newTicket(domain.CategoryHR, "other")
	agent := "it-agent"
	other.AssigneeID = &agent
	require.NoError(t, store.Create(ctx, other))

	itScope := TicketFilter{Scope: policy.Scope{Category: domain.CategoryIT, AssigneeID: agent}}
	listed, err := store.List(ctx, itScope)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, other.ID, listed[0].ID, "newest first")
	assert.Equal(t, ids[2], listed[1].ID)

	total, err := store.Count(ctx, itScope)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	mine := TicketFilter{Scope: policy.Scope{RequesterID: "emp"}, Limit: 2, Offset: 2}
	page, err := store.List(ctx, mine)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], page[0].ID)
	assert.Equal(t, ids[0], page[1].ID)

	hr := domain.CategoryHR
	filtered, err := store.List(ctx, TicketFilter{Scope: policy.Scope{All: true}, Category: &hr})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	none, err := store.List(ctx, TicketFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryUserStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryUserStore()
	clock := &steppingClock{now: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)}
	store.now = clock.tick

	first := &domain.User{Name: "Ivy", Email: "ivy@example.com", Role: domain.RoleIT, IsActive: true}
	require.NoError(t, store.Create(ctx, first))
	second := &domain.User{Name: "Sam", Email: "sam@example.com", Role: domain.RoleSuperAdmin, IsActive: true}
	require.NoError(t, store.Create(ctx, second))
	inactive := &domain.User{Name: "Olga", Email: "olga@example.com", Role: domain.RoleIT, IsActive: false}
	require.NoError(t, store.Create(ctx, inactive))
	hr := &domain.User{Name: "Hana", Email: "hana@example.com", Role: domain.RoleHR, IsActive: true}
	require.NoError(t, store.Create(ctx, hr))

	err := store.Create(ctx, &domain.User{Name: "Dup", Email: "IVY@example.com", Role: domain.RoleEmployee})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	byEmail, err := store.GetByEmail(ctx, "Sam@Example.com")
	require.NoError(t, err)
	assert.Equal(t, second.ID, byEmail.ID)

	pool, err := store.FindActiveByRoles(ctx, []domain.Role{domain.RoleIT, domain.RoleAdmin, domain.RoleSuperAdmin})
	require.NoError(t, err)
	require.Len(t, pool, 2)
	assert.Equal(t, first.ID, pool[0].ID, "oldest first")
	assert.Equal(t, second.ID, pool[1].ID)

	inactive.IsActive = true
	require.NoError(t, store.Update(ctx, inactive))
	pool, err = store.FindActiveByRoles(ctx, []domain.Role{domain.RoleIT})
	require.NoError(t, err)
	assert.Len(t, pool, 2)

	role := domain.RoleHR
	listed, err := store.List(ctx, UserFilter{Role: &role})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, hr.ID, listed[0].ID)

	err = store.Update(ctx, &domain.User{ID: "missing"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
