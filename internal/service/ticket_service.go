package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/lifecycle"
	"github.com/spec-kit/helpdesk-service/internal/policy"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	maxPage          = math.MaxInt32 / maxPageLimit
	previewLength    = 120
)

// Assigner selects an assignee for a new ticket.
type Assigner interface {
	Choose(ctx context.Context, category domain.Category) (string, error)
}

// TicketService coordinates ticket workflows. Every path consults the policy
// package before touching the store and redacts tickets before returning them.
type TicketService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	assigner   Assigner
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Assigner   Assigner
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	// Clock overrides time.Now for lifecycle stamps.
	Clock func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Category    string
	Priority    string
	// AssigneeID is honoured only for staff of the new ticket's category.
	AssigneeID *string
}

// TicketUpdateInput carries the fields of a partial update. Nil means
// untouched; an empty AssigneeID clears the assignee.
type TicketUpdateInput struct {
	Title       *string
	Description *string
	Priority    *string
	Status      *string
	AssigneeID  *string
}

// TicketListInput describes listing filters.
type TicketListInput struct {
	Status   string
	Category string
	Priority string
	Page     int
	Limit    int
}

// TicketPage is one page of a scoped listing.
type TicketPage struct {
	Tickets    []domain.Ticket
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// CommentInput describes a new comment.
type CommentInput struct {
	Content    string
	IsInternal bool
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		assigner:   deps.Assigner,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        clock,
	}
}

// CreateTicket opens a ticket for the principal and routes it to an assignee.
// Failing to find an assignee never fails the creation.
func (s *TicketService) CreateTicket(ctx context.Context, p domain.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	title, err := validateLength("title", input.Title, TitleMinLength, TitleMaxLength)
	if err != nil {
		return nil, err
	}
	description, err := validateLength("description", input.Description, DescriptionMinLength, DescriptionMaxLength)
	if err != nil {
		return nil, err
	}
	category, err := parseCategory(input.Category)
	if err != nil {
		return nil, err
	}
	priority := domain.PriorityMedium
	if strings.TrimSpace(input.Priority) != "" {
		if priority, err = parsePriority(input.Priority); err != nil {
			return nil, err
		}
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Category:    category,
		Priority:    priority,
		Status:      lifecycle.InitialStatus,
		RequesterID: p.ID,
		Comments:    []domain.Comment{},
	}

	explicit := false
	if input.AssigneeID != nil && strings.TrimSpace(*input.AssigneeID) != "" && policy.Can(p, ticket, policy.ActionReassign) {
		assigneeID, err := s.resolveAssignee(ctx, *input.AssigneeID)
		if err != nil {
			return nil, err
		}
		ticket.AssigneeID = &assigneeID
		explicit = true
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if !explicit {
		s.autoAssign(ctx, ticket)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actorOf(p),
		Payload: events.TicketCreatedPayload{
			Category:   ticket.Category,
			Priority:   ticket.Priority,
			Title:      ticket.Title,
			AssigneeID: ticket.AssigneeID,
		},
	})
	if ticket.AssigneeID != nil {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticket.ID,
			Actor:    actorOf(p),
			Payload: events.TicketAssignedPayload{
				AssigneeID: ticket.AssigneeID,
				Automatic:  !explicit,
			},
		})
	}
	return policy.Redact(p, ticket), nil
}

func (s *TicketService) autoAssign(ctx context.Context, ticket *domain.Ticket) {
	if s.assigner == nil {
		return
	}
	assigneeID, err := s.assigner.Choose(ctx, ticket.Category)
	if err != nil {
		s.logger.Warn("ticket left unassigned",
			zap.String("ticket_id", ticket.ID),
			zap.String("category", string(ticket.Category)),
			zap.Error(err))
		return
	}
	updated, err := s.tickets.Update(ctx, ticket.ID, func(current *domain.Ticket) error {
		if current.AssigneeID == nil {
			current.AssigneeID = &assigneeID
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("store auto-assignment",
			zap.String("ticket_id", ticket.ID),
			zap.String("assignee_id", assigneeID),
			zap.Error(err))
		return
	}
	*ticket = *updated
}

// GetTicket returns a ticket the principal may view, with comments filtered.
func (s *TicketService) GetTicket(ctx context.Context, p domain.Principal, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(p, ticket, policy.ActionView); err != nil {
		return nil, apperrors.MapError(err)
	}
	return policy.Redact(p, ticket), nil
}

// ListTickets returns the page of tickets within the principal's listing scope.
func (s *TicketService) ListTickets(ctx context.Context, p domain.Principal, input TicketListInput) (*TicketPage, error) {
	filter := repository.TicketFilter{Scope: policy.ListScope(p)}
	if strings.TrimSpace(input.Status) != "" {
		status, err := parseStatus(input.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = &status
	}
	if strings.TrimSpace(input.Category) != "" {
		category, err := parseCategory(input.Category)
		if err != nil {
			return nil, err
		}
		filter.Category = &category
	}
	if strings.TrimSpace(input.Priority) != "" {
		priority, err := parsePriority(input.Priority)
		if err != nil {
			return nil, err
		}
		filter.Priority = &priority
	}

	page, limit := normalizePaging(input.Page, input.Limit)
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	total, err := s.tickets.Count(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	visible := make([]domain.Ticket, 0, len(tickets))
	for i := range tickets {
		visible = append(visible, *policy.Redact(p, &tickets[i]))
	}
	return &TicketPage{
		Tickets:    visible,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// UpdateTicket applies a partial update. The policy is checked for every
// touched field before the store is reached and again against the locked
// row; a single refused field rejects the whole update.
func (s *TicketService) UpdateTicket(ctx context.Context, p domain.Principal, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	if err := validateTicketID(ticketID); err != nil {
		return nil, err
	}
	changes, err := parseTicketChanges(input)
	if err != nil {
		return nil, err
	}
	if changes.fields == 0 {
		return nil, apperrors.NewValidationError("no fields to update", nil)
	}

	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, ticketError(err, ticketID)
	}
	if err := policy.AuthorizeUpdate(p, current, changes.fields); err != nil {
		return nil, apperrors.MapError(err)
	}
	if changes.assigneeID != nil && *changes.assigneeID != "" {
		assigneeID, err := s.resolveAssignee(ctx, *changes.assigneeID)
		if err != nil {
			return nil, err
		}
		changes.assigneeID = &assigneeID
	}

	var (
		transition  lifecycle.Transition
		oldAssignee *string
		touched     []string
	)
	updated, err := s.tickets.Update(ctx, ticketID, func(t *domain.Ticket) error {
		if err := policy.AuthorizeUpdate(p, t, changes.fields); err != nil {
			return err
		}
		oldAssignee = t.AssigneeID
		touched = changes.apply(t)
		transition = lifecycle.Transition{From: t.Status, To: t.Status}
		if changes.status != nil {
			tr, err := lifecycle.Apply(t, *changes.status, s.now())
			if err != nil {
				return err
			}
			transition = tr
		}
		return nil
	})
	if err != nil {
		return nil, ticketError(err, ticketID)
	}

	actor := actorOf(p)
	if len(touched) > 0 {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketUpdated,
			TicketID: updated.ID,
			Actor:    actor,
			Payload:  events.TicketUpdatedPayload{Fields: touched},
		})
	}
	if transition.Changed() {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: updated.ID,
			Actor:    actor,
			Payload: events.TicketStatusChangedPayload{
				OldStatus: transition.From,
				NewStatus: transition.To,
			},
		})
	}
	if changes.fields.Has(policy.FieldAssignee) && !sameID(oldAssignee, updated.AssigneeID) {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: updated.ID,
			Actor:    actor,
			Payload: events.TicketAssignedPayload{
				OldAssigneeID: oldAssignee,
				AssigneeID:    updated.AssigneeID,
			},
		})
	}
	return policy.Redact(p, updated), nil
}

// AddComment appends a comment to a ticket the principal may comment on. A
// non-staff author asking for an internal comment gets a public one.
func (s *TicketService) AddComment(ctx context.Context, p domain.Principal, ticketID string, input CommentInput) (*domain.Comment, error) {
	if err := validateTicketID(ticketID); err != nil {
		return nil, err
	}
	content, err := validateLength("content", input.Content, CommentMinLength, CommentMaxLength)
	if err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, ticketError(err, ticketID)
	}
	if err := policy.Authorize(p, ticket, policy.ActionComment); err != nil {
		return nil, apperrors.MapError(err)
	}

	isInternal := policy.ResolveInternalFlag(p, ticket, input.IsInternal)
	if input.IsInternal && !isInternal {
		s.logger.Debug("internal flag dropped",
			zap.String("ticket_id", ticket.ID),
			zap.String("author_id", p.ID))
	}
	comment := &domain.Comment{
		AuthorID:   p.ID,
		Content:    content,
		IsInternal: isInternal,
	}
	if err := s.tickets.AppendComment(ctx, ticket.ID, comment); err != nil {
		return nil, ticketError(err, ticketID)
	}

	payload := events.TicketCommentAddedPayload{
		CommentID:  comment.ID,
		AuthorID:   comment.AuthorID,
		IsInternal: comment.IsInternal,
	}
	if !comment.IsInternal {
		payload.Preview = stringPreview(comment.Content, previewLength)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: ticket.ID,
		Actor:    actorOf(p),
		Payload:  payload,
	})
	return comment, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	if err := validateTicketID(ticketID); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, ticketError(err, ticketID)
	}
	return ticket, nil
}

// resolveAssignee checks that id names an existing active user.
func (s *TicketService) resolveAssignee(ctx context.Context, raw string) (string, error) {
	id := strings.TrimSpace(raw)
	details := map[string]any{"field": "assigneeId"}
	if _, err := uuid.Parse(id); err != nil {
		return "", apperrors.NewValidationError("invalid assignee id", details)
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", apperrors.NewValidationError("assignee does not exist", details)
		}
		return "", apperrors.MapError(err)
	}
	if !user.IsActive {
		return "", apperrors.NewValidationError("assignee is not active", details)
	}
	return user.ID, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

// ticketChanges is a validated TicketUpdateInput.
type ticketChanges struct {
	fields      policy.FieldSet
	title       *string
	description *string
	priority    *domain.TicketPriority
	status      *domain.TicketStatus
	assigneeID  *string
}

func parseTicketChanges(input TicketUpdateInput) (ticketChanges, error) {
	var changes ticketChanges
	if input.Title != nil {
		title, err := validateLength("title", *input.Title, TitleMinLength, TitleMaxLength)
		if err != nil {
			return changes, err
		}
		changes.title = &title
		changes.fields = changes.fields.With(policy.FieldTitle)
	}
	if input.Description != nil {
		description, err := validateLength("description", *input.Description, DescriptionMinLength, DescriptionMaxLength)
		if err != nil {
			return changes, err
		}
		changes.description = &description
		changes.fields = changes.fields.With(policy.FieldDescription)
	}
	if input.Priority != nil {
		priority, err := parsePriority(*input.Priority)
		if err != nil {
			return changes, err
		}
		changes.priority = &priority
		changes.fields = changes.fields.With(policy.FieldPriority)
	}
	if input.Status != nil {
		status, err := parseStatus(*input.Status)
		if err != nil {
			return changes, err
		}
		changes.status = &status
		changes.fields = changes.fields.With(policy.FieldStatus)
	}
	if input.AssigneeID != nil {
		assigneeID := strings.TrimSpace(*input.AssigneeID)
		changes.assigneeID = &assigneeID
		changes.fields = changes.fields.With(policy.FieldAssignee)
	}
	return changes, nil
}

// apply copies the non-status changes onto t and returns the names of the
// content fields whose value moved.
func (c ticketChanges) apply(t *domain.Ticket) []string {
	touched := []string{}
	if c.title != nil && *c.title != t.Title {
		t.Title = *c.title
		touched = append(touched, "title")
	}
	if c.description != nil && *c.description != t.Description {
		t.Description = *c.description
		touched = append(touched, "description")
	}
	if c.priority != nil && *c.priority != t.Priority {
		t.Priority = *c.priority
		touched = append(touched, "priority")
	}
	if c.assigneeID != nil {
		if *c.assigneeID == "" {
			t.AssigneeID = nil
		} else {
			assigneeID := *c.assigneeID
			t.AssigneeID = &assigneeID
		}
	}
	return touched
}

func normalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func ticketError(err error, ticketID string) error {
	if errors.Is(err, domain.ErrTicketNotFound) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return apperrors.MapError(err)
}

func actorOf(p domain.Principal) events.Actor {
	return events.Actor{UserID: p.ID, Role: p.Role}
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
