package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketUpdated       EventType = "ticket_updated"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketCommentAdded  EventType = "ticket_comment_added"
)

// AllTypes lists every ticket event type in publication order of a typical
// ticket's life.
var AllTypes = []EventType{
	EventTicketCreated,
	EventTicketAssigned,
	EventTicketUpdated,
	EventTicketStatusChanged,
	EventTicketCommentAdded,
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Category   domain.Category       `json:"category"`
	Priority   domain.TicketPriority `json:"priority"`
	Title      string                `json:"title"`
	AssigneeID *string               `json:"assignee_id,omitempty"`
}

// TicketUpdatedPayload lists the non-status fields an update touched.
type TicketUpdatedPayload struct {
	Fields []string `json:"fields"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	OldAssigneeID *string `json:"old_assignee_id,omitempty"`
	AssigneeID    *string `json:"assignee_id,omitempty"`
	Automatic     bool    `json:"automatic"`
}

// TicketCommentAddedPayload payload. Internal comments carry no preview.
type TicketCommentAddedPayload struct {
	CommentID  string `json:"comment_id"`
	AuthorID   string `json:"author_id"`
	IsInternal bool   `json:"is_internal"`
	Preview    string `json:"preview,omitempty"`
}
