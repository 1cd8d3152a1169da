package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Priority    string  `json:"priority"`
	AssigneeID  *string `json:"assigneeId"`
}

// UpdateTicketRequest payload. Absent fields are left untouched.
type UpdateTicketRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
	AssigneeID  *string `json:"assigneeId"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content    string `json:"content"`
	IsInternal bool   `json:"isInternal"`
}

// TicketResponse is the wire shape of a ticket.
type TicketResponse struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    domain.Category       `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
	Status      domain.TicketStatus   `json:"status"`
	RequesterID string                `json:"requesterId"`
	AssigneeID  *string               `json:"assigneeId"`
	Comments    []CommentResponse     `json:"comments"`
	ResolvedAt  *time.Time            `json:"resolvedAt"`
	ClosedAt    *time.Time            `json:"closedAt"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// CommentResponse represents a thread entry.
type CommentResponse struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"authorId"`
	Content    string    `json:"content"`
	IsInternal bool      `json:"isInternal"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TicketListResponse is one page of tickets.
type TicketListResponse struct {
	Tickets     []TicketResponse `json:"tickets"`
	Total       int              `json:"total"`
	TotalPages  int              `json:"totalPages"`
	CurrentPage int              `json:"currentPage"`
	Limit       int              `json:"limit"`
}

// NewTicketResponse maps a redacted ticket to its wire shape.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	comments := make([]CommentResponse, 0, len(t.Comments))
	for i := range t.Comments {
		comments = append(comments, NewCommentResponse(&t.Comments[i]))
	}
	return TicketResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Category:    t.Category,
		Priority:    t.Priority,
		Status:      t.Status,
		RequesterID: t.RequesterID,
		AssigneeID:  t.AssigneeID,
		Comments:    comments,
		ResolvedAt:  t.ResolvedAt,
		ClosedAt:    t.ClosedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// NewCommentResponse maps a comment.
func NewCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:         c.ID,
		AuthorID:   c.AuthorID,
		Content:    c.Content,
		IsInternal: c.IsInternal,
		CreatedAt:  c.CreatedAt,
	}
}

// NewTicketListResponse maps a listing page.
func NewTicketListResponse(page *service.TicketPage) TicketListResponse {
	tickets := make([]TicketResponse, 0, len(page.Tickets))
	for i := range page.Tickets {
		tickets = append(tickets, NewTicketResponse(&page.Tickets[i]))
	}
	return TicketListResponse{
		Tickets:     tickets,
		Total:       page.Total,
		TotalPages:  page.TotalPages,
		CurrentPage: page.Page,
		Limit:       page.Limit,
	}
}
