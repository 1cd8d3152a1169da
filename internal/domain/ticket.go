package domain

import (
	"fmt"
	"time"
)

// Category routes a ticket to a department.
type Category string

const (
	CategoryIT    Category = "IT"
	CategoryHR    Category = "HR"
	CategoryAdmin Category = "Admin"
)

// TicketPriority enumerates ticket urgency.
type TicketPriority string

const (
	PriorityLow      TicketPriority = "Low"
	PriorityMedium   TicketPriority = "Medium"
	PriorityHigh     TicketPriority = "High"
	PriorityCritical TicketPriority = "Critical"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "Open"
	StatusInProgress TicketStatus = "In Progress"
	StatusResolved   TicketStatus = "Resolved"
	StatusClosed     TicketStatus = "Closed"
)

var (
	categories = []Category{CategoryIT, CategoryHR, CategoryAdmin}
	priorities = []TicketPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
	statuses   = []TicketStatus{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	for _, known := range priorities {
		if p == known {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	for _, known := range statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseCategory converts raw input into a Category.
func ParseCategory(raw string) (Category, error) {
	c := Category(raw)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
	}
	return c, nil
}

// ParsePriority converts raw input into a TicketPriority.
func ParsePriority(raw string) (TicketPriority, error) {
	p := TicketPriority(raw)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, raw)
	}
	return p, nil
}

// ParseStatus converts raw input into a TicketStatus.
func ParseStatus(raw string) (TicketStatus, error) {
	s := TicketStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// Ticket is the aggregate for support requests. Comments are owned by the
// ticket and kept in insertion order.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Category    Category
	Priority    TicketPriority
	Status      TicketStatus
	RequesterID string
	AssigneeID  *string
	Comments    []Comment
	ResolvedAt  *time.Time
	ClosedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsAssignedTo reports whether userID is the ticket's current assignee.
func (t *Ticket) IsAssignedTo(userID string) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

// Comment is an append-only entry in a ticket thread.
type Comment struct {
	ID         string
	TicketID   string
	AuthorID   string
	Content    string
	IsInternal bool
	CreatedAt  time.Time
}
