// Package policy decides what a principal may do with a ticket. Every
// transport path consults the same predicates so read, update and comment
// checks cannot drift apart.
package policy

import (
	"fmt"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Action is an operation a principal attempts on a ticket.
type Action string

const (
	ActionView            Action = "view"
	ActionEdit            Action = "edit"
	ActionChangeStatus    Action = "change_status"
	ActionComment         Action = "comment"
	ActionCommentInternal Action = "comment_internal"
	ActionReassign        Action = "reassign"
)

// IsStaffFor reports whether p is entitled to act on t as staff: by being a
// super-admin, by holding the role scoped to the ticket's category, or by
// being the ticket's assignee regardless of category.
func IsStaffFor(p domain.Principal, t *domain.Ticket) bool {
	if t == nil {
		return false
	}
	if p.Role == domain.RoleSuperAdmin {
		return true
	}
	if scoped, ok := p.Role.ScopedCategory(); ok && scoped == t.Category {
		return true
	}
	return p.ID != "" && t.IsAssignedTo(p.ID)
}

// IsRequester reports whether p opened t.
func IsRequester(p domain.Principal, t *domain.Ticket) bool {
	return t != nil && p.ID != "" && p.ID == t.RequesterID
}

// Can reports whether p may perform action on t.
func Can(p domain.Principal, t *domain.Ticket, action Action) bool {
	switch action {
	case ActionView, ActionComment, ActionEdit:
		return IsRequester(p, t) || IsStaffFor(p, t)
	case ActionChangeStatus, ActionReassign, ActionCommentInternal:
		return IsStaffFor(p, t)
	default:
		return false
	}
}

// Authorize is Can returning a wrapped domain.ErrPermissionDenied on refusal.
func Authorize(p domain.Principal, t *domain.Ticket, action Action) error {
	if Can(p, t, action) {
		return nil
	}
	return fmt.Errorf("%w: %s not allowed on ticket %s", domain.ErrPermissionDenied, action, ticketID(t))
}

// Field identifies a writable ticket field.
type Field uint8

const (
	FieldTitle Field = 1 << iota
	FieldDescription
	FieldPriority
	FieldStatus
	FieldAssignee
)

// FieldSet is a bitmask of fields touched by one update.
type FieldSet uint8

// Has reports whether f is in the set.
func (s FieldSet) Has(f Field) bool {
	return s&FieldSet(f) != 0
}

// With returns the set extended by f.
func (s FieldSet) With(f Field) FieldSet {
	return s | FieldSet(f)
}

// AuthorizeUpdate checks every field of an update against the policy. The
// update is refused as a whole when any single field is not permitted, so a
// requester bundling a status change with a title edit gets nothing applied.
func AuthorizeUpdate(p domain.Principal, t *domain.Ticket, fields FieldSet) error {
	if fields.Has(FieldTitle) || fields.Has(FieldDescription) || fields.Has(FieldPriority) {
		if err := Authorize(p, t, ActionEdit); err != nil {
			return err
		}
	}
	if fields.Has(FieldStatus) {
		if err := Authorize(p, t, ActionChangeStatus); err != nil {
			return err
		}
	}
	if fields.Has(FieldAssignee) {
		if err := Authorize(p, t, ActionReassign); err != nil {
			return err
		}
	}
	if fields == 0 {
		return Authorize(p, t, ActionEdit)
	}
	return nil
}

// WritableFields returns the fields p may change on t.
func WritableFields(p domain.Principal, t *domain.Ticket) FieldSet {
	var set FieldSet
	if Can(p, t, ActionEdit) {
		set = set.With(FieldTitle).With(FieldDescription).With(FieldPriority)
	}
	if Can(p, t, ActionChangeStatus) {
		set = set.With(FieldStatus)
	}
	if Can(p, t, ActionReassign) {
		set = set.With(FieldAssignee)
	}
	return set
}

// ResolveInternalFlag returns the internal flag a new comment is stored with.
// A non-staff author asking for an internal comment is downgraded to a public
// one rather than refused.
func ResolveInternalFlag(p domain.Principal, t *domain.Ticket, requested bool) bool {
	return requested && Can(p, t, ActionCommentInternal)
}

func ticketID(t *domain.Ticket) string {
	if t == nil {
		return ""
	}
	return t.ID
}
