package policy

import "github.com/spec-kit/helpdesk-service/internal/domain"

// Scope is the listing predicate derived from a principal. Exactly one shape
// is populated: All, a requester restriction, or a category-or-assignee
// restriction.
type Scope struct {
	All         bool
	RequesterID string
	Category    domain.Category
	AssigneeID  string
}

// ListScope derives the set of tickets p may enumerate.
func ListScope(p domain.Principal) Scope {
	if p.Role == domain.RoleSuperAdmin {
		return Scope{All: true}
	}
	if category, ok := p.Role.ScopedCategory(); ok {
		return Scope{Category: category, AssigneeID: p.ID}
	}
	return Scope{RequesterID: p.ID}
}

// Matches evaluates the scope against a single ticket.
func (s Scope) Matches(t *domain.Ticket) bool {
	switch {
	case t == nil:
		return false
	case s.All:
		return true
	case s.Category != "":
		return t.Category == s.Category || (s.AssigneeID != "" && t.IsAssignedTo(s.AssigneeID))
	case s.RequesterID != "":
		return t.RequesterID == s.RequesterID
	default:
		return false
	}
}
