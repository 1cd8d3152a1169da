// Package lifecycle applies ticket status transitions.
//
// Every status may move to every other status; no terminal state is
// enforced. The only side effects are the lifecycle timestamps: ResolvedAt
// and ClosedAt are stamped the first time the ticket enters the matching
// status and are never cleared or overwritten afterwards.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// InitialStatus is the status of every new ticket.
const InitialStatus = domain.StatusOpen

// Transition describes the effect of applying a status to a ticket.
type Transition struct {
	From           domain.TicketStatus
	To             domain.TicketStatus
	StampedResolve bool
	StampedClose   bool
}

// Changed reports whether the status value moved.
func (tr Transition) Changed() bool {
	return tr.From != tr.To
}

// Apply moves t to next, stamping lifecycle timestamps as needed. Applying
// the current status is accepted and leaves the ticket untouched.
func Apply(t *domain.Ticket, next domain.TicketStatus, now time.Time) (Transition, error) {
	if !next.Valid() {
		return Transition{}, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, next)
	}
	tr := Transition{From: t.Status, To: next}
	if !tr.Changed() {
		return tr, nil
	}
	switch next {
	case domain.StatusResolved:
		if t.ResolvedAt == nil {
			stamp := now
			t.ResolvedAt = &stamp
			tr.StampedResolve = true
		}
	case domain.StatusClosed:
		if t.ClosedAt == nil {
			stamp := now
			t.ClosedAt = &stamp
			tr.StampedClose = true
		}
	}
	t.Status = next
	return tr, nil
}
