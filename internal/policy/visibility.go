package policy

import "github.com/spec-kit/helpdesk-service/internal/domain"

// ReadMask describes which parts of a ticket a viewer may receive.
type ReadMask struct {
	InternalComments bool
}

// ReadMaskFor derives the read mask of p for t.
func ReadMaskFor(p domain.Principal, t *domain.Ticket) ReadMask {
	return ReadMask{InternalComments: IsStaffFor(p, t)}
}

// VisibleComments returns the comments of t that p may see, in their
// original order. Internal comments are kept only for staff of the ticket.
func VisibleComments(p domain.Principal, t *domain.Ticket) []domain.Comment {
	if t == nil {
		return nil
	}
	mask := ReadMaskFor(p, t)
	visible := make([]domain.Comment, 0, len(t.Comments))
	for _, comment := range t.Comments {
		if comment.IsInternal && !mask.InternalComments {
			continue
		}
		visible = append(visible, comment)
	}
	return visible
}

// Redact returns a copy of t carrying only what p may read. The input is not
// modified.
func Redact(p domain.Principal, t *domain.Ticket) *domain.Ticket {
	if t == nil {
		return nil
	}
	out := *t
	out.Comments = VisibleComments(p, t)
	return &out
}
