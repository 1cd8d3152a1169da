package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/policy"
)

var (
	requester  = domain.Principal{ID: "u-emp", Role: domain.RoleEmployee}
	stranger   = domain.Principal{ID: "u-other", Role: domain.RoleEmployee}
	itAgent    = domain.Principal{ID: "u-it", Role: domain.RoleIT}
	hrAgent    = domain.Principal{ID: "u-hr", Role: domain.RoleHR}
	adminStaff = domain.Principal{ID: "u-admin", Role: domain.RoleAdmin}
	superAdmin = domain.Principal{ID: "u-super", Role: domain.RoleSuperAdmin}
)

func ticketIn(category domain.Category) *domain.Ticket {
	return &domain.Ticket{
		ID:          "t-1",
		Category:    category,
		Status:      domain.StatusOpen,
		RequesterID: requester.ID,
	}
}

func assigned(t *domain.Ticket, userID string) *domain.Ticket {
	t.AssigneeID = &userID
	return t
}

func TestIsStaffFor(t *testing.T) {
	tests := []struct {
		name      string
		principal domain.Principal
		ticket    *domain.Ticket
		want      bool
	}{
		{"super-admin on any category", superAdmin, ticketIn(domain.CategoryHR), true},
		{"it on IT", itAgent, ticketIn(domain.CategoryIT), true},
		{"it on HR", itAgent, ticketIn(domain.CategoryHR), false},
		{"hr on HR", hrAgent, ticketIn(domain.CategoryHR), true},
		{"admin on Admin", adminStaff, ticketIn(domain.CategoryAdmin), true},
		{"admin on IT", adminStaff, ticketIn(domain.CategoryIT), false},
		{"requester is not staff", requester, ticketIn(domain.CategoryIT), false},
		{"assignee outside category", itAgent, assigned(ticketIn(domain.CategoryHR), itAgent.ID), true},
		{"employee assignee", stranger, assigned(ticketIn(domain.CategoryAdmin), stranger.ID), true},
		{"nil ticket", superAdmin, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.IsStaffFor(tt.principal, tt.ticket))
		})
	}
}

func TestCan(t *testing.T) {
	ticket := ticketIn(domain.CategoryIT)

	for _, action := range []policy.Action{policy.ActionView, policy.ActionEdit, policy.ActionComment} {
		assert.True(t, policy.Can(requester, ticket, action), action)
		assert.True(t, policy.Can(itAgent, ticket, action), action)
		assert.False(t, policy.Can(stranger, ticket, action), action)
		assert.False(t, policy.Can(hrAgent, ticket, action), action)
	}
	for _, action := range []policy.Action{policy.ActionChangeStatus, policy.ActionReassign, policy.ActionCommentInternal} {
		assert.False(t, policy.Can(requester, ticket, action), action)
		assert.True(t, policy.Can(itAgent, ticket, action), action)
		assert.True(t, policy.Can(superAdmin, ticket, action), action)
	}
	assert.False(t, policy.Can(superAdmin, ticket, policy.Action("delete")))
}

func TestRequesterWhoIsAlsoStaff(t *testing.T) {
	ticket := ticketIn(domain.CategoryIT)
	ticket.RequesterID = itAgent.ID

	assert.True(t, policy.Can(itAgent, ticket, policy.ActionChangeStatus))
	assert.True(t, policy.ReadMaskFor(itAgent, ticket).InternalComments)
}

func TestAuthorizeReturnsPermissionDenied(t *testing.T) {
	err := policy.Authorize(stranger, ticketIn(domain.CategoryIT), policy.ActionView)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.NoError(t, policy.Authorize(requester, ticketIn(domain.CategoryIT), policy.ActionView))
}

func TestAuthorizeUpdateRejectsWholeUpdate(t *testing.T) {
	ticket := ticketIn(domain.CategoryIT)

	var contentOnly policy.FieldSet
	contentOnly = contentOnly.With(policy.FieldTitle).With(policy.FieldPriority)
	assert.NoError(t, policy.AuthorizeUpdate(requester, ticket, contentOnly))

	bundled := contentOnly.With(policy.FieldStatus)
	assert.ErrorIs(t, policy.AuthorizeUpdate(requester, ticket, bundled), domain.ErrPermissionDenied)

	reassign := policy.FieldSet(0).With(policy.FieldAssignee)
	assert.ErrorIs(t, policy.AuthorizeUpdate(requester, ticket, reassign), domain.ErrPermissionDenied)

	all := bundled.With(policy.FieldDescription).With(policy.FieldAssignee)
	assert.NoError(t, policy.AuthorizeUpdate(itAgent, ticket, all))
	assert.ErrorIs(t, policy.AuthorizeUpdate(hrAgent, ticket, all), domain.ErrPermissionDenied)
}

func TestAuthorizeUpdateEmptySetRequiresEdit(t *testing.T) {
	ticket := ticketIn(domain.CategoryHR)
	assert.NoError(t, policy.AuthorizeUpdate(requester, ticket, 0))
	assert.Error(t, policy.AuthorizeUpdate(stranger, ticket, 0))
}

func TestWritableFields(t *testing.T) {
	ticket := ticketIn(domain.CategoryIT)

	fields := policy.WritableFields(requester, ticket)
	assert.True(t, fields.Has(policy.FieldTitle))
	assert.True(t, fields.Has(policy.FieldDescription))
	assert.True(t, fields.Has(policy.FieldPriority))
	assert.False(t, fields.Has(policy.FieldStatus))
	assert.False(t, fields.Has(policy.FieldAssignee))

	fields = policy.WritableFields(itAgent, ticket)
	assert.True(t, fields.Has(policy.FieldStatus))
	assert.True(t, fields.Has(policy.FieldAssignee))

	assert.Equal(t, policy.FieldSet(0), policy.WritableFields(stranger, ticket))
}

func TestResolveInternalFlag(t *testing.T) {
	ticket := ticketIn(domain.CategoryHR)

	assert.False(t, policy.ResolveInternalFlag(requester, ticket, true), "requester is downgraded")
	assert.True(t, policy.ResolveInternalFlag(hrAgent, ticket, true))
	assert.False(t, policy.ResolveInternalFlag(hrAgent, ticket, false))
	assert.False(t, policy.ResolveInternalFlag(itAgent, ticket, true))
}
