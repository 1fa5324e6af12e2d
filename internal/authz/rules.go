// Package authz holds the role and ownership rules applied to every request.
package authz

import (
	"github.com/psds-microservice/helpdesk-service/internal/errs"
	"github.com/psds-microservice/helpdesk-service/internal/model"
)

// RequireRole passes only when the stored role equals role exactly. There is
// no hierarchy: an agent is not a user and vice versa.
func RequireRole(u *model.User, role model.Role) error {
	if u == nil {
		return errs.ErrUnauthorized
	}
	if u.Role != role {
		return errs.ErrForbidden
	}
	return nil
}

// CanViewTicket allows agents and the ticket owner.
func CanViewTicket(u *model.User, t *model.Ticket) bool {
	if u == nil || t == nil {
		return false
	}
	switch u.Role {
	case model.RoleAgent:
		return true
	case model.RoleUser:
		return u.ID == t.CreatedBy
	}
	return false
}
