// Package policy decides whether an organization role may perform an
// action. Role enforcement is currently disabled in production: the
// wired implementation is AllowAllPolicy, which admits every action.
// The interface keeps the gate visible in the middleware chain rather
// than silently dropping it.
package policy

import "github.com/nocturne-lab/projecthub/internal/models"

// Action names the operation being gated.
type Action string

const (
	ActionManageOrganization Action = "manage_organization"
	ActionManageProject      Action = "manage_project"
	ActionManageTask         Action = "manage_task"
	ActionApproveTimesheet   Action = "approve_timesheet"
)

// Policy reports whether a role may perform an action.
type Policy interface {
	Allow(role models.OrganizationRole, action Action) bool
}

// AllowAllPolicy admits every action regardless of role. This mirrors
// the disabled state of role enforcement; do not treat it as a real
// authorization control.
type AllowAllPolicy struct{}

func (AllowAllPolicy) Allow(models.OrganizationRole, Action) bool { return true }

// RolePolicy is the role-based implementation kept for when enforcement
// is re-enabled. Owners may do everything; members may manage tasks.
type RolePolicy struct{}

func (RolePolicy) Allow(role models.OrganizationRole, action Action) bool {
	if role == models.RoleOwner {
		return true
	}
	return action == ActionManageTask
}
