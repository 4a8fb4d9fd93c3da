package policy

import "strings"

// Action is one of the closed set of operations the engine can judge.
type Action string

const (
	ActionViewOKR              Action = "view_okr"
	ActionEditOKR              Action = "edit_okr"
	ActionDeleteOKR            Action = "delete_okr"
	ActionPublishOKR           Action = "publish_okr"
	ActionCreateOKR            Action = "create_okr"
	ActionRequestCheckin       Action = "request_checkin"
	ActionManageUsers          Action = "manage_users"
	ActionManageBilling        Action = "manage_billing"
	ActionManageWorkspaces     Action = "manage_workspaces"
	ActionManageTeams          Action = "manage_teams"
	ActionImpersonateUser      Action = "impersonate_user"
	ActionManageTenantSettings Action = "manage_tenant_settings"
	ActionViewAllOKRs          Action = "view_all_okrs"
	ActionExportData           Action = "export_data"
)

// actionMinRole is the minimum-required-role table. view_okr has no entry:
// any tenant member may view, the visibility resolver governs access.
// impersonate_user has no entry either; it is superuser-only.
var actionMinRole = map[Action]Role{
	ActionEditOKR:              RoleTeamLead,
	ActionDeleteOKR:            RoleTeamLead,
	ActionPublishOKR:           RoleWorkspaceLead,
	ActionCreateOKR:            RoleTeamContributor,
	ActionRequestCheckin:       RoleTeamLead,
	ActionManageUsers:          RoleTenantAdmin,
	ActionManageBilling:        RoleTenantOwner,
	ActionManageWorkspaces:     RoleTenantAdmin,
	ActionManageTeams:          RoleWorkspaceLead,
	ActionManageTenantSettings: RoleTenantAdmin,
	ActionViewAllOKRs:          RoleTenantAdmin,
	ActionExportData:           RoleTenantAdmin,
}

// mutatingActions mark operations that change tenant state. Superuser writes
// are restricted to the tenant they belong to; reads are unrestricted.
var mutatingActions = map[Action]bool{
	ActionEditOKR:              true,
	ActionDeleteOKR:            true,
	ActionPublishOKR:           true,
	ActionCreateOKR:            true,
	ActionRequestCheckin:       true,
	ActionManageUsers:          true,
	ActionManageBilling:        true,
	ActionManageWorkspaces:     true,
	ActionManageTeams:          true,
	ActionManageTenantSettings: true,
}

// objectiveActions consult the visibility and lock resolvers when the request
// references an objective or key result.
var objectiveActions = map[Action]bool{
	ActionViewOKR:    true,
	ActionEditOKR:    true,
	ActionDeleteOKR:  true,
	ActionPublishOKR: true,
}

// lockedActions are blocked by publish/cycle locks.
var lockedActions = map[Action]bool{
	ActionEditOKR:    true,
	ActionDeleteOKR:  true,
	ActionPublishOKR: true,
}

// ownerBypassActions let the objective owner act without a role assignment.
// Locks still apply to owners.
var ownerBypassActions = map[Action]bool{
	ActionEditOKR:   true,
	ActionDeleteOKR: true,
}

// ParseAction validates an action name.
func ParseAction(name string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(name)))
	switch a {
	case ActionViewOKR, ActionEditOKR, ActionDeleteOKR, ActionPublishOKR,
		ActionCreateOKR, ActionRequestCheckin, ActionManageUsers,
		ActionManageBilling, ActionManageWorkspaces, ActionManageTeams,
		ActionImpersonateUser, ActionManageTenantSettings, ActionViewAllOKRs,
		ActionExportData:
		return a, true
	}
	return "", false
}

func (a Action) IsMutation() bool { return mutatingActions[a] }
