package rbac

import (
	"portalguard"
	"portalguard/roles"
)

// RoleEntry is the static data owned by one role.
type RoleEntry struct {
	DefaultRoute string                       `mapstructure:"default_route"`
	Navigation   []portalguard.NavigationItem `mapstructure:"navigation"`
}

// Rule guards a path and everything below it.
type Rule struct {
	Path  string   `mapstructure:"path"`
	Roles []string `mapstructure:"roles"`
}

// Definition is the declarative source a Registry is built from.
type Definition struct {
	Roles map[string]RoleEntry `mapstructure:"roles"`
	Rules []Rule               `mapstructure:"rules"`

	// Profile is appended to every non-empty navigation list.
	Profile portalguard.NavigationItem `mapstructure:"profile"`

	// OrganizationRoute is the org_admin landing route when the principal
	// carries an organization; "{id}" is replaced by the escaped id.
	OrganizationRoute string `mapstructure:"organization_route"`

	// OpenByDefault allows known roles on paths no rule covers.
	OpenByDefault bool `mapstructure:"open_by_default"`
}

// DefaultOrganizationRoute is the org_admin override route template.
const DefaultOrganizationRoute = "/admin-panel/organizations/{id}"

// DefaultDefinition returns the built-in dashboard role table.
func DefaultDefinition() Definition {
	return Definition{
		Roles: map[string]RoleEntry{
			roles.SuperAdmin: {
				DefaultRoute: "/admin-panel/dashboard",
				Navigation: []portalguard.NavigationItem{
					{ID: "dashboard", Label: "Dashboard", Path: "/admin-panel/dashboard", Icon: "dashboard"},
					{ID: "organizations", Label: "Organizations", Path: "/admin-panel/organizations", Icon: "building", Description: "Manage client organizations"},
					{ID: "plans", Label: "Subscription Plans", Path: "/admin-panel/plans", Icon: "credit-card", Description: "Plans and feature limits"},
					{ID: "users", Label: "Users", Path: "/admin-panel/users", Icon: "users"},
				},
			},
			roles.OrgAdmin: {
				DefaultRoute: "/org-admin/dashboard",
				Navigation: []portalguard.NavigationItem{
					{ID: "dashboard", Label: "Dashboard", Path: "/org-admin/dashboard", Icon: "dashboard"},
					{ID: "employees", Label: "Employees", Path: "/org-admin/employees", Icon: "users"},
					{ID: "visitors", Label: "Visitors", Path: "/org-admin/visitors", Icon: "id-card"},
					{ID: "cameras", Label: "Cameras", Path: "/org-admin/cameras", Icon: "camera"},
					{ID: "attendance", Label: "Attendance", Path: "/org-admin/attendance", Icon: "clock"},
					{ID: "leaves", Label: "Leaves", Path: "/org-admin/leaves", Icon: "calendar"},
					{ID: "subscription", Label: "Subscription", Path: "/org-admin/subscription", Icon: "credit-card", Description: "Current plan and usage"},
				},
			},
			roles.Manager: {
				DefaultRoute: "/manager/dashboard",
				Navigation: []portalguard.NavigationItem{
					{ID: "dashboard", Label: "Dashboard", Path: "/manager/dashboard", Icon: "dashboard"},
					{ID: "team", Label: "My Team", Path: "/manager/team", Icon: "users"},
					{ID: "leave-requests", Label: "Leave Requests", Path: "/manager/leaves", Icon: "calendar", Description: "Approve or reject leave"},
					{ID: "attendance", Label: "Attendance", Path: "/manager/attendance", Icon: "clock"},
					{ID: "visitors", Label: "Visitors", Path: "/manager/visitors", Icon: "id-card"},
				},
			},
			roles.Employee: {
				DefaultRoute: "/employee/dashboard",
				Navigation: []portalguard.NavigationItem{
					{ID: "dashboard", Label: "Dashboard", Path: "/employee/dashboard", Icon: "dashboard"},
					{ID: "attendance", Label: "My Attendance", Path: "/employee/attendance", Icon: "clock"},
					{ID: "leaves", Label: "My Leaves", Path: "/employee/leaves", Icon: "calendar"},
					{ID: "visitors", Label: "My Visitors", Path: "/employee/visitors", Icon: "id-card", Description: "Invite and track your guests"},
				},
			},
		},
		Rules: []Rule{
			{Path: "/admin-panel", Roles: []string{roles.SuperAdmin}},
			{Path: "/admin-panel/organizations", Roles: []string{roles.SuperAdmin, roles.OrgAdmin}},
			{Path: "/org-admin", Roles: []string{roles.SuperAdmin, roles.OrgAdmin}},
			{Path: "/manager", Roles: []string{roles.SuperAdmin, roles.Manager}},
			{Path: "/employee", Roles: []string{roles.SuperAdmin, roles.Employee}},
			{Path: "/profile", Roles: []string{roles.SuperAdmin, roles.OrgAdmin, roles.Manager, roles.Employee}},
		},
		Profile:           portalguard.NavigationItem{ID: "profile", Label: "My Profile", Path: "/profile", Icon: "user"},
		OrganizationRoute: DefaultOrganizationRoute,
	}
}
