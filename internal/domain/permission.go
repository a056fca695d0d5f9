// Package domain contains the core business entities for Darius Projects.
package domain

import "strings"

// Permission is a fine-grained capability tag of the form "action:resource".
type Permission string

const (
	// User permissions
	PermCreateUser Permission = "create:user"
	PermReadUser   Permission = "read:user"
	PermUpdateUser Permission = "update:user"
	PermDeleteUser Permission = "delete:user"

	// Project permissions
	PermCreateProject   Permission = "create:project"
	PermReadProject     Permission = "read:project"
	PermUpdateProject   Permission = "update:project"
	PermDeleteProject   Permission = "delete:project"
	PermAssignProject   Permission = "assign:project"
	PermCompleteProject Permission = "complete:project"

	// Profile (ownership-scoped) permissions
	PermUpdateOwnProfile  Permission = "update:own_profile"
	PermChangeOwnPassword Permission = "change:own_password"
	PermViewOwnProject    Permission = "view:own_project"

	// System permissions
	PermManageSystem Permission = "manage:system"
)

// Action returns the action part of the permission tag.
func (p Permission) Action() string {
	action, _, _ := strings.Cut(string(p), ":")
	return action
}

// Resource returns the resource part of the permission tag.
func (p Permission) Resource() string {
	_, resource, _ := strings.Cut(string(p), ":")
	return resource
}

// rolePermissions is the static role-to-permission grant table.
// It is read-only after process start and safe for concurrent reads.
var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermCreateUser,
		PermReadUser,
		PermUpdateUser,
		PermDeleteUser,
		PermCreateProject,
		PermReadProject,
		PermUpdateProject,
		PermDeleteProject,
		PermAssignProject,
		PermCompleteProject,
		PermUpdateOwnProfile,
		PermChangeOwnPassword,
		PermManageSystem,
	},
	RoleUser: {
		PermReadUser,
		PermReadProject,
		PermCompleteProject,
		PermUpdateOwnProfile,
		PermChangeOwnPassword,
		PermViewOwnProject,
	},
}

// PermissionsForRole returns the static permission grant for a role.
// An unknown role yields an empty set (fail-safe deny).
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// Requester identifies the caller of a guarded operation.
type Requester struct {
	ID   string
	Role Role
}

// Resource identifies the entity a guarded operation acts on.
type Resource struct {
	// ID is the resource's own identifier.
	ID string

	// OwnerID is the user id that owns the resource. For user resources
	// this equals ID.
	OwnerID string

	// Type names the resource kind ("user", "project").
	Type string
}

// PermissionContext carries the runtime ownership data a contextual
// permission check needs. Constructed per-request, never persisted.
type PermissionContext struct {
	Requester Requester
	Resource  *Resource
}
