// Package permission resolves role grants and contextual (ownership-aware)
// permission checks. Evaluation is two-layered: a static role-to-permission
// table for the coarse grant, and a per-request ownership check for
// own-scoped permissions. Every (role, permission, context) triple resolves
// to exactly allow or deny; deny is the default for anything unrecognized.
package permission

import (
	"github.com/prn-tf/darius-projects/internal/domain"
)

// Engine answers permission questions. It holds no mutable state and is
// safe for concurrent use.
type Engine struct{}

// NewEngine creates a permission Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// PermissionsFor returns the static grant for a role.
// Never empty for a defined role; empty for an unknown role (fail-safe deny).
func (e *Engine) PermissionsFor(role domain.Role) []domain.Permission {
	return domain.PermissionsForRole(role)
}

// Has reports whether the role's static grant includes the permission.
func (e *Engine) Has(role domain.Role, perm domain.Permission) bool {
	for _, p := range domain.PermissionsForRole(role) {
		if p == perm {
			return true
		}
	}
	return false
}

// HasAny reports whether the role holds at least one of the permissions.
func (e *Engine) HasAny(role domain.Role, perms []domain.Permission) bool {
	for _, p := range perms {
		if e.Has(role, p) {
			return true
		}
	}
	return false
}

// HasAll reports whether the role holds every one of the permissions.
func (e *Engine) HasAll(role domain.Role, perms []domain.Permission) bool {
	for _, p := range perms {
		if !e.Has(role, p) {
			return false
		}
	}
	return true
}

// HasContextual resolves an ownership-aware permission check.
//
// The static grant is checked first; without it the answer is deny no matter
// the context. Admins then pass unconditionally. For everyone else the
// per-permission ownership rules apply, and any permission without a rule
// denies (closed world).
func (e *Engine) HasContextual(ctx domain.PermissionContext, perm domain.Permission) bool {
	if !e.Has(ctx.Requester.Role, perm) {
		return false
	}

	if ctx.Requester.Role == domain.RoleAdmin {
		return true
	}

	switch perm {
	case domain.PermUpdateOwnProfile, domain.PermChangeOwnPassword,
		domain.PermViewOwnProject, domain.PermCompleteProject:
		// Own-scoped: allowed only on the requester's own resource.
		// With no resource in context there is nothing to mismatch.
		if ctx.Resource == nil {
			return true
		}
		return ctx.Requester.ID == ctx.Resource.OwnerID

	case domain.PermReadUser:
		// A user may read exactly their own user record.
		if ctx.Resource == nil {
			return false
		}
		return ctx.Requester.ID == ctx.Resource.ID

	default:
		return false
	}
}

// Effective returns the subset of the role's grant that would pass
// HasContextual against a resource owned by resourceOwnerID. Used by
// introspection endpoints only; authorization paths call HasContextual
// directly.
func (e *Engine) Effective(role domain.Role, userID string, resourceOwnerID string) []domain.Permission {
	base := domain.PermissionsForRole(role)

	if role == domain.RoleAdmin {
		return base
	}

	var res *domain.Resource
	if resourceOwnerID != "" {
		res = &domain.Resource{
			ID:      resourceOwnerID,
			OwnerID: resourceOwnerID,
			Type:    "user",
		}
	}

	ctx := domain.PermissionContext{
		Requester: domain.Requester{ID: userID, Role: role},
		Resource:  res,
	}

	effective := make([]domain.Permission, 0, len(base))
	for _, p := range base {
		if e.HasContextual(ctx, p) {
			effective = append(effective, p)
		}
	}
	return effective
}
