package auth

import "github.com/prn-tf/darius-projects/internal/domain"

// Operation names a guarded API operation. Handlers reference operations;
// the policy table below maps them to permission requirements. Authorization
// is declarative data, not annotations scattered over handlers.
type Operation string

const (
	OpUserCreate      Operation = "user.create"
	OpUserList        Operation = "user.list"
	OpUserGet         Operation = "user.get"
	OpUserUpdate      Operation = "user.update"
	OpUserDelete      Operation = "user.delete"
	OpUserUploadImage Operation = "user.upload_image"
	OpUserProject     Operation = "user.project"

	OpProjectCreate     Operation = "project.create"
	OpProjectList       Operation = "project.list"
	OpProjectGet        Operation = "project.get"
	OpProjectUpdate     Operation = "project.update"
	OpProjectDelete     Operation = "project.delete"
	OpProjectAssign     Operation = "project.assign"
	OpProjectUnassign   Operation = "project.unassign"
	OpProjectStatus     Operation = "project.status"
	OpProjectStatistics Operation = "project.statistics"

	OpChangePassword Operation = "auth.change_password"
)

// Policy states what a single operation requires. The caller passes when ANY
// listed permission passes its check.
type Policy struct {
	// AnyOf lists acceptable permissions.
	AnyOf []domain.Permission

	// Contextual routes the check through the ownership-aware engine path.
	// Without it only the static role grant is consulted.
	Contextual bool

	// OwnerParam names the URL parameter holding the owning user's id for
	// contextual checks. Empty means the check runs without a resource,
	// which denies own-scoped permissions for non-admins.
	OwnerParam string
}

// policies is the authorization table for every guarded operation.
var policies = map[Operation]Policy{
	OpUserCreate: {AnyOf: []domain.Permission{domain.PermCreateUser}},
	OpUserList:   {AnyOf: []domain.Permission{domain.PermReadUser}, Contextual: true},
	OpUserGet:    {AnyOf: []domain.Permission{domain.PermReadUser}, Contextual: true, OwnerParam: "id"},
	OpUserUpdate: {
		AnyOf:      []domain.Permission{domain.PermUpdateUser, domain.PermUpdateOwnProfile},
		Contextual: true,
		OwnerParam: "id",
	},
	OpUserDelete: {AnyOf: []domain.Permission{domain.PermDeleteUser}},
	OpUserUploadImage: {
		AnyOf:      []domain.Permission{domain.PermUpdateUser, domain.PermUpdateOwnProfile},
		Contextual: true,
		OwnerParam: "id",
	},
	OpUserProject: {
		AnyOf:      []domain.Permission{domain.PermReadProject, domain.PermViewOwnProject},
		Contextual: true,
		OwnerParam: "id",
	},

	OpProjectCreate:   {AnyOf: []domain.Permission{domain.PermCreateProject}},
	OpProjectList:     {AnyOf: []domain.Permission{domain.PermReadProject}},
	OpProjectGet:      {AnyOf: []domain.Permission{domain.PermReadProject}},
	OpProjectUpdate:   {AnyOf: []domain.Permission{domain.PermUpdateProject}},
	OpProjectDelete:   {AnyOf: []domain.Permission{domain.PermDeleteProject}},
	OpProjectAssign:   {AnyOf: []domain.Permission{domain.PermAssignProject}},
	OpProjectUnassign: {AnyOf: []domain.Permission{domain.PermAssignProject}},

	// Status changes need a second, data-dependent check in the handler:
	// a regular user may only complete the project assigned to them, and
	// ownership is known only after the project is loaded.
	OpProjectStatus: {AnyOf: []domain.Permission{domain.PermUpdateProject, domain.PermCompleteProject}},

	OpProjectStatistics: {AnyOf: []domain.Permission{domain.PermManageSystem}},

	OpChangePassword: {AnyOf: []domain.Permission{domain.PermChangeOwnPassword}},
}

// PolicyFor looks up the policy for an operation. Unknown operations return
// a deny-all policy.
func PolicyFor(op Operation) (Policy, bool) {
	p, ok := policies[op]
	return p, ok
}
