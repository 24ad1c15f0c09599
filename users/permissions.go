package users

// Permission represents a named capability in the portal.
type Permission string

const (
	PermEnrolleeRead       Permission = "enrollee:read"
	PermEnrolleeManage     Permission = "enrollee:manage"
	PermPlanManage         Permission = "plan:manage"
	PermAuthorizationIssue Permission = "authorization:issue"
	PermAuthorizationReq   Permission = "authorization:request"
	PermClaimSubmit        Permission = "claim:submit"
	PermClaimReview        Permission = "claim:review"
	PermProviderManage     Permission = "provider:manage"
	PermStaffManage        Permission = "staff:manage"
	PermReportView         Permission = "report:view"
	PermTenantManage       Permission = "tenant:manage"
)

// rolePermissions is the single source of truth for what each role may do.
var rolePermissions = map[RoleType][]Permission{
	RoleSuperAdmin: {
		PermEnrolleeRead, PermEnrolleeManage, PermPlanManage,
		PermAuthorizationIssue, PermAuthorizationReq,
		PermClaimSubmit, PermClaimReview,
		PermProviderManage, PermStaffManage, PermReportView,
		PermTenantManage,
	},
	RoleHMOAdmin: {
		PermEnrolleeRead, PermEnrolleeManage, PermPlanManage,
		PermAuthorizationIssue, PermClaimReview,
		PermProviderManage, PermStaffManage, PermReportView,
	},
	RoleHMOAgent: {
		PermEnrolleeRead, PermAuthorizationIssue, PermClaimReview,
	},
	RoleProviderAdmin: {
		PermEnrolleeRead, PermAuthorizationReq, PermClaimSubmit,
		PermStaffManage, PermReportView,
	},
	RoleProviderUser: {
		PermEnrolleeRead, PermAuthorizationReq, PermClaimSubmit,
	},
}

// HasPermission reports whether role grants perm. Unknown roles grant nothing.
func HasPermission(role RoleType, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns a copy of the role's permissions, nil for unknown roles.
func PermissionsForRole(role RoleType) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}
