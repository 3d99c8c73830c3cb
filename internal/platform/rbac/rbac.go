// Package rbac resolves role sets into effective permission sets from a closed,
// compile-time table. All functions are pure; callers recompute per request
// from the role list embedded in the access token, avoiding a storage round-trip.
package rbac

// Role is a named permission bundle. The set of roles is closed; a role name
// outside this enumeration resolves to no permissions.
type Role string

const (
	RoleCitizen    Role = "CITIZEN"
	RoleAgent      Role = "AGENT"
	RoleOfficer    Role = "OFFICER"
	RoleSupervisor Role = "SUPERVISOR"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// Wildcard is the permission that grants everything. A role set resolving to a
// union containing Wildcard collapses to the wildcard alone.
const Wildcard = "*"

// Hierarchy is the total order over role names, lowest to highest authority.
// It is used only to merge permissions when a user holds multiple roles, never
// for implicit elevation.
var Hierarchy = []Role{
	RoleCitizen,
	RoleAgent,
	RoleOfficer,
	RoleSupervisor,
	RoleAdmin,
	RoleSuperAdmin,
}

// permissions maps each role to its permission bundle. A typo in a permission
// string here is caught by the table tests, not in production.
var permissions = map[Role][]string{
	RoleCitizen: {
		"profile:read",
		"profile:update",
		"applications:create",
		"applications:read:own",
		"documents:upload",
		"documents:read:own",
		"tracking:read:own",
	},
	RoleAgent: {
		"citizens:read",
		"applications:read",
		"documents:read",
		"nid:verify",
	},
	RoleOfficer: {
		"citizens:read",
		"citizens:update",
		"applications:read",
		"applications:process",
		"applications:approve",
		"applications:reject",
		"documents:read",
		"documents:verify",
		"nid:verify",
	},
	RoleSupervisor: {
		"citizens:read",
		"citizens:update",
		"applications:read",
		"applications:process",
		"applications:approve",
		"applications:reject",
		"applications:reassign",
		"officers:manage",
		"reports:read",
	},
	RoleAdmin: {
		"users:manage",
		"roles:assign",
		"services:manage",
		"reports:read",
		"reports:export",
		"audit:read",
		"system:config",
	},
	RoleSuperAdmin: {Wildcard},
}

// Permissions returns the permission bundle for a single role. Unknown roles
// return nil.
func Permissions(role Role) []string {
	return permissions[role]
}

// Resolve expands a set of role names into the effective permission set,
// walking the hierarchy in order so the output is deterministic. If any held
// role grants the wildcard, the result collapses to []string{"*"}.
func Resolve(roles []string) []string {
	held := make(map[Role]bool, len(roles))
	for _, r := range roles {
		held[Role(r)] = true
	}

	var out []string
	seen := make(map[string]bool)
	for _, role := range Hierarchy {
		if !held[role] {
			continue
		}
		for _, p := range permissions[role] {
			if p == Wildcard {
				return []string{Wildcard}
			}
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// HasRole reports whether the holder of userRoles satisfies any of the allowed
// roles. SUPER_ADMIN passes every role check unconditionally.
func HasRole(userRoles []string, allowed ...Role) bool {
	for _, r := range userRoles {
		if Role(r) == RoleSuperAdmin {
			return true
		}
	}
	for _, r := range userRoles {
		for _, a := range allowed {
			if Role(r) == a {
				return true
			}
		}
	}
	return false
}

// HasPermission reports whether the resolved permission set grants every one of
// the required permission strings. The wildcard grants everything.
func HasPermission(userPermissions []string, required ...string) bool {
	set := make(map[string]bool, len(userPermissions))
	for _, p := range userPermissions {
		if p == Wildcard {
			return true
		}
		set[p] = true
	}
	for _, r := range required {
		if !set[r] {
			return false
		}
	}
	return true
}

// ValidRole reports whether name is one of the closed role enumeration.
func ValidRole(name string) bool {
	_, ok := permissions[Role(name)]
	return ok
}
