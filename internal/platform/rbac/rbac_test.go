package rbac

import "testing"

func TestResolve_SingleRole(t *testing.T) {
	perms := Resolve([]string{"CITIZEN"})
	want := map[string]bool{
		"profile:read": true, "profile:update": true, "applications:create": true,
		"applications:read:own": true, "documents:upload": true,
		"documents:read:own": true, "tracking:read:own": true,
	}
	if len(perms) != len(want) {
		t.Fatalf("Resolve(CITIZEN) = %v, want %d permissions", perms, len(want))
	}
	for _, p := range perms {
		if !want[p] {
			t.Errorf("unexpected permission %q", p)
		}
	}
}

func TestResolve_Monotonic(t *testing.T) {
	// Resolving {AGENT, OFFICER} must yield a superset of {AGENT} alone.
	single := Resolve([]string{"AGENT"})
	both := Resolve([]string{"AGENT", "OFFICER"})

	set := make(map[string]bool, len(both))
	for _, p := range both {
		set[p] = true
	}
	for _, p := range single {
		if !set[p] {
			t.Errorf("permission %q from single role missing in combined set", p)
		}
	}
	if len(both) < len(single) {
		t.Errorf("combined set smaller than single set: %d < %d", len(both), len(single))
	}
}

func TestResolve_NoDuplicates(t *testing.T) {
	// OFFICER and SUPERVISOR share several permissions; the union must not repeat them.
	perms := Resolve([]string{"OFFICER", "SUPERVISOR"})
	seen := make(map[string]bool)
	for _, p := range perms {
		if seen[p] {
			t.Errorf("duplicate permission %q", p)
		}
		seen[p] = true
	}
}

func TestResolve_WildcardCollapses(t *testing.T) {
	perms := Resolve([]string{"CITIZEN", "SUPER_ADMIN"})
	if len(perms) != 1 || perms[0] != Wildcard {
		t.Errorf("Resolve with SUPER_ADMIN = %v, want [*]", perms)
	}
}

func TestResolve_UnknownRole(t *testing.T) {
	if perms := Resolve([]string{"NO_SUCH_ROLE"}); len(perms) != 0 {
		t.Errorf("Resolve(unknown) = %v, want empty", perms)
	}
}

func TestHasRole(t *testing.T) {
	if !HasRole([]string{"OFFICER"}, RoleOfficer) {
		t.Error("OFFICER should satisfy an OFFICER check")
	}
	if HasRole([]string{"CITIZEN"}, RoleOfficer) {
		t.Error("CITIZEN should not satisfy an OFFICER check")
	}
	if !HasRole([]string{"SUPER_ADMIN"}, RoleOfficer) {
		t.Error("SUPER_ADMIN should pass every role check")
	}
	if HasRole(nil, RoleOfficer) {
		t.Error("empty role set should fail")
	}
}

func TestHasPermission(t *testing.T) {
	perms := Resolve([]string{"OFFICER"})
	if !HasPermission(perms, "applications:approve") {
		t.Error("OFFICER should hold applications:approve")
	}
	if HasPermission(perms, "users:manage") {
		t.Error("OFFICER should not hold users:manage")
	}
	if !HasPermission(perms, "citizens:read", "documents:verify") {
		t.Error("OFFICER should hold all of the required permissions")
	}
	if HasPermission(perms, "citizens:read", "users:manage") {
		t.Error("a single missing permission should fail the check")
	}
}

func TestHasPermission_Wildcard(t *testing.T) {
	perms := Resolve([]string{"SUPER_ADMIN"})
	for _, required := range []string{"users:manage", "anything:at:all", "made-up"} {
		if !HasPermission(perms, required) {
			t.Errorf("wildcard should grant %q", required)
		}
	}
}

func TestHierarchy_CoversAllRoles(t *testing.T) {
	if len(Hierarchy) != len(permissions) {
		t.Fatalf("hierarchy has %d roles, permission table has %d", len(Hierarchy), len(permissions))
	}
	for _, r := range Hierarchy {
		if _, ok := permissions[r]; !ok {
			t.Errorf("role %q missing from permission table", r)
		}
	}
	if Hierarchy[len(Hierarchy)-1] != RoleSuperAdmin {
		t.Error("SUPER_ADMIN must be top of hierarchy")
	}
}

func TestValidRole(t *testing.T) {
	if !ValidRole("CITIZEN") {
		t.Error("CITIZEN should be valid")
	}
	if ValidRole("citizen") {
		t.Error("role names are case-sensitive")
	}
	if ValidRole("") {
		t.Error("empty role should be invalid")
	}
}
