package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRolesHaveTableEntries(t *testing.T) {
	for _, action := range Actions() {
		req := MustLookup(action)
		for _, role := range req.Roles {
			_, ok := rolePermissions[role]
			assert.Truef(t, ok, "action %s references role %s without table entry", action, role)
		}
	}
}

func TestMustLookupPanicsOnUnknownAction(t *testing.T) {
	require.Panics(t, func() { MustLookup(Action("DropDatabase")) })
	_, ok := Lookup(Action("DropDatabase"))
	require.False(t, ok)
}

func TestPermissionsForUnknownRoleIsEmpty(t *testing.T) {
	require.Empty(t, PermissionsFor(Role("root")))
	require.False(t, Grants(Role("root"), DefaultBroadPermissions...))
}

func TestPermissionsForReturnsCopy(t *testing.T) {
	perms := PermissionsFor(RoleUser)
	require.NotEmpty(t, perms)
	perms[0] = PermDeleteOneUser
	require.False(t, Grants(RoleUser, PermDeleteOneUser))
}

func TestRoleGuardMatchesAllowList(t *testing.T) {
	for _, action := range Actions() {
		req := MustLookup(action)
		if len(req.Roles) == 0 {
			continue
		}
		for _, role := range Roles() {
			want := false
			for _, allowed := range req.Roles {
				if allowed == role {
					want = true
				}
			}
			got := AllowRole(action, NewCaller("u1", role))
			assert.Equalf(t, want, got, "action=%s role=%s", action, role)
		}
		assert.Falsef(t, AllowRole(action, nil), "anonymous must be denied for %s", action)
	}
}

func TestPermissionGuardMatchesIntersection(t *testing.T) {
	for _, action := range Actions() {
		req := MustLookup(action)
		if len(req.Permissions) == 0 {
			continue
		}
		for _, role := range Roles() {
			want := false
			for _, granted := range PermissionsFor(role) {
				for _, required := range req.Permissions {
					if granted == required {
						want = true
					}
				}
			}
			got := AllowPermission(action, NewCaller("u1", role))
			assert.Equalf(t, want, got, "action=%s role=%s", action, role)
		}
		assert.Falsef(t, AllowPermission(action, nil), "anonymous must be denied for %s", action)
	}
}

func TestGuardsSkipUngatedActions(t *testing.T) {
	for _, action := range []Action{ActionCreateUser, ActionLoginUser} {
		assert.True(t, AllowRole(action, nil))
		assert.True(t, AllowPermission(action, nil))
		assert.False(t, MustLookup(action).RequiresCaller())
	}
}

func TestReadAllUsersDeniedForUserRole(t *testing.T) {
	assert.False(t, AllowPermission(ActionReadAllUsers, NewCaller("u1", RoleUser)))
	assert.True(t, AllowPermission(ActionReadAllUsers, NewCaller("h1", RoleHelper)))
}

func TestCallerWithRoleListIsEvaluatedAnyOf(t *testing.T) {
	caller := &Caller{ID: "u1", Roles: []Role{Role("ghost"), RoleAdmin}}
	assert.True(t, AllowRole(ActionFindOne, caller))
	assert.True(t, AllowPermission(ActionReadAllUsers, caller))
}

func TestCanAct(t *testing.T) {
	own := []Permission{PermUpdateOwnUser}
	broad := []Permission{PermUpdateOneUser}

	tests := []struct {
		name   string
		caller *Caller
		target string
		want   bool
	}{
		{name: "own permission on self", caller: NewCaller("u1", RoleUser), target: "u1", want: true},
		{name: "own permission on other", caller: NewCaller("u1", RoleUser), target: "u2", want: false},
		{name: "broad permission on other", caller: NewCaller("m1", RoleMod), target: "u2", want: true},
		{name: "broad permission on self", caller: NewCaller("m1", RoleMod), target: "m1", want: true},
		{name: "anonymous", caller: nil, target: "u1", want: false},
		{name: "empty caller id never owns empty target", caller: NewCaller("", RoleUser), target: "", want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanAct(tc.caller, tc.target, broad, own))
		})
	}
}

func TestCanActOnFindOneByUUIDOwnPath(t *testing.T) {
	user := NewCaller("u1", RoleUser)
	assert.True(t, AllowPermission(ActionFindOneByUUID, user))
	assert.True(t, CanActOn(ActionFindOneByUUID, user, "u1"))
	assert.False(t, CanActOn(ActionFindOneByUUID, user, "u2"))

	helper := NewCaller("h1", RoleHelper)
	assert.True(t, CanActOn(ActionFindOneByUUID, helper, "u2"))
}

func TestCanActOnSoftDeleteByUUIDRequiresDeletePermission(t *testing.T) {
	helper := NewCaller("h1", RoleHelper)
	assert.True(t, AllowRole(ActionSoftDeleteByUUID, helper))
	assert.False(t, CanActOn(ActionSoftDeleteByUUID, helper, "u2"))

	mod := NewCaller("m1", RoleMod)
	assert.True(t, CanActOn(ActionSoftDeleteByUUID, mod, "u2"))
}

func TestCanActOnWithoutOwnershipRule(t *testing.T) {
	assert.True(t, CanActOn(ActionReadAllUsers, nil, "anyone"))
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole("mod")
	require.True(t, ok)
	require.Equal(t, RoleMod, role)
	_, ok = ParseRole("superuser")
	require.False(t, ok)
}
