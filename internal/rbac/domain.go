package rbac

// Role is the single role a caller holds.
type Role string

const (
	RoleUser   Role = "user"
	RoleHelper Role = "helper"
	RoleMod    Role = "mod"
	RoleAdmin  Role = "admin"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleUser, RoleHelper, RoleMod, RoleAdmin}
}

// ParseRole converts a stored or claimed role name. Unknown values report false.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleUser, RoleHelper, RoleMod, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

// Permission names a capability along two axes: the resource scope
// (all users, one named user, the caller's own record) and the operation.
type Permission string

const (
	PermReadAllUsers        Permission = "read:all_users"
	PermReadOneUser         Permission = "read:one_user"
	PermReadOwnUser         Permission = "read:own_user"
	PermUpdateOneUser       Permission = "update:one_user"
	PermUpdateOwnUser       Permission = "update:own_user"
	PermToggleOneUserStatus Permission = "toggle:one_user_status"
	PermToggleOwnUserStatus Permission = "toggle:own_user_status"
	PermDeleteOneUser       Permission = "delete:one_user"
	PermDeleteOwnUser       Permission = "delete:own_user"
)

// rolePermissions is the closed grant table. Grants are never combined or
// inferred: admin is powerful only because it is listed here.
var rolePermissions = map[Role][]Permission{
	RoleUser: {
		PermReadOwnUser,
		PermReadOneUser,
		PermUpdateOwnUser,
		PermToggleOwnUserStatus,
		PermDeleteOwnUser,
	},
	RoleHelper: {
		PermReadOwnUser,
		PermReadOneUser,
		PermReadAllUsers,
		PermUpdateOwnUser,
		PermToggleOwnUserStatus,
		PermToggleOneUserStatus,
	},
	RoleMod: {
		PermReadOwnUser,
		PermReadOneUser,
		PermReadAllUsers,
		PermUpdateOwnUser,
		PermUpdateOneUser,
		PermToggleOwnUserStatus,
		PermToggleOneUserStatus,
		PermDeleteOneUser,
	},
	RoleAdmin: {
		PermReadOwnUser,
		PermReadOneUser,
		PermReadAllUsers,
		PermUpdateOwnUser,
		PermUpdateOneUser,
		PermToggleOwnUserStatus,
		PermToggleOneUserStatus,
		PermDeleteOneUser,
	},
}

// PermissionsFor returns a copy of the permissions granted to role.
// Unknown roles yield an empty set.
func PermissionsFor(role Role) []Permission {
	granted := rolePermissions[role]
	out := make([]Permission, len(granted))
	copy(out, granted)
	return out
}

// Grants reports whether role holds at least one of perms.
func Grants(role Role, perms ...Permission) bool {
	for _, have := range rolePermissions[role] {
		for _, want := range perms {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Caller describes the authenticated actor. The domain model is single-role;
// Roles accepts a list defensively and is evaluated any-of.
type Caller struct {
	ID    string
	Roles []Role
}

// NewCaller builds a single-role caller.
func NewCaller(id string, role Role) *Caller {
	return &Caller{ID: id, Roles: []Role{role}}
}

// HasRole reports whether the caller holds any of roles.
func (c *Caller) HasRole(roles ...Role) bool {
	if c == nil {
		return false
	}
	for _, have := range c.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// HasPermission reports whether any of the caller's roles grants at least one of perms.
func (c *Caller) HasPermission(perms ...Permission) bool {
	if c == nil {
		return false
	}
	for _, role := range c.Roles {
		if Grants(role, perms...) {
			return true
		}
	}
	return false
}
