package rbac

// AllowRole evaluates the role allow-list of action. Actions without
// role gating allow everyone, including anonymous callers.
func AllowRole(action Action, caller *Caller) bool {
	return roleAllowed(MustLookup(action), caller)
}

// AllowPermission evaluates the permission requirement of action with
// at-least-one-of semantics.
func AllowPermission(action Action, caller *Caller) bool {
	return permissionAllowed(MustLookup(action), caller)
}

func roleAllowed(req Requirement, caller *Caller) bool {
	if len(req.Roles) == 0 {
		return true
	}
	return caller.HasRole(req.Roles...)
}

func permissionAllowed(req Requirement, caller *Caller) bool {
	if len(req.Permissions) == 0 {
		return true
	}
	return caller.HasPermission(req.Permissions...)
}

// DefaultBroadPermissions is the set that lets a caller act on any user
// regardless of ownership.
var DefaultBroadPermissions = []Permission{
	PermReadAllUsers,
	PermUpdateOneUser,
	PermToggleOneUserStatus,
	PermDeleteOneUser,
}

// CanAct decides whether caller may act on target. Either the caller holds a
// broad permission, or it holds an own permission and is the target itself.
// It never consults persistence, so it must run before any lookup of target.
func CanAct(caller *Caller, target string, broad, own []Permission) bool {
	if caller == nil {
		return false
	}
	if len(broad) > 0 && caller.HasPermission(broad...) {
		return true
	}
	return len(own) > 0 && caller.ID != "" && caller.ID == target && caller.HasPermission(own...)
}

// CanActOn applies the ownership rule registered for action. Actions without
// an ownership rule are not target-sensitive and always pass.
func CanActOn(action Action, caller *Caller, target string) bool {
	req := MustLookup(action)
	if req.Ownership == nil {
		return true
	}
	return CanAct(caller, target, req.Ownership.Broad, req.Ownership.Own)
}
