package rbac

import (
	"fmt"
	"sort"
	"time"
)

// Action names a gate-checked unit of behaviour.
type Action string

const (
	ActionReadAllUsers                 Action = "ReadAllUsers"
	ActionFindOneByEmail               Action = "FindOneByEmail"
	ActionFindOneByUUID                Action = "FindOneByUuid"
	ActionFindOne                      Action = "FindOne"
	ActionCreateUser                   Action = "CreateUser"
	ActionUpdateUser                   Action = "UpdateUser"
	ActionUpdateByUUID                 Action = "UpdateByUuid"
	ActionSoftDelete                   Action = "SoftDelete"
	ActionSoftDeleteByUUID             Action = "SoftDeleteByUuid"
	ActionActivateUser                 Action = "ActivateUser"
	ActionChangeActivationStatusByUUID Action = "ChangeActivationStatusByUuid"
	ActionLoginUser                    Action = "LoginUser"
)

// Field names shared with the record shape produced by persistence.
const (
	FieldUUID        = "uuid"
	FieldName        = "name"
	FieldEmail       = "email"
	FieldRole        = "role"
	FieldIsActive    = "isActive"
	FieldIsDeleted   = "isDeleted"
	FieldDeletedAt   = "deletedAt"
	FieldUpdatedAt   = "updatedAt"
	FieldCreatedAt   = "createdAt"
	FieldLastLoginAt = "lastLoginAt"
)

// RateLimit is a fixed-window budget: at most Max operations per Window.
type RateLimit struct {
	Window time.Duration
	Max    int
}

// Ownership configures the ownership-aware check for actions that act on a
// target identity. Broad permissions act on anyone; Own permissions act only
// when the caller is the target.
type Ownership struct {
	Broad []Permission
	Own   []Permission
}

// Requirement is everything an action demands of a caller.
// Empty Roles or Permissions mean that check does not apply. Empty Fields
// means the action produces no output.
type Requirement struct {
	Roles       []Role
	Permissions []Permission
	Fields      []string
	RateLimit   RateLimit
	Ownership   *Ownership
}

// RequiresCaller reports whether the action is unavailable to anonymous callers.
func (r Requirement) RequiresCaller() bool {
	return len(r.Roles) > 0 || len(r.Permissions) > 0 || r.Ownership != nil
}

var (
	readBudget   = RateLimit{Window: time.Minute, Max: 120}
	writeBudget  = RateLimit{Window: time.Minute, Max: 30}
	createBudget = RateLimit{Window: time.Minute, Max: 10}
	loginBudget  = RateLimit{Window: time.Minute, Max: 60}
)

var registry = map[Action]Requirement{
	ActionReadAllUsers: {
		Permissions: []Permission{PermReadAllUsers},
		Fields:      []string{FieldUUID, FieldName, FieldEmail, FieldRole, FieldIsActive, FieldCreatedAt, FieldLastLoginAt},
		RateLimit:   readBudget,
	},
	ActionFindOneByEmail: {
		Roles:     []Role{RoleAdmin, RoleMod, RoleHelper},
		Fields:    []string{FieldUUID, FieldName, FieldEmail, FieldRole, FieldIsActive},
		RateLimit: readBudget,
	},
	ActionFindOneByUUID: {
		Permissions: []Permission{PermReadOneUser, PermReadOwnUser},
		Fields:      []string{FieldUUID, FieldName, FieldEmail, FieldRole, FieldIsActive, FieldCreatedAt, FieldUpdatedAt, FieldLastLoginAt},
		RateLimit:   readBudget,
		Ownership: &Ownership{
			Broad: []Permission{PermReadAllUsers},
			Own:   []Permission{PermReadOneUser, PermReadOwnUser},
		},
	},
	ActionFindOne: {
		Roles:     []Role{RoleAdmin},
		Fields:    []string{FieldUUID, FieldName, FieldEmail, FieldRole, FieldIsActive, FieldIsDeleted, FieldDeletedAt, FieldCreatedAt, FieldUpdatedAt, FieldLastLoginAt},
		RateLimit: readBudget,
	},
	ActionCreateUser: {
		Fields:    []string{FieldUUID, FieldName, FieldEmail, FieldRole, FieldIsActive, FieldCreatedAt},
		RateLimit: createBudget,
	},
	ActionUpdateUser: {
		Permissions: []Permission{PermUpdateOneUser},
		Fields:      []string{FieldUUID, FieldName, FieldEmail, FieldRole, FieldIsActive, FieldUpdatedAt},
		RateLimit:   writeBudget,
	},
	ActionUpdateByUUID: {
		Permissions: []Permission{PermUpdateOwnUser, PermUpdateOneUser},
		Fields:      []string{FieldUUID, FieldName, FieldEmail, FieldRole, FieldIsActive, FieldUpdatedAt},
		RateLimit:   writeBudget,
		Ownership: &Ownership{
			Broad: []Permission{PermUpdateOneUser},
			Own:   []Permission{PermUpdateOwnUser, PermUpdateOneUser},
		},
	},
	ActionSoftDelete: {
		Roles:     []Role{RoleAdmin, RoleMod},
		RateLimit: writeBudget,
	},
	ActionSoftDeleteByUUID: {
		Roles:     []Role{RoleAdmin, RoleMod, RoleHelper},
		RateLimit: writeBudget,
		Ownership: &Ownership{
			Broad: []Permission{PermDeleteOneUser},
			Own:   []Permission{PermDeleteOwnUser},
		},
	},
	ActionActivateUser: {
		Roles:     []Role{RoleAdmin, RoleMod, RoleHelper},
		Fields:    []string{FieldUUID, FieldIsActive, FieldIsDeleted, FieldDeletedAt, FieldUpdatedAt},
		RateLimit: writeBudget,
	},
	ActionChangeActivationStatusByUUID: {
		Permissions: []Permission{PermToggleOneUserStatus, PermToggleOwnUserStatus},
		Fields:      []string{FieldUUID, FieldIsActive, FieldIsDeleted, FieldUpdatedAt},
		RateLimit:   writeBudget,
		Ownership: &Ownership{
			Broad: []Permission{PermToggleOneUserStatus},
			Own:   []Permission{PermToggleOwnUserStatus},
		},
	},
	ActionLoginUser: {
		Fields:    []string{FieldUUID, FieldName, FieldEmail, FieldRole, FieldLastLoginAt},
		RateLimit: loginBudget,
	},
}

// Lookup returns the requirement registered for action.
func Lookup(action Action) (Requirement, bool) {
	req, ok := registry[action]
	return req, ok
}

// MustLookup is Lookup for callers that only ever pass known actions.
// The action set is closed, so an unknown action is a programming error.
func MustLookup(action Action) Requirement {
	req, ok := registry[action]
	if !ok {
		panic(fmt.Sprintf("rbac: unknown action %q", action))
	}
	return req
}

// Actions returns every registered action in name order.
func Actions() []Action {
	actions := make([]Action, 0, len(registry))
	for a := range registry {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}
