package users

import (
	"time"

	"github.com/usergate/usergate/internal/rbac"
)

// User is a managed account. ID is the internal numeric key; UUID is the
// public identity used for ownership checks.
type User struct {
	ID           int64      `json:"id"`
	UUID         string     `json:"uuid"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         rbac.Role  `json:"role"`
	PasswordHash string     `json:"-"`
	IsActive     bool       `json:"isActive"`
	IsDeleted    bool       `json:"isDeleted"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// Record exposes the user as the attribute map consumed by response
// projection. The password hash is never part of it; unset timestamps are
// left out so that projection omits them.
func (u User) Record() map[string]any {
	record := map[string]any{
		rbac.FieldUUID:      u.UUID,
		rbac.FieldName:      u.Name,
		rbac.FieldEmail:     u.Email,
		rbac.FieldRole:      string(u.Role),
		rbac.FieldIsActive:  u.IsActive,
		rbac.FieldIsDeleted: u.IsDeleted,
	}
	if !u.CreatedAt.IsZero() {
		record[rbac.FieldCreatedAt] = u.CreatedAt
	}
	if !u.UpdatedAt.IsZero() {
		record[rbac.FieldUpdatedAt] = u.UpdatedAt
	}
	if u.DeletedAt != nil {
		record[rbac.FieldDeletedAt] = *u.DeletedAt
	}
	if u.LastLoginAt != nil {
		record[rbac.FieldLastLoginAt] = *u.LastLoginAt
	}
	return record
}

// Records maps Record over list.
func Records(list []User) []map[string]any {
	out := make([]map[string]any, len(list))
	for i, u := range list {
		out[i] = u.Record()
	}
	return out
}

// CreateInput carries the fields accepted when registering a user.
type CreateInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// UpdateInput carries the optional fields accepted on update.
type UpdateInput struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Email *string `json:"email,omitempty" validate:"omitempty,email,max=254"`
}

// Empty reports whether the update changes nothing.
func (in UpdateInput) Empty() bool {
	return in.Name == nil && in.Email == nil
}

// LoginInput carries login credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// NewUser is the persistence payload for a new account.
type NewUser struct {
	UUID         string
	Name         string
	Email        string
	Role         rbac.Role
	PasswordHash string
}

// Changes is the persistence payload for an update. Nil fields are kept.
type Changes struct {
	Name  *string
	Email *string
}
