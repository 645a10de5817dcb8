package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/usergate/usergate/internal/rbac"
	"github.com/usergate/usergate/internal/shared"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ref addresses a user either by numeric id or by public uuid.
type Ref struct {
	ID   int64
	UUID string
}

// ByID returns a Ref for a numeric id.
func ByID(id int64) Ref { return Ref{ID: id} }

// ByUUID returns a Ref for a public uuid.
func ByUUID(uuid string) Ref { return Ref{UUID: uuid} }

func (r Ref) where() (string, any) {
	if r.UUID != "" {
		return whereUUID, r.UUID
	}
	return whereID, r.ID
}

func (r Ref) String() string {
	if r.UUID != "" {
		return "uuid:" + r.UUID
	}
	return fmt.Sprintf("id:%d", r.ID)
}

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db DBTX
}

// NewRepository constructs a repository.
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

// FindAll returns every user that is not soft-deleted.
func (r *Repository) FindAll(ctx context.Context) ([]User, error) {
	rows, err := r.db.Query(ctx, qListUsers)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()
	var list []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: list scan: %w", err)
		}
		list = append(list, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	return list, nil
}

// FindByID fetches a non-deleted user by numeric id.
func (r *Repository) FindByID(ctx context.Context, id int64) (User, error) {
	return r.one(ctx, "find by id", qUserByID, id)
}

// FindByUUID fetches an active, non-deleted user by uuid.
func (r *Repository) FindByUUID(ctx context.Context, uuid string) (User, error) {
	return r.one(ctx, "find by uuid", qUserByUUID, uuid)
}

// FindByEmail fetches an active, non-deleted user by normalised email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.one(ctx, "find by email", qUserByEmail, email)
}

// Create inserts a user. A duplicate email yields shared.ErrConflict.
func (r *Repository) Create(ctx context.Context, in NewUser, at time.Time) (User, error) {
	return r.one(ctx, "create", qInsertUser, in.UUID, in.Name, in.Email, string(in.Role), in.PasswordHash, at)
}

// Update applies changes to the referenced user regardless of its state.
func (r *Repository) Update(ctx context.Context, ref Ref, changes Changes, at time.Time) (User, error) {
	where, arg := ref.where()
	return r.one(ctx, "update", fmt.Sprintf(qUpdateUser, where), arg, changes.Name, changes.Email, at)
}

// SoftDelete deactivates and marks the referenced user deleted.
func (r *Repository) SoftDelete(ctx context.Context, ref Ref, at time.Time) (User, error) {
	where, arg := ref.where()
	return r.one(ctx, "soft delete", fmt.Sprintf(qSoftDeleteUser, where), arg, at)
}

// ToggleActivation flips is_active. Reactivating a soft-deleted user also
// clears its deletion marker.
func (r *Repository) ToggleActivation(ctx context.Context, ref Ref, at time.Time) (User, error) {
	where, arg := ref.where()
	return r.one(ctx, "toggle activation", fmt.Sprintf(qToggleUser, where), arg, at)
}

// TouchLastLogin stamps the last successful login.
func (r *Repository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.db.Exec(ctx, qTouchLastLogin, id, at); err != nil {
		return fmt.Errorf("users: touch last login: %w", err)
	}
	return nil
}

// PurgeDeleted hard-deletes users soft-deleted before cutoff.
func (r *Repository) PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, qPurgeDeleted, cutoff)
	if err != nil {
		return 0, fmt.Errorf("users: purge deleted: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) one(ctx context.Context, op, sql string, args ...any) (User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return User{}, fmt.Errorf("users: %s: %w", op, translate(err))
	}
	return user, nil
}

func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return shared.ErrConflict
	}
	return err
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(&u.ID, &u.UUID, &u.Name, &u.Email, &role, &u.PasswordHash,
		&u.IsActive, &u.IsDeleted, &u.DeletedAt, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt)
	if err != nil {
		return User{}, err
	}
	u.Role = rbac.Role(role)
	return u, nil
}
