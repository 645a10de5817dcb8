package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/usergate/usergate/internal/rbac"
	"github.com/usergate/usergate/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	FindAll(ctx context.Context) ([]User, error)
	FindByID(ctx context.Context, id int64) (User, error)
	FindByUUID(ctx context.Context, uuid string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, in NewUser, at time.Time) (User, error)
	Update(ctx context.Context, ref Ref, changes Changes, at time.Time) (User, error)
	SoftDelete(ctx context.Context, ref Ref, at time.Time) (User, error)
	ToggleActivation(ctx context.Context, ref Ref, at time.Time) (User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error)
}

// PasswordHasher turns a plaintext password into an opaque hash.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// TxRunner runs fn with a repository and audit sink bound to one transaction.
type TxRunner func(ctx context.Context, fn func(repo RepositoryPort, audit AuditRecorder) error) error

// Service handles user business logic. Authorization has already happened
// by the time any method runs.
type Service struct {
	repo     RepositoryPort
	hasher   PasswordHasher
	cache    *Cache
	audit    AuditRecorder
	tx       TxRunner
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithCache enables read-through caching.
func WithCache(cache *Cache) ServiceOption { return func(s *Service) { s.cache = cache } }

// WithAudit records mutations.
func WithAudit(audit AuditRecorder) ServiceOption { return func(s *Service) { s.audit = audit } }

// WithTx makes purges atomic with their audit entry.
func WithTx(run TxRunner) ServiceOption { return func(s *Service) { s.tx = run } }

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption { return func(s *Service) { s.logger = logger } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption { return func(s *Service) { s.now = now } }

// NewService builds Service instance.
func NewService(repo RepositoryPort, hasher PasswordHasher, opts ...ServiceOption) *Service {
	s := &Service{
		repo:     repo,
		hasher:   hasher,
		logger:   slog.Default(),
		validate: newValidator(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeEmail trims and case-folds an address. Casers are stateful, so
// each call gets its own.
func (s *Service) NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// List returns all users that are not soft-deleted.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.cache.List(ctx, s.repo.FindAll)
}

// Get returns a user by numeric id.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.cache.User(ctx, idKey(id), func(ctx context.Context) (User, error) {
		return s.repo.FindByID(ctx, id)
	})
}

// GetByUUID returns an active user by public uuid.
func (s *Service) GetByUUID(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, fmt.Errorf("%w: uuid must be a valid UUID", shared.ErrValidation)
	}
	return s.cache.User(ctx, uuidKey(id), func(ctx context.Context) (User, error) {
		return s.repo.FindByUUID(ctx, id)
	})
}

// GetByEmail returns an active user by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	email = s.NormalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return User{}, fmt.Errorf("%w: email must be a valid email address", shared.ErrValidation)
	}
	return s.repo.FindByEmail(ctx, email)
}

// Create registers a new user with role user.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	in.Email = s.NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return User{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	user, err := s.repo.Create(ctx, NewUser{
		UUID:         uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		Role:         rbac.RoleUser,
		PasswordHash: hash,
	}, s.now())
	if err != nil {
		return User{}, err
	}
	s.cache.Invalidate(ctx, User{})
	s.record(ctx, nil, rbac.ActionCreateUser, user, nil)
	return user, nil
}

// Update changes name and/or email of the referenced user.
func (s *Service) Update(ctx context.Context, actor *rbac.Caller, ref Ref, in UpdateInput) (User, error) {
	if in.Email != nil {
		email := s.NormalizeEmail(*in.Email)
		in.Email = &email
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if err := s.check(in); err != nil {
		return User{}, err
	}
	if in.Empty() {
		return User{}, fmt.Errorf("%w: nothing to update", shared.ErrValidation)
	}
	user, err := s.repo.Update(ctx, ref, Changes{Name: in.Name, Email: in.Email}, s.now())
	if err != nil {
		return User{}, err
	}
	s.cache.Invalidate(ctx, user)
	s.record(ctx, actor, actionFor(ref, rbac.ActionUpdateUser, rbac.ActionUpdateByUUID), user, map[string]any{
		"name_changed":  in.Name != nil,
		"email_changed": in.Email != nil,
	})
	return user, nil
}

// SoftDelete deactivates and marks the referenced user deleted.
func (s *Service) SoftDelete(ctx context.Context, actor *rbac.Caller, ref Ref) error {
	user, err := s.repo.SoftDelete(ctx, ref, s.now())
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, user)
	s.record(ctx, actor, actionFor(ref, rbac.ActionSoftDelete, rbac.ActionSoftDeleteByUUID), user, nil)
	return nil
}

// ToggleActivation flips the active flag. Reactivation resurrects a
// soft-deleted user.
func (s *Service) ToggleActivation(ctx context.Context, actor *rbac.Caller, ref Ref) (User, error) {
	user, err := s.repo.ToggleActivation(ctx, ref, s.now())
	if err != nil {
		return User{}, err
	}
	s.cache.Invalidate(ctx, user)
	s.record(ctx, actor, actionFor(ref, rbac.ActionActivateUser, rbac.ActionChangeActivationStatusByUUID), user, map[string]any{
		"is_active": user.IsActive,
	})
	return user, nil
}

// FindForLogin returns an active user with its password hash. It bypasses
// the cache, which never holds hashes.
func (s *Service) FindForLogin(ctx context.Context, email string) (User, error) {
	return s.repo.FindByEmail(ctx, s.NormalizeEmail(email))
}

// RecordLogin stamps lastLoginAt and returns the updated user.
func (s *Service) RecordLogin(ctx context.Context, user User) (User, error) {
	at := s.now()
	if err := s.repo.TouchLastLogin(ctx, user.ID, at); err != nil {
		return User{}, err
	}
	user.LastLoginAt = &at
	s.cache.Invalidate(ctx, user)
	return user, nil
}

// PurgeDeleted hard-deletes users soft-deleted longer than retention ago.
// With a TxRunner the purge and its audit entry commit together.
func (s *Service) PurgeDeleted(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention)
	var n int64
	purge := func(repo RepositoryPort, audit AuditRecorder) error {
		var err error
		n, err = repo.PurgeDeleted(ctx, cutoff)
		if err != nil || n == 0 || audit == nil {
			return err
		}
		return audit.Record(ctx, shared.AuditLog{
			Action:   "PurgeDeleted",
			Entity:   "user",
			EntityID: cutoff.Format(time.RFC3339),
			Meta:     map[string]any{"count": n, "retention": retention.String()},
			At:       s.now(),
		})
	}

	var err error
	if s.tx != nil {
		err = s.tx(ctx, purge)
	} else {
		err = purge(s.repo, s.audit)
	}
	if err != nil {
		return 0, fmt.Errorf("users: purge deleted: %w", err)
	}
	if n > 0 {
		s.cache.InvalidateAll(ctx)
	}
	return n, nil
}

func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", shared.ErrValidation, strings.Join(msgs, "; "))
}

func (s *Service) record(ctx context.Context, actor *rbac.Caller, action rbac.Action, user User, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		Action:   string(action),
		Entity:   "user",
		EntityID: user.UUID,
		Meta:     meta,
		At:       s.now(),
	}
	if actor != nil {
		entry.ActorID = actor.ID
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", entry.Action), slog.Any("error", err))
	}
}

func actionFor(ref Ref, byID, byUUID rbac.Action) rbac.Action {
	if ref.UUID != "" {
		return byUUID
	}
	return byID
}
