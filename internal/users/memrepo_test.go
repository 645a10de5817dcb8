package users_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/usergate/usergate/internal/shared"
	"github.com/usergate/usergate/internal/users"
)

// memRepo mirrors the filters of the Postgres repository in memory.
type memRepo struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*users.User
	lookups int
}

func newMemRepo() *memRepo {
	return &memRepo{byID: map[int64]*users.User{}}
}

func (m *memRepo) seed(u users.User) users.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	u.ID = m.nextID
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		u.UpdatedAt = u.CreatedAt
	}
	cp := u
	m.byID[u.ID] = &cp
	return u
}

func (m *memRepo) lookupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}

func (m *memRepo) FindAll(ctx context.Context) ([]users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	var out []users.User
	for _, u := range m.byID {
		if !u.IsDeleted {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) FindByID(ctx context.Context, id int64) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	u, ok := m.byID[id]
	if !ok || u.IsDeleted {
		return users.User{}, fmt.Errorf("users: find by id: %w", shared.ErrNotFound)
	}
	return *u, nil
}

func (m *memRepo) FindByUUID(ctx context.Context, id string) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	for _, u := range m.byID {
		if u.UUID == id && u.IsActive && !u.IsDeleted {
			return *u, nil
		}
	}
	return users.User{}, fmt.Errorf("users: find by uuid: %w", shared.ErrNotFound)
}

func (m *memRepo) FindByEmail(ctx context.Context, email string) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	for _, u := range m.byID {
		if u.Email == email && u.IsActive && !u.IsDeleted {
			return *u, nil
		}
	}
	return users.User{}, fmt.Errorf("users: find by email: %w", shared.ErrNotFound)
}

func (m *memRepo) Create(ctx context.Context, in users.NewUser, at time.Time) (users.User, error) {
	m.mu.Lock()
	for _, u := range m.byID {
		if u.Email == in.Email {
			m.mu.Unlock()
			return users.User{}, fmt.Errorf("users: create: %w", shared.ErrConflict)
		}
	}
	m.mu.Unlock()
	return m.seed(users.User{
		UUID: in.UUID, Name: in.Name, Email: in.Email, Role: in.Role, PasswordHash: in.PasswordHash,
		IsActive: true, CreatedAt: at, UpdatedAt: at,
	}), nil
}

func (m *memRepo) find(ref users.Ref) *users.User {
	for _, u := range m.byID {
		if (ref.UUID != "" && u.UUID == ref.UUID) || (ref.UUID == "" && u.ID == ref.ID) {
			return u
		}
	}
	return nil
}

func (m *memRepo) Update(ctx context.Context, ref users.Ref, changes users.Changes, at time.Time) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.find(ref)
	if u == nil {
		return users.User{}, fmt.Errorf("users: update: %w", shared.ErrNotFound)
	}
	if changes.Email != nil {
		for _, other := range m.byID {
			if other.ID != u.ID && other.Email == *changes.Email {
				return users.User{}, fmt.Errorf("users: update: %w", shared.ErrConflict)
			}
		}
		u.Email = *changes.Email
	}
	if changes.Name != nil {
		u.Name = *changes.Name
	}
	u.UpdatedAt = at
	return *u, nil
}

func (m *memRepo) SoftDelete(ctx context.Context, ref users.Ref, at time.Time) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.find(ref)
	if u == nil {
		return users.User{}, fmt.Errorf("users: soft delete: %w", shared.ErrNotFound)
	}
	u.IsActive = false
	u.IsDeleted = true
	u.DeletedAt = &at
	u.UpdatedAt = at
	return *u, nil
}

func (m *memRepo) ToggleActivation(ctx context.Context, ref users.Ref, at time.Time) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.find(ref)
	if u == nil {
		return users.User{}, fmt.Errorf("users: toggle activation: %w", shared.ErrNotFound)
	}
	u.IsActive = !u.IsActive
	if u.IsActive {
		u.IsDeleted = false
		u.DeletedAt = nil
	}
	u.UpdatedAt = at
	return *u, nil
}

func (m *memRepo) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func (m *memRepo) PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, u := range m.byID {
		if u.IsDeleted && u.DeletedAt != nil && u.DeletedAt.Before(cutoff) {
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

type memAudit struct {
	mu      sync.Mutex
	entries []shared.AuditLog
}

func (a *memAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, log)
	return nil
}

var _ users.RepositoryPort = (*memRepo)(nil)
