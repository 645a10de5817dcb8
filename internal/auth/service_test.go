package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usergate/usergate/internal/auth"
	"github.com/usergate/usergate/internal/rbac"
	"github.com/usergate/usergate/internal/shared"
	"github.com/usergate/usergate/internal/users"
	_ "github.com/usergate/usergate/testing"
)

type stubAccounts struct {
	user    *users.User
	findErr error
	touched int
}

func (s *stubAccounts) FindForLogin(ctx context.Context, email string) (users.User, error) {
	if s.findErr != nil {
		return users.User{}, s.findErr
	}
	if s.user == nil || s.user.Email != email {
		return users.User{}, shared.ErrNotFound
	}
	return *s.user, nil
}

func (s *stubAccounts) RecordLogin(ctx context.Context, user users.User) (users.User, error) {
	s.touched++
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	user.LastLoginAt = &at
	return user, nil
}

func newService(t *testing.T, accounts auth.Accounts) (*auth.Service, *auth.Tokens) {
	t.Helper()
	tokens := auth.NewTokens("secret", time.Hour, "usergate")
	return auth.NewService(accounts, auth.NewHasher(4), tokens, nil), tokens
}

func activeUser(t *testing.T, password string) *users.User {
	t.Helper()
	hash, err := auth.NewHasher(4).Hash(password)
	require.NoError(t, err)
	return &users.User{ID: 7, UUID: "3f1c0c5e-5a4b-4b6e-9d0f-6f1f6c2d8a11", Email: "user@test.local", Role: rbac.RoleHelper, PasswordHash: hash, IsActive: true}
}

func TestLoginSuccess(t *testing.T) {
	accounts := &stubAccounts{user: activeUser(t, "correctpass")}
	svc, tokens := newService(t, accounts)

	user, token, err := svc.Login(context.Background(), "user@test.local", "correctpass")
	require.NoError(t, err)
	require.NotNil(t, user.LastLoginAt)
	assert.Equal(t, 1, accounts.touched)

	claims, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, user.UUID, claims.Subject)
	assert.True(t, claims.Caller().HasRole(rbac.RoleHelper))
}

func TestLoginInvalidCredentials(t *testing.T) {
	inactive := activeUser(t, "correctpass")
	inactive.IsActive = false

	tests := []struct {
		name     string
		accounts *stubAccounts
		email    string
		password string
	}{
		{name: "wrong password", accounts: &stubAccounts{user: activeUser(t, "correctpass")}, email: "user@test.local", password: "wrongpass"},
		{name: "unknown email", accounts: &stubAccounts{user: activeUser(t, "correctpass")}, email: "nobody@test.local", password: "correctpass"},
		{name: "inactive user", accounts: &stubAccounts{user: inactive}, email: "user@test.local", password: "correctpass"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newService(t, tc.accounts)
			_, token, err := svc.Login(context.Background(), tc.email, tc.password)
			require.ErrorIs(t, err, shared.ErrInvalidCredentials)
			assert.Empty(t, token)
			assert.Zero(t, tc.accounts.touched)
		})
	}
}

func TestLoginPropagatesStoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	svc, _ := newService(t, &stubAccounts{findErr: boom})
	_, _, err := svc.Login(context.Background(), "user@test.local", "correctpass")
	require.ErrorIs(t, err, boom)
}

func TestMiddlewareResolvesCaller(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour, "")
	raw, err := tokens.Issue("u-1", "a@b.c", rbac.RoleAdmin)
	require.NoError(t, err)

	var (
		caller     *rbac.Caller
		credential string
	)
	h := auth.Middleware(tokens, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller = shared.CallerFromContext(r.Context())
		credential = shared.CredentialFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, caller)
	assert.Equal(t, "u-1", caller.ID)
	assert.Equal(t, raw, credential)

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer not-a-jwt"} {
		caller, credential = nil, ""
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Nilf(t, caller, "header %q", header)
		assert.Emptyf(t, credential, "header %q", header)
	}
}
