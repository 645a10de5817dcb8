package users_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/usergate/usergate/internal/access"
	"github.com/usergate/usergate/internal/auth"
	"github.com/usergate/usergate/internal/ratelimit"
	"github.com/usergate/usergate/internal/rbac"
	"github.com/usergate/usergate/internal/users"
	_ "github.com/usergate/usergate/testing"
)

const (
	uuidAdmin  = "00000000-0000-4000-8000-000000000001"
	uuidMod    = "00000000-0000-4000-8000-000000000002"
	uuidHelper = "00000000-0000-4000-8000-000000000003"
	uuidUser   = "00000000-0000-4000-8000-000000000004"
	uuidOther  = "00000000-0000-4000-8000-000000000005"
	uuidGhost  = "00000000-0000-4000-8000-0000000000ff"
)

type fixture struct {
	router http.Handler
	repo   *memRepo
	tokens *auth.Tokens
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemRepo()
	hasher := auth.NewHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("correctpass")
	require.NoError(t, err)
	for _, u := range []users.User{
		{UUID: uuidAdmin, Name: "Admin", Email: "admin@test.local", Role: rbac.RoleAdmin},
		{UUID: uuidMod, Name: "Mod", Email: "mod@test.local", Role: rbac.RoleMod},
		{UUID: uuidHelper, Name: "Helper", Email: "helper@test.local", Role: rbac.RoleHelper},
		{UUID: uuidUser, Name: "User", Email: "user@test.local", Role: rbac.RoleUser},
		{UUID: uuidOther, Name: "Other", Email: "other@test.local", Role: rbac.RoleUser},
	} {
		u.PasswordHash = hash
		u.IsActive = true
		repo.seed(u)
	}

	svc := users.NewService(repo, hasher, users.WithCache(users.NewCache(client, time.Minute, nil)))
	tokens := auth.NewTokens("secret", time.Hour, "usergate")
	authSvc := auth.NewService(svc, hasher, tokens, nil)
	evaluator := access.NewEvaluator(ratelimit.New(ratelimit.NewMemoryStore()), nil, nil)
	handler := users.NewHandler(nil, svc, authSvc, evaluator)

	r := chi.NewRouter()
	r.Use(auth.Middleware(tokens, nil))
	r.Route("/users", handler.MountRoutes)
	return &fixture{router: r, repo: repo, tokens: tokens}
}

func (f *fixture) token(t *testing.T, id string, role rbac.Role) string {
	t.Helper()
	raw, err := f.tokens.Issue(id, "", role)
	require.NoError(t, err)
	return raw
}

func (f *fixture) do(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeObject(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestListRequiresReadAllPermission(t *testing.T) {
	f := newFixture(t)

	anon := f.do(t, http.MethodGet, "/users", "", "")
	forbidden := f.do(t, http.MethodGet, "/users", f.token(t, uuidUser, rbac.RoleUser), "")
	assert.Equal(t, http.StatusUnauthorized, anon.Code)
	assert.Equal(t, anon.Body.String(), forbidden.Body.String())
	assert.Zero(t, f.repo.lookupCount())

	ok := f.do(t, http.MethodGet, "/users", f.token(t, uuidHelper, rbac.RoleHelper), "")
	require.Equal(t, http.StatusOK, ok.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(ok.Body.Bytes(), &list))
	require.Len(t, list, 5)
	for _, item := range list {
		assert.NotContains(t, item, "passwordHash")
		assert.NotContains(t, item, "isDeleted")
		assert.Contains(t, item, "email")
	}
}

func TestFindByUUIDOwnershipRunsBeforeLookup(t *testing.T) {
	f := newFixture(t)
	userToken := f.token(t, uuidUser, rbac.RoleUser)

	own := f.do(t, http.MethodGet, "/users/uuid?uuid="+uuidUser, userToken, "")
	require.Equal(t, http.StatusOK, own.Code)
	assert.Equal(t, uuidUser, decodeObject(t, own)["uuid"])
	lookups := f.repo.lookupCount()

	other := f.do(t, http.MethodGet, "/users/uuid?uuid="+uuidOther, userToken, "")
	assert.Equal(t, http.StatusUnauthorized, other.Code)
	ghost := f.do(t, http.MethodGet, "/users/uuid?uuid="+uuidGhost, userToken, "")
	assert.Equal(t, http.StatusUnauthorized, ghost.Code)
	assert.Equal(t, other.Body.String(), ghost.Body.String())
	assert.Equal(t, lookups, f.repo.lookupCount())

	missing := f.do(t, http.MethodGet, "/users/uuid?uuid="+uuidGhost, f.token(t, uuidHelper, rbac.RoleHelper), "")
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestFindOneAdminOnly(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/users/1", f.token(t, uuidMod, rbac.RoleMod), "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodGet, "/users/1", f.token(t, uuidAdmin, rbac.RoleAdmin), "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeObject(t, rr)
	assert.Equal(t, uuidAdmin, body["uuid"])
	assert.Contains(t, body, "isDeleted")

	rr = f.do(t, http.MethodGet, "/users/abc", f.token(t, uuidAdmin, rbac.RoleAdmin), "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFindByEmailRoleGate(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/users/email?email=other@test.local", f.token(t, uuidUser, rbac.RoleUser), "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodGet, "/users/email?email=Other@Test.local", f.token(t, uuidHelper, rbac.RoleHelper), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"email", "isActive", "name", "role", "uuid"}, sortedKeys(decodeObject(t, rr)))
}

func TestCreateAndConflict(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPost, "/users", "", `{"name":"New","email":"new@test.local","password":"longenough"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	body := decodeObject(t, rr)
	assert.Equal(t, "new@test.local", body["email"])
	assert.Equal(t, "user", body["role"])
	assert.NotContains(t, body, "password")

	rr = f.do(t, http.MethodPost, "/users", "", `{"name":"Dup","email":"NEW@test.local","password":"longenough"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = f.do(t, http.MethodPost, "/users", "", `{"name":"Bad","email":"bad","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodPost, "/users", "", `{"name":"X","email":"x@test.local","password":"longenough","role":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateByUUIDOwnPath(t *testing.T) {
	f := newFixture(t)
	userToken := f.token(t, uuidUser, rbac.RoleUser)

	rr := f.do(t, http.MethodPut, "/users/uuid?uuid="+uuidUser, userToken, `{"name":"Renamed"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Renamed", decodeObject(t, rr)["name"])

	rr = f.do(t, http.MethodPut, "/users/uuid?uuid="+uuidOther, userToken, `{"name":"Hijack"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodPut, "/users/uuid?uuid="+uuidOther, f.token(t, uuidMod, rbac.RoleMod), `{"name":"Moderated"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	// The numeric-id route has no ownership check and needs the broad permission.
	rr = f.do(t, http.MethodPut, "/users/4", userToken, `{"name":"Nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSoftDeleteAndReactivate(t *testing.T) {
	f := newFixture(t)
	modToken := f.token(t, uuidMod, rbac.RoleMod)

	rr := f.do(t, http.MethodDelete, "/users/delete?uuid="+uuidOther, f.token(t, uuidHelper, rbac.RoleHelper), "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodDelete, "/users/delete?uuid="+uuidOther, modToken, "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = f.do(t, http.MethodGet, "/users/uuid?uuid="+uuidOther, modToken, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodPatch, "/users/activate?uuid="+uuidOther, modToken, "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeObject(t, rr)
	assert.Equal(t, true, body["isActive"])
	assert.Equal(t, false, body["isDeleted"])

	rr = f.do(t, http.MethodDelete, "/users/5/delete", f.token(t, uuidHelper, rbac.RoleHelper), "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = f.do(t, http.MethodDelete, "/users/99/delete", modToken, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestActivateByIDRoleGate(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPatch, "/users/5/activate", f.token(t, uuidUser, rbac.RoleUser), "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodPatch, "/users/5/activate", f.token(t, uuidHelper, rbac.RoleHelper), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decodeObject(t, rr)["isActive"])
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPost, "/users/login", "", `{"email":"user@test.local","password":"correctpass"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeObject(t, rr)
	assert.Equal(t, "Login successful", body["message"])
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	user, _ := body["user"].(map[string]any)
	assert.Equal(t, uuidUser, user["uuid"])
	assert.Contains(t, user, "lastLoginAt")

	own := f.do(t, http.MethodGet, "/users/uuid?uuid="+uuidUser, token, "")
	assert.Equal(t, http.StatusOK, own.Code)

	wrong := f.do(t, http.MethodPost, "/users/login", "", `{"email":"user@test.local","password":"wrongpass"}`)
	unknown := f.do(t, http.MethodPost, "/users/login", "", `{"email":"nobody@test.local","password":"wrongpass"}`)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
}

func TestCreateRateLimited(t *testing.T) {
	f := newFixture(t)
	limit := rbac.MustLookup(rbac.ActionCreateUser).RateLimit.Max
	for i := 0; i < limit; i++ {
		rr := f.do(t, http.MethodPost, "/users", "", `{}`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
	}
	rr := f.do(t, http.MethodPost, "/users", "", `{"name":"Late","email":"late@test.local","password":"longenough"}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
