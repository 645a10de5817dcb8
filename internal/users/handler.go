package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/usergate/usergate/internal/access"
	"github.com/usergate/usergate/internal/platform/httpx"
	"github.com/usergate/usergate/internal/rbac"
	"github.com/usergate/usergate/internal/shared"
)

// Authenticator verifies credentials and issues an access token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (User, string, error)
}

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	auth    Authenticator
	access  *access.Evaluator
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, auth Authenticator, evaluator *access.Evaluator) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, auth: auth, access: evaluator}
}

// MountRoutes registers user routes. Every route is gated before its body
// is read or any user is looked up.
func (h *Handler) MountRoutes(r chi.Router) {
	byUUID := access.QueryTarget("uuid")

	r.With(h.access.Gate(rbac.ActionReadAllUsers, nil)).Get("/", h.list)
	r.With(h.access.Gate(rbac.ActionCreateUser, nil)).Post("/", h.create)
	r.With(h.access.Gate(rbac.ActionLoginUser, nil)).Post("/login", h.login)

	r.With(h.access.Gate(rbac.ActionFindOneByEmail, nil)).Get("/email", h.findByEmail)
	r.With(h.access.Gate(rbac.ActionFindOneByUUID, byUUID)).Get("/uuid", h.findByUUID)
	r.With(h.access.Gate(rbac.ActionUpdateByUUID, byUUID)).Put("/uuid", h.updateByUUID)
	r.With(h.access.Gate(rbac.ActionSoftDeleteByUUID, byUUID)).Delete("/delete", h.softDeleteByUUID)
	r.With(h.access.Gate(rbac.ActionChangeActivationStatusByUUID, byUUID)).Patch("/activate", h.toggleByUUID)

	r.With(h.access.Gate(rbac.ActionFindOne, nil)).Get("/{id}", h.findOne)
	r.With(h.access.Gate(rbac.ActionUpdateUser, nil)).Put("/{id}", h.update)
	r.With(h.access.Gate(rbac.ActionSoftDelete, nil)).Delete("/{id}/delete", h.softDelete)
	r.With(h.access.Gate(rbac.ActionActivateUser, nil)).Patch("/{id}/activate", h.toggle)
}

type loginResponse struct {
	Message string            `json:"message"`
	User    access.Projection `json:"user"`
	Token   string            `json:"token"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.access.ProjectAll(rbac.ActionReadAllUsers, Records(list)))
}

func (h *Handler) findByEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetByEmail(r.Context(), r.URL.Query().Get("email"))
	h.respondUser(w, r, rbac.ActionFindOneByEmail, http.StatusOK, user, err)
}

func (h *Handler) findByUUID(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetByUUID(r.Context(), strings.TrimSpace(r.URL.Query().Get("uuid")))
	h.respondUser(w, r, rbac.ActionFindOneByUUID, http.StatusOK, user, err)
}

func (h *Handler) findOne(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.service.Get(r.Context(), id)
	h.respondUser(w, r, rbac.ActionFindOne, http.StatusOK, user, err)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := decode(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.service.Create(r.Context(), in)
	h.respondUser(w, r, rbac.ActionCreateUser, http.StatusCreated, user, err)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.applyUpdate(w, r, rbac.ActionUpdateUser, ByID(id))
}

func (h *Handler) updateByUUID(w http.ResponseWriter, r *http.Request) {
	ref, err := queryUUID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.applyUpdate(w, r, rbac.ActionUpdateByUUID, ref)
}

func (h *Handler) applyUpdate(w http.ResponseWriter, r *http.Request, action rbac.Action, ref Ref) {
	var in UpdateInput
	if err := decode(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.service.Update(r.Context(), shared.CallerFromContext(r.Context()), ref, in)
	h.respondUser(w, r, action, http.StatusOK, user, err)
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.applySoftDelete(w, r, ByID(id))
}

func (h *Handler) softDeleteByUUID(w http.ResponseWriter, r *http.Request) {
	ref, err := queryUUID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.applySoftDelete(w, r, ref)
}

func (h *Handler) applySoftDelete(w http.ResponseWriter, r *http.Request, ref Ref) {
	if err := h.service.SoftDelete(r.Context(), shared.CallerFromContext(r.Context()), ref); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.service.ToggleActivation(r.Context(), shared.CallerFromContext(r.Context()), ByID(id))
	h.respondUser(w, r, rbac.ActionActivateUser, http.StatusOK, user, err)
}

func (h *Handler) toggleByUUID(w http.ResponseWriter, r *http.Request) {
	ref, err := queryUUID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.service.ToggleActivation(r.Context(), shared.CallerFromContext(r.Context()), ref)
	h.respondUser(w, r, rbac.ActionChangeActivationStatusByUUID, http.StatusOK, user, err)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if err := decode(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.check(in); err != nil {
		h.fail(w, r, err)
		return
	}
	user, token, err := h.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{
		Message: "Login successful",
		User:    h.access.Project(rbac.ActionLoginUser, user.Record()),
		Token:   token,
	})
}

func (h *Handler) respondUser(w http.ResponseWriter, r *http.Request, action rbac.Action, status int, user User, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, status, h.access.Project(action, user.Record()))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrConflict),
		errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrInvalidCredentials):
		h.logger.DebugContext(r.Context(), "request rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
	default:
		h.logger.ErrorContext(r.Context(), "request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func decode(w http.ResponseWriter, r *http.Request, dest any) error {
	if err := httpx.DecodeJSON(w, r, dest); err != nil {
		return fmt.Errorf("%w: malformed JSON body", shared.ErrValidation)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer", shared.ErrValidation)
	}
	return id, nil
}

func queryUUID(r *http.Request) (Ref, error) {
	value := strings.TrimSpace(r.URL.Query().Get("uuid"))
	if value == "" {
		return Ref{}, fmt.Errorf("%w: uuid is required", shared.ErrValidation)
	}
	return ByUUID(value), nil
}
