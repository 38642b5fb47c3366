// AngelaMos | 2026
// handler.go

package user

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/users/me", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.Profile)
		r.Put("/", h.UpdateProfile)
		r.Delete("/", h.CloseAccount)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/users", func(r chi.Router) {
		r.Use(authenticator, adminOnly)

		r.Get("/", h.List)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Patch)
			r.Put("/role", h.SetRole)
			r.Delete("/", h.Remove)
		})
	})
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Profile(r.Context(), middleware.GetUserID(r.Context()))
	respond(w, u, err)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if !h.bind(w, r, &req) {
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), req)
	respond(w, u, err)
}

func (h *Handler) CloseAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.service.CloseAccount(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		core.WriteError(w, err, "user")
		return
	}
	core.NoContent(w)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := ListUsersParams{
		Page:     atoiOr(q.Get("page"), 1),
		PageSize: atoiOr(q.Get("page_size"), defaultPageSize),
		Search:   q.Get("search"),
		Role:     q.Get("role"),
	}
	params.Normalize()

	users, total, err := h.service.List(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToUserResponseList(users), params.Page, params.PageSize, total)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(w, r)
	if !ok {
		return
	}

	u, err := h.service.Get(r.Context(), id)
	respond(w, u, err)
}

func (h *Handler) Patch(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !h.bind(w, r, &req) {
		return
	}

	u, err := h.service.Patch(r.Context(), id, req)
	respond(w, u, err)
}

func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(w, r)
	if !ok {
		return
	}

	var req UpdateUserRoleRequest
	if !h.bind(w, r, &req) {
		return
	}

	u, err := h.service.SetRole(r.Context(), id, req.Role)
	respond(w, u, err)
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(w, r)
	if !ok {
		return
	}

	err := h.service.Remove(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		core.WriteError(w, err, "user")
		return
	}
	core.NoContent(w)
}

func targetID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !core.ValidID(id) {
		core.NotFound(w, "user")
		return "", false
	}
	return id, true
}

func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}
	return true
}

func respond(w http.ResponseWriter, u *User, err error) {
	if err != nil {
		core.WriteError(w, err, "user")
		return
	}
	core.OK(w, ToUserResponse(u))
}

func atoiOr(s string, fallback int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return fallback
}
