// AngelaMos | 2026
// handler.go

package task

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
	now       func() time.Time
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
		now:       time.Now,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/tasks", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	tasks, err := h.service.List(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToTaskResponseList(tasks))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	task, err := h.service.Create(r.Context(), userID, req, SourceManual, h.now())
	if err != nil {
		core.WriteError(w, err, "task")
		return
	}

	core.Created(w, ToTaskResponse(task))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	id := chi.URLParam(r, "id")
	if !core.ValidID(id) {
		core.NotFound(w, "task")
		return
	}

	task, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		core.WriteError(w, err, "task")
		return
	}

	core.OK(w, ToTaskResponse(task))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	id := chi.URLParam(r, "id")
	if !core.ValidID(id) {
		core.NotFound(w, "task")
		return
	}

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	task, err := h.service.Update(r.Context(), userID, id, req)
	if err != nil {
		core.WriteError(w, err, "task")
		return
	}

	core.OK(w, ToTaskResponse(task))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	id := chi.URLParam(r, "id")
	if !core.ValidID(id) {
		core.NotFound(w, "task")
		return
	}

	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		core.WriteError(w, err, "task")
		return
	}

	core.NoContent(w)
}
