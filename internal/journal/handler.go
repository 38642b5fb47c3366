// AngelaMos | 2026
// handler.go

package journal

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
	r.Route("/journal", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	params := ListParams{
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	}

	if err := h.validator.Struct(params); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	days, err := h.service.List(r.Context(), userID, params)
	if err != nil {
		core.WriteError(w, err, "journal entry")
		return
	}

	core.OK(w, days)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	entry, err := h.service.Create(r.Context(), userID, req, SourceManual, h.now())
	if err != nil {
		core.WriteError(w, err, "journal entry")
		return
	}

	core.Created(w, ToEntryResponse(entry))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	id := chi.URLParam(r, "id")
	if !core.ValidID(id) {
		core.NotFound(w, "journal entry")
		return
	}

	var req UpdateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	entry, err := h.service.Update(r.Context(), userID, id, req)
	if err != nil {
		core.WriteError(w, err, "journal entry")
		return
	}

	core.OK(w, ToEntryResponse(entry))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	id := chi.URLParam(r, "id")
	if !core.ValidID(id) {
		core.NotFound(w, "journal entry")
		return
	}

	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		core.WriteError(w, err, "journal entry")
		return
	}

	core.NoContent(w)
}
