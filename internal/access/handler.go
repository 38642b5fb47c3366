// AngelaMos | 2026
// handler.go

package access

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/middleware"
)

type Service interface {
	Resolve(ctx context.Context, userID string, now time.Time) (Status, error)
	RedeemActivationCode(
		ctx context.Context,
		userID, code string,
		now time.Time,
	) (Status, error)
}

type ActivateRequest struct {
	Code string `json:"code" validate:"required,max=128"`
}

type Handler struct {
	service   Service
	validator *validator.Validate
	now       func() time.Time
}

func NewHandler(service Service) *Handler {
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
	r.Route("/subscription", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/status", h.GetStatus)
		r.Post("/activate", h.Activate)
	})
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	status, err := h.service.Resolve(r.Context(), userID, h.now())
	if err != nil {
		core.WriteError(w, err, "user")
		return
	}

	core.OK(w, status)
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req ActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	status, err := h.service.RedeemActivationCode(
		r.Context(),
		userID,
		req.Code,
		h.now(),
	)
	if err != nil {
		core.WriteError(w, err, "user")
		return
	}

	core.OK(w, status)
}
