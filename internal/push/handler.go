// AngelaMos | 2026
// handler.go

package push

import (
	"encoding/json"
	"net/http"

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

// RegisterRoutes expects r to be mounted at /push.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Get("/vapid-public-key", h.PublicKey)

	r.Group(func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/devices", h.Devices)
		r.Post("/subscribe", h.Subscribe)
		r.Post("/unsubscribe", h.Unsubscribe)
	})
}

func (h *Handler) PublicKey(w http.ResponseWriter, _ *http.Request) {
	key := h.service.PublicKey()
	if key == "" {
		core.JSONError(w, core.NewAppError(
			core.ErrNotConfigured,
			"push notifications are not configured",
			http.StatusServiceUnavailable,
			"NOT_CONFIGURED",
		))
		return
	}

	core.OK(w, PublicKeyResponse{PublicKey: key})
}

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	sub, err := h.service.Subscribe(r.Context(), userID, req, r.UserAgent())
	if err != nil {
		core.WriteError(w, err, "push subscription")
		return
	}

	core.Created(w, ToSubscriptionResponse(sub))
}

func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req UnsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	if err := h.service.Unsubscribe(r.Context(), userID, req.Endpoint); err != nil {
		core.WriteError(w, err, "push subscription")
		return
	}

	core.NoContent(w)
}

func (h *Handler) Devices(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	subs, err := h.service.Devices(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	resp := make([]SubscriptionResponse, 0, len(subs))
	for i := range subs {
		resp = append(resp, ToSubscriptionResponse(&subs[i]))
	}

	core.OK(w, resp)
}
