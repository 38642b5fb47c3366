// AngelaMos | 2026
// handler.go

package billing

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/middleware"
)

const maxWebhookBody = 64 << 10

type Flows interface {
	Checkout(ctx context.Context, userID string) (string, error)
	Portal(ctx context.Context, userID string) (string, error)
	Cancel(ctx context.Context, userID string) (*CancelResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type RedirectResponse struct {
	URL string `json:"url"`
}

type Handler struct {
	service Flows
}

func NewHandler(service Flows) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/billing", func(r chi.Router) {
		r.Post("/webhook", h.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)

			r.Post("/checkout", h.Checkout)
			r.Post("/portal", h.Portal)
			r.Post("/cancel", h.Cancel)
		})
	})
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	url, err := h.service.Checkout(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		core.WriteError(w, err, "user")
		return
	}

	core.OK(w, RedirectResponse{URL: url})
}

func (h *Handler) Portal(w http.ResponseWriter, r *http.Request) {
	url, err := h.service.Portal(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		core.WriteError(w, err, "user")
		return
	}

	core.OK(w, RedirectResponse{URL: url})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Cancel(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		core.WriteError(w, err, "subscription")
		return
	}

	core.OK(w, result)
}

func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		core.BadRequest(w, "request body too large")
		return
	}

	if err := h.service.HandleWebhook(
		r.Context(),
		payload,
		r.Header.Get("Stripe-Signature"),
	); err != nil {
		core.WriteError(w, err, "event")
		return
	}

	core.OK(w, map[string]bool{"received": true})
}
