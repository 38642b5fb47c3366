// AngelaMos | 2026
// handler.go

package notify

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/middleware"
)

// CronHeader is set by the hosting platform's scheduler on its own calls.
const CronHeader = "X-Vercel-Cron"

type Runner interface {
	Run(ctx context.Context, now time.Time) (Result, error)
}

type Handler struct {
	runner          Runner
	cronSecret      string
	trustCronHeader bool
	now             func() time.Time
}

// NewHandler builds the trigger endpoint. trustCronHeader should only be set
// when the platform strips CronHeader from outside traffic.
func NewHandler(runner Runner, cronSecret string, trustCronHeader bool) *Handler {
	return &Handler{
		runner:          runner,
		cronSecret:      cronSecret,
		trustCronHeader: trustCronHeader,
		now:             time.Now,
	}
}

// RegisterRoutes expects to be mounted under /push. optionalAuth lets an
// admin session trigger a run by hand.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	optionalAuth func(http.Handler) http.Handler,
) {
	r.With(optionalAuth).Get("/notify", h.Notify)
	r.With(optionalAuth).Post("/notify", h.Notify)
}

func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		slog.Warn("rejected notify trigger",
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)
		core.Unauthorized(w, "")
		return
	}

	result, err := h.runner.Run(r.Context(), h.now())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.JSON(w, http.StatusOK, result)
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.trustCronHeader && r.Header.Get(CronHeader) == "1" {
		return true
	}

	if h.cronSecret != "" {
		token := middleware.ExtractToken(r)
		if token != "" &&
			subtle.ConstantTimeCompare([]byte(token), []byte(h.cronSecret)) == 1 {
			return true
		}
	}

	return middleware.IsAdmin(r.Context())
}
