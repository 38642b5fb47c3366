// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/middleware"
)

const maxUserAgent = 500

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
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)

			r.Get("/me", h.Me)
			r.Post("/logout", h.Logout)
			r.Post("/logout-all", h.LogoutAll)
			r.Post("/change-password", h.ChangePassword)
			r.Get("/sessions", h.Sessions)
			r.Delete("/sessions/{id}", h.RevokeSession)
		})
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.bind(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req, clientMeta(r))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	core.Created(w, resp)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.bind(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req, clientMeta(r))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.bind(w, r, &req) {
		return
	}

	resp, err := h.service.Refresh(r.Context(), req.RefreshToken, clientMeta(r))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.CurrentUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		core.WriteError(w, err, "user")
		return
	}

	core.OK(w, user)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), middleware.GetClaims(r.Context())); err != nil {
		writeAuthError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	if err := h.service.LogoutAll(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		writeAuthError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !h.bind(w, r, &req) {
		return
	}

	err := h.service.ChangePassword(r.Context(), middleware.GetUserID(r.Context()), req)
	if errors.Is(err, ErrInvalidCredentials) {
		core.Unauthorized(w, "current password is incorrect")
		return
	}
	if err != nil {
		writeAuthError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	var current string
	if claims := middleware.GetClaims(r.Context()); claims != nil {
		current = claims.SessionID
	}

	sessions, err := h.service.Sessions(r.Context(), middleware.GetUserID(r.Context()), current)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	core.OK(w, sessions)
}

func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if !core.ValidID(sessionID) {
		core.NotFound(w, "session")
		return
	}

	err := h.service.RevokeSession(
		r.Context(),
		middleware.GetUserID(r.Context()),
		sessionID,
	)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	core.NoContent(w)
}

// bind decodes and validates the body, writing a 400 and returning false
// when either step fails.
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

func clientMeta(r *http.Request) ClientMeta {
	return ClientMeta{
		UserAgent: core.Truncate(r.UserAgent(), maxUserAgent),
		IPAddress: middleware.ClientIP(r),
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		core.Unauthorized(w, "invalid email or password")
	case errors.Is(err, ErrEmailExists):
		core.JSONError(w, core.DuplicateError("email"))
	case errors.Is(err, ErrTokenReuse):
		core.JSONError(w, core.NewAppError(
			err,
			"refresh token reuse detected, sessions revoked",
			http.StatusUnauthorized,
			"TOKEN_REUSE_DETECTED",
		))
	case errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.TokenExpiredError())
	case errors.Is(err, core.ErrTokenRevoked):
		core.JSONError(w, core.TokenRevokedError())
	case errors.Is(err, core.ErrTokenInvalid):
		core.JSONError(w, core.TokenInvalidError())
	default:
		core.WriteError(w, err, "session")
	}
}
