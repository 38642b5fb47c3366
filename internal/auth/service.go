// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/middleware"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenReuse         = errors.New("token reuse detected")
	ErrEmailExists        = errors.New("email already exists")
)

// UserInfo is the slice of an account the auth flows need. The user package
// owns the full record.
type UserInfo struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	TokenVersion int
	TrialEndsAt  *time.Time
	CreatedAt    time.Time
}

type NewUserParams struct {
	Email             string
	PasswordHash      string
	Name              string
	TermsAccepted     bool
	MarketingAccepted bool
}

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(ctx context.Context, params NewUserParams) (*UserInfo, error)
	IncrementTokenVersion(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// Welcomer is notified after a successful registration. Failures are logged
// and never block the signup.
type Welcomer interface {
	SendWelcome(ctx context.Context, email, name string) error
}

// ClientMeta describes where a sign-in came from. It is stored on the
// session for the device list.
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

type Service struct {
	sessions Repository
	signer   *Signer
	users    UserProvider
	redis    *redis.Client
	welcomer Welcomer
	logger   *slog.Logger
	now      func() time.Time
}

type ServiceOption func(*Service)

func WithWelcomer(w Welcomer) ServiceOption {
	return func(s *Service) { s.welcomer = w }
}

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

func NewService(
	sessions Repository,
	signer *Signer,
	users UserProvider,
	redisClient *redis.Client,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		sessions: sessions,
		signer:   signer,
		users:    users,
		redis:    redisClient,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	meta ClientMeta,
) (*AuthResponse, error) {
	hash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	user, err := s.users.Create(ctx, NewUserParams{
		Email:             req.Email,
		PasswordHash:      hash,
		Name:              req.Name,
		TermsAccepted:     req.TermsAccepted,
		MarketingAccepted: req.MarketingAccepted,
	})
	switch {
	case errors.Is(err, core.ErrDuplicateKey):
		return nil, ErrEmailExists
	case err != nil:
		return nil, fmt.Errorf("register: %w", err)
	}

	if s.welcomer != nil {
		if err := s.welcomer.SendWelcome(ctx, user.Email, user.Name); err != nil {
			s.logger.Warn("welcome email failed", "user_id", user.ID, "error", err)
		}
	}

	return s.startSession(ctx, user, meta)
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	meta ClientMeta,
) (*AuthResponse, error) {
	var stored *string

	user, err := s.users.GetByEmail(ctx, req.Email)
	switch {
	case err == nil:
		stored = &user.PasswordHash
	case !errors.Is(err, core.ErrNotFound):
		return nil, fmt.Errorf("login: %w", err)
	}

	ok, rehash, err := core.VerifyPasswordTimingSafe(req.Password, stored)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if rehash != "" {
		if err := s.users.UpdatePassword(ctx, user.ID, rehash); err != nil {
			s.logger.Warn("password rehash failed", "user_id", user.ID, "error", err)
		}
	}

	return s.startSession(ctx, user, meta)
}

// ChangePassword replaces the password and signs the user out everywhere,
// including the session that made the change.
func (s *Service) ChangePassword(
	ctx context.Context,
	userID string,
	req ChangePasswordRequest,
) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	ok, _, err := core.VerifyPassword(req.CurrentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	hash, err := core.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	return s.LogoutAll(ctx, userID)
}

func (s *Service) CurrentUser(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

func (s *Service) startSession(
	ctx context.Context,
	user *UserInfo,
	meta ClientMeta,
) (*AuthResponse, error) {
	session, refresh, err := s.newSession(user.ID, uuid.NewString(), meta)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Insert(ctx, session); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	return s.authResponse(user, session.ID, refresh)
}

func (s *Service) newSession(userID, familyID string, meta ClientMeta) (*Session, refreshToken, error) {
	refresh, err := s.signer.newRefreshToken()
	if err != nil {
		return nil, refreshToken{}, err
	}

	return &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: refresh.Hash,
		FamilyID:  familyID,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		ExpiresAt: refresh.ExpiresAt,
	}, refresh, nil
}

func (s *Service) authResponse(
	user *UserInfo,
	sessionID string,
	refresh refreshToken,
) (*AuthResponse, error) {
	access, err := s.signer.IssueAccess(user, sessionID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	ttl := s.signer.AccessTTL()

	return &AuthResponse{
		User: toUserResponse(user),
		Tokens: TokenResponse{
			AccessToken:  access,
			RefreshToken: refresh.Value,
			TokenType:    "Bearer",
			ExpiresIn:    int(ttl / time.Second),
			ExpiresAt:    s.now().Add(ttl),
		},
	}, nil
}

var _ middleware.TokenVerifier = (*Service)(nil)
