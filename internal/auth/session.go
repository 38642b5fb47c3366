// AngelaMos | 2026
// session.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/middleware"
)

// Refresh trades a refresh token for a new pair. Presenting a token that was
// already rotated means it leaked, so the whole family is revoked.
func (s *Service) Refresh(
	ctx context.Context,
	raw string,
	meta ClientMeta,
) (*AuthResponse, error) {
	current, err := s.sessions.ByTokenHash(ctx, core.HashToken(raw))
	switch {
	case errors.Is(err, core.ErrNotFound):
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
	case err != nil:
		return nil, fmt.Errorf("refresh: %w", err)
	}

	switch {
	case current.Revoked():
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
	case current.Rotated():
		return nil, s.reuseDetected(ctx, current)
	case current.Expired(s.now()):
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}

	user, err := s.users.GetByID(ctx, current.UserID)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	next, refresh, err := s.newSession(user.ID, current.FamilyID, meta)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Rotate(ctx, current.ID, next); err != nil {
		if errors.Is(err, errAlreadyRotated) {
			return nil, s.reuseDetected(ctx, current)
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}

	return s.authResponse(user, next.ID, refresh)
}

func (s *Service) reuseDetected(ctx context.Context, session *Session) error {
	s.logger.Warn("refresh token reuse, revoking session family",
		"user_id", session.UserID,
		"family_id", session.FamilyID,
	)
	if err := s.sessions.RevokeFamily(ctx, session.FamilyID); err != nil {
		s.logger.Error("revoke session family failed", "error", err)
	}
	return ErrTokenReuse
}

// Logout ends the session the access token was issued for and blacklists
// the token itself until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, claims *middleware.AccessTokenClaims) error {
	if claims == nil {
		return fmt.Errorf("logout: %w", core.ErrUnauthorized)
	}

	if err := s.blacklist(ctx, claims.JTI, claims.ExpiresAt); err != nil {
		s.logger.Warn("blacklist access token failed", "error", err)
	}

	if claims.SessionID == "" {
		return nil
	}

	err := s.RevokeSession(ctx, claims.UserID, claims.SessionID)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	return err
}

func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.sessions.RevokeUser(ctx, userID); err != nil {
		return fmt.Errorf("logout all: %w", err)
	}

	if err := s.users.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("logout all: %w", err)
	}

	return nil
}

func (s *Service) Sessions(
	ctx context.Context,
	userID, currentID string,
) ([]SessionResponse, error) {
	active, err := s.sessions.ListActive(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}

	out := make([]SessionResponse, 0, len(active))
	for _, sess := range active {
		out = append(out, SessionResponse{
			ID:        sess.ID,
			Device:    sess.Device(),
			IPAddress: sess.IPAddress,
			Current:   sess.ID == currentID,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
		})
	}
	return out, nil
}

// RevokeSession signs one device out. A session owned by someone else is
// reported as not found.
func (s *Service) RevokeSession(ctx context.Context, userID, sessionID string) error {
	sess, err := s.sessions.ByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.UserID != userID {
		return fmt.Errorf("revoke session: %w", core.ErrNotFound)
	}

	return s.sessions.Revoke(ctx, sessionID)
}

// VerifyAccessToken checks the signature and then rejects tokens that were
// blacklisted on logout or minted before the last logout-all.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.signer.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	if claims.JTI != "" {
		revoked, err := s.blacklisted(ctx, claims.JTI)
		switch {
		case err != nil:
			s.logger.Warn("token blacklist unavailable", "error", err)
		case revoked:
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
		}
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	case err != nil:
		return nil, fmt.Errorf("verify token: %w", err)
	case claims.TokenVersion < user.TokenVersion:
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
	}

	return claims, nil
}

func (s *Service) blacklist(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if jti == "" || ttl <= 0 {
		return nil
	}
	return s.redis.Set(ctx, core.RedisKey("blacklist", jti), "1", ttl).Err()
}

func (s *Service) blacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := s.redis.Exists(ctx, core.RedisKey("blacklist", jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
