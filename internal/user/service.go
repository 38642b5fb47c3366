// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bbigmic/dziennik-pracy/internal/auth"
	"github.com/bbigmic/dziennik-pracy/internal/core"
)

// Service owns account records. It is the auth package's UserProvider and
// backs the profile and admin endpoints.
type Service struct {
	repo          Repository
	trialDuration time.Duration
	now           func() time.Time
}

func NewService(repo Repository, trialDuration time.Duration) *Service {
	return &Service{
		repo:          repo,
		trialDuration: trialDuration,
		now:           time.Now,
	}
}

// Create registers a new account. The trial window starts here and is never
// moved afterwards.
func (s *Service) Create(ctx context.Context, p auth.NewUserParams) (*auth.UserInfo, error) {
	now := s.now().UTC()
	trialEnds := now.Add(s.trialDuration)

	u := &User{
		ID:                 uuid.NewString(),
		Email:              normalizeEmail(p.Email),
		PasswordHash:       p.PasswordHash,
		Name:               strings.TrimSpace(p.Name),
		Role:               RoleUser,
		TermsAccepted:      p.TermsAccepted,
		MarketingAccepted:  p.MarketingAccepted,
		ConsentsAcceptedAt: &now,
		TrialEndsAt:        &trialEnds,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u.info(), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*auth.UserInfo, error) {
	return infoOf(s.repo.GetByID(ctx, id))
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*auth.UserInfo, error) {
	return infoOf(s.repo.GetByEmail(ctx, normalizeEmail(email)))
}

func (s *Service) IncrementTokenVersion(ctx context.Context, userID string) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) Profile(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("profile: %w", core.ErrUnauthorized)
	}
	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, req UpdateUserRequest) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("update profile: %w", core.ErrUnauthorized)
	}
	return s.Patch(ctx, userID, req)
}

// CloseAccount soft-deletes the caller. Sessions die with the next refresh
// because the account no longer resolves.
func (s *Service) CloseAccount(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("close account: %w", core.ErrUnauthorized)
	}
	return s.repo.SoftDelete(ctx, userID)
}

// Patch applies the non-nil fields of req. Changing the marketing choice
// re-stamps the consent time.
func (s *Service) Patch(ctx context.Context, id string, req UpdateUserRequest) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.MarketingAccepted != nil && *req.MarketingAccepted != u.MarketingAccepted {
		now := s.now().UTC()
		u.MarketingAccepted = *req.MarketingAccepted
		u.ConsentsAcceptedAt = &now
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, params ListUsersParams) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) SetRole(ctx context.Context, id, role string) (*User, error) {
	if role != RoleUser && role != RoleAdmin {
		return nil, fmt.Errorf("set role %q: %w", role, core.ErrInvalidInput)
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	u.Role = role
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Remove deletes targetID on behalf of requesterID. Admins may remove
// regular accounts, never other admins.
func (s *Service) Remove(ctx context.Context, requesterID, targetID string) error {
	if err := s.canRemove(ctx, requesterID, targetID); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, targetID)
}

func (s *Service) canRemove(ctx context.Context, requesterID, targetID string) error {
	if requesterID == targetID {
		return nil
	}

	requester, err := s.repo.GetByID(ctx, requesterID)
	if err != nil {
		return err
	}
	if !requester.IsAdmin() {
		return fmt.Errorf("remove user: %w", core.ErrForbidden)
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target.IsAdmin() {
		return fmt.Errorf("remove admin: %w", core.ErrForbidden)
	}
	return nil
}

func (s *Service) CountActive(ctx context.Context, now time.Time) (ActiveCounts, error) {
	return s.repo.CountActive(ctx, now)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func infoOf(u *User, err error) (*auth.UserInfo, error) {
	if err != nil {
		return nil, err
	}
	return u.info(), nil
}

func (u *User) info() *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		TokenVersion: u.TokenVersion,
		TrialEndsAt:  u.TrialEndsAt,
		CreatedAt:    u.CreatedAt,
	}
}

var _ auth.UserProvider = (*Service)(nil)
