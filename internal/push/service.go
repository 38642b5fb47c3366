// AngelaMos | 2026
// service.go

package push

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/bbigmic/dziennik-pracy/internal/core"
)

const maxUserAgent = 500

type Service struct {
	repo      Repository
	publicKey string
}

func NewService(repo Repository, publicKey string) *Service {
	return &Service{
		repo:      repo,
		publicKey: publicKey,
	}
}

func (s *Service) Subscribe(
	ctx context.Context,
	userID string,
	req SubscribeRequest,
	userAgent string,
) (*Subscription, error) {
	sub := &Subscription{
		ID:        uuid.New().String(),
		UserID:    userID,
		Endpoint:  strings.TrimSpace(req.Endpoint),
		P256dh:    req.Keys.P256dh,
		Auth:      req.Keys.Auth,
		UserAgent: core.Truncate(userAgent, maxUserAgent),
	}

	if err := s.repo.Upsert(ctx, sub); err != nil {
		return nil, err
	}

	return sub, nil
}

func (s *Service) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	return s.repo.DeleteByEndpoint(ctx, userID, strings.TrimSpace(endpoint))
}

func (s *Service) Devices(ctx context.Context, userID string) ([]Subscription, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) PublicKey() string {
	return s.publicKey
}
