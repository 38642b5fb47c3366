// AngelaMos | 2026
// dto.go

package push

import (
	"time"
)

type SubscriptionKeys struct {
	P256dh string `json:"p256dh" validate:"required,max=255"`
	Auth   string `json:"auth"   validate:"required,max=255"`
}

type SubscribeRequest struct {
	Endpoint string           `json:"endpoint" validate:"required,url,max=2048"`
	Keys     SubscriptionKeys `json:"keys"`
}

type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,max=2048"`
}

type SubscriptionResponse struct {
	ID        string    `json:"id"`
	Endpoint  string    `json:"endpoint"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

type PublicKeyResponse struct {
	PublicKey string `json:"public_key"`
}

func ToSubscriptionResponse(s *Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:        s.ID,
		Endpoint:  s.Endpoint,
		UserAgent: s.UserAgent,
		CreatedAt: s.CreatedAt,
	}
}
