// AngelaMos | 2026
// dto.go

package user

import (
	"time"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// UpdateUserRequest is a partial update; nil fields are left alone.
type UpdateUserRequest struct {
	Name              *string `json:"name,omitempty"               validate:"omitempty,min=1,max=100"`
	MarketingAccepted *bool   `json:"marketing_accepted,omitempty"`
}

type UpdateUserRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type UserResponse struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Name               string     `json:"name"`
	Role               string     `json:"role"`
	MarketingAccepted  bool       `json:"marketing_accepted"`
	ConsentsAcceptedAt *time.Time `json:"consents_accepted_at"`
	TrialEndsAt        *time.Time `json:"trial_ends_at"`
	SubscriptionEndsAt *time.Time `json:"subscription_ends_at"`
	HasBillingAccount  bool       `json:"has_billing_account"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type ListUsersParams struct {
	Page     int
	PageSize int
	Search   string
	Role     string
}

func (p *ListUsersParams) Normalize() {
	p.Page = max(p.Page, 1)
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	p.PageSize = min(p.PageSize, maxPageSize)
}

func (p *ListUsersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name,
		Role:               u.Role,
		MarketingAccepted:  u.MarketingAccepted,
		ConsentsAcceptedAt: u.ConsentsAcceptedAt,
		TrialEndsAt:        u.TrialEndsAt,
		SubscriptionEndsAt: u.StripeCurrentPeriodEnd,
		HasBillingAccount:  u.StripeCustomerID != nil,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func ToUserResponseList(users []User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i := range users {
		out[i] = ToUserResponse(&users[i])
	}
	return out
}
