// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

type User struct {
	ID                     string     `db:"id"`
	Email                  string     `db:"email"`
	PasswordHash           string     `db:"password_hash"`
	Name                   string     `db:"name"`
	Role                   string     `db:"role"`
	TokenVersion           int        `db:"token_version"`
	TermsAccepted          bool       `db:"terms_accepted"`
	MarketingAccepted      bool       `db:"marketing_accepted"`
	ConsentsAcceptedAt     *time.Time `db:"consents_accepted_at"`
	TrialEndsAt            *time.Time `db:"trial_ends_at"`
	StripeCustomerID       *string    `db:"stripe_customer_id"`
	StripeSubscriptionID   *string    `db:"stripe_subscription_id"`
	StripePriceID          *string    `db:"stripe_price_id"`
	StripeCurrentPeriodEnd *time.Time `db:"stripe_current_period_end"`
	CreatedAt              time.Time  `db:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at"`
	DeletedAt              *time.Time `db:"deleted_at"`
}

func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Subscription is the billing state written by checkout, webhooks,
// cancellation and activation codes.
type Subscription struct {
	SubscriptionID *string
	PriceID        *string
	PeriodEnd      *time.Time
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const PriceActivationCode = "activation_code"

const userColumns = `id, email, password_hash, name, role, token_version,
	terms_accepted, marketing_accepted, consents_accepted_at, trial_ends_at,
	stripe_customer_id, stripe_subscription_id, stripe_price_id,
	stripe_current_period_end, created_at, updated_at, deleted_at`
