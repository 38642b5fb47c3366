// AngelaMos | 2026
// resolver.go

package access

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/metrics"
	"github.com/bbigmic/dziennik-pracy/internal/user"
)

type Status struct {
	IsActive           bool       `json:"isActive"`
	IsTrialing         bool       `json:"isTrialing"`
	TrialEndsAt        *time.Time `json:"trialEndsAt"`
	SubscriptionEndsAt *time.Time `json:"subscriptionEndsAt"`
}

type UserStore interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	SetSubscriptionIfExpired(
		ctx context.Context,
		id string,
		sub user.Subscription,
		now time.Time,
	) (bool, error)
}

type Resolver struct {
	users              UserStore
	activationCode     string
	activationDuration time.Duration
}

func NewResolver(
	users UserStore,
	activationCode string,
	activationDuration time.Duration,
) *Resolver {
	return &Resolver{
		users:              users,
		activationCode:     strings.TrimSpace(activationCode),
		activationDuration: activationDuration,
	}
}

// Evaluate derives the access state of u at now. Cancellation never shortens
// access: a subscription stays usable until its stored period end.
func Evaluate(u *user.User, now time.Time) Status {
	if u == nil {
		return Status{}
	}

	isTrialing := u.TrialEndsAt != nil && now.Before(*u.TrialEndsAt)
	hasSubscription := u.StripeCurrentPeriodEnd != nil &&
		now.Before(*u.StripeCurrentPeriodEnd)

	return Status{
		IsActive:           isTrialing || hasSubscription,
		IsTrialing:         isTrialing,
		TrialEndsAt:        u.TrialEndsAt,
		SubscriptionEndsAt: u.StripeCurrentPeriodEnd,
	}
}

// Resolve never fails for a missing user; it reports a fully inactive state
// instead so callers cannot mistake absence for access.
func (r *Resolver) Resolve(
	ctx context.Context,
	userID string,
	now time.Time,
) (Status, error) {
	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return Status{}, nil
		}
		return Status{}, fmt.Errorf("resolve access: %w", err)
	}

	return Evaluate(u, now), nil
}

// Require is the gate in front of every create operation.
func (r *Resolver) Require(
	ctx context.Context,
	userID string,
	now time.Time,
) error {
	status, err := r.Resolve(ctx, userID, now)
	if err != nil {
		return err
	}

	if !status.IsActive {
		metrics.AccessDenied.Inc()
		return fmt.Errorf("require access: %w", core.ErrAccessDenied)
	}

	return nil
}

func (r *Resolver) RedeemActivationCode(
	ctx context.Context,
	userID, code string,
	now time.Time,
) (Status, error) {
	if !r.codeMatches(code) {
		return Status{}, core.ValidationError("invalid activation code")
	}

	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return Status{}, fmt.Errorf("redeem activation code: %w", err)
	}

	if hasActiveSubscription(u, now) {
		return Status{}, activeSubscriptionError()
	}

	periodEnd := now.Add(r.activationDuration)
	priceID := user.PriceActivationCode

	applied, err := r.users.SetSubscriptionIfExpired(ctx, userID, user.Subscription{
		SubscriptionID: u.StripeSubscriptionID,
		PriceID:        &priceID,
		PeriodEnd:      &periodEnd,
	}, now)
	if err != nil {
		return Status{}, fmt.Errorf("redeem activation code: %w", err)
	}
	if !applied {
		return Status{}, activeSubscriptionError()
	}

	u.StripePriceID = &priceID
	u.StripeCurrentPeriodEnd = &periodEnd

	return Evaluate(u, now), nil
}

func (r *Resolver) codeMatches(code string) bool {
	if r.activationCode == "" {
		return false
	}

	given := strings.ToUpper(strings.TrimSpace(code))
	want := strings.ToUpper(r.activationCode)

	return subtle.ConstantTimeCompare([]byte(given), []byte(want)) == 1
}

func hasActiveSubscription(u *user.User, now time.Time) bool {
	return u.StripeCurrentPeriodEnd != nil && now.Before(*u.StripeCurrentPeriodEnd)
}

func activeSubscriptionError() error {
	return core.NewAppError(
		core.ErrAccessDenied,
		"you already have an active subscription",
		http.StatusForbidden,
		"ACCESS_DENIED",
	)
}
