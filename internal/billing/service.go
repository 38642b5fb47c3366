// AngelaMos | 2026
// service.go

package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/user"
)

type UserStore interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*user.User, error)
	SetStripeCustomerID(ctx context.Context, id string, customerID *string) error
	SetSubscription(ctx context.Context, id string, sub user.Subscription) error
}

type Options struct {
	PriceID     string
	PublicURL   string
	SuccessPath string
	CancelPath  string
	Logger      *slog.Logger
}

type Service struct {
	provider   Provider
	users      UserStore
	priceID    string
	successURL string
	cancelURL  string
	returnURL  string
	logger     *slog.Logger
}

// NewService builds the billing flows. provider may be nil when billing is
// not configured; every operation then reports NOT_CONFIGURED.
func NewService(provider Provider, users UserStore, opts Options) *Service {
	base := strings.TrimRight(opts.PublicURL, "/")

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		provider:   provider,
		users:      users,
		priceID:    opts.PriceID,
		successURL: base + opts.SuccessPath,
		cancelURL:  base + opts.CancelPath,
		returnURL:  base + "/",
		logger:     logger,
	}
}

type CancelResult struct {
	Message            string    `json:"message"`
	SubscriptionEndsAt time.Time `json:"subscription_ends_at"`
}

func (s *Service) Checkout(ctx context.Context, userID string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	if s.priceID == "" {
		return "", notConfigured()
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("checkout: %w", err)
	}

	customerID, err := s.ensureCustomer(ctx, u)
	if err != nil {
		return "", err
	}

	url, err := s.provider.CreateCheckoutSession(ctx, CheckoutParams{
		CustomerID: customerID,
		PriceID:    s.priceID,
		UserID:     u.ID,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
	})
	if err != nil {
		return "", fmt.Errorf("checkout: %w", err)
	}
	if url == "" {
		return "", fmt.Errorf("checkout: %w: session has no url", core.ErrUpstream)
	}

	return url, nil
}

// ensureCustomer returns a customer id that exists in the provider's current
// environment, replacing a stale stored id with a new customer.
func (s *Service) ensureCustomer(ctx context.Context, u *user.User) (string, error) {
	if u.StripeCustomerID != nil {
		err := s.provider.GetCustomer(ctx, *u.StripeCustomerID)
		switch {
		case err == nil:
			return *u.StripeCustomerID, nil
		case errors.Is(err, ErrResourceMissing):
			s.logger.Warn("stored billing customer is unknown to provider, recreating",
				"user_id", u.ID,
				"customer_id", *u.StripeCustomerID,
			)
			if err := s.users.SetStripeCustomerID(ctx, u.ID, nil); err != nil {
				return "", fmt.Errorf("clear stale customer: %w", err)
			}
		default:
			return "", fmt.Errorf("checkout: %w", err)
		}
	}

	customerID, err := s.provider.CreateCustomer(ctx, u.Email, u.Name, u.ID)
	if err != nil {
		return "", fmt.Errorf("checkout: %w", err)
	}

	if err := s.users.SetStripeCustomerID(ctx, u.ID, &customerID); err != nil {
		return "", fmt.Errorf("store customer: %w", err)
	}

	return customerID, nil
}

func (s *Service) Portal(ctx context.Context, userID string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("portal: %w", err)
	}
	if u.StripeCustomerID == nil {
		return "", core.NotFoundError("billing account")
	}

	err = s.provider.GetCustomer(ctx, *u.StripeCustomerID)
	if errors.Is(err, ErrResourceMissing) {
		if clearErr := s.users.SetStripeCustomerID(ctx, u.ID, nil); clearErr != nil {
			return "", fmt.Errorf("clear stale customer: %w", clearErr)
		}
		return "", core.NewAppError(
			core.ErrNotFound,
			"billing account is no longer available, please subscribe again",
			http.StatusNotFound,
			"NOT_FOUND",
		)
	}
	if err != nil {
		return "", fmt.Errorf("portal: %w", err)
	}

	url, err := s.provider.CreatePortalSession(ctx, *u.StripeCustomerID, s.returnURL)
	if err != nil {
		return "", fmt.Errorf("portal: %w", err)
	}

	return url, nil
}

// Cancel flags the subscription to end with the current period. Access is
// not shortened; the stored period end is refreshed from the provider.
func (s *Service) Cancel(ctx context.Context, userID string) (*CancelResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("cancel: %w", err)
	}
	if u.StripeSubscriptionID == nil {
		return nil, core.NotFoundError("subscription")
	}

	info, err := s.provider.CancelAtPeriodEnd(ctx, *u.StripeSubscriptionID)
	if errors.Is(err, ErrResourceMissing) {
		if clearErr := s.users.SetSubscription(ctx, u.ID, user.Subscription{
			PriceID:   u.StripePriceID,
			PeriodEnd: u.StripeCurrentPeriodEnd,
		}); clearErr != nil {
			return nil, fmt.Errorf("clear stale subscription: %w", clearErr)
		}
		return nil, core.NotFoundError("subscription")
	}
	if err != nil {
		return nil, fmt.Errorf("cancel: %w", err)
	}

	periodEnd := info.CurrentPeriodEnd
	if err := s.users.SetSubscription(ctx, u.ID, user.Subscription{
		SubscriptionID: &info.ID,
		PriceID:        priceOrStored(info.PriceID, u.StripePriceID),
		PeriodEnd:      &periodEnd,
	}); err != nil {
		return nil, fmt.Errorf("cancel: %w", err)
	}

	return &CancelResult{
		Message:            "subscription will end with the current billing period",
		SubscriptionEndsAt: periodEnd,
	}, nil
}

// HandleWebhook applies a verified provider event. Events for unknown
// customers are acknowledged and dropped so the provider stops retrying.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if err := s.ready(); err != nil {
		return err
	}

	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			return core.ValidationError("invalid webhook signature")
		}
		return core.ValidationError("malformed webhook payload")
	}

	switch event.Type {
	case EventCheckoutCompleted,
		EventInvoicePaid,
		EventSubscriptionUpdated,
		EventSubscriptionDeleted:
	default:
		s.logger.Debug("ignoring billing event", "event_id", event.ID, "type", event.Type)
		return nil
	}

	if event.SubscriptionID == "" {
		return nil
	}

	u, err := s.eventUser(ctx, event)
	if errors.Is(err, core.ErrNotFound) {
		s.logger.Warn("billing event for unknown user",
			"event_id", event.ID,
			"type", event.Type,
			"customer_id", event.CustomerID,
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}

	info, err := s.provider.GetSubscription(ctx, event.SubscriptionID)
	if errors.Is(err, ErrResourceMissing) {
		s.logger.Warn("billing event for unknown subscription",
			"event_id", event.ID,
			"subscription_id", event.SubscriptionID,
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}

	if event.CustomerID != "" &&
		(u.StripeCustomerID == nil || *u.StripeCustomerID != event.CustomerID) {
		customerID := event.CustomerID
		if err := s.users.SetStripeCustomerID(ctx, u.ID, &customerID); err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
	}

	periodEnd := info.CurrentPeriodEnd
	if err := s.users.SetSubscription(ctx, u.ID, user.Subscription{
		SubscriptionID: &info.ID,
		PriceID:        priceOrStored(info.PriceID, u.StripePriceID),
		PeriodEnd:      &periodEnd,
	}); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}

	s.logger.Info("subscription updated from billing event",
		"event_id", event.ID,
		"type", event.Type,
		"user_id", u.ID,
		"status", info.Status,
		"period_end", periodEnd,
	)

	return nil
}

func (s *Service) eventUser(ctx context.Context, event *Event) (*user.User, error) {
	if event.UserID != "" {
		u, err := s.users.GetByID(ctx, event.UserID)
		if err == nil || !errors.Is(err, core.ErrNotFound) {
			return u, err
		}
	}

	if event.CustomerID == "" {
		return nil, fmt.Errorf("event user: %w", core.ErrNotFound)
	}

	return s.users.GetByStripeCustomerID(ctx, event.CustomerID)
}

func (s *Service) ready() error {
	if s.provider == nil {
		return notConfigured()
	}
	return nil
}

func notConfigured() error {
	return core.NewAppError(
		core.ErrNotConfigured,
		"billing is not configured",
		http.StatusServiceUnavailable,
		"NOT_CONFIGURED",
	)
}

func priceOrStored(priceID string, stored *string) *string {
	if priceID != "" {
		return &priceID
	}
	return stored
}
