// AngelaMos | 2026
// provider.go

package billing

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrResourceMissing means a stored customer or subscription id is
	// unknown to the provider, typically because it belongs to the other
	// (test or live) environment.
	ErrResourceMissing = errors.New("billing resource missing")

	ErrInvalidSignature = errors.New("invalid webhook signature")
)

const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventInvoicePaid         = "invoice.payment_succeeded"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

type CheckoutParams struct {
	CustomerID string
	PriceID    string
	UserID     string
	SuccessURL string
	CancelURL  string
}

type SubscriptionInfo struct {
	ID                string
	CustomerID        string
	PriceID           string
	Status            string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
}

// Event is the subset of a provider webhook the service acts on.
type Event struct {
	ID             string
	Type           string
	CustomerID     string
	SubscriptionID string
	UserID         string
}

type Provider interface {
	CreateCustomer(ctx context.Context, email, name, userID string) (string, error)
	GetCustomer(ctx context.Context, customerID string) error
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionInfo, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*SubscriptionInfo, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}
