// AngelaMos | 2026
// stripe.go

package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/bbigmic/dziennik-pracy/internal/config"
	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/metrics"
)

const metadataUserID = "userId"

type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

func NewStripeProvider(cfg config.BillingConfig) *StripeProvider {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	return &StripeProvider{
		api:           client.New(cfg.StripeSecretKey, stripe.NewBackends(httpClient)),
		webhookSecret: cfg.StripeWebhookSecret,
	}
}

func (p *StripeProvider) CreateCustomer(
	ctx context.Context,
	email, name, userID string,
) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata(metadataUserID, userID)

	start := time.Now()
	customer, err := p.api.Customers.New(params)
	metrics.RecordUpstreamCall("stripe", "create_customer", err, time.Since(start))
	if err != nil {
		return "", classify("create customer", err)
	}

	return customer.ID, nil
}

func (p *StripeProvider) GetCustomer(ctx context.Context, customerID string) error {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	start := time.Now()
	customer, err := p.api.Customers.Get(customerID, params)
	metrics.RecordUpstreamCall("stripe", "get_customer", err, time.Since(start))
	if err != nil {
		return classify("get customer", err)
	}

	if customer.Deleted {
		return fmt.Errorf("get customer: %w", ErrResourceMissing)
	}

	return nil
}

func (p *StripeProvider) CreateCheckoutSession(
	ctx context.Context,
	in CheckoutParams,
) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(in.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(in.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		ClientReferenceID: stripe.String(in.UserID),
	}
	params.Context = ctx
	params.AddMetadata(metadataUserID, in.UserID)

	start := time.Now()
	session, err := p.api.CheckoutSessions.New(params)
	metrics.RecordUpstreamCall("stripe", "create_checkout_session", err, time.Since(start))
	if err != nil {
		return "", classify("create checkout session", err)
	}

	return session.URL, nil
}

func (p *StripeProvider) CreatePortalSession(
	ctx context.Context,
	customerID, returnURL string,
) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	start := time.Now()
	session, err := p.api.BillingPortalSessions.New(params)
	metrics.RecordUpstreamCall("stripe", "create_portal_session", err, time.Since(start))
	if err != nil {
		return "", classify("create portal session", err)
	}

	return session.URL, nil
}

func (p *StripeProvider) GetSubscription(
	ctx context.Context,
	subscriptionID string,
) (*SubscriptionInfo, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	start := time.Now()
	sub, err := p.api.Subscriptions.Get(subscriptionID, params)
	metrics.RecordUpstreamCall("stripe", "get_subscription", err, time.Since(start))
	if err != nil {
		return nil, classify("get subscription", err)
	}

	return subscriptionInfo(sub), nil
}

func (p *StripeProvider) CancelAtPeriodEnd(
	ctx context.Context,
	subscriptionID string,
) (*SubscriptionInfo, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx

	start := time.Now()
	sub, err := p.api.Subscriptions.Update(subscriptionID, params)
	metrics.RecordUpstreamCall("stripe", "cancel_subscription", err, time.Since(start))
	if err != nil {
		return nil, classify("cancel subscription", err)
	}

	return subscriptionInfo(sub), nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts the ids the
// service needs. Event types it does not act on come back with only ID and
// Type set.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	out := &Event{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		if session.Customer != nil {
			out.CustomerID = session.Customer.ID
		}
		if session.Subscription != nil {
			out.SubscriptionID = session.Subscription.ID
		}
		out.UserID = session.Metadata[metadataUserID]
		if out.UserID == "" {
			out.UserID = session.ClientReferenceID
		}

	case EventInvoicePaid:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		if invoice.Customer != nil {
			out.CustomerID = invoice.Customer.ID
		}
		if invoice.Subscription != nil {
			out.SubscriptionID = invoice.Subscription.ID
		}

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		out.SubscriptionID = sub.ID
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
	}

	return out, nil
}

func subscriptionInfo(sub *stripe.Subscription) *SubscriptionInfo {
	info := &SubscriptionInfo{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CurrentPeriodEnd:  time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}

	if sub.Customer != nil {
		info.CustomerID = sub.Customer.ID
	}

	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		info.PriceID = sub.Items.Data[0].Price.ID
	}

	return info
}

func classify(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
		return fmt.Errorf("%s: %w", op, ErrResourceMissing)
	}

	return fmt.Errorf("%s: %w: %w", op, core.ErrUpstream, err)
}
