// AngelaMos | 2026
// service_test.go

package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/middleware"
	"github.com/bbigmic/dziennik-pracy/internal/user"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) CreateCustomer(ctx context.Context, email, name, userID string) (string, error) {
	args := m.Called(ctx, email, name, userID)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) GetCustomer(ctx context.Context, customerID string) error {
	return m.Called(ctx, customerID).Error(0)
}

func (m *MockProvider) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	args := m.Called(ctx, customerID, returnURL)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionInfo, error) {
	args := m.Called(ctx, subscriptionID)
	info, _ := args.Get(0).(*SubscriptionInfo)
	return info, args.Error(1)
}

func (m *MockProvider) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*SubscriptionInfo, error) {
	args := m.Called(ctx, subscriptionID)
	info, _ := args.Get(0).(*SubscriptionInfo)
	return info, args.Error(1)
}

func (m *MockProvider) ParseWebhook(payload []byte, signature string) (*Event, error) {
	args := m.Called(payload, signature)
	event, _ := args.Get(0).(*Event)
	return event, args.Error(1)
}

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetByID(ctx context.Context, id string) (*user.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

func (m *MockUserStore) GetByStripeCustomerID(ctx context.Context, customerID string) (*user.User, error) {
	args := m.Called(ctx, customerID)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

func (m *MockUserStore) SetStripeCustomerID(ctx context.Context, id string, customerID *string) error {
	return m.Called(ctx, id, customerID).Error(0)
}

func (m *MockUserStore) SetSubscription(ctx context.Context, id string, sub user.Subscription) error {
	return m.Called(ctx, id, sub).Error(0)
}

func strPtr(s string) *string { return &s }

var periodEnd = time.Date(2025, 2, 17, 12, 0, 0, 0, time.UTC)

func newTestService(provider Provider, users UserStore) *Service {
	return NewService(provider, users, Options{
		PriceID:     "price_monthly",
		PublicURL:   "https://app.example.com/",
		SuccessPath: "/?success=true",
		CancelPath:  "/?canceled=true",
	})
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, core.ErrNotFound)
}

func TestCheckout(t *testing.T) {
	t.Run("reuses a live customer", func(t *testing.T) {
		provider := new(MockProvider)
		users := new(MockUserStore)

		users.On("GetByID", mock.Anything, "u1").
			Return(&user.User{ID: "u1", Email: "a@b.co", StripeCustomerID: strPtr("cus_live")}, nil)
		provider.On("GetCustomer", mock.Anything, "cus_live").Return(nil)
		provider.On("CreateCheckoutSession", mock.Anything, CheckoutParams{
			CustomerID: "cus_live",
			PriceID:    "price_monthly",
			UserID:     "u1",
			SuccessURL: "https://app.example.com/?success=true",
			CancelURL:  "https://app.example.com/?canceled=true",
		}).Return("https://checkout.stripe.com/s/1", nil)

		url, err := newTestService(provider, users).Checkout(context.Background(), "u1")

		require.NoError(t, err)
		assert.Equal(t, "https://checkout.stripe.com/s/1", url)
		provider.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("recreates a customer from the other environment", func(t *testing.T) {
		provider := new(MockProvider)
		users := new(MockUserStore)

		users.On("GetByID", mock.Anything, "u1").
			Return(&user.User{ID: "u1", Email: "a@b.co", Name: "Ala", StripeCustomerID: strPtr("cus_test")}, nil)
		provider.On("GetCustomer", mock.Anything, "cus_test").
			Return(fmt.Errorf("get customer: %w", ErrResourceMissing))
		users.On("SetStripeCustomerID", mock.Anything, "u1", (*string)(nil)).Return(nil).Once()
		provider.On("CreateCustomer", mock.Anything, "a@b.co", "Ala", "u1").Return("cus_new", nil)
		users.On("SetStripeCustomerID", mock.Anything, "u1", strPtr("cus_new")).Return(nil).Once()
		provider.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(p CheckoutParams) bool {
			return p.CustomerID == "cus_new"
		})).Return("https://checkout.stripe.com/s/2", nil)

		url, err := newTestService(provider, users).Checkout(context.Background(), "u1")

		require.NoError(t, err)
		assert.Equal(t, "https://checkout.stripe.com/s/2", url)
		users.AssertExpectations(t)
	})

	t.Run("provider outage is an upstream error", func(t *testing.T) {
		provider := new(MockProvider)
		users := new(MockUserStore)

		users.On("GetByID", mock.Anything, "u1").Return(&user.User{ID: "u1"}, nil)
		provider.On("CreateCustomer", mock.Anything, mock.Anything, mock.Anything, "u1").
			Return("", fmt.Errorf("create customer: %w: timeout", core.ErrUpstream))

		_, err := newTestService(provider, users).Checkout(context.Background(), "u1")

		require.ErrorIs(t, err, core.ErrUpstream)
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := NewService(nil, new(MockUserStore), Options{}).Checkout(context.Background(), "u1")

		require.ErrorIs(t, err, core.ErrNotConfigured)
	})
}

func TestPortalClearsStaleCustomer(t *testing.T) {
	provider := new(MockProvider)
	users := new(MockUserStore)

	users.On("GetByID", mock.Anything, "u1").
		Return(&user.User{ID: "u1", StripeCustomerID: strPtr("cus_test")}, nil)
	provider.On("GetCustomer", mock.Anything, "cus_test").Return(ErrResourceMissing)
	users.On("SetStripeCustomerID", mock.Anything, "u1", (*string)(nil)).Return(nil)

	_, err := newTestService(provider, users).Portal(context.Background(), "u1")

	require.ErrorIs(t, err, core.ErrNotFound)
	users.AssertExpectations(t)
	provider.AssertNotCalled(t, "CreatePortalSession", mock.Anything, mock.Anything, mock.Anything)
}

func TestPortalWithoutCustomer(t *testing.T) {
	users := new(MockUserStore)
	users.On("GetByID", mock.Anything, "u1").Return(&user.User{ID: "u1"}, nil)

	_, err := newTestService(new(MockProvider), users).Portal(context.Background(), "u1")

	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestCancelKeepsAccessUntilPeriodEnd(t *testing.T) {
	provider := new(MockProvider)
	users := new(MockUserStore)

	users.On("GetByID", mock.Anything, "u1").Return(&user.User{
		ID:                   "u1",
		StripeSubscriptionID: strPtr("sub_1"),
		StripePriceID:        strPtr("price_monthly"),
	}, nil)
	provider.On("CancelAtPeriodEnd", mock.Anything, "sub_1").Return(&SubscriptionInfo{
		ID:                "sub_1",
		PriceID:           "price_monthly",
		CurrentPeriodEnd:  periodEnd,
		CancelAtPeriodEnd: true,
	}, nil)
	users.On("SetSubscription", mock.Anything, "u1", mock.MatchedBy(func(s user.Subscription) bool {
		return s.PeriodEnd != nil && s.PeriodEnd.Equal(periodEnd) && *s.SubscriptionID == "sub_1"
	})).Return(nil)

	result, err := newTestService(provider, users).Cancel(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, periodEnd, result.SubscriptionEndsAt)
	users.AssertExpectations(t)
}

func TestCancelWithoutSubscription(t *testing.T) {
	users := new(MockUserStore)
	users.On("GetByID", mock.Anything, "u1").Return(&user.User{ID: "u1"}, nil)

	_, err := newTestService(new(MockProvider), users).Cancel(context.Background(), "u1")

	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestHandleWebhook(t *testing.T) {
	info := &SubscriptionInfo{
		ID:               "sub_1",
		CustomerID:       "cus_1",
		PriceID:          "price_monthly",
		Status:           "active",
		CurrentPeriodEnd: periodEnd,
	}

	t.Run("checkout completed stores the subscription", func(t *testing.T) {
		provider := new(MockProvider)
		users := new(MockUserStore)

		provider.On("ParseWebhook", []byte("{}"), "sig").Return(&Event{
			ID:             "evt_1",
			Type:           EventCheckoutCompleted,
			CustomerID:     "cus_1",
			SubscriptionID: "sub_1",
			UserID:         "u1",
		}, nil)
		users.On("GetByID", mock.Anything, "u1").Return(&user.User{ID: "u1"}, nil)
		provider.On("GetSubscription", mock.Anything, "sub_1").Return(info, nil)
		users.On("SetStripeCustomerID", mock.Anything, "u1", strPtr("cus_1")).Return(nil)
		users.On("SetSubscription", mock.Anything, "u1", user.Subscription{
			SubscriptionID: strPtr("sub_1"),
			PriceID:        strPtr("price_monthly"),
			PeriodEnd:      &periodEnd,
		}).Return(nil)

		err := newTestService(provider, users).HandleWebhook(context.Background(), []byte("{}"), "sig")

		require.NoError(t, err)
		users.AssertExpectations(t)
	})

	t.Run("renewal resolves the user by customer", func(t *testing.T) {
		provider := new(MockProvider)
		users := new(MockUserStore)

		provider.On("ParseWebhook", mock.Anything, mock.Anything).Return(&Event{
			ID:             "evt_2",
			Type:           EventInvoicePaid,
			CustomerID:     "cus_1",
			SubscriptionID: "sub_1",
		}, nil)
		users.On("GetByStripeCustomerID", mock.Anything, "cus_1").
			Return(&user.User{ID: "u1", StripeCustomerID: strPtr("cus_1")}, nil)
		provider.On("GetSubscription", mock.Anything, "sub_1").Return(info, nil)
		users.On("SetSubscription", mock.Anything, "u1", mock.Anything).Return(nil)

		err := newTestService(provider, users).HandleWebhook(context.Background(), nil, "sig")

		require.NoError(t, err)
		users.AssertNotCalled(t, "SetStripeCustomerID", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown customer is acknowledged", func(t *testing.T) {
		provider := new(MockProvider)
		users := new(MockUserStore)

		provider.On("ParseWebhook", mock.Anything, mock.Anything).Return(&Event{
			Type:           EventSubscriptionDeleted,
			CustomerID:     "cus_ghost",
			SubscriptionID: "sub_9",
		}, nil)
		users.On("GetByStripeCustomerID", mock.Anything, "cus_ghost").Return(nil, notFound("get user by customer"))

		err := newTestService(provider, users).HandleWebhook(context.Background(), nil, "sig")

		require.NoError(t, err)
		provider.AssertNotCalled(t, "GetSubscription", mock.Anything, mock.Anything)
	})

	t.Run("ignored event type", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("ParseWebhook", mock.Anything, mock.Anything).
			Return(&Event{Type: "customer.created"}, nil)

		err := newTestService(provider, new(MockUserStore)).HandleWebhook(context.Background(), nil, "sig")

		require.NoError(t, err)
	})

	t.Run("bad signature", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("ParseWebhook", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: no signatures found", ErrInvalidSignature))

		err := newTestService(provider, new(MockUserStore)).HandleWebhook(context.Background(), nil, "")

		appErr, ok := core.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
	})
}

type MockFlows struct {
	mock.Mock
}

func (m *MockFlows) Checkout(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockFlows) Portal(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockFlows) Cancel(ctx context.Context, userID string) (*CancelResult, error) {
	args := m.Called(ctx, userID)
	result, _ := args.Get(0).(*CancelResult)
	return result, args.Error(1)
}

func (m *MockFlows) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	return m.Called(ctx, payload, signature).Error(0)
}

func passThrough(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), middleware.UserIDKey, "u1")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func TestHandlerRoutes(t *testing.T) {
	flows := new(MockFlows)
	flows.On("Checkout", mock.Anything, "u1").Return("https://checkout.stripe.com/s/1", nil)
	flows.On("Portal", mock.Anything, "u1").Return("", core.NotFoundError("billing account"))
	flows.On("HandleWebhook", mock.Anything, []byte(`{"id":"evt_1"}`), "t=1,v1=abc").Return(nil)

	r := chi.NewRouter()
	NewHandler(flows).RegisterRoutes(r, passThrough)

	t.Run("checkout returns redirect url", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/billing/checkout", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Data RedirectResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "https://checkout.stripe.com/s/1", body.Data.URL)
	})

	t.Run("portal without account", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/billing/portal", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("webhook passes raw body and signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/billing/webhook", bytes.NewBufferString(`{"id":"evt_1"}`))
		req.Header.Set("Stripe-Signature", "t=1,v1=abc")
		rec := httptest.NewRecorder()

		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		flows.AssertExpectations(t)
	})
}
