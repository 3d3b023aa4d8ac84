package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"settlement-service/config"
	"settlement-service/internal/gateway"
	"settlement-service/internal/models"
)

type checkoutEnv struct {
	store     *fakeStore
	publisher *fakePublisher
	checkout  *CheckoutService
	gateways  *GatewayService
}

func newCheckoutEnv(t *testing.T) *checkoutEnv {
	t.Helper()

	store := newFakeStore()
	store.services[1] = &models.Service{
		ID: 1, Name: "CA Consultation", Category: models.CategoryCA,
		BasePrice: 100000, Currency: "INR", Active: true,
	}
	store.tiers[10] = &models.ServiceTier{
		ID: 10, ServiceID: 1, Name: "Premium", Price: 250000, Active: true,
	}
	store.tiers[99] = &models.ServiceTier{
		ID: 99, ServiceID: 2, Name: "Other Service Tier", Price: 50000, Active: true,
	}
	store.affiliates["partner-1"] = &models.Affiliate{
		ID: "partner-1", Name: "Partner One", Status: models.AffiliateStatusActive,
	}
	store.gatewayCfgs = append(store.gatewayCfgs, &models.GatewayConfig{
		ID: 1, Gateway: "mock", WebhookSecret: "test-secret",
		IsDefault: true, Active: true, CreatedAt: time.Now(),
	})

	registry := gateway.NewRegistry()
	registry.Register("mock", gateway.NewMock)

	gateways := NewGatewayService(store, &fakeCache{}, registry, config.GatewayConfig{})
	affiliates := NewAffiliateService(store)
	publisher := &fakePublisher{}

	return &checkoutEnv{
		store:     store,
		publisher: publisher,
		checkout:  NewCheckoutService(store, affiliates, gateways),
		gateways:  gateways,
	}
}

func validCheckout() *CheckoutRequest {
	return &CheckoutRequest{
		ServiceID: 1,
		Customer: CustomerInfo{
			FullName:     "Asha Rao",
			Email:        "asha@example.com",
			Phone:        "+919876543210",
			Requirements: "Annual tax filing for FY25",
		},
	}
}

var referenceCodePattern = regexp.MustCompile(`^SR-[0-9A-Z]+-[0-9A-Z]{6}$`)

func TestCheckoutCreatesRequestAndIntent(t *testing.T) {
	env := newCheckoutEnv(t)

	resp, err := env.checkout.Create(context.Background(), validCheckout())
	require.NoError(t, err)

	assert.Regexp(t, referenceCodePattern, resp.ReferenceNumber)
	assert.NotEmpty(t, resp.PaymentIntent.ClientSecret)
	assert.Equal(t, int64(100000), resp.PaymentIntent.Amount)
	assert.Equal(t, "INR", resp.PaymentIntent.Currency)
	assert.Equal(t, "mock", resp.PaymentIntent.Gateway)

	req, err := env.store.GetServiceRequestByID(context.Background(), resp.RequestID)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, models.PaymentStatusPending, req.PaymentStatus)
	assert.Equal(t, models.StatusPendingContact, req.Status)
	assert.Equal(t, models.SentinelAffiliateID, *req.AffiliateID)
	assert.Nil(t, req.AffiliateCode)

	history, err := env.store.GetStatusHistory(context.Background(), req.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusPendingContact, history[0].ToStatus)
	assert.Nil(t, history[0].FromStatus)
}

func TestCheckoutUsesTierPrice(t *testing.T) {
	env := newCheckoutEnv(t)

	req := validCheckout()
	tierID := int64(10)
	req.ServiceTierID = &tierID

	resp, err := env.checkout.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(250000), resp.PaymentIntent.Amount)
}

func TestCheckoutRejectsTierFromAnotherService(t *testing.T) {
	env := newCheckoutEnv(t)

	req := validCheckout()
	tierID := int64(99)
	req.ServiceTierID = &tierID

	_, err := env.checkout.Create(context.Background(), req)
	require.Error(t, err)
	assert.Empty(t, env.store.requests, "no request may be created for an invalid tier")
}

func TestCheckoutRecordsAffiliateAttribution(t *testing.T) {
	env := newCheckoutEnv(t)

	req := validCheckout()
	req.AffiliateCode = "partner-1"

	resp, err := env.checkout.Create(context.Background(), req)
	require.NoError(t, err)

	stored, err := env.store.GetServiceRequestByID(context.Background(), resp.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "partner-1", *stored.AffiliateID)
	assert.Equal(t, "partner-1", *stored.AffiliateCode)
}

func TestCheckoutUnknownAffiliateFallsBackToSentinel(t *testing.T) {
	env := newCheckoutEnv(t)

	req := validCheckout()
	req.AffiliateCode = "nobody"

	resp, err := env.checkout.Create(context.Background(), req)
	require.NoError(t, err, "bad attribution must never block a purchase")

	stored, err := env.store.GetServiceRequestByID(context.Background(), resp.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.SentinelAffiliateID, *stored.AffiliateID)
	assert.Equal(t, "nobody", *stored.AffiliateCode)
}

func TestCheckoutValidation(t *testing.T) {
	env := newCheckoutEnv(t)

	tests := []struct {
		name   string
		mutate func(*CheckoutRequest)
	}{
		{"missing name", func(r *CheckoutRequest) { r.Customer.FullName = " " }},
		{"bad email", func(r *CheckoutRequest) { r.Customer.Email = "not-an-email" }},
		{"missing phone", func(r *CheckoutRequest) { r.Customer.Phone = "" }},
		{"missing requirements", func(r *CheckoutRequest) { r.Customer.Requirements = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCheckout()
			tt.mutate(req)
			_, err := env.checkout.Create(context.Background(), req)
			require.Error(t, err)
		})
	}
	assert.Empty(t, env.store.requests)
}

func TestCheckoutUnknownService(t *testing.T) {
	env := newCheckoutEnv(t)

	req := validCheckout()
	req.ServiceID = 404

	_, err := env.checkout.Create(context.Background(), req)
	require.Error(t, err)
}

func TestGenerateReferenceCodeShape(t *testing.T) {
	now := time.Now()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code := generateReferenceCode(now)
		assert.Regexp(t, referenceCodePattern, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1, "random suffix must vary")
}
