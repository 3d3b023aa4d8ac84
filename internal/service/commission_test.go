package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"settlement-service/internal/models"
)

func TestCalculateCommission(t *testing.T) {
	tests := []struct {
		name   string
		cfg    models.CommissionConfig
		amount int64
		want   int64
	}{
		{"five percent", models.CommissionConfig{Type: models.CommissionTypePercentage, Value: 5}, 100000, 5000},
		{"rounds half up", models.CommissionConfig{Type: models.CommissionTypePercentage, Value: 5}, 10, 1},
		{"rounds down below half", models.CommissionConfig{Type: models.CommissionTypePercentage, Value: 3}, 10, 0},
		{"zero percent", models.CommissionConfig{Type: models.CommissionTypePercentage, Value: 0}, 100000, 0},
		{"fixed ignores amount", models.CommissionConfig{Type: models.CommissionTypeFixed, Value: 3000}, 9999999, 3000},
		{"fixed on zero amount", models.CommissionConfig{Type: models.CommissionTypeFixed, Value: 3000}, 0, 3000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateCommission(&tt.cfg, tt.amount))
		})
	}
}

func commissionFixture(t *testing.T) (*fakeStore, *fakePublisher, *CommissionService) {
	t.Helper()
	store := newFakeStore()
	publisher := &fakePublisher{}
	return store, publisher, NewCommissionService(store, publisher)
}

func paidRequest(store *fakeStore, affiliateID string) *models.ServiceRequest {
	req := &models.ServiceRequest{
		ServiceID:     1,
		Amount:        100000,
		Currency:      "INR",
		PaymentStatus: models.PaymentStatusCompleted,
		Status:        models.StatusPaymentConfirmed,
	}
	if affiliateID != "" {
		req.AffiliateID = &affiliateID
	}
	_ = store.CreateServiceRequest(context.Background(), req)
	return req
}

func TestPostForPaymentRecordsPercentageCommission(t *testing.T) {
	store, publisher, svc := commissionFixture(t)
	store.commissionConfigs[models.CategoryCA] = &models.CommissionConfig{
		ID: 1, Category: models.CategoryCA, Type: models.CommissionTypePercentage,
		Value: 5, Currency: "INR", Active: true,
	}
	req := paidRequest(store, "partner-1")

	commission, err := svc.PostForPayment(context.Background(), req, models.CategoryCA)
	require.NoError(t, err)
	require.NotNil(t, commission)
	assert.Equal(t, int64(5000), commission.Amount)
	assert.Equal(t, "partner-1", commission.AffiliateID)
	assert.Equal(t, models.CommissionStatusPending, commission.Status)
	assert.Equal(t, int64(100000), commission.SourceAmount)

	require.Len(t, publisher.recorded, 1)
	assert.Equal(t, commission.ID, publisher.recorded[0].CommissionID)
}

func TestPostForPaymentSkipsSentinel(t *testing.T) {
	store, publisher, svc := commissionFixture(t)
	store.commissionConfigs[models.CategoryDefault] = &models.CommissionConfig{
		ID: 1, Category: models.CategoryDefault, Type: models.CommissionTypeFixed,
		Value: 3000, Currency: "INR", Active: true,
	}
	req := paidRequest(store, models.SentinelAffiliateID)

	commission, err := svc.PostForPayment(context.Background(), req, models.CategoryCA)
	require.NoError(t, err)
	assert.Nil(t, commission)
	assert.Empty(t, store.commissions)
	assert.Empty(t, publisher.recorded)
}

func TestPostForPaymentFallsBackToDefaultCategory(t *testing.T) {
	store, _, svc := commissionFixture(t)
	store.commissionConfigs[models.CategoryDefault] = &models.CommissionConfig{
		ID: 1, Category: models.CategoryDefault, Type: models.CommissionTypeFixed,
		Value: 3000, Currency: "INR", Active: true,
	}
	req := paidRequest(store, "partner-1")

	commission, err := svc.PostForPayment(context.Background(), req, models.CategoryLegal)
	require.NoError(t, err)
	require.NotNil(t, commission)
	assert.Equal(t, int64(3000), commission.Amount)
}

func TestPostForPaymentSkipsWhenNoConfig(t *testing.T) {
	store, _, svc := commissionFixture(t)
	req := paidRequest(store, "partner-1")

	commission, err := svc.PostForPayment(context.Background(), req, models.CategoryOther)
	require.NoError(t, err)
	assert.Nil(t, commission)
	assert.Empty(t, store.commissions)
}

func TestPostForPaymentIsIdempotentPerRequest(t *testing.T) {
	store, publisher, svc := commissionFixture(t)
	store.commissionConfigs[models.CategoryCA] = &models.CommissionConfig{
		ID: 1, Category: models.CategoryCA, Type: models.CommissionTypePercentage,
		Value: 5, Currency: "INR", Active: true,
	}
	req := paidRequest(store, "partner-1")

	first, err := svc.PostForPayment(context.Background(), req, models.CategoryCA)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := svc.PostForPayment(context.Background(), req, models.CategoryCA)
	require.NoError(t, err)
	assert.Nil(t, second, "replay must not create a second commission")
	assert.Len(t, store.commissions, 1)
	assert.Len(t, publisher.recorded, 1)
}

func TestCancelForRefundPreservesRecord(t *testing.T) {
	store, _, svc := commissionFixture(t)
	store.commissionConfigs[models.CategoryCA] = &models.CommissionConfig{
		ID: 1, Category: models.CategoryCA, Type: models.CommissionTypePercentage,
		Value: 5, Currency: "INR", Active: true,
	}
	req := paidRequest(store, "partner-1")

	commission, err := svc.PostForPayment(context.Background(), req, models.CategoryCA)
	require.NoError(t, err)
	require.NotNil(t, commission)

	require.NoError(t, svc.CancelForRefund(context.Background(), req.ID, "Payment refunded"))

	stored, err := store.GetCommissionByRequestID(context.Background(), req.ID)
	require.NoError(t, err)
	require.NotNil(t, stored, "cancelled commission must remain on record")
	assert.Equal(t, models.CommissionStatusCancelled, stored.Status)
	assert.Equal(t, "Payment refunded", *stored.Notes)

	total, err := store.GetAffiliateCommissionTotal(context.Background(), "partner-1")
	require.NoError(t, err)
	assert.Zero(t, total, "cancelled commissions do not count toward totals")
}

func TestCancelForRefundNoCommissionIsNoop(t *testing.T) {
	store, _, svc := commissionFixture(t)
	req := paidRequest(store, "partner-1")

	require.NoError(t, svc.CancelForRefund(context.Background(), req.ID, "Payment refunded"))
}
