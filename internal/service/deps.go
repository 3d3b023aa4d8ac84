package service

import (
	"context"
	"time"

	"settlement-service/internal/models"
)

// Store is the storage surface the services consume. *store.Store satisfies
// it; tests substitute an in-memory implementation.
type Store interface {
	GetServiceByID(ctx context.Context, id int64) (*models.Service, error)
	GetServiceTierByID(ctx context.Context, id int64) (*models.ServiceTier, error)

	CreateServiceRequest(ctx context.Context, req *models.ServiceRequest) error
	GetServiceRequestByID(ctx context.Context, id int64) (*models.ServiceRequest, error)
	GetServiceRequestByReference(ctx context.Context, referenceCode string) (*models.ServiceRequest, error)
	ConfirmPayment(ctx context.Context, id int64, transactionID string) (bool, error)
	FailPayment(ctx context.Context, id int64, transactionID string) (bool, error)
	RefundPayment(ctx context.Context, id int64, transactionID string) (bool, error)
	SetTransactionID(ctx context.Context, id int64, transactionID string) error
	UpdateRequestStatusFrom(ctx context.Context, id int64, from, to string) (bool, error)
	AssignProvider(ctx context.Context, id, providerID int64) error

	AppendStatusHistory(ctx context.Context, entry *models.StatusHistoryEntry) error
	GetStatusHistory(ctx context.Context, serviceRequestID int64) ([]models.StatusHistoryEntry, error)

	GetAffiliateByID(ctx context.Context, id string) (*models.Affiliate, error)
	CreateAffiliate(ctx context.Context, aff *models.Affiliate) error
	UpdateAffiliate(ctx context.Context, aff *models.Affiliate) error
	ListAffiliates(ctx context.Context) ([]models.Affiliate, error)
	CreateTrackingEvent(ctx context.Context, event *models.TrackingEvent) error
	GetAffiliateCommissionTotal(ctx context.Context, affiliateID string) (int64, error)

	GetActiveCommissionConfig(ctx context.Context, category string) (*models.CommissionConfig, error)
	CreateCommission(ctx context.Context, c *models.AffiliateCommission) (bool, error)
	GetCommissionByRequestID(ctx context.Context, serviceRequestID int64) (*models.AffiliateCommission, error)
	CancelCommission(ctx context.Context, id int64, note string) error

	GetActiveGatewayConfig(ctx context.Context) (*models.GatewayConfig, error)
	CreateGatewayConfig(ctx context.Context, cfg *models.GatewayConfig) error
}

// Locker is the cross-request coordination surface backed by Redis.
type Locker interface {
	AcquireWebhookLock(ctx context.Context, gateway, transactionID string, ttl time.Duration) (bool, error)
	ReleaseWebhookLock(ctx context.Context, gateway, transactionID string) error
}

// ConfigCache caches the resolved gateway configuration.
type ConfigCache interface {
	GetCachedGatewayConfig(ctx context.Context) (*models.GatewayConfig, error)
	SetCachedGatewayConfig(ctx context.Context, cfg *models.GatewayConfig, ttl time.Duration) error
	InvalidateGatewayConfig(ctx context.Context) error
}

// EventPublisher publishes settlement events. *broker.EventPublisher
// satisfies it.
type EventPublisher interface {
	PublishPaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
	PublishPaymentRefunded(ctx context.Context, event *models.PaymentRefundedEvent) error
	PublishCommissionRecorded(ctx context.Context, event *models.CommissionRecordedEvent) error
}
