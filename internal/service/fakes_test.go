package service

import (
	"context"
	"sync"
	"time"

	"settlement-service/internal/models"
)

// fakeStore is an in-memory Store mirroring the conditional-update semantics
// of the SQL layer.
type fakeStore struct {
	mu sync.Mutex

	services map[int64]*models.Service
	tiers    map[int64]*models.ServiceTier

	requests  map[int64]*models.ServiceRequest
	nextReqID int64
	history   []models.StatusHistoryEntry
	nextHist  int64

	affiliates map[string]*models.Affiliate
	tracking   []models.TrackingEvent

	commissionConfigs map[string]*models.CommissionConfig
	commissions       map[int64]*models.AffiliateCommission
	nextCommissionID  int64

	gatewayCfgs []*models.GatewayConfig
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		services:          map[int64]*models.Service{},
		tiers:             map[int64]*models.ServiceTier{},
		requests:          map[int64]*models.ServiceRequest{},
		affiliates:        map[string]*models.Affiliate{},
		commissionConfigs: map[string]*models.CommissionConfig{},
		commissions:       map[int64]*models.AffiliateCommission{},
	}
}

func (f *fakeStore) GetServiceByID(ctx context.Context, id int64) (*models.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.services[id], nil
}

func (f *fakeStore) GetServiceTierByID(ctx context.Context, id int64) (*models.ServiceTier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tiers[id], nil
}

func (f *fakeStore) CreateServiceRequest(ctx context.Context, req *models.ServiceRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextReqID++
	req.ID = f.nextReqID
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	clone := *req
	f.requests[req.ID] = &clone
	return nil
}

func (f *fakeStore) GetServiceRequestByID(ctx context.Context, id int64) (*models.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return nil, nil
	}
	clone := *req
	return &clone, nil
}

func (f *fakeStore) GetServiceRequestByReference(ctx context.Context, referenceCode string) (*models.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, req := range f.requests {
		if req.ReferenceCode == referenceCode {
			clone := *req
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ConfirmPayment(ctx context.Context, id int64, transactionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || req.PaymentStatus != models.PaymentStatusPending {
		return false, nil
	}
	now := time.Now()
	req.PaymentStatus = models.PaymentStatusCompleted
	req.Status = models.StatusPaymentConfirmed
	req.TransactionID = &transactionID
	req.CompletedAt = &now
	return true, nil
}

func (f *fakeStore) FailPayment(ctx context.Context, id int64, transactionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || req.PaymentStatus != models.PaymentStatusPending {
		return false, nil
	}
	req.PaymentStatus = models.PaymentStatusFailed
	req.Status = models.StatusCancelled
	req.TransactionID = &transactionID
	return true, nil
}

func (f *fakeStore) RefundPayment(ctx context.Context, id int64, transactionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || req.PaymentStatus != models.PaymentStatusCompleted {
		return false, nil
	}
	req.PaymentStatus = models.PaymentStatusRefunded
	req.Status = models.StatusCancelled
	req.TransactionID = &transactionID
	return true, nil
}

func (f *fakeStore) SetTransactionID(ctx context.Context, id int64, transactionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req, ok := f.requests[id]; ok {
		req.TransactionID = &transactionID
	}
	return nil
}

func (f *fakeStore) UpdateRequestStatusFrom(ctx context.Context, id int64, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || req.Status != from {
		return false, nil
	}
	req.Status = to
	return true, nil
}

func (f *fakeStore) AssignProvider(ctx context.Context, id, providerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req, ok := f.requests[id]; ok {
		req.ProviderID = &providerID
	}
	return nil
}

func (f *fakeStore) AppendStatusHistory(ctx context.Context, entry *models.StatusHistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextHist++
	entry.ID = f.nextHist
	entry.CreatedAt = time.Now()
	f.history = append(f.history, *entry)
	return nil
}

func (f *fakeStore) GetStatusHistory(ctx context.Context, serviceRequestID int64) ([]models.StatusHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []models.StatusHistoryEntry
	for _, h := range f.history {
		if h.ServiceRequestID == serviceRequestID {
			entries = append(entries, h)
		}
	}
	return entries, nil
}

func (f *fakeStore) GetAffiliateByID(ctx context.Context, id string) (*models.Affiliate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	aff, ok := f.affiliates[id]
	if !ok {
		return nil, nil
	}
	clone := *aff
	return &clone, nil
}

func (f *fakeStore) CreateAffiliate(ctx context.Context, aff *models.Affiliate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	aff.CreatedAt = time.Now()
	aff.UpdatedAt = aff.CreatedAt
	clone := *aff
	f.affiliates[aff.ID] = &clone
	return nil
}

func (f *fakeStore) UpdateAffiliate(ctx context.Context, aff *models.Affiliate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *aff
	f.affiliates[aff.ID] = &clone
	return nil
}

func (f *fakeStore) ListAffiliates(ctx context.Context) ([]models.Affiliate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var affs []models.Affiliate
	for _, aff := range f.affiliates {
		affs = append(affs, *aff)
	}
	return affs, nil
}

func (f *fakeStore) CreateTrackingEvent(ctx context.Context, event *models.TrackingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event.CreatedAt = time.Now()
	f.tracking = append(f.tracking, *event)
	return nil
}

func (f *fakeStore) GetAffiliateCommissionTotal(ctx context.Context, affiliateID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, c := range f.commissions {
		if c.AffiliateID == affiliateID && c.Status != models.CommissionStatusCancelled {
			total += c.Amount
		}
	}
	return total, nil
}

func (f *fakeStore) GetActiveCommissionConfig(ctx context.Context, category string) (*models.CommissionConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.commissionConfigs[category]
	if !ok || !cfg.Active {
		return nil, nil
	}
	clone := *cfg
	return &clone, nil
}

func (f *fakeStore) CreateCommission(ctx context.Context, c *models.AffiliateCommission) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.commissions[c.ServiceRequestID]; exists {
		return false, nil
	}
	f.nextCommissionID++
	c.ID = f.nextCommissionID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	clone := *c
	f.commissions[c.ServiceRequestID] = &clone
	return true, nil
}

func (f *fakeStore) GetCommissionByRequestID(ctx context.Context, serviceRequestID int64) (*models.AffiliateCommission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.commissions[serviceRequestID]
	if !ok {
		return nil, nil
	}
	clone := *c
	return &clone, nil
}

func (f *fakeStore) CancelCommission(ctx context.Context, id int64, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.commissions {
		if c.ID == id {
			c.Status = models.CommissionStatusCancelled
			c.Notes = &note
			c.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (f *fakeStore) GetActiveGatewayConfig(ctx context.Context) (*models.GatewayConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var newest *models.GatewayConfig
	for _, cfg := range f.gatewayCfgs {
		if !cfg.Active {
			continue
		}
		if cfg.IsDefault {
			clone := *cfg
			return &clone, nil
		}
		if newest == nil || cfg.CreatedAt.After(newest.CreatedAt) {
			newest = cfg
		}
	}
	if newest == nil {
		return nil, nil
	}
	clone := *newest
	return &clone, nil
}

func (f *fakeStore) CreateGatewayConfig(ctx context.Context, cfg *models.GatewayConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cfg.IsDefault {
		for _, existing := range f.gatewayCfgs {
			existing.IsDefault = false
		}
	}
	cfg.ID = int64(len(f.gatewayCfgs) + 1)
	cfg.CreatedAt = time.Now()
	clone := *cfg
	f.gatewayCfgs = append(f.gatewayCfgs, &clone)
	return nil
}

// fakeLocker grants every lock once until released.
type fakeLocker struct {
	mu    sync.Mutex
	held  map[string]bool
	deny  bool
	fails error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}}
}

func (l *fakeLocker) AcquireWebhookLock(ctx context.Context, gateway, transactionID string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fails != nil {
		return false, l.fails
	}
	if l.deny {
		return false, nil
	}
	key := gateway + ":" + transactionID
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) ReleaseWebhookLock(ctx context.Context, gateway, transactionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, gateway+":"+transactionID)
	return nil
}

// fakeCache is a pass-through gateway config cache.
type fakeCache struct {
	mu  sync.Mutex
	cfg *models.GatewayConfig
}

func (c *fakeCache) GetCachedGatewayConfig(ctx context.Context) (*models.GatewayConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg, nil
}

func (c *fakeCache) SetCachedGatewayConfig(ctx context.Context, cfg *models.GatewayConfig, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	return nil
}

func (c *fakeCache) InvalidateGatewayConfig(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = nil
	return nil
}

// fakePublisher records published events.
type fakePublisher struct {
	mu        sync.Mutex
	confirmed []*models.PaymentConfirmedEvent
	failed    []*models.PaymentFailedEvent
	refunded  []*models.PaymentRefundedEvent
	recorded  []*models.CommissionRecordedEvent
}

func (p *fakePublisher) PublishPaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, event)
	return nil
}

func (p *fakePublisher) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, event)
	return nil
}

func (p *fakePublisher) PublishPaymentRefunded(ctx context.Context, event *models.PaymentRefundedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunded = append(p.refunded, event)
	return nil
}

func (p *fakePublisher) PublishCommissionRecorded(ctx context.Context, event *models.CommissionRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recorded = append(p.recorded, event)
	return nil
}
