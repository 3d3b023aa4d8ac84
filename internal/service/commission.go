package service

import (
	"context"
	"time"

	"settlement-service/internal/models"
	"settlement-service/internal/retry"
	"settlement-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CalculateCommission maps a commission rule and a service amount (minor
// units) to the commission owed. Percentage rules round half-up on minor
// units; fixed rules return the configured value regardless of amount.
// Pure: callers ensure cfg is non-nil (absent configuration is a
// skip-commission decision, not an engine error).
func CalculateCommission(cfg *models.CommissionConfig, amount int64) int64 {
	if cfg.Type == models.CommissionTypePercentage {
		return (amount*cfg.Value + 50) / 100
	}
	return cfg.Value
}

// CommissionService posts and cancels affiliate commissions.
type CommissionService struct {
	store     Store
	publisher EventPublisher
	logger    *zap.Logger
}

func NewCommissionService(store Store, publisher EventPublisher) *CommissionService {
	return &CommissionService{
		store:     store,
		publisher: publisher,
		logger:    util.NamedLogger("commission"),
	}
}

// PostForPayment computes and records the commission for a paid request.
// Sentinel attribution earns nothing. A missing rule for both the service
// category and the default category is logged and skipped, never fatal.
// Returns nil when no commission was recorded.
func (s *CommissionService) PostForPayment(ctx context.Context, req *models.ServiceRequest, category string) (*models.AffiliateCommission, error) {
	ctx, span := util.StartSpan(ctx, "CommissionService.PostForPayment")
	defer span.End()

	if req.AffiliateID == nil || *req.AffiliateID == models.SentinelAffiliateID {
		util.CommissionsSkippedTotal.WithLabelValues("no_affiliate").Inc()
		return nil, nil
	}
	affiliateID := *req.AffiliateID

	cfg, err := s.lookupConfig(ctx, category)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		util.CommissionsSkippedTotal.WithLabelValues("no_config").Inc()
		s.logger.Warn("No active commission config, skipping commission",
			zap.String("category", category),
			zap.Int64("service_request_id", req.ID))
		return nil, nil
	}

	commission := &models.AffiliateCommission{
		AffiliateID:      affiliateID,
		ServiceRequestID: req.ID,
		Amount:           CalculateCommission(cfg, req.Amount),
		Currency:         cfg.Currency,
		Status:           models.CommissionStatusPending,
		SourceAmount:     req.Amount,
		SourceCurrency:   req.Currency,
	}

	created, err := retry.DoValue(ctx, retry.Storage(), func(ctx context.Context) (bool, error) {
		return s.store.CreateCommission(ctx, commission)
	})
	if err != nil {
		return nil, err
	}
	if !created {
		// unique constraint swallowed a redelivered insert
		util.CommissionsSkippedTotal.WithLabelValues("duplicate").Inc()
		return nil, nil
	}

	util.CommissionsRecordedTotal.Inc()
	s.logger.Info("Commission recorded",
		zap.Int64("commission_id", commission.ID),
		zap.String("affiliate_id", affiliateID),
		zap.Int64("service_request_id", req.ID),
		zap.Int64("amount", commission.Amount))

	event := &models.CommissionRecordedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCommissionRecorded,
			Timestamp: time.Now(),
		},
		CommissionID:     commission.ID,
		AffiliateID:      affiliateID,
		ServiceRequestID: req.ID,
		Amount:           commission.Amount,
		Currency:         commission.Currency,
	}
	if err := s.publisher.PublishCommissionRecorded(ctx, event); err != nil {
		s.logger.Error("Failed to publish CommissionRecorded event", zap.Error(err))
	}

	return commission, nil
}

// CancelForRefund cancels the commission tied to a refunded request, when
// one exists. The record itself is preserved.
func (s *CommissionService) CancelForRefund(ctx context.Context, serviceRequestID int64, note string) error {
	ctx, span := util.StartSpan(ctx, "CommissionService.CancelForRefund")
	defer span.End()

	commission, err := retry.DoValue(ctx, retry.Storage(), func(ctx context.Context) (*models.AffiliateCommission, error) {
		return s.store.GetCommissionByRequestID(ctx, serviceRequestID)
	})
	if err != nil {
		return err
	}
	if commission == nil {
		return nil
	}

	err = retry.Do(ctx, retry.Storage(), func(ctx context.Context) error {
		return s.store.CancelCommission(ctx, commission.ID, note)
	})
	if err != nil {
		return err
	}

	util.CommissionsCancelledTotal.Inc()
	s.logger.Info("Commission cancelled",
		zap.Int64("commission_id", commission.ID),
		zap.Int64("service_request_id", serviceRequestID))
	return nil
}

// lookupConfig finds the active rule for a category, falling back to the
// default category.
func (s *CommissionService) lookupConfig(ctx context.Context, category string) (*models.CommissionConfig, error) {
	cfg, err := retry.DoValue(ctx, retry.Storage(), func(ctx context.Context) (*models.CommissionConfig, error) {
		return s.store.GetActiveCommissionConfig(ctx, category)
	})
	if err != nil {
		return nil, err
	}
	if cfg != nil || category == models.CategoryDefault {
		return cfg, nil
	}
	return retry.DoValue(ctx, retry.Storage(), func(ctx context.Context) (*models.CommissionConfig, error) {
		return s.store.GetActiveCommissionConfig(ctx, models.CategoryDefault)
	})
}
