package service

import (
	"context"

	"go.uber.org/zap"

	"settlement-service/internal/apperr"
	"settlement-service/internal/models"
	"settlement-service/internal/retry"
	"settlement-service/internal/util"
)

// RefundService executes operator-initiated refunds through the active
// gateway. The local settlement is applied immediately; the gateway's own
// refund webhook then lands on the idempotency guard as a no-op.
type RefundService struct {
	store     Store
	gateways  *GatewayService
	comms     *CommissionService
	publisher EventPublisher
	logger    *zap.Logger
}

func NewRefundService(store Store, gateways *GatewayService, comms *CommissionService, publisher EventPublisher) *RefundService {
	return &RefundService{
		store:     store,
		gateways:  gateways,
		comms:     comms,
		publisher: publisher,
		logger:    util.NamedLogger("refund"),
	}
}

type RefundResponse struct {
	RequestID int64  `json:"request_id"`
	RefundID  string `json:"refund_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// Refund refunds the full captured amount for a request.
func (s *RefundService) Refund(ctx context.Context, requestID int64, actorID *string) (*RefundResponse, error) {
	ctx, span := util.StartSpan(ctx, "RefundService.Refund")
	defer span.End()

	req, err := retry.DoValue(ctx, retry.Storage(), func(ctx context.Context) (*models.ServiceRequest, error) {
		return s.store.GetServiceRequestByID(ctx, requestID)
	})
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperr.NotFound("request.not_found", "Service request not found.")
	}
	if req.PaymentStatus != models.PaymentStatusCompleted || req.TransactionID == nil {
		return nil, apperr.Validation("payment_status", "Only completed payments can be refunded.")
	}

	_, gw, err := s.gateways.ResolveActive(ctx)
	if err != nil {
		return nil, err
	}

	// Not retried: a duplicate refund call could refund twice.
	result, err := gw.Refund(ctx, *req.TransactionID, req.Amount)
	if err != nil {
		return nil, err
	}

	applied, err := retry.DoValue(ctx, retry.Storage(), func(ctx context.Context) (bool, error) {
		return s.store.RefundPayment(ctx, req.ID, *req.TransactionID)
	})
	if err != nil {
		return nil, err
	}
	if applied {
		util.PaymentsRefundedTotal.Inc()
		s.appendHistory(ctx, req.ID, req.Status, actorID)

		if err := s.comms.CancelForRefund(ctx, req.ID, "Payment refunded"); err != nil {
			s.logger.Error("Failed to cancel commission after refund",
				zap.Int64("service_request_id", req.ID),
				zap.Error(err))
		}

		event := &models.PaymentRefundedEvent{
			BaseEvent:        baseEvent(models.EventTypePaymentRefunded),
			ServiceRequestID: req.ID,
			ReferenceCode:    req.ReferenceCode,
			TransactionID:    *req.TransactionID,
			Amount:           result.Amount,
			Currency:         req.Currency,
			CustomerEmail:    req.CustomerEmail,
		}
		if err := s.publisher.PublishPaymentRefunded(ctx, event); err != nil {
			s.logger.Error("Failed to publish payment refunded event", zap.Error(err))
		}
	}

	s.logger.Info("Refund executed",
		zap.Int64("service_request_id", req.ID),
		zap.String("refund_id", result.RefundID),
		zap.Int64("amount", result.Amount))

	return &RefundResponse{
		RequestID: req.ID,
		RefundID:  result.RefundID,
		Amount:    result.Amount,
		Currency:  req.Currency,
	}, nil
}

func (s *RefundService) appendHistory(ctx context.Context, requestID int64, from string, actorID *string) {
	note := "Refund issued by operator"
	entry := &models.StatusHistoryEntry{
		ServiceRequestID: requestID,
		FromStatus:       &from,
		ToStatus:         models.StatusCancelled,
		ActorID:          actorID,
		Notes:            &note,
	}
	err := retry.Do(ctx, retry.Storage(), func(ctx context.Context) error {
		return s.store.AppendStatusHistory(ctx, entry)
	})
	if err != nil {
		s.logger.Error("Failed to append refund history",
			zap.Int64("service_request_id", requestID),
			zap.Error(err))
	}
}
