package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"settlement-service/internal/apperr"
	"settlement-service/internal/gateway"
	"settlement-service/internal/models"
	"settlement-service/internal/retry"
	"settlement-service/internal/util"
)

// webhookLockTTL bounds how long a delivery holds the per-transaction lock.
const webhookLockTTL = 30 * time.Second

// WebhookService ingests gateway webhook deliveries. Signature failures are
// the only rejections; everything past verification is acknowledged to the
// gateway so it stops redelivering, with Processed reporting whether state
// actually changed.
type WebhookService struct {
	store     Store
	locker    Locker
	gateways  *GatewayService
	comms     *CommissionService
	publisher EventPublisher
	logger    *zap.Logger
}

func NewWebhookService(store Store, locker Locker, gateways *GatewayService, comms *CommissionService, publisher EventPublisher) *WebhookService {
	return &WebhookService{
		store:     store,
		locker:    locker,
		gateways:  gateways,
		comms:     comms,
		publisher: publisher,
		logger:    util.NamedLogger("webhook"),
	}
}

// WebhookResponse is the acknowledgement returned to the gateway.
type WebhookResponse struct {
	Received  bool   `json:"received"`
	Processed bool   `json:"processed"`
	Message   string `json:"message,omitempty"`
}

func acknowledged(msg string) *WebhookResponse {
	return &WebhookResponse{Received: true, Processed: false, Message: msg}
}

// Process verifies, parses, and settles one webhook delivery.
func (s *WebhookService) Process(ctx context.Context, body []byte, header func(string) string) (*WebhookResponse, error) {
	ctx, span := util.StartSpan(ctx, "WebhookService.Process")
	defer span.End()

	start := time.Now()
	defer func() {
		util.WebhookProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	// The signature header name belongs to the gateway, so the active
	// configuration has to be resolved before the presence check. With no
	// gateway configured the delivery cannot have come from a provider we
	// issued an intent through, and 503 tells the sender to redeliver once
	// configuration is restored.
	cfg, gw, err := s.gateways.ResolveActive(ctx)
	if err != nil {
		return nil, err
	}
	util.WebhooksReceivedTotal.WithLabelValues(gw.Name()).Inc()

	signature := header(gw.SignatureHeader())
	if signature == "" {
		return nil, apperr.Validation("signature", "Missing webhook signature header.")
	}
	if !gw.VerifyWebhook(body, signature) {
		util.WebhooksRejectedSignatureTotal.Inc()
		// Raw payloads never reach the logs; top-level key names are enough
		// to diagnose a misconfigured secret.
		s.logger.Warn("Webhook signature verification failed",
			zap.String("gateway", gw.Name()),
			zap.Strings("payload_keys", topLevelKeys(body)))
		return nil, apperr.Authentication("Webhook signature verification failed.")
	}

	result, err := gw.ParseWebhook(body)
	if err != nil {
		s.logger.Warn("Webhook payload not processable",
			zap.String("gateway", gw.Name()),
			zap.Error(err))
		return acknowledged("event not processable"), nil
	}
	if result.TransactionID == "" {
		return acknowledged("no transaction reference"), nil
	}

	req, err := s.locateRequest(ctx, result)
	if err != nil {
		return nil, err
	}
	if req == nil {
		s.logger.Warn("Webhook references no known service request",
			zap.String("gateway", gw.Name()),
			zap.String("transaction_id", result.TransactionID))
		return acknowledged("unknown service request"), nil
	}

	if done, msg := alreadySettled(req, result.Status); done {
		util.WebhooksDuplicateTotal.Inc()
		return acknowledged(msg), nil
	}

	locked, err := s.locker.AcquireWebhookLock(ctx, cfg.Gateway, result.TransactionID, webhookLockTTL)
	if err != nil {
		s.logger.Error("Webhook lock acquisition failed",
			zap.String("transaction_id", result.TransactionID),
			zap.Error(err))
	} else if !locked {
		util.WebhooksDuplicateTotal.Inc()
		return acknowledged("delivery already in flight"), nil
	} else {
		defer func() {
			if err := s.locker.ReleaseWebhookLock(context.WithoutCancel(ctx), cfg.Gateway, result.TransactionID); err != nil {
				s.logger.Warn("Webhook lock release failed", zap.Error(err))
			}
		}()
	}

	switch result.Status {
	case gateway.StatusSuccess:
		return s.handleSuccess(ctx, gw.Name(), req, result)
	case gateway.StatusFailed:
		return s.handleFailed(ctx, gw.Name(), req, result)
	case gateway.StatusRefunded:
		return s.handleRefunded(ctx, gw.Name(), req, result)
	case gateway.StatusPending:
		return s.handlePending(ctx, req, result)
	default:
		return acknowledged("unhandled status"), nil
	}
}

// locateRequest resolves the service request the delivery refers to, via the
// request id echoed back in intent metadata.
func (s *WebhookService) locateRequest(ctx context.Context, result *gateway.WebhookResult) (*models.ServiceRequest, error) {
	raw, ok := result.Metadata[gateway.MetadataRequestID]
	if !ok || raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, nil
	}
	return retry.DoValue(ctx, retry.Storage(), func(ctx context.Context) (*models.ServiceRequest, error) {
		return s.store.GetServiceRequestByID(ctx, id)
	})
}

// alreadySettled is the fast-path idempotency guard. The conditional updates
// in the store remain the authority; this only avoids pointless work on
// obvious redeliveries.
func alreadySettled(req *models.ServiceRequest, status gateway.Status) (bool, string) {
	switch status {
	case gateway.StatusSuccess:
		if req.PaymentStatus == models.PaymentStatusCompleted {
			return true, "payment already confirmed"
		}
	case gateway.StatusFailed:
		if req.PaymentStatus == models.PaymentStatusFailed {
			return true, "payment already failed"
		}
	case gateway.StatusRefunded:
		if req.PaymentStatus == models.PaymentStatusRefunded {
			return true, "payment already refunded"
		}
	}
	return false, ""
}

func (s *WebhookService) handleSuccess(ctx context.Context, gatewayName string, req *models.ServiceRequest, result *gateway.WebhookResult) (*WebhookResponse, error) {
	applied, err := retry.DoValue(ctx, retry.Storage(), func(ctx context.Context) (bool, error) {
		return s.store.ConfirmPayment(ctx, req.ID, result.TransactionID)
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		util.WebhooksDuplicateTotal.Inc()
		return acknowledged("payment already settled"), nil
	}

	prior := req.Status
	req.PaymentStatus = models.PaymentStatusCompleted
	req.Status = models.StatusPaymentConfirmed
	req.TransactionID = &result.TransactionID

	util.PaymentsConfirmedTotal.Inc()
	util.WebhooksProcessedTotal.WithLabelValues(gatewayName, "success").Inc()
	s.logger.Info("Payment confirmed",
		zap.Int64("service_request_id", req.ID),
		zap.String("reference_code", req.ReferenceCode),
		zap.String("transaction_id", result.TransactionID))

	s.appendHistory(ctx, req.ID, prior, models.StatusPaymentConfirmed, "Payment confirmed by gateway webhook")
	s.recordPaymentTracking(ctx, req)
	s.postCommission(ctx, req)
	s.publishConfirmed(ctx, req, result)

	return &WebhookResponse{Received: true, Processed: true}, nil
}

func (s *WebhookService) handleFailed(ctx context.Context, gatewayName string, req *models.ServiceRequest, result *gateway.WebhookResult) (*WebhookResponse, error) {
	applied, err := retry.DoValue(ctx, retry.Storage(), func(ctx context.Context) (bool, error) {
		return s.store.FailPayment(ctx, req.ID, result.TransactionID)
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		util.WebhooksDuplicateTotal.Inc()
		return acknowledged("payment already settled"), nil
	}

	util.PaymentsFailedTotal.Inc()
	util.WebhooksProcessedTotal.WithLabelValues(gatewayName, "failed").Inc()
	s.logger.Info("Payment failed",
		zap.Int64("service_request_id", req.ID),
		zap.String("transaction_id", result.TransactionID))

	s.appendHistory(ctx, req.ID, req.Status, models.StatusCancelled, "Payment failed at gateway")

	event := &models.PaymentFailedEvent{
		BaseEvent:        baseEvent(models.EventTypePaymentFailed),
		ServiceRequestID: req.ID,
		ReferenceCode:    req.ReferenceCode,
		TransactionID:    result.TransactionID,
		CustomerEmail:    req.CustomerEmail,
		Reason:           result.Metadata["failure_reason"],
	}
	if err := s.publisher.PublishPaymentFailed(ctx, event); err != nil {
		s.logger.Error("Failed to publish payment failed event", zap.Error(err))
	}

	return &WebhookResponse{Received: true, Processed: true}, nil
}

func (s *WebhookService) handleRefunded(ctx context.Context, gatewayName string, req *models.ServiceRequest, result *gateway.WebhookResult) (*WebhookResponse, error) {
	applied, err := retry.DoValue(ctx, retry.Storage(), func(ctx context.Context) (bool, error) {
		return s.store.RefundPayment(ctx, req.ID, result.TransactionID)
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		util.WebhooksDuplicateTotal.Inc()
		return acknowledged("no completed payment to refund"), nil
	}

	util.PaymentsRefundedTotal.Inc()
	util.WebhooksProcessedTotal.WithLabelValues(gatewayName, "refunded").Inc()
	s.logger.Info("Payment refunded",
		zap.Int64("service_request_id", req.ID),
		zap.String("transaction_id", result.TransactionID))

	s.appendHistory(ctx, req.ID, req.Status, models.StatusCancelled, "Payment refunded")

	if err := s.comms.CancelForRefund(ctx, req.ID, "Payment refunded"); err != nil {
		s.logger.Error("Failed to cancel commission after refund",
			zap.Int64("service_request_id", req.ID),
			zap.Error(err))
	}

	event := &models.PaymentRefundedEvent{
		BaseEvent:        baseEvent(models.EventTypePaymentRefunded),
		ServiceRequestID: req.ID,
		ReferenceCode:    req.ReferenceCode,
		TransactionID:    result.TransactionID,
		Amount:           result.Amount,
		Currency:         req.Currency,
		CustomerEmail:    req.CustomerEmail,
	}
	if err := s.publisher.PublishPaymentRefunded(ctx, event); err != nil {
		s.logger.Error("Failed to publish payment refunded event", zap.Error(err))
	}

	return &WebhookResponse{Received: true, Processed: true}, nil
}

// handlePending records the gateway transaction reference without settling.
func (s *WebhookService) handlePending(ctx context.Context, req *models.ServiceRequest, result *gateway.WebhookResult) (*WebhookResponse, error) {
	if req.PaymentStatus != models.PaymentStatusPending {
		util.WebhooksDuplicateTotal.Inc()
		return acknowledged("payment already settled"), nil
	}
	err := retry.Do(ctx, retry.Storage(), func(ctx context.Context) error {
		return s.store.SetTransactionID(ctx, req.ID, result.TransactionID)
	})
	if err != nil {
		return nil, err
	}
	return acknowledged("payment pending"), nil
}

// appendHistory records a settlement transition. A nil FromStatus is
// reserved for the creation event, so the prior status is always set here.
func (s *WebhookService) appendHistory(ctx context.Context, requestID int64, from, to, note string) {
	entry := &models.StatusHistoryEntry{
		ServiceRequestID: requestID,
		FromStatus:       &from,
		ToStatus:         to,
		Notes:            &note,
	}
	err := retry.Do(ctx, retry.Storage(), func(ctx context.Context) error {
		return s.store.AppendStatusHistory(ctx, entry)
	})
	if err != nil {
		s.logger.Error("Failed to append status history",
			zap.Int64("service_request_id", requestID),
			zap.Error(err))
	}
}

func (s *WebhookService) recordPaymentTracking(ctx context.Context, req *models.ServiceRequest) {
	affiliateID := models.SentinelAffiliateID
	if req.AffiliateID != nil && *req.AffiliateID != "" {
		affiliateID = *req.AffiliateID
	}
	metadata, _ := json.Marshal(map[string]any{
		"service_request_id": req.ID,
		"reference_code":     req.ReferenceCode,
		"amount":             req.Amount,
		"currency":           req.Currency,
	})
	event := &models.TrackingEvent{
		ID:          uuid.New().String(),
		AffiliateID: affiliateID,
		EventType:   models.TrackingEventPayment,
		Metadata:    metadata,
	}
	err := retry.Do(ctx, retry.Storage(), func(ctx context.Context) error {
		return s.store.CreateTrackingEvent(ctx, event)
	})
	if err != nil {
		s.logger.Error("Failed to record payment tracking event",
			zap.Int64("service_request_id", req.ID),
			zap.Error(err))
	}
}

func (s *WebhookService) postCommission(ctx context.Context, req *models.ServiceRequest) {
	category := models.CategoryDefault
	svc, err := s.store.GetServiceByID(ctx, req.ServiceID)
	if err != nil {
		s.logger.Error("Failed to load service for commission",
			zap.Int64("service_request_id", req.ID),
			zap.Error(err))
	} else if svc != nil {
		category = svc.Category
	}
	if _, err := s.comms.PostForPayment(ctx, req, category); err != nil {
		// Commission posting never blocks settlement; the unique constraint
		// keeps a later replay safe.
		s.logger.Error("Failed to post commission",
			zap.Int64("service_request_id", req.ID),
			zap.Error(err))
	}
}

func (s *WebhookService) publishConfirmed(ctx context.Context, req *models.ServiceRequest, result *gateway.WebhookResult) {
	affiliateID := models.SentinelAffiliateID
	if req.AffiliateID != nil && *req.AffiliateID != "" {
		affiliateID = *req.AffiliateID
	}
	event := &models.PaymentConfirmedEvent{
		BaseEvent:        baseEvent(models.EventTypePaymentConfirmed),
		ServiceRequestID: req.ID,
		ReferenceCode:    req.ReferenceCode,
		TransactionID:    result.TransactionID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		AffiliateID:      affiliateID,
		CustomerEmail:    req.CustomerEmail,
		CustomerName:     req.CustomerName,
	}
	if err := s.publisher.PublishPaymentConfirmed(ctx, event); err != nil {
		s.logger.Error("Failed to publish payment confirmed event", zap.Error(err))
	}
}

func baseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// topLevelKeys extracts the top-level JSON key names of a payload for
// diagnostics without exposing any values.
func topLevelKeys(payload []byte) []string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
