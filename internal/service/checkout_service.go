package service

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"settlement-service/internal/apperr"
	"settlement-service/internal/gateway"
	"settlement-service/internal/models"
	"settlement-service/internal/retry"
	"settlement-service/internal/util"

	"go.uber.org/zap"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// CheckoutService turns a purchase request into a pending service request
// plus a gateway payment intent. Payment is only ever confirmed by the
// webhook pipeline, never here.
type CheckoutService struct {
	store      Store
	affiliates *AffiliateService
	gateways   *GatewayService
	logger     *zap.Logger
}

func NewCheckoutService(store Store, affiliates *AffiliateService, gateways *GatewayService) *CheckoutService {
	return &CheckoutService{
		store:      store,
		affiliates: affiliates,
		gateways:   gateways,
		logger:     util.NamedLogger("checkout"),
	}
}

type CustomerInfo struct {
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Requirements string `json:"requirements"`
}

type CheckoutRequest struct {
	ServiceID     int64        `json:"service_id"`
	ServiceTierID *int64       `json:"service_tier_id"`
	Customer      CustomerInfo `json:"customer"`
	AffiliateCode string       `json:"affiliate_code"`
}

type PaymentIntentInfo struct {
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Gateway      string `json:"gateway"`
}

type CheckoutResponse struct {
	RequestID       int64             `json:"request_id"`
	ReferenceNumber string            `json:"reference_number"`
	PaymentIntent   PaymentIntentInfo `json:"payment_intent"`
}

// Create validates the purchase, resolves pricing and attribution, persists
// a pending service request, and requests a payment intent from the active
// gateway.
func (s *CheckoutService) Create(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Create")
	defer span.End()

	if err := validateCustomer(&req.Customer); err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	svc, err := retry.DoValue(ctx, retry.Storage(), func(ctx context.Context) (*models.Service, error) {
		return s.store.GetServiceByID(ctx, req.ServiceID)
	})
	if err != nil {
		return nil, err
	}
	if svc == nil || !svc.Active {
		util.CheckoutsFailedTotal.WithLabelValues("unknown_service").Inc()
		return nil, apperr.NotFound("service.not_found", "The requested service does not exist.")
	}

	amount, currency := svc.BasePrice, svc.Currency
	if req.ServiceTierID != nil {
		tier, err := retry.DoValue(ctx, retry.Storage(), func(ctx context.Context) (*models.ServiceTier, error) {
			return s.store.GetServiceTierByID(ctx, *req.ServiceTierID)
		})
		if err != nil {
			return nil, err
		}
		if tier == nil || tier.ServiceID != svc.ID || !tier.Active {
			util.CheckoutsFailedTotal.WithLabelValues("invalid_tier").Inc()
			return nil, apperr.Validation("service_tier_id", "The tier does not belong to the selected service.")
		}
		amount = tier.Price
	}

	affiliateID := s.affiliates.ResolveAffiliate(ctx, req.AffiliateCode)

	cfg, gw, err := s.gateways.ResolveActive(ctx)
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("gateway_unavailable").Inc()
		return nil, err
	}

	request := &models.ServiceRequest{
		ReferenceCode: generateReferenceCode(time.Now()),
		ServiceID:     svc.ID,
		ServiceTierID: req.ServiceTierID,
		CustomerName:  req.Customer.FullName,
		CustomerEmail: req.Customer.Email,
		CustomerPhone: req.Customer.Phone,
		Requirements:  req.Customer.Requirements,
		Gateway:       cfg.Gateway,
		Amount:        amount,
		Currency:      currency,
		PaymentStatus: models.PaymentStatusPending,
		Status:        models.StatusPendingContact,
		AffiliateID:   &affiliateID,
	}
	if req.AffiliateCode != "" {
		code := req.AffiliateCode
		request.AffiliateCode = &code
	}

	err = retry.Do(ctx, retry.Storage(), func(ctx context.Context) error {
		return s.store.CreateServiceRequest(ctx, request)
	})
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("db_error").Inc()
		return nil, err
	}

	s.recordCreation(ctx, request)

	metadata := map[string]string{
		gateway.MetadataRequestID: strconv.FormatInt(request.ID, 10),
		"reference_code":          request.ReferenceCode,
		"service_id":              strconv.FormatInt(svc.ID, 10),
		"affiliate_id":            affiliateID,
	}
	if req.ServiceTierID != nil {
		metadata["service_tier_id"] = strconv.FormatInt(*req.ServiceTierID, 10)
	}
	if request.AffiliateCode != nil {
		metadata["affiliate_code"] = *request.AffiliateCode
	}

	// Intent creation is deliberately not wrapped in the retry executor:
	// the gateway call is not known to be idempotent, and a duplicate
	// order risks a double charge.
	start := time.Now()
	intent, err := gw.CreateIntent(ctx, &gateway.IntentRequest{
		Amount:        amount,
		Currency:      currency,
		CustomerEmail: req.Customer.Email,
		CustomerName:  req.Customer.FullName,
		Description:   fmt.Sprintf("%s (%s)", svc.Name, request.ReferenceCode),
		Receipt:       request.ReferenceCode,
		Metadata:      metadata,
	})
	util.IntentCreationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("gateway_error").Inc()
		return nil, err
	}

	util.CheckoutsCreatedTotal.Inc()
	s.logger.Info("Checkout created",
		zap.Int64("service_request_id", request.ID),
		zap.String("reference_code", request.ReferenceCode),
		zap.Int64("amount", amount),
		zap.String("affiliate_id", affiliateID))

	return &CheckoutResponse{
		RequestID:       request.ID,
		ReferenceNumber: request.ReferenceCode,
		PaymentIntent: PaymentIntentInfo{
			ClientSecret: intent.ClientSecret,
			Amount:       intent.Amount,
			Currency:     intent.Currency,
			Gateway:      intent.GatewayName,
		},
	}, nil
}

func (s *CheckoutService) recordCreation(ctx context.Context, request *models.ServiceRequest) {
	entry := &models.StatusHistoryEntry{
		ServiceRequestID: request.ID,
		ToStatus:         request.Status,
	}
	err := retry.Do(ctx, retry.Storage(), func(ctx context.Context) error {
		return s.store.AppendStatusHistory(ctx, entry)
	})
	if err != nil {
		s.logger.Error("Failed to record creation history",
			zap.Int64("service_request_id", request.ID),
			zap.Error(err))
	}
}

func validateCustomer(c *CustomerInfo) error {
	if strings.TrimSpace(c.FullName) == "" {
		return apperr.Validation("full_name", "Full name is required.")
	}
	if !emailPattern.MatchString(c.Email) {
		return apperr.Validation("email", "A valid email address is required.")
	}
	if strings.TrimSpace(c.Phone) == "" {
		return apperr.Validation("phone", "Phone number is required.")
	}
	if strings.TrimSpace(c.Requirements) == "" {
		return apperr.Validation("requirements", "Requirements are required.")
	}
	return nil
}

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// generateReferenceCode produces the human-shareable reference:
// SR-<base36 millis>-<6 random base36 chars>, uppercased.
func generateReferenceCode(now time.Time) string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = base36Alphabet[rand.Intn(len(base36Alphabet))]
	}
	return strings.ToUpper(fmt.Sprintf("SR-%s-%s", strconv.FormatInt(now.UnixMilli(), 36), suffix))
}
