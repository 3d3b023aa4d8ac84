package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"settlement-service/internal/apperr"
	"settlement-service/internal/models"
	"settlement-service/internal/retry"
	"settlement-service/internal/util"
)

// StatusService answers customer-facing "where is my request" lookups by
// reference code.
type StatusService struct {
	store  Store
	logger *zap.Logger
}

func NewStatusService(store Store) *StatusService {
	return &StatusService{store: store, logger: util.NamedLogger("status")}
}

type TimelineEntry struct {
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type StatusResponse struct {
	ReferenceNumber string          `json:"reference_number"`
	ServiceName     string          `json:"service_name,omitempty"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"payment_status"`
	Amount          int64           `json:"amount"`
	Currency        string          `json:"currency"`
	Gateway         string          `json:"gateway"`
	NextStep        string          `json:"next_step"`
	Timeline        []TimelineEntry `json:"timeline"`
}

// nextSteps maps each fulfillment status to the customer-facing hint for
// what happens next.
var nextSteps = map[string]string{
	models.StatusPendingContact:   "Our team will contact you within one business day.",
	models.StatusPaymentConfirmed: "Payment received. Our team will contact you shortly.",
	models.StatusTeamAssigned:     "A specialist has been assigned and will reach out to you.",
	models.StatusInProgress:       "Your request is being worked on.",
	models.StatusCompleted:        "Your request is complete. Thank you.",
	models.StatusCancelled:        "This request was cancelled. Contact support if this is unexpected.",
}

// Lookup returns the current state and transition timeline for a reference
// code. Lookup is case-insensitive on the code.
func (s *StatusService) Lookup(ctx context.Context, referenceCode string) (*StatusResponse, error) {
	ctx, span := util.StartSpan(ctx, "StatusService.Lookup")
	defer span.End()

	code := strings.ToUpper(strings.TrimSpace(referenceCode))
	if code == "" {
		return nil, apperr.Validation("reference", "Reference number is required.")
	}

	req, err := retry.DoValue(ctx, retry.Storage(), func(ctx context.Context) (*models.ServiceRequest, error) {
		return s.store.GetServiceRequestByReference(ctx, code)
	})
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperr.NotFound("request.not_found", "No request found for that reference number.")
	}

	// The service name is a display concern; a lookup failure degrades to
	// an empty name rather than failing the whole status query.
	serviceName := ""
	svc, err := s.store.GetServiceByID(ctx, req.ServiceID)
	if err != nil {
		s.logger.Warn("Failed to load service for status lookup",
			zap.Int64("service_id", req.ServiceID),
			zap.Error(err))
	} else if svc != nil {
		serviceName = svc.Name
	}

	history, err := retry.DoValue(ctx, retry.Storage(), func(ctx context.Context) ([]models.StatusHistoryEntry, error) {
		return s.store.GetStatusHistory(ctx, req.ID)
	})
	if err != nil {
		return nil, err
	}

	timeline := make([]TimelineEntry, 0, len(history)+1)
	if len(history) == 0 {
		// Requests created before history recording was added have no rows;
		// synthesize the creation entry so the timeline is never empty.
		timeline = append(timeline, TimelineEntry{
			Status:    models.StatusPendingContact,
			CreatedAt: req.CreatedAt,
		})
	}
	for _, h := range history {
		entry := TimelineEntry{Status: h.ToStatus, CreatedAt: h.CreatedAt}
		if h.Notes != nil {
			entry.Notes = *h.Notes
		}
		timeline = append(timeline, entry)
	}

	next := nextSteps[req.Status]
	if req.Status == models.StatusPendingContact && req.PaymentStatus == models.PaymentStatusPending {
		next = "Complete the payment to proceed."
	}

	return &StatusResponse{
		ReferenceNumber: req.ReferenceCode,
		ServiceName:     serviceName,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		Status:          req.Status,
		PaymentStatus:   req.PaymentStatus,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Gateway:         req.Gateway,
		NextStep:        next,
		Timeline:        timeline,
	}, nil
}
