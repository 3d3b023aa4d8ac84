package service

import (
	"context"
	"encoding/json"

	"settlement-service/internal/apperr"
	"settlement-service/internal/models"
	"settlement-service/internal/retry"
	"settlement-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AffiliateService manages referral partners, attribution resolution, and
// tracking events.
type AffiliateService struct {
	store  Store
	logger *zap.Logger
}

func NewAffiliateService(store Store) *AffiliateService {
	return &AffiliateService{
		store:  store,
		logger: util.NamedLogger("affiliate"),
	}
}

type CreateAffiliateRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create registers an affiliate. The identifier may be caller-supplied
// (validated) or generated.
func (s *AffiliateService) Create(ctx context.Context, req *CreateAffiliateRequest) (*models.Affiliate, error) {
	ctx, span := util.StartSpan(ctx, "AffiliateService.Create")
	defer span.End()

	if req.Name == "" || len(req.Name) > 100 {
		return nil, apperr.Validation("name", "Name must be between 1 and 100 characters.")
	}
	if len(req.Description) > 500 {
		return nil, apperr.Validation("description", "Description must be at most 500 characters.")
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	} else {
		if !ValidAffiliateCode(id) {
			return nil, apperr.Validation("id", "Identifier must be 1-50 letters, digits, hyphens, or underscores.")
		}
		if id == models.SentinelAffiliateID {
			return nil, apperr.Validation("id", "This identifier is reserved.")
		}
	}

	existing, err := retry.DoValue(ctx, retry.Storage(), func(ctx context.Context) (*models.Affiliate, error) {
		return s.store.GetAffiliateByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Validation("id", "An affiliate with this identifier already exists.")
	}

	aff := &models.Affiliate{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Status:      models.AffiliateStatusActive,
	}
	err = retry.Do(ctx, retry.Storage(), func(ctx context.Context) error {
		return s.store.CreateAffiliate(ctx, aff)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Affiliate created", zap.String("affiliate_id", aff.ID))
	return aff, nil
}

type UpdateAffiliateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

// Update modifies an affiliate's display fields or status. The sentinel
// identity is immutable.
func (s *AffiliateService) Update(ctx context.Context, id string, req *UpdateAffiliateRequest) (*models.Affiliate, error) {
	ctx, span := util.StartSpan(ctx, "AffiliateService.Update")
	defer span.End()

	if id == models.SentinelAffiliateID {
		return nil, apperr.Validation("id", "The reserved affiliate cannot be modified.")
	}

	aff, err := retry.DoValue(ctx, retry.Storage(), func(ctx context.Context) (*models.Affiliate, error) {
		return s.store.GetAffiliateByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if aff == nil {
		return nil, apperr.NotFound("affiliate.not_found", "Affiliate not found.")
	}

	if req.Name != nil {
		if *req.Name == "" || len(*req.Name) > 100 {
			return nil, apperr.Validation("name", "Name must be between 1 and 100 characters.")
		}
		aff.Name = *req.Name
	}
	if req.Description != nil {
		if len(*req.Description) > 500 {
			return nil, apperr.Validation("description", "Description must be at most 500 characters.")
		}
		aff.Description = *req.Description
	}
	if req.Status != nil {
		if *req.Status != models.AffiliateStatusActive && *req.Status != models.AffiliateStatusInactive {
			return nil, apperr.Validation("status", "Status must be active or inactive.")
		}
		aff.Status = *req.Status
	}

	err = retry.Do(ctx, retry.Storage(), func(ctx context.Context) error {
		return s.store.UpdateAffiliate(ctx, aff)
	})
	if err != nil {
		return nil, err
	}
	return aff, nil
}

// AffiliateSummary is an affiliate plus its commission total.
type AffiliateSummary struct {
	models.Affiliate
	CommissionTotal int64 `json:"commission_total"`
}

// List retrieves all affiliates with their commission totals.
func (s *AffiliateService) List(ctx context.Context) ([]AffiliateSummary, error) {
	ctx, span := util.StartSpan(ctx, "AffiliateService.List")
	defer span.End()

	affs, err := retry.DoValue(ctx, retry.Storage(), func(ctx context.Context) ([]models.Affiliate, error) {
		return s.store.ListAffiliates(ctx)
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]AffiliateSummary, 0, len(affs))
	for _, aff := range affs {
		total, err := s.store.GetAffiliateCommissionTotal(ctx, aff.ID)
		if err != nil {
			s.logger.Warn("Failed to load commission total",
				zap.String("affiliate_id", aff.ID),
				zap.Error(err))
		}
		summaries = append(summaries, AffiliateSummary{Affiliate: aff, CommissionTotal: total})
	}
	return summaries, nil
}

type TrackRequest struct {
	AffiliateCode string                 `json:"affiliate_code"`
	EventType     string                 `json:"event_type"`
	UserID        *int64                 `json:"user_id"`
	PropertyID    *int64                 `json:"property_id"`
	Metadata      map[string]interface{} `json:"metadata"`
}

// Track records an attribution event. The affiliate id stored is always
// resolved, never raw caller input.
func (s *AffiliateService) Track(ctx context.Context, req *TrackRequest) (*models.TrackingEvent, error) {
	ctx, span := util.StartSpan(ctx, "AffiliateService.Track")
	defer span.End()

	switch req.EventType {
	case models.TrackingEventSignup, models.TrackingEventPropertyContact, models.TrackingEventPayment:
	default:
		return nil, apperr.Validation("event_type", "Unknown event type.")
	}

	var metadata []byte
	if len(req.Metadata) > 0 {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, apperr.Validation("metadata", "Metadata must be a JSON object.")
		}
		metadata = raw
	}

	event := &models.TrackingEvent{
		ID:          uuid.New().String(),
		AffiliateID: s.ResolveAffiliate(ctx, req.AffiliateCode),
		EventType:   req.EventType,
		UserID:      req.UserID,
		PropertyID:  req.PropertyID,
		Metadata:    metadata,
	}

	err := retry.Do(ctx, retry.Storage(), func(ctx context.Context) error {
		return s.store.CreateTrackingEvent(ctx, event)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}
