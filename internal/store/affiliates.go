package store

import (
	"context"
	"database/sql"

	"settlement-service/internal/models"
)

// GetAffiliateByID retrieves an affiliate by ID
func (s *Store) GetAffiliateByID(ctx context.Context, id string) (*models.Affiliate, error) {
	var aff models.Affiliate
	err := s.db.GetContext(ctx, &aff, "SELECT * FROM affiliates WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &aff, nil
}

// CreateAffiliate creates a new affiliate
func (s *Store) CreateAffiliate(ctx context.Context, aff *models.Affiliate) error {
	query := `
		INSERT INTO affiliates (id, name, description, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	return s.db.GetContext(ctx, aff, query, aff.ID, aff.Name, aff.Description, aff.Status)
}

// UpdateAffiliate updates an affiliate's display fields and status
func (s *Store) UpdateAffiliate(ctx context.Context, aff *models.Affiliate) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE affiliates SET name = $1, description = $2, status = $3, updated_at = NOW() WHERE id = $4",
		aff.Name, aff.Description, aff.Status, aff.ID)
	return err
}

// ListAffiliates retrieves all affiliates, newest first
func (s *Store) ListAffiliates(ctx context.Context) ([]models.Affiliate, error) {
	var affs []models.Affiliate
	err := s.db.SelectContext(ctx, &affs, "SELECT * FROM affiliates ORDER BY created_at DESC")
	return affs, err
}

// CreateTrackingEvent records an immutable attribution event
func (s *Store) CreateTrackingEvent(ctx context.Context, event *models.TrackingEvent) error {
	query := `
		INSERT INTO tracking_events (id, affiliate_id, event_type, user_id, property_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	return s.db.GetContext(ctx, event, query,
		event.ID, event.AffiliateID, event.EventType, event.UserID, event.PropertyID, event.Metadata)
}

// GetAffiliateCommissionTotal sums pending and payable commission amounts
// for an affiliate
func (s *Store) GetAffiliateCommissionTotal(ctx context.Context, affiliateID string) (int64, error) {
	var total int64
	err := s.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(amount), 0) FROM affiliate_commissions
		WHERE affiliate_id = $1 AND status != $2`,
		affiliateID, models.CommissionStatusCancelled)
	return total, err
}
