package store

import (
	"context"
	"database/sql"

	"settlement-service/internal/models"
)

// GetActiveCommissionConfig retrieves the active commission rule for a
// category. Returns nil without error when no active rule exists; the
// caller falls back to the default category.
func (s *Store) GetActiveCommissionConfig(ctx context.Context, category string) (*models.CommissionConfig, error) {
	var cfg models.CommissionConfig
	err := s.db.GetContext(ctx, &cfg, `
		SELECT * FROM commission_configs
		WHERE category = $1 AND active = TRUE
		ORDER BY created_at DESC LIMIT 1`, category)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CreateCommission inserts a commission. The unique constraint on
// service_request_id makes the insert a no-op on redelivery; the boolean
// reports whether a row was actually created.
func (s *Store) CreateCommission(ctx context.Context, c *models.AffiliateCommission) (bool, error) {
	query := `
		INSERT INTO affiliate_commissions
			(affiliate_id, service_request_id, amount, currency, status,
			 source_amount, source_currency, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (service_request_id) DO NOTHING
		RETURNING id, created_at, updated_at`

	err := s.db.GetContext(ctx, c, query,
		c.AffiliateID, c.ServiceRequestID, c.Amount, c.Currency, c.Status,
		c.SourceAmount, c.SourceCurrency, c.Notes)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetCommissionByRequestID retrieves the commission for a service request,
// nil when none exists
func (s *Store) GetCommissionByRequestID(ctx context.Context, serviceRequestID int64) (*models.AffiliateCommission, error) {
	var c models.AffiliateCommission
	err := s.db.GetContext(ctx, &c,
		"SELECT * FROM affiliate_commissions WHERE service_request_id = $1", serviceRequestID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CancelCommission marks a commission cancelled with an explanatory note.
// The record is never deleted.
func (s *Store) CancelCommission(ctx context.Context, id int64, note string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE affiliate_commissions
		SET status = $1, notes = $2, updated_at = NOW()
		WHERE id = $3 AND status != $1`,
		models.CommissionStatusCancelled, note, id)
	return err
}
