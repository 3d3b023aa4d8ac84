package store

import (
	"context"
	"database/sql"
	"fmt"

	"settlement-service/internal/models"
)

// CreateServiceRequest creates a new service request
func (s *Store) CreateServiceRequest(ctx context.Context, req *models.ServiceRequest) error {
	query := `
		INSERT INTO service_requests
			(reference_code, service_id, service_tier_id, customer_name, customer_email,
			 customer_phone, requirements, gateway, amount, currency, payment_status,
			 status, affiliate_code, affiliate_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, req, query,
		req.ReferenceCode, req.ServiceID, req.ServiceTierID, req.CustomerName,
		req.CustomerEmail, req.CustomerPhone, req.Requirements, req.Gateway,
		req.Amount, req.Currency, req.PaymentStatus, req.Status,
		req.AffiliateCode, req.AffiliateID)
}

// GetServiceRequestByID retrieves a service request by ID
func (s *Store) GetServiceRequestByID(ctx context.Context, id int64) (*models.ServiceRequest, error) {
	var req models.ServiceRequest
	err := s.db.GetContext(ctx, &req, "SELECT * FROM service_requests WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetServiceRequestByReference retrieves a service request by its reference code
func (s *Store) GetServiceRequestByReference(ctx context.Context, referenceCode string) (*models.ServiceRequest, error) {
	var req models.ServiceRequest
	err := s.db.GetContext(ctx, &req, "SELECT * FROM service_requests WHERE reference_code = $1", referenceCode)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ConfirmPayment marks a request paid and payment-confirmed in a single
// conditional update. Returns false when another delivery already settled
// the payment, which closes the read-then-write idempotency gap.
func (s *Store) ConfirmPayment(ctx context.Context, id int64, transactionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE service_requests
		SET payment_status = $1, status = $2, transaction_id = $3,
		    completed_at = NOW(), updated_at = NOW()
		WHERE id = $4 AND payment_status NOT IN ($1, $5, $6)`,
		models.PaymentStatusCompleted, models.StatusPaymentConfirmed, transactionID,
		id, models.PaymentStatusFailed, models.PaymentStatusRefunded)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// FailPayment marks a request failed and cancelled, conditionally.
func (s *Store) FailPayment(ctx context.Context, id int64, transactionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE service_requests
		SET payment_status = $1, status = $2, transaction_id = $3, updated_at = NOW()
		WHERE id = $4 AND payment_status NOT IN ($5, $1, $6)`,
		models.PaymentStatusFailed, models.StatusCancelled, transactionID,
		id, models.PaymentStatusCompleted, models.PaymentStatusRefunded)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// RefundPayment marks a completed payment refunded and the request
// cancelled. Only a completed payment can transition to refunded.
func (s *Store) RefundPayment(ctx context.Context, id int64, transactionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE service_requests
		SET payment_status = $1, status = $2, transaction_id = $3, updated_at = NOW()
		WHERE id = $4 AND payment_status = $5`,
		models.PaymentStatusRefunded, models.StatusCancelled, transactionID,
		id, models.PaymentStatusCompleted)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// SetTransactionID stamps the gateway transaction id without touching status
func (s *Store) SetTransactionID(ctx context.Context, id int64, transactionID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE service_requests SET transaction_id = $1, updated_at = NOW() WHERE id = $2",
		transactionID, id)
	return err
}

// UpdateRequestStatusFrom advances the fulfillment status only if the row is
// still in the expected prior status. Returns false when a concurrent
// transition won.
func (s *Store) UpdateRequestStatusFrom(ctx context.Context, id int64, from, to string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE service_requests SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		to, id, from)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// AssignProvider sets the assigned provider on a request
func (s *Store) AssignProvider(ctx context.Context, id, providerID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE service_requests SET provider_id = $1, updated_at = NOW() WHERE id = $2",
		providerID, id)
	return err
}

// AppendStatusHistory records one accepted transition. History is
// append-only and never mutated.
func (s *Store) AppendStatusHistory(ctx context.Context, entry *models.StatusHistoryEntry) error {
	query := `
		INSERT INTO status_history (service_request_id, from_status, to_status, actor_id, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, entry, query,
		entry.ServiceRequestID, entry.FromStatus, entry.ToStatus, entry.ActorID, entry.Notes)
}

// GetStatusHistory retrieves the chronological history for a request
func (s *Store) GetStatusHistory(ctx context.Context, serviceRequestID int64) ([]models.StatusHistoryEntry, error) {
	var entries []models.StatusHistoryEntry
	err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM status_history WHERE service_request_id = $1 ORDER BY created_at ASC, id ASC",
		serviceRequestID)
	return entries, err
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}
