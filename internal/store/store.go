package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"settlement-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetServiceByID retrieves a service by ID
func (s *Store) GetServiceByID(ctx context.Context, id int64) (*models.Service, error) {
	var svc models.Service
	err := s.db.GetContext(ctx, &svc, "SELECT * FROM services WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

// GetServiceTierByID retrieves a service tier by ID
func (s *Store) GetServiceTierByID(ctx context.Context, id int64) (*models.ServiceTier, error) {
	var tier models.ServiceTier
	err := s.db.GetContext(ctx, &tier, "SELECT * FROM service_tiers WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tier, nil
}

// GetActiveGatewayConfig retrieves the gateway configuration in effect: the
// default-flagged active row, else the most recently created active row.
// Returns nil without error when no row exists (env fallback applies).
func (s *Store) GetActiveGatewayConfig(ctx context.Context) (*models.GatewayConfig, error) {
	var cfg models.GatewayConfig
	err := s.db.GetContext(ctx, &cfg,
		"SELECT * FROM gateway_configs WHERE active = TRUE ORDER BY is_default DESC, created_at DESC LIMIT 1")
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CreateGatewayConfig inserts a gateway configuration. Marking a config as
// default clears the flag on every other row in the same statement batch.
func (s *Store) CreateGatewayConfig(ctx context.Context, cfg *models.GatewayConfig) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if cfg.IsDefault {
		if _, err := tx.ExecContext(ctx, "UPDATE gateway_configs SET is_default = FALSE WHERE is_default = TRUE"); err != nil {
			return fmt.Errorf("failed to clear default flag: %w", err)
		}
	}

	query := `
		INSERT INTO gateway_configs (gateway, key_id, key_secret, webhook_secret, is_default, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	if err := tx.GetContext(ctx, cfg, query,
		cfg.Gateway, cfg.KeyID, cfg.KeySecret, cfg.WebhookSecret, cfg.IsDefault, cfg.Active); err != nil {
		return err
	}

	return tx.Commit()
}
