package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"settlement-service/internal/models"

	"github.com/go-redis/redis/v8"
)

const gatewayConfigKey = "gateway:active"

// cachedConfig mirrors models.GatewayConfig with explicit tags because the
// model masks credentials from API JSON and the cache needs them intact.
type cachedConfig struct {
	ID            int64     `json:"id"`
	Gateway       string    `json:"gateway"`
	KeyID         string    `json:"key_id"`
	KeySecret     string    `json:"key_secret"`
	WebhookSecret string    `json:"webhook_secret"`
	IsDefault     bool      `json:"is_default"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireWebhookLock takes the delivery lock for one gateway transaction.
// Returns false when another delivery of the same webhook holds it, which
// keeps near-simultaneous redeliveries from both entering the pipeline.
func (c *Client) AcquireWebhookLock(ctx context.Context, gateway, transactionID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:webhook:%s:%s", gateway, transactionID)
	return c.rdb.SetNX(ctx, key, "1", ttl).Result()
}

// ReleaseWebhookLock drops a delivery lock early. Locks also expire via TTL,
// so failure here is not fatal.
func (c *Client) ReleaseWebhookLock(ctx context.Context, gateway, transactionID string) error {
	key := fmt.Sprintf("lock:webhook:%s:%s", gateway, transactionID)
	return c.rdb.Del(ctx, key).Err()
}

// GetCachedGatewayConfig retrieves the cached active gateway configuration,
// nil on a miss
func (c *Client) GetCachedGatewayConfig(ctx context.Context) (*models.GatewayConfig, error) {
	raw, err := c.rdb.Get(ctx, gatewayConfigKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entry cachedConfig
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("corrupt cached gateway config: %w", err)
	}
	return &models.GatewayConfig{
		ID:            entry.ID,
		Gateway:       entry.Gateway,
		KeyID:         entry.KeyID,
		KeySecret:     entry.KeySecret,
		WebhookSecret: entry.WebhookSecret,
		IsDefault:     entry.IsDefault,
		Active:        entry.Active,
		CreatedAt:     entry.CreatedAt,
	}, nil
}

// SetCachedGatewayConfig caches the active gateway configuration
func (c *Client) SetCachedGatewayConfig(ctx context.Context, cfg *models.GatewayConfig, ttl time.Duration) error {
	raw, err := json.Marshal(cachedConfig{
		ID:            cfg.ID,
		Gateway:       cfg.Gateway,
		KeyID:         cfg.KeyID,
		KeySecret:     cfg.KeySecret,
		WebhookSecret: cfg.WebhookSecret,
		IsDefault:     cfg.IsDefault,
		Active:        cfg.Active,
		CreatedAt:     cfg.CreatedAt,
	})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, gatewayConfigKey, raw, ttl).Err()
}

// InvalidateGatewayConfig drops the cached configuration after an admin
// change
func (c *Client) InvalidateGatewayConfig(ctx context.Context) error {
	return c.rdb.Del(ctx, gatewayConfigKey).Err()
}
