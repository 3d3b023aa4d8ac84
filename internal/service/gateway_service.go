package service

import (
	"context"
	"time"

	"settlement-service/config"
	"settlement-service/internal/apperr"
	"settlement-service/internal/gateway"
	"settlement-service/internal/models"
	"settlement-service/internal/retry"
	"settlement-service/internal/util"

	"go.uber.org/zap"
)

const gatewayConfigCacheTTL = 5 * time.Minute

// GatewayService resolves the gateway configuration in effect and builds
// the matching adapter. The resolved configuration is passed down
// explicitly; nothing re-queries ambient state mid-request.
type GatewayService struct {
	store    Store
	cache    ConfigCache
	registry *gateway.Registry
	fallback config.GatewayConfig
	logger   *zap.Logger
}

func NewGatewayService(store Store, cache ConfigCache, registry *gateway.Registry, fallback config.GatewayConfig) *GatewayService {
	return &GatewayService{
		store:    store,
		cache:    cache,
		registry: registry,
		fallback: fallback,
		logger:   util.NamedLogger("gateway"),
	}
}

// ResolveActive returns the configuration in effect and its adapter:
// the default-flagged active row, else the newest active row, else the
// environment fallback. No usable configuration is a service-unavailable
// condition.
func (s *GatewayService) ResolveActive(ctx context.Context) (*models.GatewayConfig, gateway.Gateway, error) {
	ctx, span := util.StartSpan(ctx, "GatewayService.ResolveActive")
	defer span.End()

	cfg := s.cachedConfig(ctx)
	if cfg == nil {
		var err error
		cfg, err = retry.DoValue(ctx, retry.Storage(), func(ctx context.Context) (*models.GatewayConfig, error) {
			return s.store.GetActiveGatewayConfig(ctx)
		})
		if err != nil {
			return nil, nil, err
		}
		if cfg != nil {
			if cacheErr := s.cache.SetCachedGatewayConfig(ctx, cfg, gatewayConfigCacheTTL); cacheErr != nil {
				s.logger.Warn("Failed to cache gateway config", zap.Error(cacheErr))
			}
		}
	}

	if cfg == nil {
		cfg = s.envFallback()
	}
	if cfg == nil {
		return nil, nil, &apperr.Error{
			Kind:    apperr.KindNetwork,
			Code:    "gateway_not_configured",
			Message: "Payments are temporarily unavailable.",
			Action:  "Retry later or contact support.",
		}
	}

	gw, err := s.registry.Gateway(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gw, nil
}

// CreateConfig persists a gateway configuration and drops the cache.
func (s *GatewayService) CreateConfig(ctx context.Context, cfg *models.GatewayConfig) error {
	ctx, span := util.StartSpan(ctx, "GatewayService.CreateConfig")
	defer span.End()

	if _, err := s.registry.Gateway(cfg); err != nil {
		return err
	}

	err := retry.Do(ctx, retry.Storage(), func(ctx context.Context) error {
		return s.store.CreateGatewayConfig(ctx, cfg)
	})
	if err != nil {
		return err
	}

	if cacheErr := s.cache.InvalidateGatewayConfig(ctx); cacheErr != nil {
		s.logger.Warn("Failed to invalidate gateway config cache", zap.Error(cacheErr))
	}

	s.logger.Info("Gateway config created",
		zap.String("gateway", cfg.Gateway),
		zap.Bool("is_default", cfg.IsDefault))
	return nil
}

func (s *GatewayService) cachedConfig(ctx context.Context) *models.GatewayConfig {
	cfg, err := s.cache.GetCachedGatewayConfig(ctx)
	if err != nil {
		s.logger.Warn("Gateway config cache read failed", zap.Error(err))
		return nil
	}
	return cfg
}

func (s *GatewayService) envFallback() *models.GatewayConfig {
	if s.fallback.Name == "" || (s.fallback.KeyID == "" && s.fallback.WebhookSecret == "") {
		return nil
	}
	return &models.GatewayConfig{
		Gateway:       s.fallback.Name,
		KeyID:         s.fallback.KeyID,
		KeySecret:     s.fallback.KeySecret,
		WebhookSecret: s.fallback.WebhookSecret,
		Active:        true,
	}
}
