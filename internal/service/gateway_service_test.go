package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"settlement-service/config"
	"settlement-service/internal/apperr"
	"settlement-service/internal/gateway"
)

func TestResolveActiveWithoutConfiguration(t *testing.T) {
	// No stored config and no env fallback: payments are unavailable and
	// the caller gets a retryable 503, not a panic or a silent default.
	gateways := NewGatewayService(newFakeStore(), &fakeCache{}, gateway.NewRegistry(), config.GatewayConfig{})

	_, _, err := gateways.ResolveActive(context.Background())
	require.Error(t, err)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindNetwork, appErr.Kind)
	assert.Equal(t, "gateway_not_configured", appErr.Code)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.HTTPStatus())
}

func TestResolveActiveEnvFallback(t *testing.T) {
	registry := gateway.NewRegistry()
	registry.Register("mock", gateway.NewMock)

	fallback := config.GatewayConfig{Name: "mock", WebhookSecret: "env-secret"}
	gateways := NewGatewayService(newFakeStore(), &fakeCache{}, registry, fallback)

	cfg, gw, err := gateways.ResolveActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.Gateway)
	assert.Equal(t, "mock", gw.Name())
}
