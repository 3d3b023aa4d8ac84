// Package gateway provides a uniform interface over heterogeneous payment
// providers. Adapters never return bare errors: every provider-side failure
// is a typed payment error carrying a provider code, and signature
// verification failure is a boolean, never an error.
package gateway

import (
	"context"
	"fmt"

	"settlement-service/internal/apperr"
	"settlement-service/internal/models"
)

// Status is the canonical webhook outcome. Adding a provider event forces a
// mapping into this closed set.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusPending  Status = "pending"
	StatusRefunded Status = "refunded"
)

// MetadataRequestID is the metadata key round-tripped through the gateway so
// the webhook can locate the service request.
const MetadataRequestID = "service_request_id"

// IntentRequest describes an intent to collect payment.
type IntentRequest struct {
	Amount        int64
	Currency      string
	CustomerEmail string
	CustomerName  string
	Description   string
	Receipt       string
	Metadata      map[string]string
}

// Intent is a created gateway payment intent. ClientSecret is what the
// client-side checkout needs to proceed.
type Intent struct {
	ClientSecret string
	Amount       int64
	Currency     string
	GatewayName  string
	Metadata     map[string]string
}

// WebhookResult is a gateway notification parsed into canonical form.
type WebhookResult struct {
	TransactionID string
	Status        Status
	Amount        int64
	Currency      string
	Metadata      map[string]string
}

// RefundResult describes an initiated refund.
type RefundResult struct {
	RefundID string
	Amount   int64
	Status   string
}

type Gateway interface {
	Name() string

	// SignatureHeader is the HTTP header the provider signs webhooks with.
	SignatureHeader() string

	CreateIntent(ctx context.Context, req *IntentRequest) (*Intent, error)

	// VerifyWebhook reports whether the signature matches the payload.
	// A mismatch is false, not an error; the caller decides the response.
	VerifyWebhook(payload []byte, signature string) bool

	ParseWebhook(payload []byte) (*WebhookResult, error)

	Refund(ctx context.Context, transactionID string, amount int64) (*RefundResult, error)
}

// Factory builds an adapter from a resolved gateway configuration.
type Factory func(cfg *models.GatewayConfig) Gateway

// Registry maps gateway names to adapter factories.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(name string, factory Factory) {
	r.factories[name] = factory
}

// Gateway builds the adapter for a configuration's gateway name.
func (r *Registry) Gateway(cfg *models.GatewayConfig) (Gateway, error) {
	factory, ok := r.factories[cfg.Gateway]
	if !ok {
		return nil, apperr.Payment("gateway_not_registered",
			fmt.Sprintf("Payment gateway %q is not supported.", cfg.Gateway), nil)
	}
	return factory(cfg), nil
}

// Names lists the registered gateway names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
