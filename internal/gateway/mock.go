package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"settlement-service/internal/apperr"
	"settlement-service/internal/models"
)

const mockSignatureHeader = "X-Mock-Signature"

// Mock is a deterministic in-process gateway used for tests and local
// development. It signs webhooks with the same HMAC scheme as real
// providers so the verification path is exercised end to end.
type Mock struct {
	webhookSecret string

	// FailIntent forces CreateIntent to return a gateway error.
	FailIntent bool
}

func NewMock(cfg *models.GatewayConfig) Gateway {
	secret := cfg.WebhookSecret
	if secret == "" {
		secret = "mock-webhook-secret"
	}
	return &Mock{webhookSecret: secret}
}

func (m *Mock) Name() string {
	return "mock"
}

func (m *Mock) SignatureHeader() string {
	return mockSignatureHeader
}

func (m *Mock) CreateIntent(ctx context.Context, req *IntentRequest) (*Intent, error) {
	if m.FailIntent {
		return nil, apperr.Payment("mock.intent_failed", "Payment could not be initiated.", nil)
	}
	// The adapter is rebuilt per request, so the secret is derived from the
	// receipt rather than any instance state.
	return &Intent{
		ClientSecret: "mock_order_" + req.Receipt,
		Amount:       req.Amount,
		Currency:     req.Currency,
		GatewayName:  m.Name(),
		Metadata:     req.Metadata,
	}, nil
}

func (m *Mock) VerifyWebhook(payload []byte, signature string) bool {
	return hmac.Equal([]byte(m.Sign(payload)), []byte(signature))
}

// Sign produces the signature VerifyWebhook accepts, for use in tests.
func (m *Mock) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(m.webhookSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// mockWebhook is the payload shape the mock gateway emits: already
// canonical, no provider envelope to unwrap.
type mockWebhook struct {
	TransactionID string            `json:"transaction_id"`
	Status        string            `json:"status"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

func (m *Mock) ParseWebhook(payload []byte) (*WebhookResult, error) {
	var hook mockWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, apperr.Payment("mock.malformed_payload", "Webhook payload could not be parsed.", err)
	}

	switch Status(hook.Status) {
	case StatusSuccess, StatusFailed, StatusPending, StatusRefunded:
	default:
		return nil, apperr.Payment("mock.unknown_status",
			fmt.Sprintf("Unrecognized webhook status %q.", hook.Status), nil)
	}

	return &WebhookResult{
		TransactionID: hook.TransactionID,
		Status:        Status(hook.Status),
		Amount:        hook.Amount,
		Currency:      hook.Currency,
		Metadata:      hook.Metadata,
	}, nil
}

func (m *Mock) Refund(ctx context.Context, transactionID string, amount int64) (*RefundResult, error) {
	return &RefundResult{
		RefundID: "mock_refund_" + transactionID,
		Amount:   amount,
		Status:   "processed",
	}, nil
}
