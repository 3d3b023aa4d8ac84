package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"settlement-service/internal/apperr"
	"settlement-service/internal/models"
)

const (
	razorpayAPIBase         = "https://api.razorpay.com/v1"
	razorpaySignatureHeader = "X-Razorpay-Signature"
)

// Razorpay event names mapped into the canonical status set.
const (
	razorpayEventCaptured   = "payment.captured"
	razorpayEventFailed     = "payment.failed"
	razorpayEventAuthorized = "payment.authorized"
	razorpayEventRefunded   = "refund.processed"
)

type Razorpay struct {
	keyID         string
	keySecret     string
	webhookSecret string
	apiBase       string
	httpClient    *http.Client
}

// NewRazorpay builds the Razorpay adapter from a gateway configuration.
func NewRazorpay(cfg *models.GatewayConfig) Gateway {
	return &Razorpay{
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		apiBase:       razorpayAPIBase,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (r *Razorpay) Name() string {
	return "razorpay"
}

func (r *Razorpay) SignatureHeader() string {
	return razorpaySignatureHeader
}

type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type razorpayOrder struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Status   string            `json:"status"`
	Notes    map[string]string `json:"notes"`
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateIntent creates a Razorpay order. The order id doubles as the client
// secret handed to the checkout widget. The receipt carries the reference
// code, which Razorpay keeps as a client reference on its side.
func (r *Razorpay) CreateIntent(ctx context.Context, req *IntentRequest) (*Intent, error) {
	order := razorpayOrderRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Metadata,
	}

	var created razorpayOrder
	if err := r.call(ctx, http.MethodPost, "/orders", order, &created); err != nil {
		return nil, err
	}

	return &Intent{
		ClientSecret: created.ID,
		Amount:       created.Amount,
		Currency:     created.Currency,
		GatewayName:  r.Name(),
		Metadata:     created.Notes,
	}, nil
}

// VerifyWebhook checks the HMAC-SHA256 hex signature Razorpay attaches to
// every webhook delivery.
func (r *Razorpay) VerifyWebhook(payload []byte, signature string) bool {
	if signature == "" || r.webhookSecret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(r.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

type razorpayWebhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity razorpayPaymentEntity `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity razorpayRefundEntity `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

type razorpayPaymentEntity struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Status   string            `json:"status"`
	Notes    map[string]string `json:"notes"`
}

type razorpayRefundEntity struct {
	ID        string            `json:"id"`
	PaymentID string            `json:"payment_id"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Notes     map[string]string `json:"notes"`
}

// ParseWebhook maps a verified Razorpay event into the canonical result.
func (r *Razorpay) ParseWebhook(payload []byte) (*WebhookResult, error) {
	var envelope razorpayWebhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, apperr.Payment("razorpay.malformed_payload", "Webhook payload could not be parsed.", err)
	}

	switch envelope.Event {
	case razorpayEventCaptured:
		entity := envelope.Payload.Payment.Entity
		return &WebhookResult{
			TransactionID: entity.ID,
			Status:        StatusSuccess,
			Amount:        entity.Amount,
			Currency:      entity.Currency,
			Metadata:      entity.Notes,
		}, nil

	case razorpayEventFailed:
		entity := envelope.Payload.Payment.Entity
		return &WebhookResult{
			TransactionID: entity.ID,
			Status:        StatusFailed,
			Amount:        entity.Amount,
			Currency:      entity.Currency,
			Metadata:      entity.Notes,
		}, nil

	case razorpayEventAuthorized:
		entity := envelope.Payload.Payment.Entity
		return &WebhookResult{
			TransactionID: entity.ID,
			Status:        StatusPending,
			Amount:        entity.Amount,
			Currency:      entity.Currency,
			Metadata:      entity.Notes,
		}, nil

	case razorpayEventRefunded:
		entity := envelope.Payload.Refund.Entity
		return &WebhookResult{
			TransactionID: entity.PaymentID,
			Status:        StatusRefunded,
			Amount:        entity.Amount,
			Currency:      entity.Currency,
			Metadata:      entity.Notes,
		}, nil
	}

	return nil, apperr.Payment("razorpay.unknown_event",
		fmt.Sprintf("Unrecognized webhook event %q.", envelope.Event), nil)
}

type razorpayRefundRequest struct {
	Amount int64 `json:"amount,omitempty"`
}

// Refund initiates a refund against a captured payment. A zero amount
// refunds the full payment.
func (r *Razorpay) Refund(ctx context.Context, transactionID string, amount int64) (*RefundResult, error) {
	var refund razorpayRefundEntity
	path := fmt.Sprintf("/payments/%s/refund", transactionID)
	if err := r.call(ctx, http.MethodPost, path, razorpayRefundRequest{Amount: amount}, &refund); err != nil {
		return nil, err
	}

	return &RefundResult{
		RefundID: refund.ID,
		Amount:   refund.Amount,
		Status:   "processed",
	}, nil
}

// call performs one authenticated JSON round-trip against the Razorpay API.
func (r *Razorpay) call(ctx context.Context, method, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return apperr.Payment("razorpay.encode_failed", "Payment request could not be encoded.", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.apiBase+path, bytes.NewReader(payload))
	if err != nil {
		return apperr.Payment("razorpay.request_failed", "Payment request could not be built.", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(r.keyID, r.keySecret)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return apperr.Payment("razorpay.unreachable", "Payment gateway could not be reached.", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Payment("razorpay.read_failed", "Payment gateway response could not be read.", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var gwErr razorpayError
		code := fmt.Sprintf("http_%d", resp.StatusCode)
		if json.Unmarshal(raw, &gwErr) == nil && gwErr.Error.Code != "" {
			code = gwErr.Error.Code
		}
		return apperr.Payment(code,
			"The payment gateway rejected the request.",
			fmt.Errorf("razorpay %s %s: status %d", method, path, resp.StatusCode))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Payment("razorpay.malformed_response", "Payment gateway response could not be parsed.", err)
	}
	return nil
}
