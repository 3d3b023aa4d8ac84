package models

import "time"

// Settlement event types published to the event stream.
const (
	EventTypePaymentConfirmed   = "PAYMENT_CONFIRMED"
	EventTypePaymentFailed      = "PAYMENT_FAILED"
	EventTypePaymentRefunded    = "PAYMENT_REFUNDED"
	EventTypeCommissionRecorded = "COMMISSION_RECORDED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentConfirmedEvent published when a gateway webhook confirms payment
type PaymentConfirmedEvent struct {
	BaseEvent
	ServiceRequestID int64  `json:"service_request_id"`
	ReferenceCode    string `json:"reference_code"`
	TransactionID    string `json:"transaction_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	AffiliateID      string `json:"affiliate_id"`
	CustomerEmail    string `json:"customer_email"`
	CustomerName     string `json:"customer_name"`
}

// PaymentFailedEvent published when a gateway webhook reports failure
type PaymentFailedEvent struct {
	BaseEvent
	ServiceRequestID int64  `json:"service_request_id"`
	ReferenceCode    string `json:"reference_code"`
	TransactionID    string `json:"transaction_id"`
	CustomerEmail    string `json:"customer_email"`
	Reason           string `json:"reason"`
}

// PaymentRefundedEvent published when a gateway webhook reports a refund
type PaymentRefundedEvent struct {
	BaseEvent
	ServiceRequestID int64  `json:"service_request_id"`
	ReferenceCode    string `json:"reference_code"`
	TransactionID    string `json:"transaction_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	CustomerEmail    string `json:"customer_email"`
}

// CommissionRecordedEvent published when an affiliate commission is posted
type CommissionRecordedEvent struct {
	BaseEvent
	CommissionID     int64  `json:"commission_id"`
	AffiliateID      string `json:"affiliate_id"`
	ServiceRequestID int64  `json:"service_request_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}
