package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_created_total",
		Help: "Total number of service requests created at checkout",
	})

	CheckoutsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_failed_total",
		Help: "Total number of failed checkout attempts",
	}, []string{"reason"})

	WebhooksReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhooks_received_total",
		Help: "Total number of gateway webhooks received",
	}, []string{"gateway"})

	WebhooksProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhooks_processed_total",
		Help: "Total number of webhooks that mutated application state",
	}, []string{"gateway", "status"})

	WebhooksDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhooks_duplicate_total",
		Help: "Total number of redelivered webhooks skipped by the idempotency guard",
	})

	WebhooksRejectedSignatureTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhooks_rejected_signature_total",
		Help: "Total number of webhooks rejected for a bad signature",
	})

	PaymentsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_confirmed_total",
		Help: "Total number of payments confirmed",
	})

	PaymentsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_failed_total",
		Help: "Total number of payments that failed at the gateway",
	})

	PaymentsRefundedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_refunded_total",
		Help: "Total number of payments refunded",
	})

	CommissionsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commissions_recorded_total",
		Help: "Total number of affiliate commissions recorded",
	})

	CommissionsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commissions_cancelled_total",
		Help: "Total number of affiliate commissions cancelled on refund",
	})

	CommissionsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commissions_skipped_total",
		Help: "Total number of commissions skipped",
	}, []string{"reason"})

	EmailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Total number of notification emails sent",
	}, []string{"kind"})

	EmailsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_failed_total",
		Help: "Total number of notification emails that failed to send",
	}, []string{"kind"})

	RetryAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retry_attempts_total",
		Help: "Total number of retries performed by the retry executor",
	})

	WebhookProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "webhook_processing_latency_seconds",
		Help:    "Latency of webhook ingestion",
		Buckets: prometheus.DefBuckets,
	})

	IntentCreationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_intent_creation_latency_seconds",
		Help:    "Latency of gateway payment intent creation",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
