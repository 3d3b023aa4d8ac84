package worker

import (
	"context"
	"fmt"

	"settlement-service/internal/broker"
	"settlement-service/internal/mailer"
	"settlement-service/internal/models"
	"settlement-service/internal/util"

	"go.uber.org/zap"
)

// NotificationWorker consumes settlement events and sends the matching
// emails. Mail is delivered off the webhook path on purpose: a slow or
// failing SMTP server must never delay a gateway acknowledgement.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	mailer       mailer.Mailer
	opsEmail     string
	logger       *zap.Logger
}

// NewNotificationWorker creates a worker wired to the settlement event topic.
func NewNotificationWorker(consumer *broker.Consumer, m mailer.Mailer, opsEmail string) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		mailer:   m,
		opsEmail: opsEmail,
		logger:   util.NamedLogger("notifications"),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnPaymentConfirmed(w.handlePaymentConfirmed)
	eventHandler.OnPaymentFailed(w.handlePaymentFailed)
	eventHandler.OnPaymentRefunded(w.handlePaymentRefunded)
	eventHandler.OnCommissionRecorded(w.handleCommissionRecorded)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

func (w *NotificationWorker) handlePaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error {
	w.send(ctx, "payment_confirmed", &mailer.Message{
		To:      event.CustomerEmail,
		Subject: fmt.Sprintf("Payment received for %s", event.ReferenceCode),
		Text: fmt.Sprintf(
			"Hi %s,\n\nWe received your payment of %s for request %s.\nOur team will contact you within one business day.\n\nKeep this reference number for status checks: %s\n",
			event.CustomerName, formatAmount(event.Amount, event.Currency),
			event.ReferenceCode, event.ReferenceCode),
	})

	if w.opsEmail != "" {
		w.send(ctx, "ops_payment_confirmed", &mailer.Message{
			To:      w.opsEmail,
			Subject: fmt.Sprintf("New paid request %s", event.ReferenceCode),
			Text: fmt.Sprintf(
				"Request %s (id %d) was paid: %s.\nAffiliate: %s\nCustomer: %s <%s>\n",
				event.ReferenceCode, event.ServiceRequestID,
				formatAmount(event.Amount, event.Currency),
				event.AffiliateID, event.CustomerName, event.CustomerEmail),
		})
	}
	return nil
}

func (w *NotificationWorker) handlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	reason := event.Reason
	if reason == "" {
		reason = "the payment was declined"
	}
	w.send(ctx, "payment_failed", &mailer.Message{
		To:      event.CustomerEmail,
		Subject: fmt.Sprintf("Payment failed for %s", event.ReferenceCode),
		Text: fmt.Sprintf(
			"Your payment for request %s could not be completed: %s.\nNo money was taken. You can retry the purchase at any time.\n",
			event.ReferenceCode, reason),
	})
	return nil
}

func (w *NotificationWorker) handlePaymentRefunded(ctx context.Context, event *models.PaymentRefundedEvent) error {
	w.send(ctx, "payment_refunded", &mailer.Message{
		To:      event.CustomerEmail,
		Subject: fmt.Sprintf("Refund issued for %s", event.ReferenceCode),
		Text: fmt.Sprintf(
			"A refund of %s has been issued for request %s.\nDepending on your bank it can take 5-7 business days to appear.\n",
			formatAmount(event.Amount, event.Currency), event.ReferenceCode),
	})
	return nil
}

func (w *NotificationWorker) handleCommissionRecorded(ctx context.Context, event *models.CommissionRecordedEvent) error {
	if w.opsEmail == "" {
		return nil
	}
	w.send(ctx, "commission_recorded", &mailer.Message{
		To:      w.opsEmail,
		Subject: fmt.Sprintf("Commission recorded for affiliate %s", event.AffiliateID),
		Text: fmt.Sprintf(
			"Commission %d: %s for affiliate %s on request %d.\n",
			event.CommissionID, formatAmount(event.Amount, event.Currency),
			event.AffiliateID, event.ServiceRequestID),
	})
	return nil
}

// send delivers one email. Failures are counted and logged; the event is
// still committed, a notification is not worth a redelivery loop.
func (w *NotificationWorker) send(ctx context.Context, kind string, msg *mailer.Message) {
	if msg.To == "" {
		return
	}
	if _, err := w.mailer.Send(ctx, msg); err != nil {
		util.EmailsFailedTotal.WithLabelValues(kind).Inc()
		w.logger.Error("Failed to send email",
			zap.String("kind", kind),
			zap.Error(err))
		return
	}
	util.EmailsSentTotal.WithLabelValues(kind).Inc()
}

// formatAmount renders a minor-unit amount for email bodies.
func formatAmount(minor int64, currency string) string {
	return fmt.Sprintf("%s %d.%02d", currency, minor/100, minor%100)
}
