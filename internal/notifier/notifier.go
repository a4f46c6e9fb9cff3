package notifier

import (
	"fmt"
	"runtime/debug"

	"github.com/recurro/recurro/internal/models"
	"github.com/recurro/recurro/pkg/logger"
)

// Notifier fans payment events out to the channels registered for an
// address. Delivery is best-effort: failures are logged and swallowed,
// a payment never fails because a notification did.
type Notifier struct {
	logger *logger.Logger
	store  models.RecordStore

	TelegramNotifier *TelegramNotifier // may be nil when no bot token is configured
	EmailNotifier    *EmailNotifier    // may be nil when SMTP is not configured
}

func NewNotifier(log *logger.Logger, store models.RecordStore, telegram *TelegramNotifier, email *EmailNotifier) *Notifier {
	return &Notifier{logger: log, store: store, TelegramNotifier: telegram, EmailNotifier: email}
}

// safeCall runs a function with panic recovery.
func (n *Notifier) safeCall(fn func(), context string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Notification delivery panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// NotifyPaymentSettled tells the creator a subscription payment settled
// on chain.
func (n *Notifier) NotifyPaymentSettled(sub *models.Subscription, payment *models.Payment, payer string) {
	message := fmt.Sprintf(
		"Payment received: %s %s for plan %q from %s (tx %s)",
		payment.Amount.String(), payment.Currency, planName(sub), payerLabel(payer), payment.TransactionID,
	)
	n.deliver(sub.CreatorAddress, message, "paymentSettled")
}

// NotifyRenewalDue tells the subscriber a billing cycle elapsed and a
// pending payment awaits settlement.
func (n *Notifier) NotifyRenewalDue(sub *models.Subscription) {
	message := fmt.Sprintf(
		"Renewal due: %s %s for plan %q. Your next visit will settle the payment.",
		sub.Amount.String(), sub.Currency, planName(sub),
	)
	n.deliver(sub.SubscriberAddress, message, "renewalDue")
}

func (n *Notifier) deliver(address, message, context string) {
	contact, err := n.store.GetContact(address)
	if err != nil {
		// No contact registered is the common case, not an error.
		n.logger.Debug("No notification contact for address ", "address ", address)
		return
	}

	if n.TelegramNotifier != nil && contact.TelegramChatID != "" {
		chatID := contact.TelegramChatID
		n.safeCall(func() { n.TelegramNotifier.SendNotification(chatID, message) }, context+"/telegram")
	}
	if n.EmailNotifier != nil && contact.Email != "" {
		email := contact.Email
		n.safeCall(func() { n.EmailNotifier.SendNotification(email, message) }, context+"/email")
	}
}

func planName(sub *models.Subscription) string {
	if sub.PlanName != "" {
		return sub.PlanName
	}
	return sub.ID
}

func payerLabel(payer string) string {
	if payer == "" {
		return "unknown payer"
	}
	return payer
}
