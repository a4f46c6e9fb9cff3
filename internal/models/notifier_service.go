package models

// NotifierService delivers best-effort payment notifications. Delivery
// failures are logged by implementations, never propagated.
type NotifierService interface {
	// NotifyPaymentSettled tells the creator a payment settled on chain.
	NotifyPaymentSettled(sub *Subscription, payment *Payment, payer string)
	// NotifyRenewalDue tells the subscriber a billing cycle has elapsed.
	NotifyRenewalDue(sub *Subscription)
}
