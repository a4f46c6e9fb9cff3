package models

// SubscriptionFilter narrows a subscription listing. Zero-value fields
// match everything.
type SubscriptionFilter struct {
	CreatorAddress    string
	SubscriberAddress string
	Status            SubscriptionStatus
}

// PaymentFilter narrows a payment listing.
type PaymentFilter struct {
	SubscriptionID string
	Status         PaymentStatus
}

// RecordStore owns the Subscription/Payment lifecycle. The protocol
// components only read and request mutations through it; none of them
// hold private copies across calls.
type RecordStore interface {
	CreateSubscription(sub *Subscription) error
	GetSubscription(id string) (*Subscription, error)
	// UpdateSubscription performs a compare-and-swap on sub.Version: the
	// update applies only if the stored version still matches, and the
	// version is incremented on success. Returns ErrVersionConflict when
	// a concurrent writer got there first.
	UpdateSubscription(sub *Subscription) error
	ListSubscriptions(filter SubscriptionFilter) ([]*Subscription, error)

	CreatePayment(payment *Payment) error
	GetPayment(id string) (*Payment, error)
	// UpdatePaymentStatus enforces the pending -> completed|failed
	// transition; terminal payments never change again.
	UpdatePaymentStatus(id string, status PaymentStatus, transactionID string) error
	ListPayments(filter PaymentFilter) ([]*Payment, error)

	UpsertContact(contact *NotificationContact) error
	GetContact(address string) (*NotificationContact, error)
	GetContactByTelegramUsername(username string) (*NotificationContact, error)

	Close() error
}
