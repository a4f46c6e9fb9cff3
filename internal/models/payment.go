package models

import "github.com/shopspring/decimal"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
// Payments move pending -> completed or pending -> failed, never back.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

// Payment records one billing-cycle payment for a subscription. Created in
// pending state by the scheduler or the paywall success path; transitions
// to completed or failed based on ledger confirmation.
type Payment struct {
	// ID is the unique identifier for the payment (pay_<uuid>).
	ID string `json:"id" gorm:"column:id;primaryKey"`
	// SubscriptionID links the payment to its subscription.
	SubscriptionID string `json:"subscriptionId" gorm:"column:subscription_id;index"`
	// TransactionID is the on-chain transaction id, empty until settled.
	TransactionID string `json:"transactionId" gorm:"column:transaction_id;index"`
	// Amount is the paid amount in STX.
	Amount decimal.Decimal `json:"amount" gorm:"column:amount;type:numeric"`
	// Currency is the payment asset.
	Currency string `json:"currency" gorm:"column:currency"`
	// Status is one of pending, completed, failed.
	Status PaymentStatus `json:"status" gorm:"column:status;index"`
	// Timestamp is the epoch-millisecond creation timestamp.
	Timestamp int64 `json:"timestamp" gorm:"column:timestamp;index"`
}
