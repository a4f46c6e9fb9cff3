package models

import "github.com/shopspring/decimal"

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPaused    SubscriptionStatus = "paused"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// IsValid reports whether s is one of the three permitted states.
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionActive, SubscriptionPaused, SubscriptionCancelled:
		return true
	}
	return false
}

type SubscriptionInterval string

const (
	IntervalDaily   SubscriptionInterval = "daily"
	IntervalWeekly  SubscriptionInterval = "weekly"
	IntervalMonthly SubscriptionInterval = "monthly"
)

func (i SubscriptionInterval) IsValid() bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalMonthly:
		return true
	}
	return false
}

// Subscriber addresses that mark a record as a plan template (an offering
// with no real subscriber). Template records are excluded from due-payment
// scans and revenue aggregation.
const (
	TemplatePlaceholder = "placeholder"
	TemplatePlan        = "plan_template"
)

// IsPlanTemplate reports whether a subscriber address is a template sentinel.
func IsPlanTemplate(subscriberAddress string) bool {
	return subscriberAddress == TemplatePlaceholder || subscriberAddress == TemplatePlan
}

// Subscription represents a recurring payment agreement between a creator
// and a subscriber, or a plan template when the subscriber address is a
// sentinel value.
type Subscription struct {
	// ID is the unique identifier for the subscription (sub_<uuid>).
	ID string `json:"id" gorm:"column:id;primaryKey"`
	// CreatorAddress is the Stacks address receiving payments.
	CreatorAddress string `json:"creatorAddress" gorm:"column:creator_address;index"`
	// SubscriberAddress is the paying Stacks address, or a template sentinel.
	SubscriberAddress string `json:"subscriberAddress" gorm:"column:subscriber_address;index"`
	// Amount is the price per billing cycle in STX.
	Amount decimal.Decimal `json:"amount" gorm:"column:amount;type:numeric"`
	// Currency is the payment asset. Only STX is supported.
	Currency string `json:"currency" gorm:"column:currency"`
	// Interval is the billing cycle length.
	Interval SubscriptionInterval `json:"interval" gorm:"column:interval"`
	// Status is one of active, paused, cancelled.
	Status SubscriptionStatus `json:"status" gorm:"column:status;index"`
	// NextPaymentDate is the epoch-millisecond timestamp of the next due
	// payment. Strictly increases on each successful billing-cycle advance.
	NextPaymentDate int64 `json:"nextPaymentDate" gorm:"column:next_payment_date;index"`
	// CreatedAt is the epoch-millisecond creation timestamp.
	CreatedAt int64 `json:"createdAt" gorm:"column:created_at"`
	// Version is an optimistic-concurrency counter incremented on every
	// compare-and-swap update. Guards against double-advancing a cycle.
	Version int64 `json:"version" gorm:"column:version"`

	PlanName    string   `json:"planName,omitempty" gorm:"column:plan_name"`
	Description string   `json:"description,omitempty" gorm:"column:description"`
	Perks       []string `json:"perks,omitempty" gorm:"column:perks;serializer:json"`
}

// IsTemplate reports whether the record is a plan template rather than a
// live subscription.
func (s *Subscription) IsTemplate() bool {
	return IsPlanTemplate(s.SubscriberAddress)
}
