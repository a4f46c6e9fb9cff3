package scheduler

import (
	"testing"
	"time"

	"github.com/recurro/recurro/internal/models"
	"github.com/recurro/recurro/internal/repository"
	"github.com/recurro/recurro/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCreator    = "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"
	testSubscriber = "ST2CY5V39NHDPWSXMW9QDT3HC3GD6Q6XX4CFRK9AG"
)

func newTestSubscription(id string, status models.SubscriptionStatus, nextPaymentDate int64) *models.Subscription {
	return &models.Subscription{
		ID:                id,
		CreatorAddress:    testCreator,
		SubscriberAddress: testSubscriber,
		Amount:            decimal.NewFromInt(5),
		Currency:          models.CurrencySTX,
		Interval:          models.IntervalWeekly,
		Status:            status,
		NextPaymentDate:   nextPaymentDate,
		CreatedAt:         time.Now().UnixMilli(),
	}
}

func TestNextPaymentDate(t *testing.T) {
	tests := []struct {
		name     string
		interval models.SubscriptionInterval
		from     int64
		want     int64
	}{
		{name: "daily is 24h", interval: models.IntervalDaily, from: 1_000, want: 1_000 + 86_400_000},
		{name: "weekly is 7 days", interval: models.IntervalWeekly, from: 1_000, want: 1_000 + 7*86_400_000},
		{name: "monthly is a fixed 30 days", interval: models.IntervalMonthly, from: 1_000, want: 1_000 + 30*86_400_000},
		{name: "unknown interval falls back to monthly", interval: "fortnightly", from: 0, want: 30 * 86_400_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextPaymentDate(tt.interval, tt.from))
		})
	}
}

func TestFindDueSubscriptions(t *testing.T) {
	store := repository.NewMemoryStore()
	now := time.Now().UnixMilli()

	due := newTestSubscription("sub_due", models.SubscriptionActive, now-1000)
	future := newTestSubscription("sub_future", models.SubscriptionActive, now+86_400_000)
	paused := newTestSubscription("sub_paused", models.SubscriptionPaused, now-1000)
	unscheduled := newTestSubscription("sub_unscheduled", models.SubscriptionActive, 0)
	template := newTestSubscription("sub_template", models.SubscriptionActive, now-1000)
	template.SubscriberAddress = models.TemplatePlan

	for _, sub := range []*models.Subscription{due, future, paused, unscheduled, template} {
		require.NoError(t, store.CreateSubscription(sub))
	}

	s := NewScheduler(store, nil, logger.NewNop())
	found, err := s.FindDueSubscriptions(now)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "sub_due", found[0].ID)
}

func TestProcessDue(t *testing.T) {
	store := repository.NewMemoryStore()
	now := time.Now().UnixMilli()

	first := newTestSubscription("sub_first", models.SubscriptionActive, now-5000)
	second := newTestSubscription("sub_second", models.SubscriptionActive, now-1000)
	second.Interval = models.IntervalDaily
	require.NoError(t, store.CreateSubscription(first))
	require.NoError(t, store.CreateSubscription(second))

	s := NewScheduler(store, nil, logger.NewNop())
	processed, err := s.ProcessDue(now)
	require.NoError(t, err)
	require.Len(t, processed, 2)

	for _, cycle := range processed {
		payment, err := store.GetPayment(cycle.PaymentID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentPending, payment.Status)
		assert.Equal(t, cycle.SubscriptionID, payment.SubscriptionID)
		assert.Empty(t, payment.TransactionID)

		sub, err := store.GetSubscription(cycle.SubscriptionID)
		require.NoError(t, err)
		assert.Equal(t, cycle.NextPaymentDate, sub.NextPaymentDate)
		assert.Greater(t, sub.NextPaymentDate, now)
		assert.Equal(t, int64(1), sub.Version)
	}
}

func TestProcessDueSecondRunIsNoop(t *testing.T) {
	store := repository.NewMemoryStore()
	now := time.Now().UnixMilli()
	require.NoError(t, store.CreateSubscription(newTestSubscription("sub_due", models.SubscriptionActive, now-1000)))

	s := NewScheduler(store, nil, logger.NewNop())
	processed, err := s.ProcessDue(now)
	require.NoError(t, err)
	require.Len(t, processed, 1)

	// The subscription advanced past now, so a second scan finds nothing.
	processed, err = s.ProcessDue(now)
	require.NoError(t, err)
	assert.Empty(t, processed)
}

// conflictStore simulates a concurrent writer winning every CAS update.
type conflictStore struct {
	*repository.MemoryStore
}

func (c *conflictStore) UpdateSubscription(sub *models.Subscription) error {
	return models.ErrVersionConflict
}

func TestProcessDueVersionConflictSkips(t *testing.T) {
	store := &conflictStore{MemoryStore: repository.NewMemoryStore()}
	now := time.Now().UnixMilli()
	require.NoError(t, store.CreateSubscription(newTestSubscription("sub_due", models.SubscriptionActive, now-1000)))

	s := NewScheduler(store, nil, logger.NewNop())
	processed, err := s.ProcessDue(now)
	require.NoError(t, err)
	assert.Empty(t, processed)

	// The pending payment is still created; only the advance is skipped.
	payments, err := store.ListPayments(models.PaymentFilter{SubscriptionID: "sub_due"})
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}
