package repository

import (
	"testing"
	"time"

	"github.com/recurro/recurro/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSubscription(t *testing.T, store *MemoryStore, id, creator, subscriber string) *models.Subscription {
	t.Helper()
	sub := &models.Subscription{
		ID:                id,
		CreatorAddress:    creator,
		SubscriberAddress: subscriber,
		Amount:            decimal.NewFromInt(10),
		Currency:          models.CurrencySTX,
		Interval:          models.IntervalMonthly,
		Status:            models.SubscriptionActive,
		NextPaymentDate:   time.Now().UnixMilli(),
	}
	require.NoError(t, store.CreateSubscription(sub))
	return sub
}

func TestUpdateSubscriptionCAS(t *testing.T) {
	store := NewMemoryStore()
	sub := seedSubscription(t, store, "sub_1", "SP_CREATOR", "ST_SUBSCRIBER")

	// First writer wins and bumps the version.
	first, err := store.GetSubscription(sub.ID)
	require.NoError(t, err)
	second, err := store.GetSubscription(sub.ID)
	require.NoError(t, err)

	first.Status = models.SubscriptionPaused
	require.NoError(t, store.UpdateSubscription(first))
	assert.Equal(t, int64(1), first.Version)

	// Second writer still holds version 0 and must fail.
	second.Status = models.SubscriptionCancelled
	err = store.UpdateSubscription(second)
	assert.ErrorIs(t, err, models.ErrVersionConflict)

	stored, err := store.GetSubscription(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionPaused, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
}

func TestUpdateSubscriptionNotFound(t *testing.T) {
	store := NewMemoryStore()
	err := store.UpdateSubscription(&models.Subscription{ID: "sub_missing"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListSubscriptionsFilter(t *testing.T) {
	store := NewMemoryStore()
	seedSubscription(t, store, "sub_1", "SP_A", "ST_X")
	seedSubscription(t, store, "sub_2", "SP_A", "ST_Y")
	paused := seedSubscription(t, store, "sub_3", "SP_B", "ST_X")
	paused.Status = models.SubscriptionPaused
	require.NoError(t, store.UpdateSubscription(paused))

	byCreator, err := store.ListSubscriptions(models.SubscriptionFilter{CreatorAddress: "SP_A"})
	require.NoError(t, err)
	assert.Len(t, byCreator, 2)

	bySubscriber, err := store.ListSubscriptions(models.SubscriptionFilter{SubscriberAddress: "ST_X"})
	require.NoError(t, err)
	assert.Len(t, bySubscriber, 2)

	active, err := store.ListSubscriptions(models.SubscriptionFilter{Status: models.SubscriptionActive})
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestUpdatePaymentStatus(t *testing.T) {
	store := NewMemoryStore()
	payment := &models.Payment{
		ID:             "pay_1",
		SubscriptionID: "sub_1",
		Amount:         decimal.NewFromInt(10),
		Currency:       models.CurrencySTX,
		Status:         models.PaymentPending,
		Timestamp:      time.Now().UnixMilli(),
	}
	require.NoError(t, store.CreatePayment(payment))

	require.NoError(t, store.UpdatePaymentStatus("pay_1", models.PaymentCompleted, "0xdeadbeef"))

	stored, err := store.GetPayment("pay_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, stored.Status)
	assert.Equal(t, "0xdeadbeef", stored.TransactionID)

	// Completed is terminal; moving to failed is rejected.
	err = store.UpdatePaymentStatus("pay_1", models.PaymentFailed, "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	err = store.UpdatePaymentStatus("pay_missing", models.PaymentCompleted, "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListPaymentsFilter(t *testing.T) {
	store := NewMemoryStore()
	for i, status := range []models.PaymentStatus{models.PaymentPending, models.PaymentCompleted, models.PaymentPending} {
		require.NoError(t, store.CreatePayment(&models.Payment{
			ID:             "pay_" + string(rune('a'+i)),
			SubscriptionID: "sub_1",
			Status:         status,
		}))
	}
	require.NoError(t, store.CreatePayment(&models.Payment{ID: "pay_other", SubscriptionID: "sub_2", Status: models.PaymentPending}))

	pending, err := store.ListPayments(models.PaymentFilter{SubscriptionID: "sub_1", Status: models.PaymentPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	all, err := store.ListPayments(models.PaymentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestContacts(t *testing.T) {
	store := NewMemoryStore()
	contact := &models.NotificationContact{
		Address:          "SP_CREATOR",
		TelegramUsername: "creator",
	}
	require.NoError(t, store.UpsertContact(contact))

	byAddress, err := store.GetContact("SP_CREATOR")
	require.NoError(t, err)
	assert.Equal(t, "creator", byAddress.TelegramUsername)

	byUsername, err := store.GetContactByTelegramUsername("creator")
	require.NoError(t, err)
	assert.Equal(t, "SP_CREATOR", byUsername.Address)

	_, err = store.GetContact("SP_UNKNOWN")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = store.GetContactByTelegramUsername("nobody")
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Upsert replaces the stored contact wholesale.
	contact.Email = "creator@example.com"
	require.NoError(t, store.UpsertContact(contact))
	updated, err := store.GetContact("SP_CREATOR")
	require.NoError(t, err)
	assert.Equal(t, "creator@example.com", updated.Email)
}
