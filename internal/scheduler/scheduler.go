package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/recurro/recurro/internal/models"
	"github.com/recurro/recurro/pkg/logger"
	"github.com/samber/lo"
)

const (
	dayMillis = int64(24 * time.Hour / time.Millisecond)
)

// NextPaymentDate returns the epoch-millisecond timestamp one billing
// cycle after from. Months are a fixed 30-day approximation, not
// calendar-month aware; this matches the issued plan terms.
func NextPaymentDate(interval models.SubscriptionInterval, from int64) int64 {
	switch interval {
	case models.IntervalDaily:
		return from + dayMillis
	case models.IntervalWeekly:
		return from + 7*dayMillis
	default:
		return from + 30*dayMillis
	}
}

// ProcessedCycle records one due subscription handled by ProcessDue.
type ProcessedCycle struct {
	SubscriptionID  string `json:"subscriptionId"`
	PaymentID       string `json:"paymentId"`
	NextPaymentDate int64  `json:"nextPaymentDate"`
}

// Scheduler applies billing-cycle transitions over the record store. The
// trigger (cron, ticker, manual endpoint) lives outside; the scheduler
// only knows what to do when asked.
type Scheduler struct {
	logger   *logger.Logger
	store    models.RecordStore
	notifier models.NotifierService // may be nil
}

// NewScheduler creates a new Scheduler instance.
func NewScheduler(store models.RecordStore, notifier models.NotifierService, log *logger.Logger) *Scheduler {
	return &Scheduler{logger: log, store: store, notifier: notifier}
}

// FindDueSubscriptions returns every active, non-template subscription
// whose next payment timestamp has passed. Ordering is unspecified.
func (s *Scheduler) FindDueSubscriptions(now int64) ([]*models.Subscription, error) {
	subs, err := s.store.ListSubscriptions(models.SubscriptionFilter{Status: models.SubscriptionActive})
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	due := lo.Filter(subs, func(sub *models.Subscription, _ int) bool {
		return sub.NextPaymentDate > 0 &&
			sub.NextPaymentDate <= now &&
			!sub.IsTemplate()
	})
	return due, nil
}

// CreatePendingPayment writes a new pending payment for the subscription.
// Settlement happens later through the paywall when the subscriber
// returns; nothing is broadcast here.
func (s *Scheduler) CreatePendingPayment(sub *models.Subscription) (*models.Payment, error) {
	payment := &models.Payment{
		ID:             "pay_" + uuid.NewString(),
		SubscriptionID: sub.ID,
		TransactionID:  "",
		Amount:         sub.Amount,
		Currency:       sub.Currency,
		Status:         models.PaymentPending,
		Timestamp:      time.Now().UnixMilli(),
	}
	if err := s.store.CreatePayment(payment); err != nil {
		return nil, fmt.Errorf("failed to create pending payment: %w", err)
	}
	return payment, nil
}

// AdvanceSubscription moves nextPaymentDate one cycle forward via a
// compare-and-swap on the subscription version. A version conflict means
// another writer already advanced this cycle; the caller must treat it as
// "done elsewhere", not retry.
func (s *Scheduler) AdvanceSubscription(sub *models.Subscription) (*models.Subscription, error) {
	updated := *sub
	updated.NextPaymentDate = NextPaymentDate(sub.Interval, time.Now().UnixMilli())
	if err := s.store.UpdateSubscription(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// ProcessDue handles every due subscription: create a pending payment,
// then advance the cycle. Each due event is advanced at most once; a CAS
// conflict skips the subscription instead of double-advancing it.
func (s *Scheduler) ProcessDue(now int64) ([]ProcessedCycle, error) {
	due, err := s.FindDueSubscriptions(now)
	if err != nil {
		return nil, err
	}

	processed := make([]ProcessedCycle, 0, len(due))
	for _, sub := range due {
		payment, err := s.CreatePendingPayment(sub)
		if err != nil {
			s.logger.Error("Failed to create pending payment ", "subscription ", sub.ID, " error ", err)
			continue
		}

		advanced, err := s.AdvanceSubscription(sub)
		if err != nil {
			if errors.Is(err, models.ErrVersionConflict) {
				s.logger.Warn("Subscription already advanced by another writer ", "subscription ", sub.ID)
			} else {
				s.logger.Error("Failed to advance subscription ", "subscription ", sub.ID, " error ", err)
			}
			continue
		}

		if s.notifier != nil {
			s.notifier.NotifyRenewalDue(sub)
		}

		processed = append(processed, ProcessedCycle{
			SubscriptionID:  sub.ID,
			PaymentID:       payment.ID,
			NextPaymentDate: advanced.NextPaymentDate,
		})
	}
	return processed, nil
}

// RunPeriodic triggers ProcessDue on a fixed interval until ctx is done.
// Intended to be run in its own goroutine when in-process scheduling is
// configured.
func (s *Scheduler) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Scheduler started ", "interval ", interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			processed, err := s.ProcessDue(time.Now().UnixMilli())
			if err != nil {
				s.logger.Error("Due-payment scan failed ", "error ", err)
				continue
			}
			if len(processed) > 0 {
				s.logger.Info("Processed due subscriptions ", "count ", len(processed))
			}
		}
	}
}
