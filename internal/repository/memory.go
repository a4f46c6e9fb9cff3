package repository

import (
	"sync"

	"github.com/recurro/recurro/internal/models"
)

// MemoryStore is a mutex-guarded in-memory RecordStore. Used by tests and
// by development mode; it honors the same CAS and transition rules as the
// postgres store.
type MemoryStore struct {
	mu            sync.RWMutex
	subscriptions map[string]*models.Subscription
	payments      map[string]*models.Payment
	contacts      map[string]*models.NotificationContact
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscriptions: make(map[string]*models.Subscription),
		payments:      make(map[string]*models.Payment),
		contacts:      make(map[string]*models.NotificationContact),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateSubscription(sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *sub
	m.subscriptions[sub.ID] = &clone
	return nil
}

func (m *MemoryStore) GetSubscription(id string) (*models.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subscriptions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	clone := *sub
	return &clone, nil
}

func (m *MemoryStore) UpdateSubscription(sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.subscriptions[sub.ID]
	if !ok {
		return models.ErrNotFound
	}
	if current.Version != sub.Version {
		return models.ErrVersionConflict
	}
	clone := *sub
	clone.Version = sub.Version + 1
	m.subscriptions[sub.ID] = &clone
	sub.Version = clone.Version
	return nil
}

func (m *MemoryStore) ListSubscriptions(filter models.SubscriptionFilter) ([]*models.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		if filter.CreatorAddress != "" && sub.CreatorAddress != filter.CreatorAddress {
			continue
		}
		if filter.SubscriberAddress != "" && sub.SubscriberAddress != filter.SubscriberAddress {
			continue
		}
		if filter.Status != "" && sub.Status != filter.Status {
			continue
		}
		clone := *sub
		out = append(out, &clone)
	}
	return out, nil
}

func (m *MemoryStore) CreatePayment(payment *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *payment
	m.payments[payment.ID] = &clone
	return nil
}

func (m *MemoryStore) GetPayment(id string) (*models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payment, ok := m.payments[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	clone := *payment
	return &clone, nil
}

func (m *MemoryStore) UpdatePaymentStatus(id string, status models.PaymentStatus, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[id]
	if !ok {
		return models.ErrNotFound
	}
	if payment.Status.IsTerminal() && payment.Status != status {
		return models.ErrInvalidTransition
	}
	payment.Status = status
	if transactionID != "" {
		payment.TransactionID = transactionID
	}
	return nil
}

func (m *MemoryStore) ListPayments(filter models.PaymentFilter) ([]*models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Payment, 0, len(m.payments))
	for _, payment := range m.payments {
		if filter.SubscriptionID != "" && payment.SubscriptionID != filter.SubscriptionID {
			continue
		}
		if filter.Status != "" && payment.Status != filter.Status {
			continue
		}
		clone := *payment
		out = append(out, &clone)
	}
	return out, nil
}

func (m *MemoryStore) UpsertContact(contact *models.NotificationContact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *contact
	m.contacts[contact.Address] = &clone
	return nil
}

func (m *MemoryStore) GetContact(address string) (*models.NotificationContact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	contact, ok := m.contacts[address]
	if !ok {
		return nil, models.ErrNotFound
	}
	clone := *contact
	return &clone, nil
}

func (m *MemoryStore) GetContactByTelegramUsername(username string) (*models.NotificationContact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, contact := range m.contacts {
		if contact.TelegramUsername == username {
			clone := *contact
			return &clone, nil
		}
	}
	return nil, models.ErrNotFound
}
