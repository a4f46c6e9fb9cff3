package repository

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/recurro/recurro/internal/models"
	"github.com/recurro/recurro/pkg/logger"
)

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (models.RecordStore, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %s", err)
	}

	if err := db.AutoMigrate(&models.Subscription{}, &models.Payment{}, &models.NotificationContact{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %s", err)
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Close()
}

func (db *PostgresDB) CreateSubscription(sub *models.Subscription) error {
	if err := db.Conn.Create(sub).Error; err != nil {
		return fmt.Errorf("failed to create subscription: %s", err)
	}
	return nil
}

func (db *PostgresDB) GetSubscription(id string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := db.Conn.Where("id = ?", id).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %s", err)
	}
	return &sub, nil
}

// UpdateSubscription applies a compare-and-swap keyed on sub.Version. The
// row is written only if the stored version still matches; the version is
// then incremented so the next writer of the same snapshot conflicts.
func (db *PostgresDB) UpdateSubscription(sub *models.Subscription) error {
	next := *sub
	next.Version = sub.Version + 1

	res := db.Conn.Model(&models.Subscription{}).
		Where("id = ? AND version = ?", sub.ID, sub.Version).
		Select("*").
		Updates(&next)
	if res.Error != nil {
		return fmt.Errorf("failed to update subscription: %s", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := db.GetSubscription(sub.ID); err != nil {
			return err
		}
		return models.ErrVersionConflict
	}

	sub.Version = next.Version
	return nil
}

func (db *PostgresDB) ListSubscriptions(filter models.SubscriptionFilter) ([]*models.Subscription, error) {
	query := db.Conn.Model(&models.Subscription{})
	if filter.CreatorAddress != "" {
		query = query.Where("creator_address = ?", filter.CreatorAddress)
	}
	if filter.SubscriberAddress != "" {
		query = query.Where("subscriber_address = ?", filter.SubscriberAddress)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var subs []*models.Subscription
	if err := query.Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %s", err)
	}
	return subs, nil
}

func (db *PostgresDB) CreatePayment(payment *models.Payment) error {
	if err := db.Conn.Create(payment).Error; err != nil {
		return fmt.Errorf("failed to create payment: %s", err)
	}
	return nil
}

func (db *PostgresDB) GetPayment(id string) (*models.Payment, error) {
	var payment models.Payment
	if err := db.Conn.Where("id = ?", id).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %s", err)
	}
	return &payment, nil
}

func (db *PostgresDB) UpdatePaymentStatus(id string, status models.PaymentStatus, transactionID string) error {
	payment, err := db.GetPayment(id)
	if err != nil {
		return err
	}
	if payment.Status.IsTerminal() && payment.Status != status {
		return models.ErrInvalidTransition
	}

	updates := map[string]interface{}{"status": status}
	if transactionID != "" {
		updates["transaction_id"] = transactionID
	}
	if err := db.Conn.Model(&models.Payment{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update payment status: %s", err)
	}
	return nil
}

func (db *PostgresDB) ListPayments(filter models.PaymentFilter) ([]*models.Payment, error) {
	query := db.Conn.Model(&models.Payment{})
	if filter.SubscriptionID != "" {
		query = query.Where("subscription_id = ?", filter.SubscriptionID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var payments []*models.Payment
	if err := query.Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %s", err)
	}
	return payments, nil
}

func (db *PostgresDB) UpsertContact(contact *models.NotificationContact) error {
	if err := db.Conn.Save(contact).Error; err != nil {
		return fmt.Errorf("failed to upsert notification contact: %s", err)
	}
	return nil
}

func (db *PostgresDB) GetContact(address string) (*models.NotificationContact, error) {
	var contact models.NotificationContact
	if err := db.Conn.Where("address = ?", address).First(&contact).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get notification contact: %s", err)
	}
	return &contact, nil
}

func (db *PostgresDB) GetContactByTelegramUsername(username string) (*models.NotificationContact, error) {
	var contact models.NotificationContact
	if err := db.Conn.Where("telegram_username = ?", username).First(&contact).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get notification contact by telegram username: %s", err)
	}
	return &contact, nil
}
