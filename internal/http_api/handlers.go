package http_api

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/recurro/recurro/internal/models"
	"github.com/recurro/recurro/internal/scheduler"
	"github.com/recurro/recurro/pkg/validation"
	"github.com/shopspring/decimal"
)

// CreateSubscriptionRequest represents the JSON body for creating a
// subscription or a plan template.
type CreateSubscriptionRequest struct {
	CreatorAddress    string          `json:"creatorAddress" binding:"required"`
	SubscriberAddress string          `json:"subscriberAddress" binding:"required"`
	Amount            decimal.Decimal `json:"amount" binding:"required"`
	Currency          string          `json:"currency"`
	Interval          string          `json:"interval" binding:"required,oneof=daily weekly monthly"`
	PlanName          string          `json:"planName"`
	Description       string          `json:"description"`
	Perks             []string        `json:"perks"`
}

// UpdateSubscriptionRequest represents the JSON body for updating a
// subscription.
type UpdateSubscriptionRequest struct {
	Status      *string   `json:"status"`
	PlanName    *string   `json:"planName"`
	Description *string   `json:"description"`
	Perks       *[]string `json:"perks"`
}

// VerifyPaymentRequest confirms an already-broadcast transaction against
// the ledger and records the outcome.
type VerifyPaymentRequest struct {
	TransactionID  string          `json:"transactionId" binding:"required"`
	SubscriptionID string          `json:"subscriptionId" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Currency       string          `json:"currency" binding:"required"`
}

// RegisterContactRequest registers notification channels for an address.
type RegisterContactRequest struct {
	Address  string `json:"address" binding:"required"`
	Telegram string `json:"telegram"`
	Email    string `json:"email" binding:"omitempty,email"`
}

// createSubscription is a handler for POST /subscriptions.
func (s *HTTPServer) createSubscription(c *gin.Context) {
	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := validation.ValidateAddress(req.CreatorAddress); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid creator address: " + err.Error()})
		return
	}
	// Template sentinels stand in for a real subscriber on plan records.
	if !models.IsPlanTemplate(req.SubscriberAddress) {
		if err := validation.ValidateAddress(req.SubscriberAddress); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscriber address: " + err.Error()})
			return
		}
	}
	if !req.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be greater than 0"})
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = models.CurrencySTX
	}

	now := time.Now().UnixMilli()
	sub := &models.Subscription{
		ID:                "sub_" + uuid.NewString(),
		CreatorAddress:    req.CreatorAddress,
		SubscriberAddress: req.SubscriberAddress,
		Amount:            req.Amount,
		Currency:          currency,
		Interval:          models.SubscriptionInterval(req.Interval),
		Status:            models.SubscriptionActive,
		NextPaymentDate:   scheduler.NextPaymentDate(models.SubscriptionInterval(req.Interval), now),
		CreatedAt:         now,
		PlanName:          req.PlanName,
		Description:       req.Description,
		Perks:             req.Perks,
	}

	if err := s.store.CreateSubscription(sub); err != nil {
		s.logger.Error("Failed to create subscription", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create subscription"})
		return
	}

	c.JSON(http.StatusCreated, sub)
}

// listSubscriptions is a handler for GET /subscriptions.
func (s *HTTPServer) listSubscriptions(c *gin.Context) {
	filter := models.SubscriptionFilter{
		CreatorAddress:    c.Query("creatorAddress"),
		SubscriberAddress: c.Query("subscriberAddress"),
	}

	subs, err := s.store.ListSubscriptions(filter)
	if err != nil {
		s.logger.Error("Failed to list subscriptions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list subscriptions"})
		return
	}

	c.JSON(http.StatusOK, subs)
}

// getSubscription is a handler for GET /subscriptions/:id.
func (s *HTTPServer) getSubscription(c *gin.Context) {
	sub, err := s.store.GetSubscription(c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
			return
		}
		s.logger.Error("Failed to get subscription", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get subscription"})
		return
	}

	c.JSON(http.StatusOK, sub)
}

// updateSubscription is a handler for PUT /subscriptions/:id.
func (s *HTTPServer) updateSubscription(c *gin.Context) {
	var req UpdateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	sub, err := s.store.GetSubscription(c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
			return
		}
		s.logger.Error("Failed to get subscription", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get subscription"})
		return
	}

	if req.Status != nil {
		status := models.SubscriptionStatus(*req.Status)
		if !status.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status: must be active, paused or cancelled"})
			return
		}
		sub.Status = status
	}
	if req.PlanName != nil {
		sub.PlanName = *req.PlanName
	}
	if req.Description != nil {
		sub.Description = *req.Description
	}
	if req.Perks != nil {
		sub.Perks = *req.Perks
	}

	if err := s.store.UpdateSubscription(sub); err != nil {
		if errors.Is(err, models.ErrVersionConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Subscription was modified concurrently, retry"})
			return
		}
		s.logger.Error("Failed to update subscription", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update subscription"})
		return
	}

	c.JSON(http.StatusOK, sub)
}

// EnrichedPayment is a payment joined with its subscription's plan info.
type EnrichedPayment struct {
	ID             string               `json:"id"`
	Type           string               `json:"type"` // incoming | outgoing
	Amount         decimal.Decimal      `json:"amount"`
	Currency       string               `json:"currency"`
	Status         models.PaymentStatus `json:"status"`
	TransactionID  string               `json:"transactionId"`
	Timestamp      int64                `json:"timestamp"`
	PlanName       string               `json:"planName"`
	Interval       string               `json:"interval"`
	Counterparty   string               `json:"counterparty"`
	SubscriptionID string               `json:"subscriptionId"`
}

// listPayments is a handler for GET /payments?address=...
// It returns payments where the address is creator (incoming) or
// subscriber (outgoing), newest first.
func (s *HTTPServer) listPayments(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required query param: address"})
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit: must be a positive integer"})
			return
		}
		limit = parsed
	}
	if limit > 200 {
		limit = 200
	}

	subs, err := s.store.ListSubscriptions(models.SubscriptionFilter{})
	if err != nil {
		s.logger.Error("Failed to list subscriptions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list payments"})
		return
	}
	subByID := make(map[string]*models.Subscription, len(subs))
	for _, sub := range subs {
		subByID[sub.ID] = sub
	}

	payments, err := s.store.ListPayments(models.PaymentFilter{})
	if err != nil {
		s.logger.Error("Failed to list payments", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list payments"})
		return
	}

	enriched := make([]EnrichedPayment, 0, len(payments))
	for _, payment := range payments {
		sub, ok := subByID[payment.SubscriptionID]
		if !ok {
			continue
		}

		isCreator := sub.CreatorAddress == address
		isSubscriber := sub.SubscriberAddress == address
		if !isCreator && !isSubscriber {
			continue
		}

		paymentType := "outgoing"
		counterparty := sub.CreatorAddress
		if isCreator {
			paymentType = "incoming"
			counterparty = sub.SubscriberAddress
		}

		planName := sub.PlanName
		if planName == "" {
			planName = "Unnamed Plan"
		}

		enriched = append(enriched, EnrichedPayment{
			ID:             payment.ID,
			Type:           paymentType,
			Amount:         payment.Amount,
			Currency:       payment.Currency,
			Status:         payment.Status,
			TransactionID:  payment.TransactionID,
			Timestamp:      payment.Timestamp,
			PlanName:       planName,
			Interval:       string(sub.Interval),
			Counterparty:   counterparty,
			SubscriptionID: payment.SubscriptionID,
		})
	}

	sort.Slice(enriched, func(i, j int) bool {
		return enriched[i].Timestamp > enriched[j].Timestamp
	})
	if len(enriched) > limit {
		enriched = enriched[:limit]
	}

	c.JSON(http.StatusOK, enriched)
}

// verifyPayment is a handler for POST /payments/verify. It checks a
// broadcast transaction against the ledger and records the outcome; on
// confirmation the subscription advances one cycle.
func (s *HTTPServer) verifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	sub, err := s.store.GetSubscription(req.SubscriptionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
			return
		}
		s.logger.Error("Failed to get subscription", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get subscription"})
		return
	}

	verified := false
	status, err := s.ledger.GetTransactionStatus(c.Request.Context(), req.TransactionID)
	if err != nil {
		s.logger.Debug("Transaction lookup failed", "tx", req.TransactionID, "error", err)
	} else {
		verified = status.IsConfirmed()
	}

	paymentStatus := models.PaymentFailed
	if verified {
		paymentStatus = models.PaymentCompleted
	}

	// A scheduler-created pending payment for this cycle is settled in
	// place; only when none exists is a fresh record created.
	payment := s.oldestPendingPayment(req.SubscriptionID)
	if payment != nil {
		if err := s.store.UpdatePaymentStatus(payment.ID, paymentStatus, req.TransactionID); err != nil {
			s.logger.Error("Failed to update payment status", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record payment"})
			return
		}
		payment.Status = paymentStatus
		payment.TransactionID = req.TransactionID
	} else {
		payment = &models.Payment{
			ID:             "pay_" + uuid.NewString(),
			SubscriptionID: req.SubscriptionID,
			TransactionID:  req.TransactionID,
			Amount:         req.Amount,
			Currency:       req.Currency,
			Status:         paymentStatus,
			Timestamp:      time.Now().UnixMilli(),
		}
		if err := s.store.CreatePayment(payment); err != nil {
			s.logger.Error("Failed to record payment", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record payment"})
			return
		}
	}

	if verified {
		if _, err := s.scheduler.AdvanceSubscription(sub); err != nil && !errors.Is(err, models.ErrVersionConflict) {
			s.logger.Error("Failed to advance subscription", "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"verified": verified, "payment": payment})
}

// oldestPendingPayment returns the oldest pending payment for the
// subscription, or nil when no cycle is awaiting settlement.
func (s *HTTPServer) oldestPendingPayment(subscriptionID string) *models.Payment {
	pending, err := s.store.ListPayments(models.PaymentFilter{
		SubscriptionID: subscriptionID,
		Status:         models.PaymentPending,
	})
	if err != nil {
		s.logger.Error("Failed to list pending payments", "error", err)
		return nil
	}
	if len(pending) == 0 {
		return nil
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Timestamp < pending[j].Timestamp
	})
	return pending[0]
}

// schedulerAuth guards scheduler endpoints with a single shared-secret
// header check when a token is configured.
func (s *HTTPServer) schedulerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.config.SchedulerToken == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-Scheduler-Token") != s.config.SchedulerToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid scheduler token"})
			return
		}
		c.Next()
	}
}

// checkDue is a handler for GET /scheduler/check-due.
func (s *HTTPServer) checkDue(c *gin.Context) {
	due, err := s.scheduler.FindDueSubscriptions(time.Now().UnixMilli())
	if err != nil {
		s.logger.Error("Due-payment scan failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan due subscriptions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"dueCount":      len(due),
		"subscriptions": due,
		"checkedAt":     time.Now().UTC().Format(time.RFC3339),
	})
}

// processDue is a handler for POST /scheduler/check-due.
func (s *HTTPServer) processDue(c *gin.Context) {
	processed, err := s.scheduler.ProcessDue(time.Now().UnixMilli())
	if err != nil {
		s.logger.Error("Due-payment processing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process due subscriptions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"processedCount": len(processed),
		"processed":      processed,
		"processedAt":    time.Now().UTC().Format(time.RFC3339),
	})
}

// registerContact is a handler for POST /notifications/register.
func (s *HTTPServer) registerContact(c *gin.Context) {
	var req RegisterContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := validation.ValidateAddress(req.Address); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address: " + err.Error()})
		return
	}
	if req.Telegram == "" && req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one notification method (telegram or email) is required"})
		return
	}

	contact := &models.NotificationContact{
		Address:          req.Address,
		TelegramUsername: req.Telegram,
		Email:            req.Email,
	}
	// Preserve an already-linked chat id on re-registration.
	if existing, err := s.store.GetContact(req.Address); err == nil && existing.TelegramUsername == req.Telegram {
		contact.TelegramChatID = existing.TelegramChatID
	}

	if err := s.store.UpsertContact(contact); err != nil {
		s.logger.Error("Failed to save notification contact", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save notification contact"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "address": req.Address})
}
