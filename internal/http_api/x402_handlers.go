package http_api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/recurro/recurro/internal/models"
	"github.com/recurro/recurro/internal/paywall"
	"github.com/recurro/recurro/internal/scheduler"
	"github.com/recurro/recurro/pkg/validation"
	"github.com/shopspring/decimal"
)

// facilitatorProbeTimeout bounds the liveness probe from the status
// endpoint. An unreachable facilitator is reported, never fatal.
const facilitatorProbeTimeout = 5 * time.Second

// SettleRequest is the facilitator /settle and /verify request body.
type SettleRequest struct {
	PaymentPayload      *models.PaymentPayload     `json:"paymentPayload"`
	PaymentRequirements *models.PaymentRequirement `json:"paymentRequirements"`
}

// SubscribePaidRequest is the body of the x402-gated subscribe endpoint.
type SubscribePaidRequest struct {
	CreatorAddress    string          `json:"creatorAddress" binding:"required"`
	SubscriberAddress string          `json:"subscriberAddress" binding:"required"`
	Amount            decimal.Decimal `json:"amount" binding:"required"`
	Currency          string          `json:"currency"`
	Interval          string          `json:"interval" binding:"omitempty,oneof=daily weekly monthly"`
	PlanName          string          `json:"planName"`
}

// facilitatorSettle is a handler for POST /facilitator/settle.
func (s *HTTPServer) facilitatorSettle(c *gin.Context) {
	var req SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":     false,
			"errorReason": models.ReasonInvalidPayload,
			"message":     "Invalid request body",
		})
		return
	}

	if req.PaymentPayload == nil || req.PaymentPayload.Payload.Transaction == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":     false,
			"errorReason": models.ReasonInvalidPayload,
			"message":     "Missing signed transaction",
		})
		return
	}

	result := s.facilitator.Settle(c.Request.Context(), req.PaymentPayload, req.PaymentRequirements)
	if !result.Success {
		c.JSON(http.StatusBadRequest, result)
		return
	}

	c.JSON(http.StatusOK, result)
}

// facilitatorVerify is a handler for POST /facilitator/verify. It checks
// the payload without broadcasting anything.
func (s *HTTPServer) facilitatorVerify(c *gin.Context) {
	var req SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, &models.VerificationResult{
			IsValid:       false,
			InvalidReason: models.ReasonInvalidPayload,
		})
		return
	}

	result := s.facilitator.Verify(c.Request.Context(), req.PaymentPayload, req.PaymentRequirements)
	if !result.IsValid {
		c.JSON(http.StatusBadRequest, result)
		return
	}

	c.JSON(http.StatusOK, result)
}

// facilitatorSupported is a handler for GET /facilitator/supported.
func (s *HTTPServer) facilitatorSupported(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"kinds":      s.facilitator.SupportedKinds(),
		"extensions": []string{},
		"signers":    gin.H{},
	})
}

// premiumContent serves the paywalled demo resource. It only runs after
// the paywall middleware settled the payment.
func (s *HTTPServer) premiumContent(c *gin.Context) {
	settlement := paywall.SettlementFromContext(c)

	payer := "unknown"
	transaction := "unknown"
	network := "unknown"
	if settlement != nil {
		if settlement.Payer != "" {
			payer = settlement.Payer
		}
		transaction = settlement.Transaction
		network = settlement.Network
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Premium content unlocked",
		"data": gin.H{
			"generatedAt": time.Now().UTC().Format(time.RFC3339),
		},
		"payment": gin.H{
			"paidBy":      payer,
			"transaction": transaction,
			"network":     network,
		},
	})
}

// subscribePaid is a handler for POST /x402/subscribe. The paywall is
// built dynamically from the requested plan price; on settlement the
// subscription and its first completed payment are recorded.
func (s *HTTPServer) subscribePaid(c *gin.Context) {
	var req SubscribePaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := validation.ValidateAddress(req.CreatorAddress); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid creator address: " + err.Error()})
		return
	}
	if err := validation.ValidateAddress(req.SubscriberAddress); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscriber address: " + err.Error()})
		return
	}
	if !req.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be greater than 0"})
		return
	}

	interval := req.Interval
	if interval == "" {
		interval = string(models.IntervalMonthly)
	}
	currency := req.Currency
	if currency == "" {
		currency = models.CurrencySTX
	}
	planName := req.PlanName
	if planName == "" {
		planName = "Subscription"
	}

	// Run the paywall inline with the plan's price. It either aborts the
	// request (challenge or client error) or attaches a settlement.
	guard := s.paywall.Protect(paywall.RouteConfig{
		Amount:      models.STXToMicroSTX(req.Amount),
		PayTo:       req.CreatorAddress,
		Network:     s.config.NetworkCAIP2(),
		Asset:       currency,
		Description: "Subscription: " + planName + " (" + interval + ")",
	})
	guard(c)
	if c.IsAborted() {
		return
	}

	settlement := paywall.SettlementFromContext(c)
	now := time.Now().UnixMilli()

	sub := &models.Subscription{
		ID:                "sub_" + uuid.NewString(),
		CreatorAddress:    req.CreatorAddress,
		SubscriberAddress: req.SubscriberAddress,
		Amount:            req.Amount,
		Currency:          currency,
		Interval:          models.SubscriptionInterval(interval),
		Status:            models.SubscriptionActive,
		NextPaymentDate:   scheduler.NextPaymentDate(models.SubscriptionInterval(interval), now),
		CreatedAt:         now,
		PlanName:          planName,
	}
	if err := s.store.CreateSubscription(sub); err != nil {
		s.logger.Error("Failed to create subscription after settlement", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment settled but subscription creation failed"})
		return
	}

	payment := &models.Payment{
		ID:             "pay_" + uuid.NewString(),
		SubscriptionID: sub.ID,
		TransactionID:  settlement.Transaction,
		Amount:         req.Amount,
		Currency:       currency,
		Status:         models.PaymentCompleted,
		Timestamp:      now,
	}
	if err := s.store.CreatePayment(payment); err != nil {
		s.logger.Error("Failed to record settled payment", "error", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyPaymentSettled(sub, payment, settlement.Payer)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"subscription": sub,
		"payment": gin.H{
			"id":            payment.ID,
			"transactionId": settlement.Transaction,
			"payer":         settlement.Payer,
		},
	})
}

// x402Status is a public handler describing the protocol configuration
// and probing the facilitator and ledger node.
func (s *HTTPServer) x402Status(c *gin.Context) {
	facilitatorStatus := "unreachable"
	probeCtx, cancel := context.WithTimeout(c.Request.Context(), facilitatorProbeTimeout)
	defer cancel()

	probeReq, err := http.NewRequestWithContext(probeCtx, http.MethodGet, s.config.FacilitatorURL+"/supported", nil)
	if err == nil {
		if resp, probeErr := http.DefaultClient.Do(probeReq); probeErr == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				facilitatorStatus = "connected"
			} else {
				facilitatorStatus = "error"
			}
		}
	}

	ledgerStatus := gin.H{"reachable": false}
	if info, infoErr := s.ledger.GetNodeInfo(c.Request.Context()); infoErr == nil {
		ledgerStatus = gin.H{
			"reachable":     true,
			"networkId":     info.NetworkID,
			"tipHeight":     info.StacksTipHeight,
			"serverVersion": info.ServerVersion,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"x402": gin.H{
			"version": models.X402Version,
			"headers": gin.H{
				"paymentSignature": models.HeaderPaymentSignature,
				"paymentRequired":  models.HeaderPaymentRequired,
				"paymentResponse":  models.HeaderPaymentResponse,
			},
		},
		"config": gin.H{
			"network":           s.config.Network,
			"networkCAIP2":      s.config.NetworkCAIP2(),
			"creatorAddress":    s.config.CreatorAddress,
			"facilitatorUrl":    s.config.FacilitatorURL,
			"facilitatorStatus": facilitatorStatus,
		},
		"ledger": ledgerStatus,
	})
}
