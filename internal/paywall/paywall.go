package paywall

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/recurro/recurro/internal/models"
	"github.com/recurro/recurro/pkg/logger"
)

// settlementKey is the gin context key the settlement receipt is stored
// under for downstream handlers.
const settlementKey = "x402_settlement"

// RouteConfig prices one protected route.
type RouteConfig struct {
	// Amount in atomic units (microSTX).
	Amount string
	// PayTo is the recipient Stacks address.
	PayTo string
	// Network is the CAIP-2 chain identifier.
	Network string
	// Asset defaults to STX.
	Asset string
	// Description is shown to the paying client in the challenge.
	Description string
	// MaxTimeoutSeconds defaults to models.DefaultMaxTimeoutSeconds.
	MaxTimeoutSeconds int
}

func (c *RouteConfig) withDefaults() RouteConfig {
	out := *c
	if out.Asset == "" {
		out.Asset = models.CurrencySTX
	}
	if out.MaxTimeoutSeconds <= 0 {
		out.MaxTimeoutSeconds = models.DefaultMaxTimeoutSeconds
	}
	return out
}

// Paywall turns unauthenticated requests into verified, settled payments.
// The state machine is per-request: each request re-enters based solely on
// header presence, nothing is persisted across requests.
type Paywall struct {
	logger        *logger.Logger
	facilitator   models.FacilitatorService
	settleTimeout time.Duration
}

// NewPaywall creates a new Paywall instance.
func NewPaywall(facilitator models.FacilitatorService, settleTimeout time.Duration, log *logger.Logger) *Paywall {
	if settleTimeout <= 0 {
		settleTimeout = models.DefaultMaxTimeoutSeconds * time.Second
	}
	return &Paywall{logger: log, facilitator: facilitator, settleTimeout: settleTimeout}
}

// Protect wraps downstream handlers with the x402 payment flow:
//
//	no payment-signature header  -> 402 challenge
//	malformed header             -> 400 invalid_payload
//	unsupported protocol version -> 400 invalid_x402_version
//	settlement failure           -> fresh 402 challenge
//	settlement success           -> receipt header + c.Next()
//
// A failed settlement deliberately looks identical to "payment not yet
// provided" so the client can retry with a corrected transaction.
func (p *Paywall) Protect(cfg RouteConfig) gin.HandlerFunc {
	// A route-level timeout overrides the paywall-wide default, so the
	// settle attempt never outlives what the challenge advertised.
	settleTimeout := p.settleTimeout
	if cfg.MaxTimeoutSeconds > 0 {
		settleTimeout = time.Duration(cfg.MaxTimeoutSeconds) * time.Second
	}
	route := cfg.withDefaults()

	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Paywall panic ", "panic ", r, " stack ", string(debug.Stack()))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   models.ReasonUnexpectedSettleError,
					"message": "internal error during settlement",
				})
			}
		}()

		header := c.GetHeader(models.HeaderPaymentSignature)
		if header == "" {
			p.issueChallenge(c, route)
			return
		}

		payload, err := models.DecodePaymentPayload(header)
		if err != nil {
			p.logger.Debug("Malformed payment-signature header ", "error ", err)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   models.ReasonInvalidPayload,
				"message": "failed to decode payment-signature header",
			})
			return
		}

		if payload.X402Version != models.X402Version {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   models.ReasonInvalidVersion,
				"message": "only x402 v2 is supported",
			})
			return
		}

		if payload.Payload.Transaction == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   models.ReasonInvalidPayload,
				"message": "no signed transaction in payment payload",
			})
			return
		}

		requirement := route.requirement()
		ctx, cancel := context.WithTimeout(c.Request.Context(), settleTimeout)
		defer cancel()

		settlement := p.facilitator.Settle(ctx, payload, &requirement)
		if !settlement.Success {
			// Still needs payment. The reason stays server-side so
			// operators can tell a bad transaction from a bad client.
			p.logger.Info("Settlement failed, re-issuing challenge ", "reason ", settlement.ErrorReason)
			p.issueChallenge(c, route)
			return
		}

		receipt, err := settlement.EncodeBase64()
		if err != nil {
			p.logger.Error("Failed to encode settlement receipt ", "error ", err)
		} else {
			c.Header(models.HeaderPaymentResponse, receipt)
		}

		c.Set(settlementKey, settlement)
		c.Next()
	}
}

// SettlementFromContext returns the settlement receipt attached by Protect,
// or nil when the request was not settled through the paywall.
func SettlementFromContext(c *gin.Context) *models.SettlementResult {
	v, ok := c.Get(settlementKey)
	if !ok {
		return nil
	}
	settlement, ok := v.(*models.SettlementResult)
	if !ok {
		return nil
	}
	return settlement
}

func (r *RouteConfig) requirement() models.PaymentRequirement {
	return models.PaymentRequirement{
		Scheme:            models.SchemeExact,
		Network:           r.Network,
		Amount:            r.Amount,
		Asset:             r.Asset,
		PayTo:             r.PayTo,
		MaxTimeoutSeconds: r.MaxTimeoutSeconds,
	}
}

func (p *Paywall) issueChallenge(c *gin.Context, route RouteConfig) {
	description := route.Description
	if description == "" {
		description = "Payment required to access this resource"
	}

	challenge := &models.PaymentRequiredChallenge{
		X402Version: models.X402Version,
		Resource: models.ResourceInfo{
			URL:         c.Request.URL.Path,
			Method:      c.Request.Method,
			Description: description,
			MimeType:    "application/json",
		},
		Accepts: []models.PaymentRequirement{route.requirement()},
	}

	encoded, err := challenge.EncodeBase64()
	if err != nil {
		p.logger.Error("Failed to encode challenge ", "error ", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   models.ReasonUnexpectedSettleError,
			"message": "failed to build payment challenge",
		})
		return
	}

	c.Header(models.HeaderPaymentRequired, encoded)
	c.AbortWithStatusJSON(http.StatusPaymentRequired, challenge)
}
