package http_api

import (
	"github.com/recurro/recurro/internal/models"
	"github.com/recurro/recurro/internal/paywall"
)

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	api := s.router.Group("/api/v1")

	api.POST("/subscriptions", s.createSubscription)
	api.GET("/subscriptions", s.listSubscriptions)
	api.GET("/subscriptions/:id", s.getSubscription)
	api.PUT("/subscriptions/:id", s.updateSubscription)

	api.GET("/payments", s.listPayments)
	api.POST("/payments/verify", s.verifyPayment)

	schedulerGroup := api.Group("/scheduler", s.schedulerAuth())
	schedulerGroup.GET("/check-due", s.checkDue)
	schedulerGroup.POST("/check-due", s.processDue)

	facilitatorGroup := api.Group("/facilitator")
	facilitatorGroup.POST("/settle", s.facilitatorSettle)
	facilitatorGroup.POST("/verify", s.facilitatorVerify)
	facilitatorGroup.GET("/supported", s.facilitatorSupported)

	x402 := api.Group("/x402")
	x402.GET("/status", s.x402Status)
	x402.GET("/premium-content",
		s.paywall.Protect(paywall.RouteConfig{
			Amount:      "1000", // 0.001 STX
			PayTo:       s.config.CreatorAddress,
			Network:     s.config.NetworkCAIP2(),
			Asset:       models.CurrencySTX,
			Description: "Access premium subscription analytics",
		}),
		s.premiumContent)
	x402.POST("/subscribe", s.subscribePaid)

	api.POST("/notifications/register", s.registerContact)
}
