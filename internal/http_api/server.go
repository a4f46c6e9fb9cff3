package http_api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/recurro/recurro/internal/config"
	"github.com/recurro/recurro/internal/models"
	"github.com/recurro/recurro/internal/paywall"
	"github.com/recurro/recurro/internal/scheduler"
	"github.com/recurro/recurro/pkg/logger"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 10 * time.Second
)

// HTTPServer is the HTTP server struct that will serve the API
type HTTPServer struct {
	// logger is the logger instance
	logger *logger.Logger
	config *config.Config

	// router is the HTTP router
	router *gin.Engine
	// port is the port on which the server will listen
	port int

	// server is the underlying HTTP server
	server *http.Server

	store       models.RecordStore
	ledger      models.LedgerService
	facilitator models.FacilitatorService
	paywall     *paywall.Paywall
	scheduler   *scheduler.Scheduler
	notifier    models.NotifierService // may be nil
}

// corsMiddleware adds CORS headers to all responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, "+models.HeaderPaymentSignature)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", models.HeaderPaymentRequired+", "+models.HeaderPaymentResponse)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// NewHTTPServer creates a new HTTP server instance
func NewHTTPServer(
	cfg *config.Config,
	store models.RecordStore,
	ledgerSvc models.LedgerService,
	facilitatorSvc models.FacilitatorService,
	pw *paywall.Paywall,
	sched *scheduler.Scheduler,
	notifierSvc models.NotifierService,
	log *logger.Logger,
) *HTTPServer {
	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Add CORS middleware
	router.Use(corsMiddleware())

	server := &HTTPServer{
		router:      router,
		port:        cfg.APIPort,
		config:      cfg,
		logger:      log,
		store:       store,
		ledger:      ledgerSvc,
		facilitator: facilitatorSvc,
		paywall:     pw,
		scheduler:   sched,
		notifier:    notifierSvc,
	}

	// Define routes
	server.routes()

	return server
}

// Start starts the HTTP server
func (s *HTTPServer) Start() {
	addr := fmt.Sprintf("0.0.0.0:%v", s.port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	s.logger.Info("Starting HTTP server", "address", addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Fatal("Failed to start the HTTP server: ", err)
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *HTTPServer) Shutdown() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server shut down successfully")
	return nil
}
