package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/recurro/recurro/internal/config"
	"github.com/recurro/recurro/internal/facilitator"
	"github.com/recurro/recurro/internal/http_api"
	"github.com/recurro/recurro/internal/ledger"
	"github.com/recurro/recurro/internal/models"
	"github.com/recurro/recurro/internal/notifier"
	"github.com/recurro/recurro/internal/paywall"
	"github.com/recurro/recurro/internal/repository"
	"github.com/recurro/recurro/internal/scheduler"
	"github.com/recurro/recurro/pkg/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "recurro",
		Usage: "Recurro is an x402 subscription payment service for the Stacks ledger",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "API server port"},
			&cli.StringFlag{Name: "ledger-api-url", Aliases: []string{"l"}, Usage: "Stacks node API URL"},
			&cli.StringFlag{Name: "network", Aliases: []string{"n"}, Usage: "Stacks network (testnet or mainnet)"},
			&cli.StringFlag{Name: "creator-address", Aliases: []string{"c"}, Usage: "Default creator payout address"},
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.BoolFlag{Name: "memory-store", Aliases: []string{"m"}, Usage: "Use the in-memory record store"},
			&cli.IntFlag{Name: "scheduler-interval", Aliases: []string{"i"}, Usage: "Renewal scheduler interval in minutes (0 disables)"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("ledger-api-url") {
		cfg.LedgerAPIURL = c.String("ledger-api-url")
	}
	if c.IsSet("network") {
		cfg.Network = c.String("network")
	}
	if c.IsSet("creator-address") {
		cfg.CreatorAddress = c.String("creator-address")
	}
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("memory-store") {
		cfg.MemoryStore = c.Bool("memory-store")
	}
	if c.IsSet("scheduler-interval") {
		cfg.SchedulerIntervalMinutes = c.Int("scheduler-interval")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %v", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}

	// Initialize record store
	var store models.RecordStore
	if cfg.MemoryStore {
		log.Warn("Using in-memory record store, all data will be lost on restart")
		store = repository.NewMemoryStore()
	} else {
		store, err = repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %v", err)
		}
	}

	// Initialize ledger gateway and settlement facilitator
	gateway := ledger.NewGateway(cfg.LedgerAPIURL, log)
	facilitatorSvc := facilitator.NewFacilitator(gateway, cfg.NetworkCAIP2(), log)
	pw := paywall.NewPaywall(facilitatorSvc, time.Duration(cfg.SettleTimeoutSeconds)*time.Second, log)

	// Initialize notification channels
	var telegram *notifier.TelegramNotifier
	if cfg.TelegramBotToken != "" {
		telegram, err = notifier.NewTelegramNotifier(log, cfg.TelegramBotToken, store)
		if err != nil {
			return fmt.Errorf("failed to start telegram notifier: %v", err)
		}
	}
	var email *notifier.EmailNotifier
	if cfg.SMTPHost != "" {
		email = notifier.NewEmailNotifier(log, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender)
	}
	var notifierSvc models.NotifierService
	if telegram != nil || email != nil {
		notifierSvc = notifier.NewNotifier(log, store, telegram, email)
	}

	// Initialize renewal scheduler
	sched := scheduler.NewScheduler(store, notifierSvc, log)
	if cfg.SchedulerIntervalMinutes > 0 {
		go sched.RunPeriodic(context.Background(), time.Duration(cfg.SchedulerIntervalMinutes)*time.Minute)
	}

	// Initialize API server
	apiServer := http_api.NewHTTPServer(cfg, store, gateway, facilitatorSvc, pw, sched, notifierSvc, log)
	apiServer.Start()

	return nil
}
