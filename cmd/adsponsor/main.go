package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/core-coin/adsponsor/internal/blockchain"
	"github.com/core-coin/adsponsor/internal/clock"
	"github.com/core-coin/adsponsor/internal/config"
	"github.com/core-coin/adsponsor/internal/http_api"
	"github.com/core-coin/adsponsor/internal/metrics"
	"github.com/core-coin/adsponsor/internal/models"
	"github.com/core-coin/adsponsor/internal/notificator"
	"github.com/core-coin/adsponsor/internal/repository"
	"github.com/core-coin/adsponsor/internal/sponsor"
	"github.com/core-coin/adsponsor/pkg/logger"
	"github.com/core-coin/adsponsor/pkg/validation"
)

func main() {
	app := &cli.App{
		Name:  "adsponsor",
		Usage: "Ad-gated fee sponsorship pool",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "storage", Aliases: []string{"S"}, Usage: "Storage driver (postgres or memory)"},
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "HTTP API port"},
			&cli.StringFlag{Name: "admin-address", Usage: "Initialize the pool with this admin on start"},
			&cli.StringFlag{Name: "fee-sink-address", Aliases: []string{"f"}, Usage: "Address receiving sponsored fees"},
			&cli.Int64Flag{Name: "transaction-timeout", Usage: "Seconds a request stays settleable"},
			&cli.StringFlag{Name: "log-file", Usage: "Also write logs to this rotated file"},
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
	if c.IsSet("storage") {
		cfg.StorageDriver = c.String("storage")
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
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("admin-address") {
		cfg.AdminAddress = c.String("admin-address")
	}
	if c.IsSet("fee-sink-address") {
		cfg.FeeSinkAddress = c.String("fee-sink-address")
	}
	if c.IsSet("transaction-timeout") {
		cfg.TransactionTimeout = c.Int64("transaction-timeout")
	}
	if c.IsSet("log-file") {
		cfg.LogFile = c.String("log-file")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %v", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := openRepository(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open repository: %v", err)
	}
	defer db.Close()

	// Initialize ledger
	ledger := blockchain.NewMemoryLedger(log)
	genesis, err := cfg.ParseGenesisBalances()
	if err != nil {
		return err
	}
	for addr, amount := range genesis {
		if err := ledger.Credit(ctx, addr, amount); err != nil {
			return fmt.Errorf("failed to credit genesis balance: %v", err)
		}
	}

	// Initialize notificator
	m := metrics.New()
	senders, err := buildSenders(ctx, cfg, log)
	if err != nil {
		return err
	}
	notif, err := notificator.NewNotificator(log, m, senders...)
	if err != nil {
		return fmt.Errorf("failed to initialize notificator: %v", err)
	}
	defer notif.Stop()

	params, err := sponsorParams(cfg)
	if err != nil {
		return err
	}
	app := sponsor.NewSponsor(db, ledger, clock.New(), notif, m, log, params)

	if cfg.AdminAddress != "" {
		if err := initializePool(ctx, app, cfg.AdminAddress, log); err != nil {
			return err
		}
	}

	apiServer := http_api.NewHTTPServer(app, m.Handler(), cfg.APIPort, log)
	go apiServer.Start()

	<-ctx.Done()
	log.Info("Shutdown signal received")
	return apiServer.Shutdown()
}

func openRepository(cfg *config.Config, log *logger.Logger) (models.Repository, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		log.Warn("Using in-memory storage, state is lost on restart")
		return repository.NewMemoryRepository(log), nil
	}
	return repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
}

func buildSenders(ctx context.Context, cfg *config.Config, log *logger.Logger) ([]notificator.Sender, error) {
	var senders []notificator.Sender
	if cfg.TelegramBotToken != "" {
		tg, err := notificator.NewTelegramNotificator(log, cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			return nil, err
		}
		tg.Start(ctx)
		senders = append(senders, tg)
	}
	if cfg.SMTPHost != "" {
		senders = append(senders, notificator.NewEmailNotificator(log, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender, cfg.SMTPRecipient))
	}
	return senders, nil
}

func sponsorParams(cfg *config.Config) (sponsor.Params, error) {
	feeSink, err := validation.ParseAddress(cfg.FeeSinkAddress)
	if err != nil {
		return sponsor.Params{}, fmt.Errorf("invalid fee sink: %v", err)
	}
	return sponsor.Params{
		TransactionTimeout: cfg.TransactionTimeout,
		MaxSingleDeposit:   cfg.MaxSingleDeposit,
		DefaultBaseFee:     cfg.DefaultBaseFee,
		DefaultFeePerAd:    cfg.DefaultFeePerAd,
		MinAdReward:        cfg.MinAdReward,
		MinDisplayDuration: cfg.MinDisplayDuration,
		MaxAdIDLength:      cfg.MaxAdIDLength,
		MaxAdURLLength:     cfg.MaxAdURLLength,
		MaxAdContentLength: cfg.MaxAdContentLength,
		FeeSink:            feeSink,
	}, nil
}

// initializePool creates the pool on first start. An existing pool is kept.
func initializePool(ctx context.Context, app *sponsor.Sponsor, adminAddress string, log *logger.Logger) error {
	admin, err := validation.ParseAddress(adminAddress)
	if err != nil {
		return fmt.Errorf("invalid admin address: %v", err)
	}
	_, err = app.Initialize(ctx, admin, admin)
	if errors.Is(err, models.ErrAlreadyInitialized) {
		log.Info("Pool already initialized")
		return nil
	}
	return err
}
