package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/pesio-ai/campustrade-client/internal/config"
	"github.com/pesio-ai/campustrade-client/internal/handler"
	"github.com/pesio-ai/campustrade-client/internal/logger"
	"github.com/pesio-ai/campustrade-client/internal/realtime"
	"github.com/pesio-ai/campustrade-client/internal/repository"
	"github.com/pesio-ai/campustrade-client/internal/service"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()

	// Initialize logger
	pretty := cfg.LogPretty
	if os.Getenv("LOG_PRETTY") == "" {
		pretty = isatty.IsTerminal(os.Stderr.Fd())
	}
	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		ServiceName: "campustrade",
		Pretty:      pretty,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize session store
	store, err := openStore(cfg)
	if err != nil {
		log.Error().Err(err).Str("store", cfg.Store).Str("path", cfg.StorePath).Msg("Failed to open session store")
		return handler.ExitFailure
	}
	defer store.Close()

	// Initialize repositories
	client := repository.NewClient(cfg.APIURL, cfg.HTTPTimeout, log)
	sessionRepo := repository.NewSessionRepository(store, cfg.StorePassphrase, log)
	authRepo := repository.NewAuthRepository(client, log)
	listingRepo := repository.NewListingRepository(client, log)
	transactionRepo := repository.NewTransactionRepository(client, log)
	messageRepo := repository.NewMessageRepository(client, log)
	reviewRepo := repository.NewReviewRepository(client, log)
	reportRepo := repository.NewReportRepository(client, log)
	adminRepo := repository.NewAdminRepository(client, log)

	// Initialize services
	sessionService := service.NewSessionService(client, authRepo, sessionRepo, log)
	if err := sessionService.Init(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to restore session")
		return handler.ExitFailure
	}
	defer sessionService.Teardown()

	channels := service.RealtimeChannels(realtime.Options{
		URL:          cfg.WSURL,
		ReconnectMin: cfg.ReconnectMin,
		ReconnectMax: cfg.ReconnectMax,
	}, log)

	workflowService := service.NewWorkflowService(sessionService, listingRepo, transactionRepo, messageRepo, reviewRepo, reportRepo, service.NewTracker(), log)
	marketService := service.NewMarketplaceService(sessionService, listingRepo, transactionRepo, reviewRepo, reportRepo, log)
	messageService := service.NewMessageService(sessionService, messageRepo, channels, cfg.UnreadResync, log)
	adminService := service.NewAdminService(sessionService, adminRepo, reportRepo, log)

	// Initialize handler
	cli := handler.NewCLIHandler(sessionService, workflowService, marketService, messageService, adminService, os.Stdout, log)

	log.Debug().Str("api", cfg.APIURL).Str("ws", cfg.WSURL).Msg("Running command")
	return cli.Run(ctx, os.Args[1:])
}

func openStore(cfg *config.Config) (repository.Store, error) {
	if cfg.Store == config.StoreSQLite {
		store, err := repository.NewSQLiteStore(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	store, err := repository.NewFileStore(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	return store, nil
}
