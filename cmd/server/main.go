package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cbodonnell/cardstage/pkg/api"
	authproviders "github.com/cbodonnell/cardstage/pkg/auth/providers"
	"github.com/cbodonnell/cardstage/pkg/clients"
	"github.com/cbodonnell/cardstage/pkg/config"
	"github.com/cbodonnell/cardstage/pkg/events"
	"github.com/cbodonnell/cardstage/pkg/log"
	"github.com/cbodonnell/cardstage/pkg/network"
	"github.com/cbodonnell/cardstage/pkg/registry"
	"github.com/cbodonnell/cardstage/pkg/repositories"
	"github.com/cbodonnell/cardstage/pkg/version"
	"github.com/cbodonnell/cardstage/pkg/workers"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	flag.IntVar(&cfg.Port, "port", cfg.Port, "Websocket port to listen on")
	flag.IntVar(&cfg.APIPort, "api-port", cfg.APIPort, "Status API port to listen on, 0 disables it")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	flag.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Match store url")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid config: %v", err))
	}

	parsedLogLevel, _ := log.ParseLogLevel(cfg.LogLevel)
	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting cardstage server version %s", version.Get())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		log.Error("Server stopped: %v", err)
		os.Exit(1)
	}
	log.Info("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	repository, err := repositories.NewRepository(ctx, cfg.DatabaseURL, cfg.MigrationsPath)
	if err != nil {
		return fmt.Errorf("failed to create repository: %v", err)
	}
	defer repository.Close(context.Background())

	reg, err := newRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer reg.Close()

	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	authProvider, err := newAuthProvider(ctx, cfg)
	if err != nil {
		return err
	}

	matchResultChan := make(chan workers.MatchResult, 100)
	statusChan := make(chan registry.SessionInfo, 1000)

	lobby, err := clients.NewLobby(clients.NewLobbyOptions{
		Config:     cfg.Session(),
		RelaySize:  cfg.RelaySize,
		ResultChan: matchResultChan,
		StatusChan: statusChan,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create lobby: %v", err)
	}

	var tls *network.TLSConfig
	if cfg.TLSCertFile != "" {
		tls = &network.TLSConfig{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile}
	}
	wsServer := network.NewServer(network.NewServerOptions{
		Port:         cfg.Port,
		TLS:          tls,
		Lobby:        lobby,
		AuthProvider: authProvider,
		Link: network.LinkOptions{
			OutboxSize:   cfg.OutboxSize,
			PingInterval: cfg.PingInterval,
			IdleTimeout:  cfg.IdleTimeout,
		},
		Logger: logger,
	})

	saveMatchWorker := workers.NewSaveMatchWorker(workers.NewSaveMatchWorkerOptions{
		Repository:      repository,
		Publisher:       publisher,
		MatchResultChan: matchResultChan,
		Logger:          logger,
	})
	statusWorker := workers.NewStatusWorker(workers.NewStatusWorkerOptions{
		Registry:   reg,
		StatusChan: statusChan,
		Logger:     logger,
	})

	g, ctx := errgroup.WithContext(ctx)
	// the save worker outlives the lobby so results of sessions stopped on
	// shutdown are still stored
	saveCtx, stopSaving := context.WithCancel(context.Background())
	g.Go(func() error {
		saveMatchWorker.Start(saveCtx)
		return nil
	})
	g.Go(func() error {
		statusWorker.Start(ctx)
		return nil
	})
	g.Go(func() error {
		defer stopSaving()
		return lobby.Run(ctx)
	})
	g.Go(func() error { return wsServer.Start(ctx) })

	if cfg.APIPort != 0 {
		apiAuth := authProvider
		if apiAuth == nil && len(cfg.APITokens) > 0 {
			apiAuth = authproviders.NewStaticAuthProvider(cfg.APITokens)
		}
		apiServerOpts := api.NewAPIServerOptions{
			Port:         cfg.APIPort,
			AuthProvider: apiAuth,
			Registry:     reg,
			Repository:   repository,
		}
		if cfg.TLSCertFile != "" {
			apiServerOpts.TLS = &api.TLSConfig{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile}
		}
		apiServer := api.NewAPIServer(apiServerOpts)
		g.Go(apiServer.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return apiServer.Stop(shutdownCtx)
		})
	}

	return g.Wait()
}

func newRegistry(ctx context.Context, cfg *config.Config) (registry.Registry, error) {
	if cfg.RedisURL == "" {
		log.Info("Tracking sessions in memory")
		return registry.NewMemoryRegistry(), nil
	}
	reg, err := registry.NewRedisRegistry(ctx, cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis registry: %v", err)
	}
	log.Info("Tracking sessions in redis")
	return reg, nil
}

func newPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		return events.NoopPublisher{}, nil
	}
	publisher, err := events.NewAMQPPublisher(events.NewAMQPPublisherOptions{
		URL:      cfg.AMQPURL,
		Exchange: cfg.AMQPExchange,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create amqp publisher: %v", err)
	}
	log.Info("Publishing match events to exchange %s", cfg.AMQPExchange)
	return publisher, nil
}

func newAuthProvider(ctx context.Context, cfg *config.Config) (authproviders.AuthProvider, error) {
	if cfg.FirebaseProjectID == "" {
		log.Warn("Firebase is not configured, participants are not authenticated")
		return nil, nil
	}
	provider, err := authproviders.NewFirebaseAuthProvider(ctx, authproviders.NewFirebaseAuthProviderOptions{
		ProjectID:       cfg.FirebaseProjectID,
		APIKey:          cfg.FirebaseAPIKey,
		CredentialsFile: cfg.FirebaseCredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase auth provider: %v", err)
	}
	return provider, nil
}
