package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ChainPilot/internal/api"
	"ChainPilot/internal/assistant/openai"
	"ChainPilot/internal/bridge"
	"ChainPilot/internal/chain"
	"ChainPilot/internal/config"
	"ChainPilot/internal/events"
	"ChainPilot/internal/orchestrator"
	"ChainPilot/internal/session"
	"ChainPilot/internal/tools"
	"ChainPilot/internal/wallet"
	"ChainPilot/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("chainpilotd failed: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	defer logger.Sync()

	walletStore, err := buildWalletStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer walletStore.Close()
	wallets := wallet.NewResolver(walletStore)

	sessionStore, err := buildSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	threads := session.NewRegistry(sessionStore)
	defer threads.Close()

	publisher, err := buildPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	var executorOpts []chain.ExecutorOption
	if cfg.Chains.ConfirmTimeout > 0 {
		executorOpts = append(executorOpts, chain.WithConfirmTimeout(cfg.Chains.ConfirmTimeout.Std()))
	}
	registry, err := chain.NewRegistry(ctx, cfg.Chains.DefinitionsPath, executorOpts...)
	if err != nil {
		return err
	}
	defer registry.Close()

	catalog, err := tools.NewCatalog(tools.Deps{
		Chains:          registry,
		Wallets:         wallets,
		Quotes:          bridge.NewClient(cfg.Bridge.QuoteURL),
		Events:          publisher,
		TreasuryKeyHex:  cfg.TreasuryKey(),
		TransferCeiling: cfg.Transfer.Ceiling,
	})
	if err != nil {
		return err
	}

	provider, err := openai.NewClient(openai.Config{
		APIKey:      cfg.APIKey(),
		BaseURL:     cfg.Assistant.BaseURL,
		Model:       cfg.Assistant.Model,
		AssistantID: cfg.Assistant.AssistantID,
		Timeout:     cfg.Assistant.Timeout.Std(),
	})
	if err != nil {
		return err
	}

	var orchestratorOpts []orchestrator.Option
	if cfg.Assistant.PollInterval > 0 {
		orchestratorOpts = append(orchestratorOpts, orchestrator.WithPollInterval(cfg.Assistant.PollInterval.Std()))
	}
	turns := orchestrator.New(provider, catalog, threads, publisher, orchestratorOpts...)

	server := api.NewServer(cfg.Server.Address, cfg.Server.ShutdownTimeout.Std(), turns, wallets)
	logger.L().Info("chainpilotd listening", "address", cfg.Server.Address)
	return server.Start(ctx)
}

func buildWalletStore(ctx context.Context, cfg *config.Config) (wallet.Store, error) {
	switch cfg.Storage.Wallets.Driver {
	case "", "memory":
		return wallet.NewMemoryStore(), nil
	case "mysql":
		return wallet.NewMySQLStore(ctx, wallet.MySQLConfig{DSN: cfg.Storage.Wallets.DSN})
	default:
		return nil, errors.New("unsupported wallet store driver " + cfg.Storage.Wallets.Driver)
	}
}

func buildSessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	switch cfg.Storage.Sessions.Driver {
	case "", "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		return session.NewRedisStore(ctx, session.RedisConfig{
			Address:   cfg.Storage.Sessions.Address,
			Password:  cfg.Storage.Sessions.Password,
			DB:        cfg.Storage.Sessions.DB,
			KeyPrefix: cfg.Storage.Sessions.KeyPrefix,
		})
	default:
		return nil, errors.New("unsupported session store driver " + cfg.Storage.Sessions.Driver)
	}
}

func buildPublisher(cfg *config.Config) (events.Publisher, error) {
	switch cfg.Events.Driver {
	case "", "memory":
		return events.NewMemoryPublisher(), nil
	case "rabbitmq":
		return events.NewRabbitMQPublisher(events.RabbitMQConfig{
			URL:     cfg.Events.URL,
			Queue:   cfg.Events.Queue,
			Durable: true,
		})
	default:
		return nil, errors.New("unsupported events driver " + cfg.Events.Driver)
	}
}
