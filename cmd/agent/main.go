package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"clientprofile/internal/agent"
	"clientprofile/internal/engine"
	"clientprofile/internal/fabric"
	"clientprofile/internal/history"
	"clientprofile/internal/query"
	"clientprofile/internal/tools"
	"clientprofile/internal/transport/httpapi"
	"clientprofile/internal/transport/telegram"
	"clientprofile/pkg/config"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	runtimeConnector := fabric.NewConnector(fabric.Config{
		TenantID:     cfg.Fabric.TenantID,
		ClientID:     cfg.Fabric.ClientID,
		ClientSecret: cfg.Fabric.ClientSecret,
		Server:       cfg.Fabric.SQLServer,
		Database:     cfg.Fabric.Database,
	}, logger)
	lakehouseConnector := fabric.NewConnector(fabric.Config{
		TenantID:     cfg.Fabric.TenantID,
		ClientID:     cfg.Fabric.ClientID,
		ClientSecret: cfg.Fabric.ClientSecret,
		Server:       cfg.Fabric.LakehouseServer,
		Database:     cfg.Fabric.LakehouseDatabase,
	}, logger)

	// Initialize history storage
	var store history.Store
	if cfg.Agent.UseInMemoryHistory {
		logger.Info("Using in-memory history store")
		store = history.NewMemoryStore()
	} else {
		logger.Info("Using Fabric SQL history store")
		store = history.NewSQLStore(runtimeConnector, logger)
	}
	defer store.Close()

	// Tool surface
	executor := query.NewExecutor(lakehouseConnector, store, cfg.Agent.QueryTimeout, logger)
	describer := query.NewDescriber(runtimeConnector, logger)
	registry := engine.NewRegistry()
	if err := tools.RegisterAll(registry, executor, describer, store, logger); err != nil {
		logger.Fatal("Failed to register tools", zap.Error(err))
	}

	// Completion engine with the interim-notification interceptor
	client := openai.NewClient(cfg.OpenAI.APIKey)
	eng := engine.New(client, registry, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens, cfg.OpenAI.Temperature, logger)
	eng.Use(agent.NewInterceptor(eng, cfg.Agent.WaitingPrompt, logger).Middleware())

	orchestrator := agent.NewOrchestrator(store, eng, agent.Options{
		HistoryLimit:   cfg.Agent.HistoryLimit,
		HistoryMaxAge:  cfg.Agent.HistoryMaxAge,
		TypingInterval: cfg.Agent.TypingInterval,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	switch cfg.Transport.Kind {
	case "telegram":
		bot, err := telegram.New(cfg.Telegram.Token, orchestrator, logger)
		if err != nil {
			logger.Fatal("Failed to create Telegram bot", zap.Error(err))
		}
		group.Go(func() error {
			logger.Info("Serving agent over Telegram")
			return bot.Start(ctx)
		})
	default:
		handler := httpapi.NewHandler(orchestrator, logger)
		server := &http.Server{Addr: cfg.Server.Addr, Handler: handler.Mux()}
		group.Go(func() error {
			logger.Info("Serving agent over HTTP", zap.String("addr", cfg.Server.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			return server.Shutdown(context.Background())
		})
	}

	if err := group.Wait(); err != nil && err != context.Canceled {
		logger.Fatal("Agent stopped", zap.Error(err))
	}
}
