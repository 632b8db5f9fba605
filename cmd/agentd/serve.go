package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/golemcore/agentd/internal/agent"
	"github.com/golemcore/agentd/internal/channels"
	"github.com/golemcore/agentd/internal/channels/console"
	"github.com/golemcore/agentd/internal/channels/telegram"
	"github.com/golemcore/agentd/internal/config"
	"github.com/golemcore/agentd/internal/observability"
	"github.com/golemcore/agentd/internal/plans"
	"github.com/golemcore/agentd/internal/providers"
	"github.com/golemcore/agentd/internal/ratelimit"
	"github.com/golemcore/agentd/internal/sessions"
	"github.com/golemcore/agentd/internal/tools"
	"github.com/golemcore/agentd/internal/tools/builtin"
	"github.com/golemcore/agentd/pkg/models"
)

// runServe runs the agent behind the configured Telegram bot until
// interrupted.
func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required for serve (set telegram.token or TELEGRAM_BOT_TOKEN)")
	}

	logger := buildLogger(cfg.Log)
	slog.SetDefault(logger)

	adapter, err := telegram.NewAdapter(telegram.Config{
		Token:          cfg.Telegram.Token,
		AllowedChatIDs: cfg.Telegram.AllowedChatIDs,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	runner, cleanup, err := buildRunner(cfg, logger, adapter, adapter.Confirmer(), adapter)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, logger)
	}

	go adapter.Start(ctx)
	logger.Info("agentd serving", "channel", "telegram")

	for {
		select {
		case msg, ok := <-adapter.Inbound():
			if !ok {
				return nil
			}
			go func(msg *models.Message) {
				if _, err := runner.HandleMessage(ctx, msg); err != nil {
					logger.Error("turn failed", "chat_id", msg.ChatID, "error", err)
				}
			}(msg)
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		}
	}
}

// runChat runs a local REPL against the agent with the terminal as the
// channel and the confirmation surface.
func runChat(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := buildLogger(cfg.Log)
	slog.SetDefault(logger)

	port := console.New(os.Stdin, os.Stdout)
	runner, cleanup, err := buildRunner(cfg, logger, port, port, port)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("agentd chat. Type your message; Ctrl-D to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		msg := &models.Message{
			Channel:   models.ChannelConsole,
			ChatID:    "local",
			SenderID:  "local",
			Role:      models.RoleUser,
			Content:   text,
			CreatedAt: time.Now(),
		}
		if _, err := runner.HandleMessage(ctx, msg); err != nil {
			logger.Error("turn failed", "error", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// buildRunner assembles the stores, tools, provider, and pipeline from
// the configuration.
func buildRunner(cfg *config.Config, logger *slog.Logger, port channels.Port, confirmer channels.Confirmer, notifier channels.Notifier) (*agent.Runner, func(), error) {
	sessionStore, planStore, cleanup, err := buildStores(cfg)
	if err != nil {
		return nil, nil, err
	}

	registry := tools.NewRegistry()
	builtins := []tools.Tool{
		builtin.NewDateTimeTool(),
		builtin.NewShellTool(cfg.Tools.Shell.Enabled, cfg.Tools.Shell.Workdir),
	}
	for _, t := range builtins {
		if err := registry.Register(t); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	provider, err := providers.NewOpenAI(providers.OpenAIConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Logger:  logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	channelRegistry := channels.NewRegistry()
	if err := channelRegistry.Register(port); err != nil {
		cleanup()
		return nil, nil, err
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Capacity > 0 && cfg.RateLimit.RefillPerSecond > 0 {
		limiter = ratelimit.NewLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSecond)
	}

	runner, err := agent.NewRunner(agent.Config{
		Provider:     provider,
		ToolRegistry: registry,
		ToolExecutor: tools.NewExecutor(registry, tools.WithLogger(logger)),
		Sessions:     sessionStore,
		Plans:        plans.NewService(planStore, cfg.Agent.PlanMode, logger),
		Channels:     channelRegistry,
		Confirmer:    confirmer,
		Notifier:     notifier,
		Limiter:      limiter,
		Metrics:      observability.New(prometheus.DefaultRegisterer),
		Logger:       logger,
		SystemPrompt: cfg.LLM.SystemPrompt,
		Models:       cfg.LLM.Models,
		MaxRounds:    cfg.Agent.MaxRounds,
		HistoryLimit: cfg.Agent.HistoryLimit,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return runner, cleanup, nil
}

func buildStores(cfg *config.Config) (sessions.Store, plans.Store, func(), error) {
	if cfg.Storage.Path == "" {
		return sessions.NewMemoryStore(), plans.NewMemoryStore(), func() {}, nil
	}

	sessionStore, err := sessions.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	planStore, err := plans.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		sessionStore.Close()
		return nil, nil, nil, err
	}
	cleanup := func() {
		planStore.Close()
		sessionStore.Close()
	}
	return sessionStore, planStore, cleanup, nil
}

func buildLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("metrics listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server failed", "error", err)
	}
}
