package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/promptpilot/ai-router/internal/config"
	"github.com/promptpilot/ai-router/internal/decisionlog"
	"github.com/promptpilot/ai-router/internal/features"
	"github.com/promptpilot/ai-router/internal/keyring"
	"github.com/promptpilot/ai-router/internal/metrics"
	"github.com/promptpilot/ai-router/internal/orchestrator"
	"github.com/promptpilot/ai-router/internal/providers"
	"github.com/promptpilot/ai-router/internal/providers/anthropic"
	"github.com/promptpilot/ai-router/internal/providers/openai"
	"github.com/promptpilot/ai-router/internal/providers/openrouter"
	"github.com/promptpilot/ai-router/internal/registry"
	"github.com/promptpilot/ai-router/internal/routing"
	"github.com/promptpilot/ai-router/internal/server"
)

const version = "1.0.0"

// Application bundles the composed pipeline.
type Application struct {
	config    *config.Config
	server    *server.Server
	decisions *decisionlog.Logger
	watcher   *registry.Watcher
	logger    *logrus.Logger
}

// NewApplication loads configuration and wires every component together.
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	if err := setupLogger(logger, cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	reg, watcher, err := buildRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	adapters, keys, err := buildAdapters(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to construct providers: %w", err)
	}

	store, err := buildDecisionStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open decision log: %w", err)
	}
	decisions := decisionlog.New(store, logger, cfg.DecisionLog.BufferSize)

	m := metrics.New()
	deps := server.Deps{
		Extractor:    features.New(cfg.Features),
		Router:       routing.New(reg, cfg.EnabledProviders(), logger),
		Orchestrator: orchestrator.New(adapters, keys, m, logger, orchestrator.WithAttemptTimeout(cfg.Execution.AttemptTimeout)),
		Registry:     reg,
		Decisions:    decisions,
		Metrics:      m,
	}

	srv, err := server.NewServer(deps, &cfg.Server, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &Application{
		config:    cfg,
		server:    srv,
		decisions: decisions,
		watcher:   watcher,
		logger:    logger,
	}, nil
}

// Run starts the HTTP server and blocks until shutdown.
func (app *Application) Run() error {
	app.logger.WithField("version", version).Info("Starting AI router")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		app.logger.WithField("address", ":"+app.config.Server.Port).Info("HTTP server starting")
		serverErrors <- app.server.Start()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		app.logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Stop(shutdownCtx); err != nil {
		app.logger.WithError(err).Error("Server shutdown error")
	}
	if app.watcher != nil {
		app.watcher.Close()
	}
	// Flush buffered decision entries last: in-flight requests may still be
	// recording until the server has drained.
	if err := app.decisions.Close(); err != nil {
		app.logger.WithError(err).Error("Decision log shutdown error")
	}

	app.logger.Info("Graceful shutdown completed")
	return nil
}

func setupLogger(logger *logrus.Logger, cfg config.LoggingConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	default:
		return fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	switch cfg.Output {
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
		}
		logger.SetOutput(file)
	}
	return nil
}

func buildRegistry(cfg *config.Config, logger *logrus.Logger) (*registry.Registry, *registry.Watcher, error) {
	if cfg.Registry.Path == "" {
		return registry.New(registry.DefaultCatalog()), nil, nil
	}

	reg, err := registry.LoadFile(cfg.Registry.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load model catalog: %w", err)
	}
	logger.WithField("path", cfg.Registry.Path).Info("Model catalog loaded")

	if !cfg.Registry.Watch {
		return reg, nil, nil
	}
	watcher, err := registry.NewWatcher(reg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to watch model catalog: %w", err)
	}
	return reg, watcher, nil
}

func buildAdapters(cfg *config.Config, logger *logrus.Logger) (map[string]providers.Provider, keyring.Keyring, error) {
	adapters := make(map[string]providers.Provider)
	keys := keyring.Static{}

	if p := cfg.Providers.OpenAI; p.Enabled && p.APIKey != "" {
		var opts []openai.Option
		if p.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.BaseURL))
		}
		if p.DefaultModel != "" {
			opts = append(opts, openai.WithDefaultModel(p.DefaultModel))
		}
		adapter, err := openai.New(p.APIKey, logger, opts...)
		if err != nil {
			return nil, nil, err
		}
		adapters["openai"] = adapter
		keys["openai"] = p.APIKey
	}

	if p := cfg.Providers.Anthropic; p.Enabled && p.APIKey != "" {
		var opts []anthropic.Option
		if p.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(p.BaseURL))
		}
		if p.DefaultModel != "" {
			opts = append(opts, anthropic.WithDefaultModel(p.DefaultModel))
		}
		adapter, err := anthropic.New(p.APIKey, logger, opts...)
		if err != nil {
			return nil, nil, err
		}
		adapters["anthropic"] = adapter
		keys["anthropic"] = p.APIKey
	}

	if p := cfg.Providers.OpenRouter; p.Enabled && p.APIKey != "" {
		var opts []openrouter.Option
		if p.BaseURL != "" {
			opts = append(opts, openrouter.WithBaseURL(p.BaseURL))
		}
		if p.DefaultModel != "" {
			opts = append(opts, openrouter.WithDefaultModel(p.DefaultModel))
		}
		adapter, err := openrouter.New(p.APIKey, logger, opts...)
		if err != nil {
			return nil, nil, err
		}
		adapters["openrouter"] = adapter
		keys["openrouter"] = p.APIKey
	}

	for name := range adapters {
		logger.WithField("provider", name).Info("Provider registered")
	}
	return adapters, keys, nil
}

func buildDecisionStore(cfg *config.Config) (decisionlog.Store, error) {
	if cfg.DecisionLog.Path == "" {
		return decisionlog.NewMemoryStore(), nil
	}
	return decisionlog.NewFileStore(cfg.DecisionLog.Path)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY         OpenAI API key\n")
	fmt.Fprintf(os.Stderr, "  ANTHROPIC_API_KEY      Anthropic API key\n")
	fmt.Fprintf(os.Stderr, "  OPENROUTER_API_KEY     OpenRouter API key\n")
	fmt.Fprintf(os.Stderr, "  AI_ROUTER_PORT         Server port (default: 8080)\n")
	fmt.Fprintf(os.Stderr, "  AI_ROUTER_LOG_LEVEL    Log level (debug,info,warn,error,fatal)\n")
	fmt.Fprintf(os.Stderr, "  AI_ROUTER_LOG_FORMAT   Log format (json,text)\n")
	fmt.Fprintf(os.Stderr, "  AI_ROUTER_DECISION_LOG Decision log path (JSONL)\n")
	fmt.Fprintf(os.Stderr, "  AI_ROUTER_MODELS       Model catalog path (YAML)\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s --config configs/config.yaml\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY=sk-xxx %s\n", os.Args[0])
}

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}
	if *showVersion {
		fmt.Printf("AI Router v%s\n", version)
		os.Exit(0)
	}

	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create application: %v\n", err)
		os.Exit(1)
	}
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}
