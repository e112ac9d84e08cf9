// Package main is the entry point for the Deputado bot.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/brunovale/deputado-bot/internal/ai"
	"github.com/brunovale/deputado-bot/internal/config"
	"github.com/brunovale/deputado-bot/internal/slack"
	"github.com/brunovale/deputado-bot/internal/store"
)

const (
	groqBaseURL   = "https://api.groq.com/openai/v1"
	openAIBaseURL = "https://api.openai.com/v1"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("Starting Deputado bot...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	logger.Info("Configuration loaded",
		"ai_provider", cfg.AIProvider,
		"persistence", cfg.UsePersistence,
		"log_level", cfg.LogLevel,
	)

	// Open the durable message log when persistence is enabled
	var messageLog *store.MessageLog
	if cfg.UsePersistence {
		messageLog, err = store.OpenLog(cfg.DBPath)
		if err != nil {
			logger.Error("Failed to open message log", "error", err)
			os.Exit(1)
		}
		defer messageLog.Close()
		logger.Info("Message log ready", "path", cfg.DBPath)
	}

	// Create conversation registry
	registry := store.NewRegistry(cfg.MaxContextMessages, messageLog, logger)

	// Create completion gateway
	persona := ai.NewPersona()
	gateway := newGateway(cfg, persona, logger)

	// Create message handler
	handler := slack.NewHandler(cfg, registry, gateway, persona, logger)

	// Create Slack bot
	bot, err := slack.NewBot(cfg, handler.HandleMessage, logger)
	if err != nil {
		logger.Error("Failed to create Slack bot", "error", err)
		os.Exit(1)
	}
	logger.Info("Slack authentication OK", "bot_user_id", bot.GetBotUserID())

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", "signal", sig)
		cancel()
	}()

	// Start the daily maintenance sweeps once the bot is authenticated
	sweeper := store.NewSweeper(registry, logger)
	go sweeper.Run(ctx)

	// Run the bot
	logger.Info("Deputado bot is running. Press Ctrl+C to stop.")
	if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Bot error", "error", err)
		os.Exit(1)
	}

	logger.Info("Deputado bot stopped.")
}

// newGateway builds the two-tier completion gateway: the configured primary
// provider with the OpenAI-compatible client as fallback.
func newGateway(cfg *config.Config, persona *ai.Persona, logger *slog.Logger) *ai.Gateway {
	var primary ai.Provider
	switch cfg.AIProvider {
	case config.ProviderAnthropic:
		primary = ai.NewAnthropicClient(cfg.AnthropicAPIKey)
	default:
		primary = ai.NewOpenAIClient("groq", groqBaseURL, cfg.GroqAPIKey)
	}
	secondary := ai.NewOpenAIClient("openai", openAIBaseURL, cfg.OpenAIAPIKey)

	primaryOpts := ai.ChatOptions{
		Model:       cfg.AIModel,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	secondaryOpts := ai.ChatOptions{
		Model:       cfg.OpenAIModel,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}

	return ai.NewGateway(primary, primaryOpts, secondary, secondaryOpts, persona, cfg.ResponseTimeout, logger)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
