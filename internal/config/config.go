// Package config provides configuration loading for the bot.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// DefaultConfigFile is the optional config file read at startup and written
// back by Update.
const DefaultConfigFile = "config/config.yaml"

// Providers selectable as the completion primary. The secondary is always
// OpenAI.
const (
	ProviderGroq      = "groq"
	ProviderAnthropic = "anthropic"
)

// Config holds all configuration for the bot. Loaded once at startup and
// immutable for the process lifetime except through Update.
type Config struct {
	// Completion settings
	AIProvider         string
	AIModel            string
	OpenAIModel        string
	MaxContextMessages int
	Temperature        float64
	MaxTokens          int
	ResponseTimeout    time.Duration

	// Persistence settings
	UsePersistence bool
	DBPath         string

	// Bot settings
	CommandPrefix string
	LogLevel      string

	// Slack settings
	SlackBotToken string
	SlackAppToken string

	// Provider credentials
	GroqAPIKey      string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	mu   sync.Mutex
	v    *viper.Viper
	path string
}

// Load loads configuration from DefaultConfigFile (if present) and
// DEPUTADO_-prefixed environment variables.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom loads configuration from the given file path plus environment.
// A missing file is not an error; defaults and environment apply.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("DEPUTADO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("ai_provider", ProviderGroq)
	v.SetDefault("ai_model", "llama3")
	v.SetDefault("openai_model", "gpt-3.5-turbo")
	v.SetDefault("max_context_messages", 50)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("max_tokens", 1024)
	v.SetDefault("response_timeout", 30)
	v.SetDefault("use_persistence", false)
	v.SetDefault("db_path", "data/messages.db")
	v.SetDefault("command_prefix", "!")
	v.SetDefault("log_level", "info")

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{v: v, path: path}
	cfg.fromViper()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) fromViper() {
	c.AIProvider = c.v.GetString("ai_provider")
	c.AIModel = c.v.GetString("ai_model")
	c.OpenAIModel = c.v.GetString("openai_model")
	c.MaxContextMessages = c.v.GetInt("max_context_messages")
	c.Temperature = c.v.GetFloat64("temperature")
	c.MaxTokens = c.v.GetInt("max_tokens")
	c.ResponseTimeout = time.Duration(c.v.GetInt("response_timeout")) * time.Second
	c.UsePersistence = c.v.GetBool("use_persistence")
	c.DBPath = c.v.GetString("db_path")
	c.CommandPrefix = c.v.GetString("command_prefix")
	c.LogLevel = c.v.GetString("log_level")
	c.SlackBotToken = c.v.GetString("slack_bot_token")
	c.SlackAppToken = c.v.GetString("slack_app_token")
	c.GroqAPIKey = c.v.GetString("groq_api_key")
	c.OpenAIAPIKey = c.v.GetString("openai_api_key")
	c.AnthropicAPIKey = c.v.GetString("anthropic_api_key")
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	if c.AIProvider != ProviderGroq && c.AIProvider != ProviderAnthropic {
		errs = append(errs, fmt.Sprintf("invalid ai_provider %q, must be %q or %q",
			c.AIProvider, ProviderGroq, ProviderAnthropic))
	}

	if c.SlackBotToken == "" {
		errs = append(errs, "DEPUTADO_SLACK_BOT_TOKEN is required")
	}
	if c.SlackAppToken == "" {
		errs = append(errs, "DEPUTADO_SLACK_APP_TOKEN is required")
	}

	switch c.AIProvider {
	case ProviderGroq:
		if c.GroqAPIKey == "" {
			errs = append(errs, "DEPUTADO_GROQ_API_KEY is required")
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, "DEPUTADO_ANTHROPIC_API_KEY is required")
		}
	}

	// The OpenAI fallback is always in play.
	if c.OpenAIAPIKey == "" {
		errs = append(errs, "DEPUTADO_OPENAI_API_KEY is required")
	}

	if c.MaxContextMessages <= 0 {
		errs = append(errs, "max_context_messages must be positive")
	}
	if c.ResponseTimeout <= 0 {
		errs = append(errs, "response_timeout must be positive")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// Updatable returns the setting keys Update accepts.
func Updatable() []string {
	return []string{
		"ai_model", "openai_model", "max_context_messages", "temperature",
		"max_tokens", "response_timeout", "command_prefix", "log_level",
	}
}

// Update applies known setting keys and persists the configuration file.
// Unknown keys are rejected before anything is applied.
func (c *Config) Update(updates map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	known := make(map[string]bool)
	for _, key := range Updatable() {
		known[key] = true
	}
	for key := range updates {
		if !known[key] {
			return fmt.Errorf("unknown setting %q", key)
		}
	}
	if len(updates) == 0 {
		return errors.New("no settings to update")
	}

	prev := make(map[string]any, len(updates))
	for key := range updates {
		prev[key] = c.v.Get(key)
	}
	for key, value := range updates {
		c.v.Set(key, value)
	}

	c.fromViper()
	if err := c.Validate(); err != nil {
		for key, value := range prev {
			c.v.Set(key, value)
		}
		c.fromViper()
		return err
	}

	if dir := filepath.Dir(c.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := c.v.WriteConfigAs(c.path); err != nil {
		return fmt.Errorf("failed to persist config: %w", err)
	}
	return nil
}
