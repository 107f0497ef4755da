package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance. An explicit path takes precedence
// over the default search locations.
func New(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/llm-mail-sorter/")
		v.AddConfigPath("$HOME/.llm-mail-sorter")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("MAIL_SORTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults and environment
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// IMAP defaults
	v.SetDefault("imap.host", "")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.security", SecurityTLS)
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.command_timeout", "60s")
	v.SetDefault("imap.probe_timeout", "10s")
	v.SetDefault("imap.insecure_skip_verify", false)

	// Mailbox defaults
	v.SetDefault("mailbox.source_folder", "INBOX")
	v.SetDefault("mailbox.folders.personal", "INBOX")
	v.SetDefault("mailbox.folders.spam", "INBOX.spam")
	v.SetDefault("mailbox.folders.accounts", "Accounts")
	v.SetDefault("mailbox.folders.promotions", "Junk")

	// Processing defaults
	v.SetDefault("processing.message_delay", "15s")
	v.SetDefault("processing.poll_interval", "30s")
	v.SetDefault("processing.reconnect_delay", "30s")
	v.SetDefault("processing.error_backoff", "60s")
	v.SetDefault("processing.stay_action", "mark_unseen")
	v.SetDefault("processing.max_move_attempts", 0)
	v.SetDefault("processing.order", "oldest_first")

	// Classifier defaults
	v.SetDefault("classifier.max_body_chars", 2000)
	v.SetDefault("classifier.empty_category", "Promotions")
	v.SetDefault("classifier.fallback_category", "Personal")
	v.SetDefault("classifier.whitelist_category", "Personal")
	v.SetDefault("classifier.whitelisted_domains", []string{})
	v.SetDefault("classifier.timeout", "30s")
	v.SetDefault("classifier.prompt_template", "")

	// LLM provider defaults
	v.SetDefault("llm.provider", "gemini")

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-1.5-flash-latest")
	v.SetDefault("gemini.max_tokens", 16)
	v.SetDefault("gemini.temperature", 0.0)
	v.SetDefault("gemini.top_p", 0.9)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 16)
	v.SetDefault("openai.temperature", 0.0)
	v.SetDefault("openai.top_p", 0.9)

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.max_tokens", 16)
	v.SetDefault("bedrock.temperature", 0.0)
	v.SetDefault("bedrock.top_p", 0.9)

	// Processed message store defaults
	v.SetDefault("store.type", "file")
	v.SetDefault("store.path", "processed_uids.txt")
	v.SetDefault("store.sqlite_path", "./data/processed.db")
	v.SetDefault("store.mysql_dsn", "user:password@tcp(localhost:3306)/mail_sorter")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
}

// Set overrides a configuration value
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
