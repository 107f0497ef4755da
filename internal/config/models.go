package config

import (
	"time"

	"github.com/mikey/llm-mail-sorter/internal/core"
)

// Transport security modes for the IMAP connection
const (
	SecurityTLS      = "tls"
	SecurityStartTLS = "starttls"
	SecurityNone     = "none"
)

// IMAPConfig represents the mailbox server connection settings
type IMAPConfig struct {
	Host               string
	Port               int
	Security           string
	Username           string
	Password           string
	CommandTimeout     time.Duration
	ProbeTimeout       time.Duration
	InsecureSkipVerify bool
}

// MailboxConfig represents the source folder and the category destinations
type MailboxConfig struct {
	SourceFolder string
	Folders      map[core.Category]string
}

// ProcessingConfig represents the reconciliation loop timing and policy
type ProcessingConfig struct {
	MessageDelay    time.Duration
	PollInterval    time.Duration
	ReconnectDelay  time.Duration
	ErrorBackoff    time.Duration
	StayAction      string
	MaxMoveAttempts int
	Order           string
}

// ClassifierConfig represents the classification gateway settings
type ClassifierConfig struct {
	MaxBodyChars       int
	EmptyCategory      string
	FallbackCategory   string
	WhitelistCategory  string
	WhitelistedDomains []string
	Timeout            time.Duration
	PromptTemplate     string
}

// StoreConfig represents the processed message store settings
type StoreConfig struct {
	Type       string
	Path       string
	SQLitePath string
	MySQLDSN   string
}

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GetIMAP returns the IMAP configuration
func (c *Config) GetIMAP() IMAPConfig {
	return IMAPConfig{
		Host:               c.GetString("imap.host"),
		Port:               c.GetInt("imap.port"),
		Security:           c.GetString("imap.security"),
		Username:           c.GetString("imap.username"),
		Password:           c.GetString("imap.password"),
		CommandTimeout:     c.durationOrZero("imap.command_timeout"),
		ProbeTimeout:       c.durationOrZero("imap.probe_timeout"),
		InsecureSkipVerify: c.GetBool("imap.insecure_skip_verify"),
	}
}

// GetMailbox returns the mailbox configuration
func (c *Config) GetMailbox() MailboxConfig {
	return MailboxConfig{
		SourceFolder: c.GetString("mailbox.source_folder"),
		Folders: map[core.Category]string{
			core.CategoryPersonal:   c.GetString("mailbox.folders.personal"),
			core.CategorySpam:       c.GetString("mailbox.folders.spam"),
			core.CategoryAccounts:   c.GetString("mailbox.folders.accounts"),
			core.CategoryPromotions: c.GetString("mailbox.folders.promotions"),
		},
	}
}

// GetProcessing returns the processing configuration
func (c *Config) GetProcessing() ProcessingConfig {
	return ProcessingConfig{
		MessageDelay:    c.durationOrZero("processing.message_delay"),
		PollInterval:    c.durationOrZero("processing.poll_interval"),
		ReconnectDelay:  c.durationOrZero("processing.reconnect_delay"),
		ErrorBackoff:    c.durationOrZero("processing.error_backoff"),
		StayAction:      c.GetString("processing.stay_action"),
		MaxMoveAttempts: c.GetInt("processing.max_move_attempts"),
		Order:           c.GetString("processing.order"),
	}
}

// GetClassifier returns the classifier configuration
func (c *Config) GetClassifier() ClassifierConfig {
	return ClassifierConfig{
		MaxBodyChars:       c.GetInt("classifier.max_body_chars"),
		EmptyCategory:      c.GetString("classifier.empty_category"),
		FallbackCategory:   c.GetString("classifier.fallback_category"),
		WhitelistCategory:  c.GetString("classifier.whitelist_category"),
		WhitelistedDomains: c.GetStringSlice("classifier.whitelisted_domains"),
		Timeout:            c.durationOrZero("classifier.timeout"),
		PromptTemplate:     c.GetString("classifier.prompt_template"),
	}
}

// GetStore returns the processed message store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:       c.GetString("store.type"),
		Path:       c.GetString("store.path"),
		SQLitePath: c.GetString("store.sqlite_path"),
		MySQLDSN:   c.GetString("store.mysql_dsn"),
	}
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}

// durationOrZero parses a duration key; Validate reports malformed values.
func (c *Config) durationOrZero(key string) time.Duration {
	d, err := c.GetDuration(key)
	if err != nil {
		return 0
	}
	return d
}
