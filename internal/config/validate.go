package config

import (
	"errors"
	"fmt"

	"github.com/mikey/llm-mail-sorter/internal/core"
)

var durationKeys = []string{
	"imap.command_timeout",
	"imap.probe_timeout",
	"processing.message_delay",
	"processing.poll_interval",
	"processing.reconnect_delay",
	"processing.error_backoff",
	"classifier.timeout",
}

// Validate checks that every setting required to run the sorter is present
// and well formed. All problems are reported together, each wrapping
// core.ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: %s", core.ErrConfiguration, fmt.Sprintf(format, args...)))
	}

	imapCfg := c.GetIMAP()
	if imapCfg.Host == "" {
		fail("imap.host is required")
	}
	if imapCfg.Username == "" || imapCfg.Password == "" {
		fail("imap.username and imap.password are required")
	}
	if imapCfg.Port <= 0 || imapCfg.Port > 65535 {
		fail("imap.port %d is out of range", imapCfg.Port)
	}
	switch imapCfg.Security {
	case SecurityTLS, SecurityStartTLS, SecurityNone:
	default:
		fail("unsupported imap.security %q", imapCfg.Security)
	}

	for _, key := range durationKeys {
		d, err := c.GetDuration(key)
		if err != nil {
			fail("%v", err)
			continue
		}
		if d < 0 {
			fail("%s must not be negative", key)
		}
	}

	errs = append(errs, c.validateClassification()...)

	mailboxCfg := c.GetMailbox()
	if mailboxCfg.SourceFolder == "" {
		fail("mailbox.source_folder is required")
	}
	if _, err := core.NewFolderMapping(mailboxCfg.Folders); err != nil {
		fail("%v", err)
	}

	processingCfg := c.GetProcessing()
	switch processingCfg.StayAction {
	case "none", "mark_unseen", "flag":
	default:
		fail("unsupported processing.stay_action %q", processingCfg.StayAction)
	}
	switch processingCfg.Order {
	case "oldest_first", "newest_first":
	default:
		fail("unsupported processing.order %q", processingCfg.Order)
	}
	if processingCfg.MaxMoveAttempts < 0 {
		fail("processing.max_move_attempts must not be negative")
	}

	switch c.GetStore().Type {
	case "file", "sqlite", "mysql", "memory":
	default:
		fail("unsupported store.type %q", c.GetStore().Type)
	}

	return errors.Join(errs...)
}

// ValidateClassifier checks only the settings needed to classify a message,
// without any mailbox requirements.
func (c *Config) ValidateClassifier() error {
	return errors.Join(c.validateClassification()...)
}

func (c *Config) validateClassification() []error {
	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: %s", core.ErrConfiguration, fmt.Sprintf(format, args...)))
	}

	switch provider := c.GetLLM().Provider; provider {
	case "gemini":
		if c.GetGemini().APIKey == "" {
			fail("gemini.api_key is required for the gemini provider")
		}
	case "openai":
		if c.GetOpenAI().APIKey == "" {
			fail("openai.api_key is required for the openai provider")
		}
	case "bedrock":
		if c.GetBedrock().Region == "" {
			fail("bedrock.region is required for the bedrock provider")
		}
	default:
		fail("unsupported llm.provider %q", provider)
	}

	classifierCfg := c.GetClassifier()
	for key, value := range map[string]string{
		"classifier.empty_category":     classifierCfg.EmptyCategory,
		"classifier.fallback_category":  classifierCfg.FallbackCategory,
		"classifier.whitelist_category": classifierCfg.WhitelistCategory,
	} {
		if _, ok := core.ParseCategory(value); !ok {
			fail("%s %q is not one of %v", key, value, core.Categories)
		}
	}
	if classifierCfg.MaxBodyChars < 0 {
		fail("classifier.max_body_chars must not be negative")
	}

	return errs
}
