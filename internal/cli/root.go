package cli

import (
	"github.com/spf13/cobra"

	"github.com/mikey/llm-mail-sorter/internal/config"
)

// Version is set at build time
var Version = "dev"

type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "llm-mail-sorter",
		Short:         "Sort unseen IMAP mail into folders using an LLM classifier",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format (console, json)")

	root.AddCommand(
		newServeCommand(opts),
		newClassifyCommand(opts),
		newFoldersCommand(opts),
		newCheckCommand(opts),
		newVersionCommand(),
	)

	return root
}

// loadConfig reads the configuration and applies flag overrides
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.New(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Set("logging.level", o.logLevel)
	}
	if o.logFormat != "" {
		cfg.Set("logging.format", o.logFormat)
	}
	return cfg, nil
}
