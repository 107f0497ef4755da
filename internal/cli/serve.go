package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/llm-mail-sorter/internal/adapters/mailbox"
	"github.com/mikey/llm-mail-sorter/internal/config"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/mikey/llm-mail-sorter/internal/di"
	"github.com/mikey/llm-mail-sorter/internal/ports"
)

const preflightTimeout = 2 * time.Minute

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Continuously watch the source folder and sort new mail",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			container, err := di.BuildContainer(cfg)
			if err != nil {
				return fmt.Errorf("failed to build dependency container: %w", err)
			}

			return container.Invoke(func(
				logger *zap.Logger,
				sorter ports.Sorter,
				processed *core.ProcessedSet,
				llmClient core.LLMClient,
				dialer *mailbox.Dialer,
				mapping core.FolderMapping,
			) error {
				defer logger.Sync()

				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				preflight(ctx, logger, dialer, mapping, cfg)

				err := sorter.Run(ctx)

				// Close any resources that need closing
				if closer, ok := llmClient.(interface{ Close() error }); ok {
					if err := closer.Close(); err != nil {
						logger.Error("Failed to close LLM client", zap.Error(err))
					}
				}
				if err := processed.Close(); err != nil {
					logger.Error("Failed to close processed message store", zap.Error(err))
				}

				logger.Info("Shutdown complete")
				return err
			})
		},
	}
}

// preflight logs mapping problems before the loop starts. Connection failures
// are only logged; the loop retries the connection itself.
func preflight(ctx context.Context, logger *zap.Logger, dialer *mailbox.Dialer, mapping core.FolderMapping, cfg *config.Config) {
	ctx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()

	source := cfg.GetMailbox().SourceFolder

	var stats []core.FolderStat
	session, err := dialer.Dial(ctx)
	if err != nil {
		logger.Warn("Pre-run folder check skipped, could not connect", zap.Error(err))
	} else {
		stats, err = session.ListFolders(ctx)
		if err != nil {
			logger.Warn("Pre-run folder check skipped, could not list folders", zap.Error(err))
			stats = nil
		}
		if err := session.Logout(ctx); err != nil {
			logger.Debug("Logout after pre-run check failed", zap.Error(err))
		}
	}

	for _, warning := range core.CheckFolders(mapping, source, stats) {
		logger.Warn("Pre-run check", zap.String("problem", warning))
	}
}
