package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/llm-mail-sorter/internal/adapters/mailbox"
	"github.com/mikey/llm-mail-sorter/internal/config"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/mikey/llm-mail-sorter/internal/di"
	"github.com/mikey/llm-mail-sorter/internal/logging"
)

const inspectTimeout = 2 * time.Minute

func newFoldersCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "folders",
		Short: "List mailbox folders with total and unread counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectFolders(cmd, opts, func(out io.Writer, cfg *config.Config, mapping core.FolderMapping, stats []core.FolderStat) error {
				printFolders(out, cfg.GetMailbox().SourceFolder, mapping, stats)
				for _, warning := range core.CheckFolders(mapping, cfg.GetMailbox().SourceFolder, stats) {
					fmt.Fprintf(out, "warning: %s\n", warning)
				}
				return nil
			})
		},
	}
}

func newCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and verify that every mapped folder exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return inspectFolders(cmd, opts, func(out io.Writer, cfg *config.Config, mapping core.FolderMapping, stats []core.FolderStat) error {
				warnings := core.CheckFolders(mapping, cfg.GetMailbox().SourceFolder, stats)
				for _, warning := range warnings {
					fmt.Fprintf(out, "problem: %s\n", warning)
				}
				if len(warnings) > 0 {
					return fmt.Errorf("%d problem(s) found", len(warnings))
				}
				fmt.Fprintln(out, "configuration OK")
				return nil
			})
		},
	}
}

type folderReport func(out io.Writer, cfg *config.Config, mapping core.FolderMapping, stats []core.FolderStat) error

// inspectFolders connects, lists folders and hands them to report
func inspectFolders(cmd *cobra.Command, opts *rootOptions, report folderReport) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.InitLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	container, err := di.BuildMailboxContainer(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	return container.Invoke(func(dialer *mailbox.Dialer, mapping core.FolderMapping) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), inspectTimeout)
		defer cancel()

		session, err := dialer.Dial(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := session.Logout(ctx); err != nil {
				logger.Debug("Logout failed", zap.Error(err))
			}
		}()

		stats, err := session.ListFolders(ctx)
		if err != nil {
			return err
		}
		return report(cmd.OutOrStdout(), cfg, mapping, stats)
	})
}

func printFolders(out io.Writer, source string, mapping core.FolderMapping, stats []core.FolderStat) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FOLDER\tTOTAL\tUNREAD\tCATEGORIES")

	var total, unread uint32
	for _, s := range stats {
		var tags []string
		if s.Name == source {
			tags = append(tags, "source")
		}
		for _, c := range mapping.CategoriesFor(s.Name) {
			tags = append(tags, string(c))
		}
		if !s.Selectable {
			fmt.Fprintf(w, "%s\t-\t-\t%s\n", s.Name, strings.Join(tags, ","))
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", s.Name, s.Messages, s.Unseen, strings.Join(tags, ","))
		total += s.Messages
		unread += s.Unseen
	}
	fmt.Fprintf(w, "TOTAL\t%d\t%d\t\n", total, unread)
	w.Flush()
}
