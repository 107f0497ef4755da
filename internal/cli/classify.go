package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/mikey/llm-mail-sorter/internal/di"
	"github.com/mikey/llm-mail-sorter/internal/logging"
	"github.com/mikey/llm-mail-sorter/internal/ports"
	"github.com/mikey/llm-mail-sorter/internal/utils"
)

type classifyOptions struct {
	inputFile string
	provider  string
	model     string
	apiKey    string
	verbose   bool
	jsonLog   bool
}

func newClassifyCommand(root *rootOptions) *cobra.Command {
	opts := &classifyOptions{}

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a single RFC 5322 message from a file or stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.inputFile, "file", "f", "", "Input email file (use stdin if not specified)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "LLM provider (gemini, openai, bedrock)")
	cmd.Flags().StringVar(&opts.model, "model", "", "Model name or id for the selected provider")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "API key for the selected provider")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.Flags().BoolVar(&opts.jsonLog, "json-log", false, "Output logs in JSON format")

	return cmd
}

func runClassify(cmd *cobra.Command, root *rootOptions, opts *classifyOptions) error {
	logger, err := logging.InitConsoleLogger(opts.verbose, opts.jsonLog)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if opts.provider != "" {
		cfg.Set("llm.provider", opts.provider)
	}
	provider := cfg.GetLLM().Provider
	if opts.model != "" {
		modelKey := provider + ".model_name"
		if provider == "bedrock" {
			modelKey = "bedrock.model_id"
		}
		cfg.Set(modelKey, opts.model)
	}
	if opts.apiKey != "" {
		cfg.Set(provider+".api_key", opts.apiKey)
	}
	if err := cfg.ValidateClassifier(); err != nil {
		return err
	}

	// Read email from file or stdin
	var reader io.Reader = cmd.InOrStdin()
	if opts.inputFile != "" {
		file, err := os.Open(opts.inputFile)
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer file.Close()
		reader = file
		logger.Info("Reading email from file", zap.String("file", opts.inputFile))
	} else {
		logger.Info("Reading email from stdin")
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}

	parsed, err := utils.ParseMessage(raw)
	if errors.Is(err, utils.ErrUndecodable) {
		return fmt.Errorf("failed to parse email: %w", err)
	}
	if err != nil {
		logger.Warn("Message could not be fully decoded", zap.Error(err))
	}
	email := &core.Email{
		From:    parsed.From,
		To:      parsed.To,
		Subject: parsed.Subject,
		Body:    parsed.Body,
		Headers: parsed.Headers,
	}

	container, err := di.BuildClassifyContainer(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	return container.Invoke(func(classifier ports.EmailClassifier, llmClient core.LLMClient) error {
		defer func() {
			if closer, ok := llmClient.(interface{ Close() error }); ok {
				if err := closer.Close(); err != nil {
					logger.Error("Failed to close LLM client", zap.Error(err))
				}
			}
		}()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "\n=== Email Summary ===\n")
		fmt.Fprintf(out, "From: %s\n", email.From)
		fmt.Fprintf(out, "Subject: %s\n", email.Subject)
		fmt.Fprintf(out, "Body length: %d characters\n", len([]rune(email.Body)))

		result := classifier.Analyze(context.Background(), email)

		fmt.Fprintf(out, "\n=== Results ===\n")
		fmt.Fprintf(out, "Category: %s\n", result.Category)
		fmt.Fprintf(out, "Source: %s\n", result.Source)
		if result.RawReply != "" {
			fmt.Fprintf(out, "Raw reply: %q\n", result.RawReply)
		}
		if result.Err != nil {
			fmt.Fprintf(out, "Error: %v\n", result.Err)
		}
		fmt.Fprintf(out, "Model used: %s\n", result.ModelUsed)
		fmt.Fprintf(out, "Processing time: %v\n", result.Duration)
		return nil
	})
}
