package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-mail-sorter/internal/config"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/mikey/llm-mail-sorter/internal/factory"
	"github.com/mikey/llm-mail-sorter/internal/ports"
	"github.com/mikey/llm-mail-sorter/internal/utils"
	"github.com/mikey/llm-mail-sorter/internal/whitelist"
)

// BuildClassifyContainer creates a container for one-shot classification of
// a single message, without any mailbox or store wiring
func BuildClassifyContainer(cfg *config.Config, logger *zap.Logger) (*dig.Container, error) {
	container := dig.New()

	if err := container.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}
	if err := container.Provide(func() *zap.Logger { return logger }); err != nil {
		return nil, err
	}
	if err := provideClassification(container); err != nil {
		return nil, err
	}

	return container, nil
}

// provideClassification registers the LLM client and the classifier service
func provideClassification(container *dig.Container) error {
	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return err
	}

	// Register LLM client
	if err := container.Provide(func(f *factory.LLMFactory) (core.LLMClient, error) {
		return f.CreateLLMClient()
	}); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register whitelist
	if err := container.Provide(func(f *factory.ClassifierFactory) *whitelist.Checker {
		return f.CreateWhitelist()
	}); err != nil {
		return err
	}

	// Register classifier service
	if err := container.Provide(func(
		f *factory.ClassifierFactory,
		llmClient core.LLMClient,
		checker *whitelist.Checker,
		textProcessor *utils.TextProcessor,
	) *core.ClassifierService {
		return f.CreateClassifier(llmClient, checker, textProcessor)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(s *core.ClassifierService) core.MessageClassifier {
		return s
	}); err != nil {
		return err
	}
	return container.Provide(func(s *core.ClassifierService) ports.EmailClassifier {
		return s
	})
}
