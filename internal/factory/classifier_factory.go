package factory

import (
	"github.com/mikey/llm-mail-sorter/internal/config"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/mikey/llm-mail-sorter/internal/utils"
	"github.com/mikey/llm-mail-sorter/internal/whitelist"
	"go.uber.org/zap"
)

// ClassifierFactory creates the classifier service
type ClassifierFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger) *ClassifierFactory {
	return &ClassifierFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateWhitelist creates the sender domain whitelist
func (f *ClassifierFactory) CreateWhitelist() *whitelist.Checker {
	return whitelist.NewChecker(f.cfg.GetClassifier().WhitelistedDomains, f.logger)
}

// CreateClassifier creates the classifier service. Categories were checked by
// config.Validate; unknown values fall back to Personal.
func (f *ClassifierFactory) CreateClassifier(
	llmClient core.LLMClient,
	checker *whitelist.Checker,
	textProcessor *utils.TextProcessor,
) *core.ClassifierService {
	classifierCfg := f.cfg.GetClassifier()
	return core.NewClassifierService(llmClient, checker, textProcessor, f.logger, core.ClassifierOptions{
		MaxBodyChars:      classifierCfg.MaxBodyChars,
		EmptyCategory:     categoryOrPersonal(classifierCfg.EmptyCategory),
		FallbackCategory:  categoryOrPersonal(classifierCfg.FallbackCategory),
		WhitelistCategory: categoryOrPersonal(classifierCfg.WhitelistCategory),
		Timeout:           classifierCfg.Timeout,
		PromptTemplate:    classifierCfg.PromptTemplate,
	})
}

func categoryOrPersonal(s string) core.Category {
	if c, ok := core.ParseCategory(s); ok {
		return c
	}
	return core.CategoryPersonal
}
