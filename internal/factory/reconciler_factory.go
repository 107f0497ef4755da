package factory

import (
	"github.com/mikey/llm-mail-sorter/internal/config"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"go.uber.org/zap"
)

// ReconcilerFactory creates the reconciliation loop
type ReconcilerFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewReconcilerFactory creates a new reconciler factory
func NewReconcilerFactory(cfg *config.Config, logger *zap.Logger) *ReconcilerFactory {
	return &ReconcilerFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateReconciler wires the loop from its collaborators and the processing settings
func (f *ReconcilerFactory) CreateReconciler(
	dialer core.MailboxDialer,
	classifier core.MessageClassifier,
	processed *core.ProcessedSet,
	mapping core.FolderMapping,
) *core.Reconciler {
	processingCfg := f.cfg.GetProcessing()
	return core.NewReconciler(dialer, classifier, processed, mapping, core.ReconcilerOptions{
		SourceFolder:    f.cfg.GetMailbox().SourceFolder,
		MessageDelay:    processingCfg.MessageDelay,
		PollInterval:    processingCfg.PollInterval,
		ReconnectDelay:  processingCfg.ReconnectDelay,
		ErrorBackoff:    processingCfg.ErrorBackoff,
		StayAction:      core.StayAction(processingCfg.StayAction),
		Order:           core.Order(processingCfg.Order),
		MaxMoveAttempts: processingCfg.MaxMoveAttempts,
	}, f.logger.Named("reconciler"))
}
