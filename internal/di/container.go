package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-mail-sorter/internal/adapters/mailbox"
	"github.com/mikey/llm-mail-sorter/internal/config"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/mikey/llm-mail-sorter/internal/factory"
	"github.com/mikey/llm-mail-sorter/internal/logging"
	"github.com/mikey/llm-mail-sorter/internal/ports"
)

// BuildContainer creates and configures a dependency injection container for
// the long-running sorter
func BuildContainer(cfg *config.Config) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideClassification(container); err != nil {
		return nil, err
	}
	if err := provideMailbox(container); err != nil {
		return nil, err
	}

	// Register processed message store
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.StoreFactory) (core.ProcessedLog, error) {
		return f.CreateProcessedLog()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.StoreFactory, log core.ProcessedLog) (*core.ProcessedSet, error) {
		return f.CreateProcessedSet(log)
	}); err != nil {
		return nil, err
	}

	// Register reconciliation loop
	if err := container.Provide(factory.NewReconcilerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		f *factory.ReconcilerFactory,
		dialer core.MailboxDialer,
		classifier core.MessageClassifier,
		processed *core.ProcessedSet,
		mapping core.FolderMapping,
	) ports.Sorter {
		return f.CreateReconciler(dialer, classifier, processed, mapping)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// BuildMailboxContainer creates a container with only the mailbox wiring,
// used by the folder inspection commands
func BuildMailboxContainer(cfg *config.Config, logger *zap.Logger) (*dig.Container, error) {
	container := dig.New()

	if err := container.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}
	if err := container.Provide(func() *zap.Logger { return logger }); err != nil {
		return nil, err
	}
	if err := provideMailbox(container); err != nil {
		return nil, err
	}

	return container, nil
}

// provideMailbox registers the IMAP dialer and folder mapping
func provideMailbox(container *dig.Container) error {
	if err := container.Provide(factory.NewMailboxFactory); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.MailboxFactory) *mailbox.Dialer {
		return f.CreateDialer()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(d *mailbox.Dialer) core.MailboxDialer {
		return d
	}); err != nil {
		return err
	}
	return container.Provide(func(f *factory.MailboxFactory) (core.FolderMapping, error) {
		return f.CreateFolderMapping()
	})
}
