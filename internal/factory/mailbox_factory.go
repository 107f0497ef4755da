package factory

import (
	"fmt"

	"github.com/mikey/llm-mail-sorter/internal/adapters/mailbox"
	"github.com/mikey/llm-mail-sorter/internal/config"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"go.uber.org/zap"
)

// MailboxFactory creates mailbox dialers and the folder mapping
type MailboxFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewMailboxFactory creates a new mailbox factory
func NewMailboxFactory(cfg *config.Config, logger *zap.Logger) *MailboxFactory {
	return &MailboxFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateDialer creates an IMAP dialer from the configuration
func (f *MailboxFactory) CreateDialer() *mailbox.Dialer {
	imapCfg := f.cfg.GetIMAP()
	return mailbox.NewDialer(mailbox.Options{
		Host:               imapCfg.Host,
		Port:               imapCfg.Port,
		Security:           imapCfg.Security,
		Username:           imapCfg.Username,
		Password:           imapCfg.Password,
		CommandTimeout:     imapCfg.CommandTimeout,
		ProbeTimeout:       imapCfg.ProbeTimeout,
		InsecureSkipVerify: imapCfg.InsecureSkipVerify,
	}, f.logger)
}

// CreateFolderMapping builds the immutable category to folder mapping
func (f *MailboxFactory) CreateFolderMapping() (core.FolderMapping, error) {
	mapping, err := core.NewFolderMapping(f.cfg.GetMailbox().Folders)
	if err != nil {
		return core.FolderMapping{}, fmt.Errorf("%w: %v", core.ErrConfiguration, err)
	}
	return mapping, nil
}
