package mailbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"go.uber.org/zap"
)

// Session is a live IMAP connection implementing core.MailboxSession
type Session struct {
	client   *imapclient.Client
	opts     Options
	logger   *zap.Logger
	selected string
	broken   bool
}

func newSession(client *imapclient.Client, opts Options, logger *zap.Logger) *Session {
	return &Session{
		client: client,
		opts:   opts,
		logger: logger,
	}
}

// IsAlive sends a NOOP bounded by the probe timeout
func (s *Session) IsAlive(ctx context.Context) bool {
	if s.client == nil || s.broken {
		return false
	}
	err := s.run(ctx, s.opts.ProbeTimeout, "noop", func() error {
		return s.client.Noop().Wait()
	})
	if err != nil {
		s.logger.Debug("Liveness probe failed", zap.Error(err))
		return false
	}
	return true
}

// SelectFolder selects a folder; read-only unless writable is set
func (s *Session) SelectFolder(ctx context.Context, name string, writable bool) error {
	s.selected = ""
	var data *imap.SelectData
	err := s.run(ctx, s.opts.CommandTimeout, "select "+name, func() error {
		var err error
		data, err = s.client.Select(name, &imap.SelectOptions{ReadOnly: !writable}).Wait()
		return err
	})
	if err != nil {
		return err
	}

	s.selected = name
	s.logger.Debug("Selected folder",
		zap.String("folder", name),
		zap.Bool("writable", writable),
		zap.Uint32("messages", data.NumMessages),
		zap.Uint32("uid_validity", data.UIDValidity))
	return nil
}

// SelectedFolder returns the selected folder or "" when none
func (s *Session) SelectedFolder() string {
	return s.selected
}

// ListUnseenIDs searches the selected folder for messages without \Seen
func (s *Session) ListUnseenIDs(ctx context.Context) ([]core.MessageID, error) {
	if err := s.requireSelected(); err != nil {
		return nil, err
	}

	var data *imap.SearchData
	err := s.run(ctx, s.opts.CommandTimeout, "search unseen", func() error {
		var err error
		data, err = s.client.UIDSearch(&imap.SearchCriteria{
			NotFlag: []imap.Flag{imap.FlagSeen},
		}, nil).Wait()
		return err
	})
	if err != nil {
		return nil, err
	}

	uids := data.AllUIDs()
	ids := make([]core.MessageID, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, core.MessageIDFromUID(uint32(uid)))
	}
	return ids, nil
}

// FetchMessage reads the full message with BODY.PEEK[]. If the server still
// sets \Seen, the flag is cleared again so the seen state is unchanged.
func (s *Session) FetchMessage(ctx context.Context, id core.MessageID) ([]byte, error) {
	if err := s.requireSelected(); err != nil {
		return nil, err
	}
	uidSet, err := toUIDSet(id)
	if err != nil {
		return nil, err
	}

	before, err := s.fetchFlags(ctx, uidSet)
	if err != nil {
		return nil, err
	}
	wasSeen := hasFlag(before.Flags, imap.FlagSeen)

	section := &imap.FetchItemBodySection{Peek: true}
	var msgs []*imapclient.FetchMessageBuffer
	err = s.run(ctx, s.opts.CommandTimeout, "fetch "+string(id), func() error {
		var err error
		msgs, err = s.client.Fetch(uidSet, &imap.FetchOptions{
			UID:         true,
			Flags:       true,
			BodySection: []*imap.FetchItemBodySection{section},
		}).Collect()
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: message %s not found in %s", core.ErrOperationRejected, id, s.selected)
	}

	raw := msgs[0].FindBodySection(section)
	if raw == nil {
		return nil, fmt.Errorf("%w: server returned no body for message %s", core.ErrOperationRejected, id)
	}

	if !wasSeen && hasFlag(msgs[0].Flags, imap.FlagSeen) {
		s.logger.Debug("Server marked message seen on fetch, restoring", zap.String("message_id", string(id)))
		if err := s.SetFlag(ctx, id, core.FlagSeen, false); err != nil {
			return nil, fmt.Errorf("failed to restore unseen state: %w", err)
		}
	}

	return raw, nil
}

func (s *Session) fetchFlags(ctx context.Context, uidSet imap.UIDSet) (*imapclient.FetchMessageBuffer, error) {
	var msgs []*imapclient.FetchMessageBuffer
	err := s.run(ctx, s.opts.CommandTimeout, "fetch flags", func() error {
		var err error
		msgs, err = s.client.Fetch(uidSet, &imap.FetchOptions{UID: true, Flags: true}).Collect()
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: message not found in %s", core.ErrOperationRejected, s.selected)
	}
	return msgs[0], nil
}

// SetFlag adds or removes a flag on a message
func (s *Session) SetFlag(ctx context.Context, id core.MessageID, flag core.Flag, on bool) error {
	if err := s.requireSelected(); err != nil {
		return err
	}
	uidSet, err := toUIDSet(id)
	if err != nil {
		return err
	}

	op := imap.StoreFlagsDel
	if on {
		op = imap.StoreFlagsAdd
	}
	return s.run(ctx, s.opts.CommandTimeout, "store "+string(flag), func() error {
		return s.client.Store(uidSet, &imap.StoreFlags{
			Op:     op,
			Silent: true,
			Flags:  []imap.Flag{imap.Flag(flag)},
		}, nil).Close()
	})
}

// MoveMessage copies the message to dest, flags the source \Deleted and
// expunges it. The first failing step is returned and nothing is undone, so a
// failure after the copy can leave a duplicate in dest.
func (s *Session) MoveMessage(ctx context.Context, id core.MessageID, dest string) error {
	if err := s.requireSelected(); err != nil {
		return err
	}
	uidSet, err := toUIDSet(id)
	if err != nil {
		return err
	}

	err = s.run(ctx, s.opts.CommandTimeout, "copy to "+dest, func() error {
		_, err := s.client.Copy(uidSet, dest).Wait()
		return err
	})
	if err != nil {
		return err
	}

	if err := s.SetFlag(ctx, id, core.FlagDeleted, true); err != nil {
		return err
	}

	return s.run(ctx, s.opts.CommandTimeout, "expunge", func() error {
		if s.client.Caps().Has(imap.CapUIDPlus) {
			return s.client.UIDExpunge(uidSet).Close()
		}
		return s.client.Expunge().Close()
	})
}

// ListFolders returns every folder with its message and unseen counts
func (s *Session) ListFolders(ctx context.Context) ([]core.FolderStat, error) {
	var list []*imap.ListData
	err := s.run(ctx, s.opts.CommandTimeout, "list", func() error {
		var err error
		list, err = s.client.List("", "*", nil).Collect()
		return err
	})
	if err != nil {
		return nil, err
	}

	stats := make([]core.FolderStat, 0, len(list))
	for _, item := range list {
		stat := core.FolderStat{Name: item.Mailbox, Selectable: true}
		for _, attr := range item.Attrs {
			if attr == imap.MailboxAttrNoSelect || attr == imap.MailboxAttrNonExistent {
				stat.Selectable = false
			}
		}
		if stat.Selectable {
			var data *imap.StatusData
			err := s.run(ctx, s.opts.CommandTimeout, "status "+item.Mailbox, func() error {
				var err error
				data, err = s.client.Status(item.Mailbox, &imap.StatusOptions{
					NumMessages: true,
					NumUnseen:   true,
				}).Wait()
				return err
			})
			if err != nil {
				if core.IsConnectionFatal(err) {
					return nil, err
				}
				s.logger.Warn("Failed to get folder status", zap.String("folder", item.Mailbox), zap.Error(err))
			} else {
				if data.NumMessages != nil {
					stat.Messages = *data.NumMessages
				}
				if data.NumUnseen != nil {
					stat.Unseen = *data.NumUnseen
				}
			}
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// Logout ends the session and closes the connection
func (s *Session) Logout(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	var err error
	if !s.broken {
		err = s.run(ctx, s.opts.ProbeTimeout, "logout", func() error {
			return s.client.Logout().Wait()
		})
	}
	s.close()
	return err
}

func (s *Session) close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Debug("Failed to close IMAP connection", zap.Error(err))
		}
	}
	s.client = nil
	s.selected = ""
	s.broken = true
}

func (s *Session) requireSelected() error {
	if s.client == nil || s.broken {
		return fmt.Errorf("%w: session closed", core.ErrConnectionLost)
	}
	if s.selected == "" {
		return core.ErrNoFolderSelected
	}
	return nil
}

// run executes one command bounded by timeout. A command that does not
// complete in time closes the connection, which also unblocks it.
func (s *Session) run(ctx context.Context, timeout time.Duration, op string, fn func() error) error {
	if s.client == nil || s.broken {
		return fmt.Errorf("%w: %s on closed session", core.ErrConnectionLost, op)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return s.classify(op, err)
	case <-ctx.Done():
		s.broken = true
		if err := s.client.Close(); err != nil {
			s.logger.Debug("Failed to close IMAP connection", zap.Error(err))
		}
		return fmt.Errorf("%w: %s: %v", core.ErrConnectionLost, op, ctx.Err())
	}
}

// classify maps server responses onto operation and connection errors
func (s *Session) classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var imapErr *imap.Error
	if errors.As(err, &imapErr) && imapErr.Type == imap.StatusResponseTypeNo {
		switch imapErr.Code {
		case imap.ResponseCodeTryCreate, imap.ResponseCodeNonExistent:
			return fmt.Errorf("failed to %s: %w: %w", op, core.ErrFolderMissing, err)
		default:
			return fmt.Errorf("failed to %s: %w: %w", op, core.ErrOperationRejected, err)
		}
	}

	s.broken = true
	return fmt.Errorf("failed to %s: %w: %w", op, core.ErrConnectionLost, err)
}

func toUIDSet(id core.MessageID) (imap.UIDSet, error) {
	uid, err := id.UID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrOperationRejected, err)
	}
	return imap.UIDSetNum(imap.UID(uid)), nil
}

func hasFlag(flags []imap.Flag, want imap.Flag) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}
