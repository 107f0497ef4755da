package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mikey/llm-mail-sorter/internal/utils"
	"go.uber.org/zap"
)

// State is a reconciliation loop state
type State string

// Reconciliation loop states
const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateSelecting    State = "SELECTING"
	StateScanning     State = "SCANNING"
	StateProcessing   State = "PROCESSING"
	StateSleeping     State = "SLEEPING"
	StateShutdown     State = "SHUTDOWN"
)

// StayAction is the side effect applied to messages that remain in the source folder
type StayAction string

// Stay actions
const (
	StayNone       StayAction = "none"
	StayMarkUnseen StayAction = "mark_unseen"
	StayFlag       StayAction = "flag"
)

// Order in which unseen messages are processed within a batch
type Order string

// Processing orders
const (
	OldestFirst Order = "oldest_first"
	NewestFirst Order = "newest_first"
)

const logoutTimeout = 10 * time.Second

// MessageClassifier classifies decoded emails
type MessageClassifier interface {
	Analyze(ctx context.Context, email *Email) *ClassificationResult
}

// ReconcilerOptions configures the Reconciler
type ReconcilerOptions struct {
	SourceFolder   string
	MessageDelay   time.Duration
	PollInterval   time.Duration
	ReconnectDelay time.Duration
	ErrorBackoff   time.Duration
	StayAction     StayAction
	Order          Order
	// MaxMoveAttempts gives up on a message after this many failed moves.
	// Zero retries every cycle for the lifetime of the process.
	MaxMoveAttempts int
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Reconciler polls the source folder, classifies each unseen message once and
// moves it to the folder mapped to its category.
type Reconciler struct {
	dialer     MailboxDialer
	classifier MessageClassifier
	processed  *ProcessedSet
	mapping    FolderMapping
	opts       ReconcilerOptions
	logger     *zap.Logger
	sleep      Sleeper

	state        State
	session      MailboxSession
	moveFailures map[MessageID]int
}

// ReconcilerOption customizes a Reconciler
type ReconcilerOption func(*Reconciler)

// WithSleeper replaces the context-aware sleep used for every wait
func WithSleeper(s Sleeper) ReconcilerOption {
	return func(r *Reconciler) {
		r.sleep = s
	}
}

// NewReconciler creates a new reconciliation loop
func NewReconciler(
	dialer MailboxDialer,
	classifier MessageClassifier,
	processed *ProcessedSet,
	mapping FolderMapping,
	opts ReconcilerOptions,
	logger *zap.Logger,
	options ...ReconcilerOption,
) *Reconciler {
	if opts.StayAction == "" {
		opts.StayAction = StayMarkUnseen
	}
	if opts.Order == "" {
		opts.Order = OldestFirst
	}
	r := &Reconciler{
		dialer:       dialer,
		classifier:   classifier,
		processed:    processed,
		mapping:      mapping,
		opts:         opts,
		logger:       logger,
		sleep:        sleepContext,
		state:        StateDisconnected,
		moveFailures: make(map[MessageID]int),
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// State returns the current loop state
func (r *Reconciler) State() State {
	return r.state
}

// Run drives the loop until ctx is cancelled. Errors inside a cycle are
// logged and followed by a fixed backoff; Run only returns after shutdown.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("Starting mail sorter",
		zap.String("source_folder", r.opts.SourceFolder),
		zap.Int("processed", r.processed.Len()),
		zap.String("order", string(r.opts.Order)))

	for ctx.Err() == nil {
		if err := r.safeCycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			r.logger.Error("Unexpected error in processing loop, backing off",
				zap.String("state", string(r.state)),
				zap.Duration("backoff", r.opts.ErrorBackoff),
				zap.Error(err))
			r.discardSession()
			_ = r.sleep(ctx, r.opts.ErrorBackoff)
		}
	}

	r.shutdown()
	return nil
}

// safeCycle runs one cycle and converts a panic into an error
func (r *Reconciler) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in processing cycle: %v", rec)
		}
	}()
	return r.cycle(ctx)
}

// cycle performs connect, select, scan, process and sleep once
func (r *Reconciler) cycle(ctx context.Context) error {
	if r.session == nil || !r.session.IsAlive(ctx) {
		if r.session != nil {
			r.logger.Warn("Mailbox session is no longer alive, reconnecting")
			r.discardSession()
		}
		if !r.connect(ctx) {
			return nil
		}
	}

	if r.session.SelectedFolder() != r.opts.SourceFolder {
		r.setState(StateSelecting)
		if err := r.session.SelectFolder(ctx, r.opts.SourceFolder, true); err != nil {
			msg := "Failed to select source folder"
			if IsOperationError(err) {
				msg = "Failed to select source folder, check that it exists"
			}
			r.logger.Error(msg,
				zap.String("folder", r.opts.SourceFolder),
				zap.String("phase", "select"),
				zap.Error(err))
			r.discardSession()
			_ = r.sleep(ctx, r.opts.ReconnectDelay)
			return nil
		}
	}

	r.setState(StateScanning)
	pending, err := r.scan(ctx)
	if err != nil {
		if IsConnectionFatal(err) {
			r.logger.Warn("Connection lost while scanning", zap.String("phase", "scan"), zap.Error(err))
			r.discardSession()
			return nil
		}
		r.logger.Error("Failed to list unseen messages", zap.String("phase", "scan"), zap.Error(err))
	}

	if len(pending) > 0 {
		r.setState(StateProcessing)
		if err := r.processBatch(ctx, pending); err != nil {
			r.logger.Warn("Connection lost while processing, abandoning batch",
				zap.String("phase", "process"),
				zap.Error(err))
			r.discardSession()
			return nil
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	r.setState(StateSleeping)
	_ = r.sleep(ctx, r.opts.PollInterval)
	return nil
}

// connect establishes a new session; on failure it waits before returning false
func (r *Reconciler) connect(ctx context.Context) bool {
	r.setState(StateConnecting)
	session, err := r.dialer.Connect(ctx)
	if err != nil {
		r.logger.Error("Failed to connect to mailbox server",
			zap.String("phase", "connect"),
			zap.Duration("retry_in", r.opts.ReconnectDelay),
			zap.Error(err))
		r.setState(StateDisconnected)
		_ = r.sleep(ctx, r.opts.ReconnectDelay)
		return false
	}
	r.session = session
	return true
}

// scan lists unseen messages that are not yet processed, in processing order
func (r *Reconciler) scan(ctx context.Context) ([]MessageID, error) {
	ids, err := r.session.ListUnseenIDs(ctx)
	if err != nil {
		return nil, err
	}

	pending := make([]MessageID, 0, len(ids))
	for _, id := range ids {
		if r.processed.Contains(id) {
			continue
		}
		pending = append(pending, id)
	}
	r.sortPending(pending)

	r.logger.Info("Scanned source folder",
		zap.String("folder", r.opts.SourceFolder),
		zap.Int("unseen", len(ids)),
		zap.Int("pending", len(pending)))
	return pending, nil
}

// sortPending orders by numeric UID; identifiers that are not UIDs sort last
func (r *Reconciler) sortPending(ids []MessageID) {
	key := func(id MessageID) uint64 {
		uid, err := id.UID()
		if err != nil {
			return 1 << 33
		}
		return uint64(uid)
	}
	sort.SliceStable(ids, func(i, j int) bool {
		if r.opts.Order == NewestFirst {
			return key(ids[i]) > key(ids[j])
		}
		return key(ids[i]) < key(ids[j])
	})
}

// processBatch handles each pending message. It returns an error only when
// the connection was lost; an interrupt stops the batch at a message boundary.
func (r *Reconciler) processBatch(ctx context.Context, pending []MessageID) error {
	for i, id := range pending {
		if ctx.Err() != nil {
			r.logger.Info("Interrupt received, stopping batch",
				zap.Int("remaining", len(pending)-i))
			return nil
		}

		// Message work is not interrupted midway
		classified, err := r.processMessage(context.WithoutCancel(ctx), id)
		if err != nil {
			return err
		}

		if classified && r.opts.MessageDelay > 0 {
			r.logger.Debug("Waiting before next message", zap.Duration("delay", r.opts.MessageDelay))
			if err := r.sleep(ctx, r.opts.MessageDelay); err != nil {
				return nil
			}
		}
	}
	return nil
}

// processMessage fetches, classifies and dispatches one message. It reports
// whether a classification happened and returns connection-fatal errors only.
func (r *Reconciler) processMessage(ctx context.Context, id MessageID) (bool, error) {
	logger := r.logger.With(zap.String("message_id", string(id)))

	raw, err := r.session.FetchMessage(ctx, id)
	if err != nil {
		if IsConnectionFatal(err) {
			return false, err
		}
		logger.Error("Failed to fetch message, will retry next cycle",
			zap.String("phase", "fetch"),
			zap.Error(err))
		return false, nil
	}

	email := &Email{ID: id}
	parsed, err := utils.ParseMessage(raw)
	if errors.Is(err, utils.ErrUndecodable) {
		logger.Error("Failed to decode message, will retry next cycle",
			zap.String("phase", "decode"),
			zap.Error(err))
		return false, nil
	}
	if err != nil {
		logger.Warn("Message could not be fully decoded, classifying partial content",
			zap.String("phase", "decode"),
			zap.Error(err))
	}
	if parsed != nil {
		email.From = parsed.From
		email.To = parsed.To
		email.Subject = parsed.Subject
		email.Body = parsed.Body
		email.Headers = parsed.Headers
	}

	result := r.classifier.Analyze(ctx, email)
	dest := r.mapping.Destination(result.Category)
	logger.Info("Classified message",
		zap.String("sender", email.From),
		zap.String("subject", email.Subject),
		zap.String("category", string(result.Category)),
		zap.String("source", result.Source),
		zap.String("destination", dest))

	if dest == r.opts.SourceFolder {
		if err := r.applyStay(ctx, id); err != nil {
			if IsConnectionFatal(err) {
				return true, err
			}
			logger.Warn("Failed to apply stay action",
				zap.String("phase", "stay"),
				zap.String("action", string(r.opts.StayAction)),
				zap.Error(err))
		}
		r.markProcessed(ctx, logger, id)
		return true, nil
	}

	if err := r.session.MoveMessage(ctx, id, dest); err != nil {
		if IsConnectionFatal(err) {
			return true, err
		}
		r.handleMoveFailure(ctx, logger, id, dest, err)
		return true, nil
	}

	logger.Info("Moved message", zap.String("destination", dest))
	delete(r.moveFailures, id)
	r.markProcessed(ctx, logger, id)
	return true, nil
}

// applyStay performs the configured side effect for messages that stay put
func (r *Reconciler) applyStay(ctx context.Context, id MessageID) error {
	switch r.opts.StayAction {
	case StayNone:
		return nil
	case StayFlag:
		if err := r.session.SetFlag(ctx, id, FlagFlagged, true); err != nil {
			return err
		}
		return r.session.SetFlag(ctx, id, FlagSeen, false)
	default:
		return r.session.SetFlag(ctx, id, FlagSeen, false)
	}
}

func (r *Reconciler) handleMoveFailure(ctx context.Context, logger *zap.Logger, id MessageID, dest string, err error) {
	r.moveFailures[id]++
	attempts := r.moveFailures[id]

	fields := []zap.Field{
		zap.String("phase", "move"),
		zap.String("destination", dest),
		zap.Int("attempt", attempts),
		zap.Error(err),
	}
	if errors.Is(err, ErrFolderMissing) {
		logger.Error("Failed to move message, destination folder likely does not exist, please create it", fields...)
	} else {
		logger.Error("Failed to move message, will retry next cycle", fields...)
	}

	if r.opts.MaxMoveAttempts > 0 && attempts >= r.opts.MaxMoveAttempts {
		logger.Error("Giving up on message after repeated move failures",
			zap.Int("attempts", attempts),
			zap.String("destination", dest))
		delete(r.moveFailures, id)
		r.markProcessed(ctx, logger, id)
	}
}

func (r *Reconciler) markProcessed(ctx context.Context, logger *zap.Logger, id MessageID) {
	if err := r.processed.Mark(ctx, id); err != nil {
		logger.Warn("Processed state not persisted, message may be reprocessed after restart",
			zap.String("phase", "commit"),
			zap.Error(err))
	}
}

// discardSession drops the current session after a short best-effort logout
func (r *Reconciler) discardSession() {
	if r.session != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = r.session.Logout(ctx)
		cancel()
		r.session = nil
	}
	r.setState(StateDisconnected)
}

// shutdown logs out gracefully
func (r *Reconciler) shutdown() {
	r.logger.Info("Shutting down mail sorter")
	if r.session != nil {
		ctx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
		defer cancel()
		if err := r.session.Logout(ctx); err != nil {
			r.logger.Warn("Logout failed", zap.Error(err))
		}
		r.session = nil
	}
	r.setState(StateShutdown)
}

func (r *Reconciler) setState(s State) {
	if r.state == s {
		return
	}
	r.logger.Debug("State transition",
		zap.String("from", string(r.state)),
		zap.String("to", string(s)))
	r.state = s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
