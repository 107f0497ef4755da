package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/mikey/llm-mail-sorter/internal/utils"
	"github.com/mikey/llm-mail-sorter/internal/whitelist"
)

type fakeLog struct {
	mu        sync.Mutex
	seed      []MessageID
	entries   []MessageID
	appendErr error
	closed    bool
}

func (l *fakeLog) Load(ctx context.Context) ([]MessageID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]MessageID(nil), l.seed...), nil
}

func (l *fakeLog) Append(ctx context.Context, id MessageID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return l.appendErr
	}
	l.entries = append(l.entries, id)
	return nil
}

func (l *fakeLog) Close() error {
	l.closed = true
	return nil
}

type fakeLLM struct {
	mu      sync.Mutex
	reply   func(prompt string) (string, error)
	prompts []string
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.reply == nil {
		return "Personal", nil
	}
	return f.reply(prompt)
}

func (f *fakeLLM) Model() string {
	return "fake-model"
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// replyBySubject answers with the category registered for the subject found
// in the prompt, and Personal otherwise
func replyBySubject(replies map[string]string) func(string) (string, error) {
	return func(prompt string) (string, error) {
		for subject, reply := range replies {
			if strings.Contains(prompt, "Subject: "+subject+"\n") {
				return reply, nil
			}
		}
		return "Personal", nil
	}
}

type fakeMessage struct {
	raw   []byte
	flags map[Flag]bool
}

// fakeMailbox is the server side state shared by every fake session
type fakeMailbox struct {
	folders   map[string]map[MessageID]*fakeMessage
	nextUID   uint32
	fetches   map[MessageID]int
	fetchErrs map[MessageID][]error
	moveErrs  map[MessageID][]error
	moves     []string
}

func newFakeMailbox(folders ...string) *fakeMailbox {
	mb := &fakeMailbox{
		folders:   make(map[string]map[MessageID]*fakeMessage),
		fetches:   make(map[MessageID]int),
		fetchErrs: make(map[MessageID][]error),
		moveErrs:  make(map[MessageID][]error),
	}
	for _, f := range folders {
		mb.folders[f] = make(map[MessageID]*fakeMessage)
	}
	return mb
}

func (mb *fakeMailbox) add(folder, raw string) MessageID {
	mb.nextUID++
	id := MessageIDFromUID(mb.nextUID)
	mb.folders[folder][id] = &fakeMessage{raw: []byte(raw), flags: make(map[Flag]bool)}
	return id
}

func (mb *fakeMailbox) has(folder string, id MessageID) bool {
	_, ok := mb.folders[folder][id]
	return ok
}

func (mb *fakeMailbox) flag(folder string, id MessageID, flag Flag) bool {
	msg, ok := mb.folders[folder][id]
	return ok && msg.flags[flag]
}

func (mb *fakeMailbox) count(folder string) int {
	return len(mb.folders[folder])
}

func popErr(queue map[MessageID][]error, id MessageID) error {
	errs := queue[id]
	if len(errs) == 0 {
		return nil
	}
	queue[id] = errs[1:]
	return errs[0]
}

type fakeSession struct {
	mb        *fakeMailbox
	selected  string
	alive     bool
	loggedOut bool
}

func (s *fakeSession) IsAlive(ctx context.Context) bool {
	return s.alive && !s.loggedOut
}

func (s *fakeSession) SelectFolder(ctx context.Context, name string, writable bool) error {
	if _, ok := s.mb.folders[name]; !ok {
		return fmt.Errorf("select %s: %w", name, ErrFolderMissing)
	}
	s.selected = name
	return nil
}

func (s *fakeSession) SelectedFolder() string {
	return s.selected
}

func (s *fakeSession) ListUnseenIDs(ctx context.Context) ([]MessageID, error) {
	if s.selected == "" {
		return nil, ErrNoFolderSelected
	}
	var ids []MessageID
	for id, msg := range s.mb.folders[s.selected] {
		if !msg.flags[FlagSeen] {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *fakeSession) FetchMessage(ctx context.Context, id MessageID) ([]byte, error) {
	if err := popErr(s.mb.fetchErrs, id); err != nil {
		if IsConnectionFatal(err) {
			s.alive = false
		}
		return nil, err
	}
	msg, ok := s.mb.folders[s.selected][id]
	if !ok {
		return nil, fmt.Errorf("fetch %s: %w", id, ErrOperationRejected)
	}
	s.mb.fetches[id]++
	return append([]byte(nil), msg.raw...), nil
}

func (s *fakeSession) SetFlag(ctx context.Context, id MessageID, flag Flag, on bool) error {
	msg, ok := s.mb.folders[s.selected][id]
	if !ok {
		return fmt.Errorf("store %s: %w", id, ErrOperationRejected)
	}
	msg.flags[flag] = on
	return nil
}

func (s *fakeSession) MoveMessage(ctx context.Context, id MessageID, dest string) error {
	if err := popErr(s.mb.moveErrs, id); err != nil {
		if IsConnectionFatal(err) {
			s.alive = false
		}
		return err
	}
	if _, ok := s.mb.folders[dest]; !ok {
		return fmt.Errorf("copy %s to %s: %w", id, dest, ErrFolderMissing)
	}
	msg, ok := s.mb.folders[s.selected][id]
	if !ok {
		return fmt.Errorf("copy %s: %w", id, ErrOperationRejected)
	}
	s.mb.add(dest, string(msg.raw))
	delete(s.mb.folders[s.selected], id)
	s.mb.moves = append(s.mb.moves, string(id)+"->"+dest)
	return nil
}

func (s *fakeSession) Logout(ctx context.Context) error {
	s.loggedOut = true
	return nil
}

type fakeDialer struct {
	mb          *fakeMailbox
	connectErrs []error
	sessions    []*fakeSession
}

func (d *fakeDialer) Connect(ctx context.Context) (MailboxSession, error) {
	if len(d.connectErrs) > 0 {
		err := d.connectErrs[0]
		d.connectErrs = d.connectErrs[1:]
		return nil, err
	}
	s := &fakeSession{mb: d.mb, alive: true}
	d.sessions = append(d.sessions, s)
	return s, nil
}

func rawMessage(from, subject, body string) string {
	return "From: " + from + "\r\n" +
		"To: me@example.com\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		body + "\r\n"
}

func newTestClassifier(t *testing.T, llm LLMClient, opts ClassifierOptions, whitelisted ...string) *ClassifierService {
	t.Helper()
	logger := zaptest.NewLogger(t)
	if opts.MaxBodyChars == 0 {
		opts.MaxBodyChars = 2000
	}
	if opts.EmptyCategory == "" {
		opts.EmptyCategory = CategoryPromotions
	}
	if opts.FallbackCategory == "" {
		opts.FallbackCategory = CategoryPersonal
	}
	if opts.WhitelistCategory == "" {
		opts.WhitelistCategory = CategoryPersonal
	}
	return NewClassifierService(
		llm,
		whitelist.NewChecker(whitelisted, logger),
		utils.NewTextProcessor(logger),
		logger,
		opts,
	)
}

func testMapping(t *testing.T) FolderMapping {
	t.Helper()
	m, err := NewFolderMapping(map[Category]string{
		CategoryPersonal:   "INBOX",
		CategorySpam:       "Quarantine",
		CategoryAccounts:   "Accounts",
		CategoryPromotions: "Promotions",
	})
	if err != nil {
		t.Fatalf("mapping: %v", err)
	}
	return m
}
