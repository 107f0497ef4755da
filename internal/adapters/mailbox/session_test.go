package mailbox

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	giimapserver "github.com/emersion/go-imap/v2/imapserver"
	giimapmemserver "github.com/emersion/go-imap/v2/imapserver/imapmemserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mikey/llm-mail-sorter/internal/core"
)

const (
	testUser = "user@example.com"
	testPass = "password"
)

type literalReader struct {
	*bytes.Reader
	size int64
}

func (lr *literalReader) Size() int64 {
	return lr.size
}

func newLiteral(raw string) imap.LiteralReader {
	return &literalReader{Reader: bytes.NewReader([]byte(raw)), size: int64(len(raw))}
}

func sampleMessage(from, subject, body string) string {
	return "From: " + from + "\r\n" +
		"To: " + testUser + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		body + "\r\n"
}

type testServer struct {
	user   *giimapmemserver.User
	dialer *Dialer
}

func (ts *testServer) append(t *testing.T, folder, raw string, flags ...imap.Flag) core.MessageID {
	t.Helper()
	data, err := ts.user.Append(folder, newLiteral(raw), &imap.AppendOptions{Flags: flags, Time: time.Now()})
	require.NoError(t, err)
	return core.MessageIDFromUID(uint32(data.UID))
}

// setupServer starts an in-memory IMAP server with the given folders besides INBOX
func setupServer(t *testing.T, folders ...string) *testServer {
	t.Helper()
	return setupServerWith(t, nil, folders...)
}

// setupServerWith is setupServer with every server session passed through wrap
func setupServerWith(t *testing.T, wrap func(giimapserver.Session) giimapserver.Session, folders ...string) *testServer {
	t.Helper()

	mem := giimapmemserver.New()
	user := giimapmemserver.NewUser(testUser, testPass)
	mem.AddUser(user)
	require.NoError(t, user.Create("INBOX", nil))
	for _, f := range folders {
		require.NoError(t, user.Create(f, nil))
	}

	server := giimapserver.New(&giimapserver.Options{
		NewSession: func(*giimapserver.Conn) (giimapserver.Session, *giimapserver.GreetingData, error) {
			sess := mem.NewSession()
			if wrap != nil {
				sess = wrap(sess)
			}
			return sess, nil, nil
		},
		Caps:         imap.CapSet{imap.CapIMAP4rev1: {}},
		InsecureAuth: true,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()
	t.Cleanup(func() {
		_ = server.Close()
		_ = ln.Close()
		select {
		case <-errCh:
		default:
		}
	})

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return &testServer{
		user: user,
		dialer: NewDialer(Options{
			Host:           host,
			Port:           port,
			Security:       SecurityNone,
			Username:       testUser,
			Password:       testPass,
			CommandTimeout: 5 * time.Second,
			ProbeTimeout:   2 * time.Second,
		}, zaptest.NewLogger(t)),
	}
}

func dial(t *testing.T, ts *testServer) *Session {
	t.Helper()
	s, err := ts.dialer.Dial(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Logout(context.Background()) })
	return s
}

func TestSessionListUnseenAndFetchKeepsUnseen(t *testing.T) {
	ctx := context.Background()
	ts := setupServer(t)
	unseen := ts.append(t, "INBOX", sampleMessage("mom@example.com", "Dinner Sunday?", "Can you come over?"))
	ts.append(t, "INBOX", sampleMessage("old@example.com", "Old news", "already read"), imap.FlagSeen)

	s := dial(t, ts)
	assert.True(t, s.IsAlive(ctx))
	require.NoError(t, s.SelectFolder(ctx, "INBOX", true))
	assert.Equal(t, "INBOX", s.SelectedFolder())

	ids, err := s.ListUnseenIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.MessageID{unseen}, ids)

	raw, err := s.FetchMessage(ctx, unseen)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "Subject: Dinner Sunday?"))

	ids, err = s.ListUnseenIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.MessageID{unseen}, ids, "fetch must not mark the message seen")
}

func TestSessionSetFlag(t *testing.T) {
	ctx := context.Background()
	ts := setupServer(t)
	id := ts.append(t, "INBOX", sampleMessage("a@example.com", "Hi", "hello"))

	s := dial(t, ts)
	require.NoError(t, s.SelectFolder(ctx, "INBOX", true))

	require.NoError(t, s.SetFlag(ctx, id, core.FlagSeen, true))
	ids, err := s.ListUnseenIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, s.SetFlag(ctx, id, core.FlagSeen, false))
	ids, err = s.ListUnseenIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.MessageID{id}, ids)
}

func TestSessionMoveMessage(t *testing.T) {
	ctx := context.Background()
	ts := setupServer(t, "Quarantine")
	id := ts.append(t, "INBOX", sampleMessage("win@lottery.example", "You won!", "Claim now"))
	keep := ts.append(t, "INBOX", sampleMessage("friend@example.com", "Lunch", "Noon?"))

	s := dial(t, ts)
	require.NoError(t, s.SelectFolder(ctx, "INBOX", true))
	require.NoError(t, s.MoveMessage(ctx, id, "Quarantine"))

	ids, err := s.ListUnseenIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.MessageID{keep}, ids)

	require.NoError(t, s.SelectFolder(ctx, "Quarantine", false))
	ids, err = s.ListUnseenIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestSessionMoveToMissingFolder(t *testing.T) {
	ctx := context.Background()
	ts := setupServer(t)
	id := ts.append(t, "INBOX", sampleMessage("win@lottery.example", "You won!", "Claim now"))

	s := dial(t, ts)
	require.NoError(t, s.SelectFolder(ctx, "INBOX", true))

	err := s.MoveMessage(ctx, id, "Quarantine")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrFolderMissing)
	assert.False(t, core.IsConnectionFatal(err))

	assert.True(t, s.IsAlive(ctx), "a rejected command must not break the session")
	ids, err := s.ListUnseenIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.MessageID{id}, ids)
}

func TestSessionSelectMissingFolder(t *testing.T) {
	ctx := context.Background()
	ts := setupServer(t)

	s := dial(t, ts)
	err := s.SelectFolder(ctx, "Nowhere", true)
	require.Error(t, err)
	assert.True(t, core.IsOperationError(err))
	assert.Equal(t, "", s.SelectedFolder())
}

func TestSessionRequiresSelectedFolder(t *testing.T) {
	ctx := context.Background()
	ts := setupServer(t)

	s := dial(t, ts)
	_, err := s.ListUnseenIDs(ctx)
	assert.ErrorIs(t, err, core.ErrNoFolderSelected)
	_, err = s.FetchMessage(ctx, "1")
	assert.ErrorIs(t, err, core.ErrNoFolderSelected)
}

func TestSessionListFolders(t *testing.T) {
	ctx := context.Background()
	ts := setupServer(t, "Quarantine", "Accounts")
	ts.append(t, "INBOX", sampleMessage("a@example.com", "One", "first"))
	ts.append(t, "INBOX", sampleMessage("b@example.com", "Two", "second"), imap.FlagSeen)
	ts.append(t, "Accounts", sampleMessage("bank@example.com", "Statement", "balance"))

	s := dial(t, ts)
	stats, err := s.ListFolders(ctx)
	require.NoError(t, err)

	byName := make(map[string]core.FolderStat, len(stats))
	for _, st := range stats {
		byName[st.Name] = st
	}
	require.Contains(t, byName, "INBOX")
	require.Contains(t, byName, "Quarantine")
	require.Contains(t, byName, "Accounts")

	assert.Equal(t, uint32(2), byName["INBOX"].Messages)
	assert.Equal(t, uint32(1), byName["INBOX"].Unseen)
	assert.Equal(t, uint32(0), byName["Quarantine"].Messages)
	assert.Equal(t, uint32(1), byName["Accounts"].Unseen)
	assert.True(t, byName["INBOX"].Selectable)
}

func TestSessionLogout(t *testing.T) {
	ctx := context.Background()
	ts := setupServer(t)

	s, err := ts.dialer.Dial(ctx)
	require.NoError(t, err)
	require.NoError(t, s.SelectFolder(ctx, "INBOX", true))
	require.NoError(t, s.Logout(ctx))

	assert.False(t, s.IsAlive(ctx))
	_, err = s.ListUnseenIDs(ctx)
	assert.ErrorIs(t, err, core.ErrConnectionLost)
	assert.NoError(t, s.Logout(ctx))
}

func TestDialWrongPassword(t *testing.T) {
	ts := setupServer(t)
	ts.dialer.opts.Password = "wrong"

	_, err := ts.dialer.Connect(context.Background())
	assert.Error(t, err)
}

func TestDialUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	d := NewDialer(Options{
		Host:           "127.0.0.1",
		Port:           addr.Port,
		Security:       SecurityNone,
		CommandTimeout: time.Second,
	}, zaptest.NewLogger(t))

	_, err = d.Connect(context.Background())
	assert.Error(t, err)
}

// peekIgnoringSession serves BODY.PEEK[] like BODY[], marking the message seen
type peekIgnoringSession struct {
	giimapserver.Session
}

func (s peekIgnoringSession) Fetch(w *giimapserver.FetchWriter, numSet imap.NumSet, options *imap.FetchOptions) error {
	if len(options.BodySection) > 0 {
		opts := *options
		opts.BodySection = make([]*imap.FetchItemBodySection, len(options.BodySection))
		for i, bs := range options.BodySection {
			section := *bs
			section.Peek = false
			opts.BodySection[i] = &section
		}
		options = &opts
	}
	return s.Session.Fetch(w, numSet, options)
}

func TestSessionFetchRestoresUnseenWhenServerIgnoresPeek(t *testing.T) {
	ctx := context.Background()
	ts := setupServerWith(t, func(sess giimapserver.Session) giimapserver.Session {
		return peekIgnoringSession{Session: sess}
	})
	id := ts.append(t, "INBOX", sampleMessage("mom@example.com", "Dinner Sunday?", "Can you come over?"))

	s := dial(t, ts)
	require.NoError(t, s.SelectFolder(ctx, "INBOX", true))

	raw, err := s.FetchMessage(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: Dinner Sunday?")

	ids, err := s.ListUnseenIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.MessageID{id}, ids)
}

// startUnresponsiveServer accepts a login and then never answers NOOP
func startUnresponsiveServer(t *testing.T) (string, int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()

			go func(conn net.Conn) {
				_, _ = conn.Write([]byte("* OK [CAPABILITY IMAP4rev1] ready\r\n"))
				scanner := bufio.NewScanner(conn)
				for scanner.Scan() {
					fields := strings.Fields(scanner.Text())
					if len(fields) < 2 {
						continue
					}
					tag := fields[0]
					switch strings.ToUpper(fields[1]) {
					case "LOGIN":
						_, _ = conn.Write([]byte(tag + " OK LOGIN completed\r\n"))
					case "CAPABILITY":
						_, _ = conn.Write([]byte("* CAPABILITY IMAP4rev1\r\n" + tag + " OK CAPABILITY completed\r\n"))
					}
				}
			}(conn)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func TestSessionIsAliveBoundedByProbeTimeout(t *testing.T) {
	ctx := context.Background()
	host, port := startUnresponsiveServer(t)
	probeTimeout := 300 * time.Millisecond

	d := NewDialer(Options{
		Host:           host,
		Port:           port,
		Security:       SecurityNone,
		Username:       testUser,
		Password:       testPass,
		CommandTimeout: 2 * time.Second,
		ProbeTimeout:   probeTimeout,
	}, zaptest.NewLogger(t))

	s, err := d.Dial(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Logout(context.Background()) })

	start := time.Now()
	assert.False(t, s.IsAlive(ctx))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, probeTimeout)
	assert.Less(t, elapsed, 2*time.Second)

	_, err = s.ListUnseenIDs(ctx)
	assert.ErrorIs(t, err, core.ErrConnectionLost)
}
