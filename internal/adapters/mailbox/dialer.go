package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"go.uber.org/zap"
)

// Transport security modes
const (
	SecurityTLS      = "tls"
	SecurityStartTLS = "starttls"
	SecurityNone     = "none"
)

// Options configures connections to the IMAP server
type Options struct {
	Host               string
	Port               int
	Security           string
	Username           string
	Password           string
	CommandTimeout     time.Duration
	ProbeTimeout       time.Duration
	InsecureSkipVerify bool
	// TLSConfig overrides the TLS settings derived from Host
	TLSConfig *tls.Config
}

// Dialer opens authenticated IMAP sessions
type Dialer struct {
	opts   Options
	logger *zap.Logger
}

// NewDialer creates a new IMAP dialer
func NewDialer(opts Options, logger *zap.Logger) *Dialer {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 60 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 10 * time.Second
	}
	return &Dialer{
		opts:   opts,
		logger: logger,
	}
}

// Connect implements core.MailboxDialer
func (d *Dialer) Connect(ctx context.Context) (core.MailboxSession, error) {
	s, err := d.Dial(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Dial connects, waits for the greeting and logs in
func (d *Dialer) Dial(ctx context.Context) (*Session, error) {
	addr := net.JoinHostPort(d.opts.Host, strconv.Itoa(d.opts.Port))
	d.logger.Info("Connecting to IMAP server",
		zap.String("address", addr),
		zap.String("security", d.opts.Security))

	dialCtx, cancel := context.WithTimeout(ctx, d.opts.CommandTimeout)
	defer cancel()

	var netDialer net.Dialer
	conn, err := netDialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	clientOpts := &imapclient.Options{TLSConfig: d.tlsConfig()}

	var client *imapclient.Client
	switch d.opts.Security {
	case SecurityNone:
		client = imapclient.New(conn, clientOpts)
	case SecurityStartTLS:
		_ = conn.SetDeadline(time.Now().Add(d.opts.CommandTimeout))
		client, err = imapclient.NewStartTLS(conn, clientOpts)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to negotiate STARTTLS with %s: %w", addr, err)
		}
		_ = conn.SetDeadline(time.Time{})
	default:
		tlsConn := tls.Client(conn, clientOpts.TLSConfig)
		if err := tlsConn.HandshakeContext(dialCtx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed TLS handshake with %s: %w", addr, err)
		}
		client = imapclient.New(tlsConn, clientOpts)
	}

	s := newSession(client, d.opts, d.logger)

	if err := s.run(ctx, d.opts.CommandTimeout, "wait for greeting", client.WaitGreeting); err != nil {
		s.close()
		return nil, err
	}

	err = s.run(ctx, d.opts.CommandTimeout, "login", func() error {
		return client.Login(d.opts.Username, d.opts.Password).Wait()
	})
	if err != nil {
		s.close()
		return nil, err
	}

	d.logger.Info("Logged in to IMAP server",
		zap.String("address", addr),
		zap.String("username", d.opts.Username))
	return s, nil
}

func (d *Dialer) tlsConfig() *tls.Config {
	if d.opts.TLSConfig != nil {
		return d.opts.TLSConfig
	}
	return &tls.Config{
		ServerName:         d.opts.Host,
		InsecureSkipVerify: d.opts.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
}
