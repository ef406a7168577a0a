// Package imapgmail is the concrete MailClient adapter, wrapping
// github.com/emersion/go-imap (v1) and its client subpackage.
// v1 is used instead of the newer go-imap/v2 client because its
// FetchItem and StatusItem types are plain strings — the natural way to
// request Gmail's non-standard X-GM-MSGID item and the CONDSTORE MODSEQ
// and HIGHESTMODSEQ items without the library having first-class
// support for them. The MODSEQ change search is filtered client-side,
// the same shape vdavid-vmail's own IMAP adapter uses for its UID-range
// limitation.
package imapgmail

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"github.com/rs/zerolog"

	"github.com/hkdb/gmsync/internal/blobstore"
	"github.com/hkdb/gmsync/internal/logging"
)

// deadlineConn wraps a net.Conn to set read/write deadlines before
// each operation, preventing indefinite blocking on a slow or dead
// connection — go-imap v1 has no built-in per-operation timeout.
type deadlineConn struct {
	net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if c.readTimeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if c.writeTimeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}

// SecurityType selects how the TCP connection is secured.
type SecurityType string

const (
	SecurityTLS      SecurityType = "tls"
	SecurityStartTLS SecurityType = "starttls"
	SecurityNone     SecurityType = "none"
)

// Config holds everything needed to dial and authenticate one IMAP
// session.
type Config struct {
	Host     string
	Port     int
	Security SecurityType
	Username string
	Password string
	// OAuthToken, when set, authenticates via SASL XOAUTH2 instead of
	// plain LOGIN — Gmail requires this for accounts that have app
	// passwords disabled in favor of OAuth2.
	OAuthToken string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	TLSConfig *tls.Config
}

// DefaultConfig returns sensible defaults for a Gmail IMAP session.
func DefaultConfig() Config {
	return Config{
		Port:           993,
		Security:       SecurityTLS,
		ConnectTimeout: 30 * time.Second,
		ReadTimeout:    3 * time.Minute,
		WriteTimeout:   30 * time.Second,
	}
}

// Dial connects and logs in, returning a ready-to-use Client (not yet
// bound to any folder). blobs is where fetched message bodies are
// written; the adapter owns that write because it is the only
// component that ever sees the raw bytes off the wire.
func Dial(cfg Config, blobs blobstore.BlobStore) (*Client, error) {
	log := logging.WithComponent("mailclient")
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	log.Debug().Str("host", cfg.Host).Int("port", cfg.Port).Msg("dialing imap server")

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}

	var c *client.Client
	switch cfg.Security {
	case SecurityTLS:
		tlsConfig := cfg.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{ServerName: cfg.Host}
		}
		rawConn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("dial tls: %w", err)
		}
		wrapped := &deadlineConn{Conn: rawConn, readTimeout: cfg.ReadTimeout, writeTimeout: cfg.WriteTimeout}
		cl, err := client.New(wrapped)
		if err != nil {
			return nil, fmt.Errorf("imap client handshake: %w", err)
		}
		c = cl
	case SecurityStartTLS:
		rawConn, err := dialer.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial: %w", err)
		}
		wrapped := &deadlineConn{Conn: rawConn, readTimeout: cfg.ReadTimeout, writeTimeout: cfg.WriteTimeout}
		cl, err := client.New(wrapped)
		if err != nil {
			return nil, fmt.Errorf("imap client handshake: %w", err)
		}
		tlsConfig := cfg.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{ServerName: cfg.Host}
		}
		if err := cl.StartTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("starttls: %w", err)
		}
		c = cl
	default:
		rawConn, err := dialer.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial: %w", err)
		}
		wrapped := &deadlineConn{Conn: rawConn, readTimeout: cfg.ReadTimeout, writeTimeout: cfg.WriteTimeout}
		cl, err := client.New(wrapped)
		if err != nil {
			return nil, fmt.Errorf("imap client handshake: %w", err)
		}
		c = cl
	}

	if cfg.OAuthToken != "" {
		saslClient := sasl.NewXoauth2Client(cfg.Username, cfg.OAuthToken)
		if err := c.Authenticate(saslClient); err != nil {
			c.Close()
			return nil, fmt.Errorf("xoauth2 authenticate: %w", err)
		}
	} else if err := c.Login(cfg.Username, cfg.Password); err != nil {
		c.Close()
		return nil, fmt.Errorf("login: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("user", cfg.Username).Msg("imap session established")

	return &Client{c: c, log: log, blobs: blobs}, nil
}

// Client is the shared state for a single logged-in IMAP session. Its
// exported methods implement mailclient.MailClient (see client.go).
type Client struct {
	c            *client.Client
	log          zerolog.Logger
	blobs        blobstore.BlobStore
	selectedName string
}
