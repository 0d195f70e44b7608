// Package ftpclient opens authenticated FTP control connections for the
// remote asset store. One session is scoped to exactly one logical
// operation: dial at the start, Close on every exit path, never pooled.
package ftpclient

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"
)

// ErrConnection marks handshake or authentication failures. The wrapped
// message names host and port for diagnosis but never the credential.
var ErrConnection = errors.New("transfer session unavailable")

// Config describes how to reach the remote file server.
type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	ExplicitTLS bool
	DialTimeout time.Duration
}

// Addr returns the dial address in host:port form.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Session is one authenticated control connection.
type Session struct {
	conn   *ftp.ServerConn
	closed bool
}

// Dial connects and authenticates. No retries happen here; a session that
// fails to open surfaces immediately to the caller.
func Dial(cfg Config) (*Session, error) {
	opts := []ftp.DialOption{ftp.DialWithTimeout(cfg.DialTimeout)}
	if cfg.ExplicitTLS {
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{ServerName: cfg.Host}))
	}

	conn, err := ftp.Dial(cfg.Addr(), opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnection, cfg.Addr(), err)
	}

	if err := conn.Login(cfg.User, cfg.Password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("%w: login as %s on %s failed: %v", ErrConnection, cfg.User, cfg.Addr(), err)
	}

	return &Session{conn: conn}, nil
}

// Close terminates the connection. Safe to call more than once and on
// sessions that already failed mid-operation.
func (s *Session) Close() error {
	if s == nil || s.conn == nil || s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Quit()
}

// The control-channel commands the store drives. Thin forwarders keep the
// underlying client type out of the store's signatures.

func (s *Session) CurrentDir() (string, error) { return s.conn.CurrentDir() }

func (s *Session) ChangeDir(path string) error { return s.conn.ChangeDir(path) }

func (s *Session) MakeDir(path string) error { return s.conn.MakeDir(path) }

func (s *Session) RemoveDir(path string) error { return s.conn.RemoveDir(path) }

func (s *Session) Delete(path string) error { return s.conn.Delete(path) }

func (s *Session) Stor(path string, r io.Reader) error { return s.conn.Stor(path, r) }

func (s *Session) List(path string) ([]*ftp.Entry, error) { return s.conn.List(path) }
