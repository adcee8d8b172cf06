package imap

import (
	"context"
	"crypto/tls"
	"net"
	"strings"
	"sync/atomic"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	apperrors "github.com/mailgram/mailgram/internal/errors"
	"github.com/mailgram/mailgram/internal/logger"
	"github.com/mailgram/mailgram/internal/tracing"
)

const networkTimeout = 30 * time.Second

// ConnectionManager owns the IMAP session of a single mailbox. It is
// not safe for concurrent use; each worker holds its own manager.
type ConnectionManager struct {
	addr     string
	user     string
	password string
	log      logger.Logger

	client      *client.Client
	idlePending atomic.Bool
}

func NewConnectionManager(addr, user, password string, log logger.Logger) *ConnectionManager {
	return &ConnectionManager{addr: addr, user: user, password: password, log: log}
}

func (m *ConnectionManager) dial() (*client.Client, error) {
	dialer := &net.Dialer{
		Timeout:   networkTimeout,
		KeepAlive: networkTimeout,
	}
	host := m.addr
	if h, _, err := net.SplitHostPort(m.addr); err == nil {
		host = h
	}
	tlsConfig := &tls.Config{ServerName: host}

	c, err := client.DialWithDialerTLS(dialer, m.addr, tlsConfig)
	if err != nil {
		if isTimeout(err) {
			return nil, errors.Wrapf(apperrors.ErrServerTimeout, "dial %s: %v", m.addr, err)
		}
		return nil, errors.Wrapf(err, "dial %s", m.addr)
	}
	return c, nil
}

// Probe opens a throwaway session and verifies the credentials. A
// rejected login reports false without an error; unresponsive servers
// report ErrServerTimeout and broken sessions surface their error.
func (m *ConnectionManager) Probe(ctx context.Context) (bool, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "ConnectionManager.Probe")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("imap.server", m.addr)

	c, err := m.dial()
	if err != nil {
		tracing.TraceErr(span, err)
		return false, err
	}
	defer c.Logout()

	c.Timeout = networkTimeout
	if err := c.Login(m.user, m.password); err != nil {
		if isTimeout(err) {
			tracing.TraceErr(span, err)
			return false, errors.Wrapf(apperrors.ErrServerTimeout, "login probe on %s: %v", m.addr, err)
		}
		if isLoginRejected(err) {
			m.log.Infof("login probe rejected for %s on %s", m.user, m.addr)
			return false, nil
		}
		// The session broke before the server answered the LOGIN, so
		// nothing is known about the credentials.
		tracing.TraceErr(span, err)
		return false, errors.Wrapf(err, "login probe on %s", m.addr)
	}
	m.log.Infof("login probe succeeded for %s on %s", m.user, m.addr)
	return true, nil
}

// Open establishes the worker session lazily: dial TLS, login, select
// INBOX. A rejected login yields ErrCredentialsInvalid.
func (m *ConnectionManager) Open(ctx context.Context) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "ConnectionManager.Open")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("imap.server", m.addr)

	if m.client == nil {
		c, err := m.dial()
		if err != nil {
			tracing.TraceErr(span, err)
			return err
		}
		m.client = c
	}

	m.client.Timeout = networkTimeout
	if err := m.client.Login(m.user, m.password); err != nil {
		m.client.Logout()
		m.client = nil
		if isTimeout(err) {
			tracing.TraceErr(span, err)
			return errors.Wrapf(apperrors.ErrServerTimeout, "login on %s: %v", m.addr, err)
		}
		tracing.TraceErr(span, err)
		if isLoginRejected(err) {
			return errors.Wrapf(apperrors.ErrCredentialsInvalid, "login as %s: %v", m.user, err)
		}
		return errors.Wrapf(err, "login on %s", m.addr)
	}

	if _, err := m.client.Select("INBOX", false); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "select INBOX")
	}
	m.client.Timeout = 0

	m.log.Infof("user %s logged in to %s", m.user, m.addr)
	return nil
}

// Client exposes the underlying session to the worker.
func (m *ConnectionManager) Client() (*client.Client, error) {
	if m.client == nil {
		return nil, apperrors.ErrNotConnected
	}
	return m.client, nil
}

// IdlePending reports whether an IDLE command is currently running on
// this session.
func (m *ConnectionManager) IdlePending() bool {
	return m.idlePending.Load()
}

func (m *ConnectionManager) setIdlePending(pending bool) {
	m.idlePending.Store(pending)
}

// Close logs the session out. A logout that the server does not answer
// within the network timeout yields ErrServerTimeout.
func (m *ConnectionManager) Close() error {
	if m.client == nil {
		return apperrors.ErrNotConnected
	}
	m.client.Timeout = networkTimeout
	err := m.client.Logout()
	m.client = nil
	if err != nil {
		if isTimeout(err) {
			return errors.Wrapf(apperrors.ErrServerTimeout, "logout for %s: %v", m.user, err)
		}
		return errors.Wrap(err, "logout")
	}
	return nil
}

// isLoginRejected reports whether the server answered the LOGIN with a
// tagged NO or BAD. Transport failures mid-command carry no verdict on
// the credentials and stay ordinary errors.
func isLoginRejected(err error) bool {
	var statusErr *goimap.ErrStatusResp
	return errors.As(err, &statusErr)
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "i/o timeout")
}
