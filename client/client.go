// Package client implements the control side of a dartlink connection.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"

	"github.com/mbocsi/dartlink/proto"
	"github.com/mbocsi/dartlink/transport"
)

// ErrLink wraps the failure of the implicit connect done by Request.
const ErrLink = errors.ConstError("link unavailable")

// DefaultTimeout bounds every request when the context has no earlier
// deadline.
const DefaultTimeout = 10 * time.Second

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	}
	return "disconnected"
}

// Link is an authenticated session with a server. It remembers the endpoint
// and token, connects on first use and silently reconnects once when a
// request fails on the stream. A Link is safe for concurrent use; requests
// are serialized so at most one is in flight.
type Link struct {
	addr    string
	token   string
	timeout time.Duration
	dialer  Dialer

	mu    sync.Mutex
	conn  transport.Conn
	state atomic.Int32
}

type Option func(*Link)

func WithTimeout(d time.Duration) Option {
	return func(l *Link) { l.timeout = d }
}

func WithDialer(d Dialer) Option {
	return func(l *Link) { l.dialer = d }
}

func NewLink(addr, token string, opts ...Option) *Link {
	l := &Link{addr: addr, token: token, timeout: DefaultTimeout, dialer: NewTCPDialer()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Link) Addr() string { return l.addr }

func (l *Link) State() State { return State(l.state.Load()) }

func (l *Link) Connected() bool { return l.State() == StateAuthenticated }

// Connect opens a stream and authenticates. An existing stream is replaced.
func (l *Link) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connect(ctx)
}

func (l *Link) connect(ctx context.Context) error {
	l.disconnect()
	l.state.Store(int32(StateConnecting))
	slog.Info("Connecting to server", "addr", l.addr)

	conn, err := l.dialer.Dial(ctx, l.addr)
	if err != nil {
		l.state.Store(int32(StateDisconnected))
		return fmt.Errorf("%w: dial %s: %w", proto.ErrTransport, l.addr, err)
	}
	l.conn = conn

	resp, err := l.exchange(ctx, proto.NewAuth(l.token))
	if err != nil {
		l.disconnect()
		return fmt.Errorf("authenticate: %w", err)
	}
	if !resp.OK() {
		l.disconnect()
		return fmt.Errorf("%w: %s", proto.ErrAuthentication, resp.Message())
	}

	l.state.Store(int32(StateAuthenticated))
	slog.Info("Authenticated with server", "addr", l.addr)
	return nil
}

// Disconnect closes the stream. It is idempotent.
func (l *Link) Disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disconnect()
}

func (l *Link) disconnect() {
	if l.conn != nil {
		if err := l.conn.Close(); err != nil {
			slog.Debug("Error closing connection", "addr", l.addr, "error", err)
		}
		l.conn = nil
		slog.Info("Disconnected from server", "addr", l.addr)
	}
	l.state.Store(int32(StateDisconnected))
}

// exchange sends one message and reads one response within the request
// deadline. Cancelling ctx aborts the pending read.
func (l *Link) exchange(ctx context.Context, msg proto.Message) (proto.Response, error) {
	deadline := time.Now().Add(l.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := l.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("%w: set deadline: %w", proto.ErrTransport, err)
	}
	conn := l.conn
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	if err := l.conn.Send(msg); err != nil {
		return nil, err
	}
	var resp proto.Response
	if err := l.conn.Receive(&resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Request sends msg and waits for its response, connecting first if needed.
// A transport failure or malformed response triggers exactly one reconnect
// and retry; a second failure leaves the link disconnected.
func (l *Link) Request(ctx context.Context, msg proto.Message) (proto.Response, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.State() != StateAuthenticated {
		if err := l.connect(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLink, err)
		}
	}

	resp, err := l.exchange(ctx, msg)
	if err == nil {
		return resp, nil
	}
	if !retryable(err) || ctx.Err() != nil {
		if ctx.Err() != nil {
			l.disconnect()
		}
		return nil, err
	}

	slog.Warn("Request failed, reconnecting", "addr", l.addr, "type", msg.Type, "error", err)
	if err := l.connect(ctx); err != nil {
		return nil, err
	}
	resp, err = l.exchange(ctx, msg)
	if err != nil {
		l.disconnect()
		return nil, err
	}
	return resp, nil
}

func retryable(err error) bool {
	return errors.Is(err, proto.ErrTransport) || errors.Is(err, proto.ErrMalformedMessage)
}

// Ping reports whether the server answered a ping. It never returns an error.
func (l *Link) Ping(ctx context.Context) bool {
	resp, err := l.Request(ctx, proto.NewPing(l.token))
	if err != nil {
		slog.Debug("Ping failed", "addr", l.addr, "error", err)
		return false
	}
	pong, _ := resp["pong"].(bool)
	return resp.OK() && pong
}

func (l *Link) Call(ctx context.Context, function string, args map[string]any) (proto.Response, error) {
	return l.Request(ctx, proto.NewCall(l.token, function, args))
}

func (l *Link) Sequence(ctx context.Context, commands []proto.Command) (proto.Response, error) {
	return l.Request(ctx, proto.NewSequence(l.token, commands))
}
