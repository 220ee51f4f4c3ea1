package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/mbocsi/dartlink/transport"
)

// WebSocketDialer connects to a server's WebSocket listener. The address may
// be host:port or a full ws:// or wss:// URL.
type WebSocketDialer struct {
	Path   string
	Dialer *websocket.Dialer
}

func NewWebSocketDialer() *WebSocketDialer {
	return &WebSocketDialer{Path: "/", Dialer: websocket.DefaultDialer}
}

func (d *WebSocketDialer) URL(addr string) (string, error) {
	if !strings.Contains(addr, "://") {
		addr = "ws://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("invalid WebSocket URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "tcp", "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" {
		u.Path = d.Path
	}
	return u.String(), nil
}

func (d *WebSocketDialer) Dial(ctx context.Context, addr string) (transport.Conn, error) {
	target, err := d.URL(addr)
	if err != nil {
		return nil, err
	}
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket server: %w", err)
	}
	return transport.NewWebSocketConn(conn), nil
}
