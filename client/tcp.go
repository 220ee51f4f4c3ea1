package client

import (
	"context"
	"net"
	"time"

	"github.com/mbocsi/dartlink/transport"
)

// TCPDialer dials plain TCP with Nagle's algorithm disabled.
type TCPDialer struct {
	Timeout time.Duration
}

func NewTCPDialer() *TCPDialer {
	return &TCPDialer{Timeout: 5 * time.Second}
}

func (d *TCPDialer) Dial(ctx context.Context, addr string) (transport.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return transport.NewStreamConn(conn), nil
}
