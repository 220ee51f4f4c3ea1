package client

import (
	"context"

	"github.com/mbocsi/dartlink/transport"
)

// Dialer opens a new stream to a server. A Link calls it on every connect and
// reconnect.
type Dialer interface {
	Dial(ctx context.Context, addr string) (transport.Conn, error)
}
