// Package transport provides framed, synchronous duplex connections carrying
// one encoded message per frame. It knows nothing about authentication or
// message semantics.
package transport

import (
	"time"
)

// MaxFrameSize bounds a single frame, delimiter excluded.
const MaxFrameSize = 1 << 20

// Conn is a framed duplex over one underlying stream.
type Conn interface {
	// Send encodes v and writes the whole frame.
	Send(v any) error
	// Receive blocks until one full frame is read and decodes it into v.
	Receive(v any) error
	SetDeadline(t time.Time) error
	RemoteAddr() string
	Close() error
}
