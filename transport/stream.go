package transport

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/juju/errors"

	"github.com/mbocsi/dartlink/proto"
)

// StreamConn frames messages over a byte stream with a trailing newline.
// Bytes read past a delimiter stay buffered for the next Receive.
type StreamConn struct {
	conn   net.Conn
	reader *bufio.Reader
}

func NewStreamConn(conn net.Conn) *StreamConn {
	return &StreamConn{conn: conn, reader: bufio.NewReaderSize(conn, 4096)}
}

func (c *StreamConn) Send(v any) error {
	data, err := proto.Encode(v)
	if err != nil {
		return err
	}
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("%w: write: %w", proto.ErrTransport, err)
	}
	slog.Debug("Frame sent", "to", c.RemoteAddr(), "size", len(data))
	return nil
}

func (c *StreamConn) Receive(v any) error {
	frame, err := c.readFrame()
	if err != nil {
		return err
	}
	slog.Debug("Frame received", "from", c.RemoteAddr(), "size", len(frame))
	return proto.Decode(frame, v)
}

func (c *StreamConn) readFrame() ([]byte, error) {
	var frame []byte
	for {
		chunk, err := c.reader.ReadSlice(proto.Delimiter)
		frame = append(frame, chunk...)
		if len(frame) > MaxFrameSize+1 {
			return nil, fmt.Errorf("%w: frame exceeds %d bytes", proto.ErrTransport, MaxFrameSize)
		}
		switch {
		case err == nil:
			return frame[:len(frame)-1], nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			return nil, fmt.Errorf("%w: connection closed", proto.ErrTransport)
		default:
			return nil, fmt.Errorf("%w: read: %w", proto.ErrTransport, err)
		}
	}
}

func (c *StreamConn) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

func (c *StreamConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (c *StreamConn) Close() error {
	return c.conn.Close()
}
