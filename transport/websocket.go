package transport

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mbocsi/dartlink/proto"
)

// WebSocketConn carries one frame per text message. The trailing delimiter is
// not sent and is optional on receive.
type WebSocketConn struct {
	conn *websocket.Conn
}

func NewWebSocketConn(conn *websocket.Conn) *WebSocketConn {
	conn.SetReadLimit(MaxFrameSize + 1)
	return &WebSocketConn{conn: conn}
}

func (c *WebSocketConn) Send(v any) error {
	data, err := proto.Encode(v)
	if err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data[:len(data)-1]); err != nil {
		return fmt.Errorf("%w: websocket write: %w", proto.ErrTransport, err)
	}
	slog.Debug("WebSocket frame sent", "to", c.RemoteAddr(), "size", len(data)-1)
	return nil
}

func (c *WebSocketConn) Receive(v any) error {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			slog.Warn("WebSocket connection error", "addr", c.RemoteAddr(), "error", err)
		}
		return fmt.Errorf("%w: connection closed: %w", proto.ErrTransport, err)
	}
	slog.Debug("WebSocket frame received", "from", c.RemoteAddr(), "size", len(data))
	return proto.Decode(bytes.TrimSuffix(data, []byte{proto.Delimiter}), v)
}

func (c *WebSocketConn) SetDeadline(t time.Time) error {
	if err := c.conn.SetReadDeadline(t); err != nil {
		return err
	}
	return c.conn.SetWriteDeadline(t)
}

func (c *WebSocketConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (c *WebSocketConn) Close() error {
	err := c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	if err != nil {
		slog.Debug("Failed to send close message", "addr", c.RemoteAddr(), "error", err)
	}
	return c.conn.Close()
}
