package server

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mbocsi/dartlink/transport"
)

// Session is the server side state of one connection. Only the connection's
// own goroutine reads or changes the authenticated flag while serving; the
// status API reads snapshots.
type Session struct {
	Id          string
	Protocol    string
	RemoteAddr  string
	ConnectedAt time.Time

	conn          transport.Conn
	authenticated atomic.Bool
	requests      atomic.Int64
}

func NewSession(protocol string, conn transport.Conn) *Session {
	return &Session{
		Id:          protocol + "-" + uuid.NewString(),
		Protocol:    protocol,
		RemoteAddr:  conn.RemoteAddr(),
		ConnectedAt: time.Now(),
		conn:        conn,
	}
}

func (s *Session) Authenticated() bool {
	return s.authenticated.Load()
}

func (s *Session) Requests() int64 {
	return s.requests.Load()
}

func (s *Session) Close() error {
	return s.conn.Close()
}

// SessionInfo is a point in time view of a Session.
type SessionInfo struct {
	Id            string    `json:"id"`
	Protocol      string    `json:"transport"`
	RemoteAddr    string    `json:"remote_addr"`
	ConnectedAt   time.Time `json:"connected_at"`
	Authenticated bool      `json:"authenticated"`
	Requests      int64     `json:"requests"`
}

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		Id:            s.Id,
		Protocol:      s.Protocol,
		RemoteAddr:    s.RemoteAddr,
		ConnectedAt:   s.ConnectedAt,
		Authenticated: s.Authenticated(),
		Requests:      s.Requests(),
	}
}
