package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/juju/errors"

	"github.com/mbocsi/dartlink/transport"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // clients are authenticated by token, not origin
	},
}

// WSTransport serves the protocol over WebSocket, one JSON object per text
// message.
type WSTransport struct {
	addr      string
	path      string
	listener  net.Listener
	server    *http.Server
	onConnect func(transport.Conn)

	name        string
	description string
	clients     map[transport.Conn]struct{}
	upgrading   int // slots held by handshakes in progress
	cmu         sync.RWMutex

	maxClients int
	connected  bool
}

func NewWSTransport(addr string) *WSTransport {
	return &WSTransport{
		addr:       addr,
		path:       "/",
		maxClients: 16,
		clients:    make(map[transport.Conn]struct{}),
	}
}

func (t *WSTransport) Listen() error {
	t.cmu.Lock()
	defer t.cmu.Unlock()
	if t.listener != nil {
		return nil
	}
	l, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("websocket listen %s: %w", t.addr, err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc(t.path, t.handleWebSocket)
	t.listener = l
	t.server = &http.Server{Handler: mux}
	t.connected = true
	return nil
}

func (t *WSTransport) Serve() error {
	if t.onConnect == nil {
		return fmt.Errorf("The OnConnect function is not defined. This transport is likely being used outside of a server.")
	}
	if err := t.Listen(); err != nil {
		return err
	}
	slog.Info("Starting WebSocket server", "addr", t.Addr())

	t.cmu.RLock()
	srv, l := t.server, t.listener
	t.cmu.RUnlock()

	err := srv.Serve(l)
	t.cmu.Lock()
	t.connected = false
	t.cmu.Unlock()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (t *WSTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	t.cmu.Lock()
	if len(t.clients)+t.upgrading >= t.maxClients {
		t.cmu.Unlock()
		slog.Warn("Max clients reached, rejecting connection", "remote_addr", r.RemoteAddr)
		http.Error(w, "too many clients", http.StatusServiceUnavailable)
		return
	}
	t.upgrading++
	t.cmu.Unlock()

	ws, err := upgrader.Upgrade(w, r, nil)

	t.cmu.Lock()
	t.upgrading--
	var conn *transport.WebSocketConn
	if err == nil {
		conn = transport.NewWebSocketConn(ws)
		t.clients[conn] = struct{}{}
	}
	t.cmu.Unlock()

	if err != nil {
		slog.Error("Failed to upgrade connection", "error", err)
		return
	}

	go t.handleConnection(conn)
}

func (t *WSTransport) handleConnection(conn transport.Conn) {
	ip := conn.RemoteAddr()
	slog.Info("WebSocket client connected", "addr", ip)

	defer func() {
		t.cmu.Lock()
		delete(t.clients, conn)
		t.cmu.Unlock()

		conn.Close()
		slog.Info("WebSocket client disconnected", "addr", ip)
	}()

	t.onConnect(conn)
}

func (t *WSTransport) Shutdown() error {
	slog.Info("Shutting down WebSocket server", "addr", t.Addr())
	t.cmu.RLock()
	srv := t.server
	t.cmu.RUnlock()
	if srv != nil {
		return srv.Close()
	}
	return nil
}

func (t *WSTransport) OnConnect(fn func(transport.Conn)) {
	t.onConnect = fn
}

func (t *WSTransport) Addr() string {
	t.cmu.RLock()
	defer t.cmu.RUnlock()
	if t.listener != nil {
		return t.listener.Addr().String()
	}
	return t.addr
}

func (t *WSTransport) Meta() TransportMetadata {
	addr := t.Addr()
	t.cmu.RLock()
	defer t.cmu.RUnlock()
	return TransportMetadata{
		Name:        t.name,
		Description: t.description,
		Protocol:    "websocket",
		Address:     addr,
		Clients:     len(t.clients),
		MaxClients:  t.maxClients,
		Connected:   t.connected,
	}
}

func (t *WSTransport) SetName(name string) {
	t.name = name
}

func (t *WSTransport) SetMaxClients(n int) {
	t.maxClients = n
}

func (t *WSTransport) SetDescription(description string) {
	t.description = description
}
