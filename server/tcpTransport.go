package server

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/mbocsi/dartlink/transport"
)

type TCPTransport struct {
	addr      string
	listener  net.Listener
	onConnect func(transport.Conn)

	name        string
	description string
	clients     map[transport.Conn]struct{}
	cmu         sync.RWMutex

	maxClients int
	connected  bool
}

func NewTCPTransport(addr string) *TCPTransport {
	return &TCPTransport{addr: addr, maxClients: 16, clients: make(map[transport.Conn]struct{})}
}

// Listen binds the listener. It is a no-op once bound.
func (t *TCPTransport) Listen() error {
	t.cmu.Lock()
	defer t.cmu.Unlock()
	if t.listener != nil {
		return nil
	}
	l, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("tcp listen %s: %w", t.addr, err)
	}
	t.listener = l
	t.connected = true
	return nil
}

func (t *TCPTransport) Serve() error {
	if t.onConnect == nil {
		return fmt.Errorf("The OnConnect function is not defined. This transport is likely being used outside of a server.")
	}
	if err := t.Listen(); err != nil {
		return err
	}
	slog.Info("Starting tcp server", "addr", t.Addr())

	t.cmu.RLock()
	l := t.listener
	t.cmu.RUnlock()
	defer func() {
		l.Close()
		t.cmu.Lock()
		t.connected = false
		t.cmu.Unlock()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			return err // exits when the listener is closed
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			tcp.SetNoDelay(true)
		}
		stream := transport.NewStreamConn(conn)

		// Reserve the slot before the handler goroutine starts.
		t.cmu.Lock()
		if len(t.clients) >= t.maxClients {
			t.cmu.Unlock()
			slog.Warn("Max clients reached, rejecting connection", "remote_addr", conn.RemoteAddr())
			conn.Close()
			continue
		}
		t.clients[stream] = struct{}{}
		t.cmu.Unlock()

		go t.handleConnection(stream)
	}
}

func (t *TCPTransport) handleConnection(conn *transport.StreamConn) {
	ip := conn.RemoteAddr()
	slog.Info("Client connected", "addr", ip)

	defer func() {
		t.cmu.Lock()
		delete(t.clients, conn)
		t.cmu.Unlock()

		conn.Close()
		slog.Info("Client disconnected", "addr", ip)
	}()

	t.onConnect(conn)
}

func (t *TCPTransport) Shutdown() error {
	slog.Info("Shutting down tcp server", "addr", t.Addr())
	t.cmu.RLock()
	l := t.listener
	t.cmu.RUnlock()
	if l != nil {
		return l.Close()
	}
	return nil
}

func (t *TCPTransport) OnConnect(fn func(transport.Conn)) {
	t.onConnect = fn
}

// Addr returns the bound address, or the configured one before Listen.
func (t *TCPTransport) Addr() string {
	t.cmu.RLock()
	defer t.cmu.RUnlock()
	if t.listener != nil {
		return t.listener.Addr().String()
	}
	return t.addr
}

func (t *TCPTransport) Meta() TransportMetadata {
	addr := t.Addr()
	t.cmu.RLock()
	defer t.cmu.RUnlock()
	return TransportMetadata{
		Name:        t.name,
		Description: t.description,
		Protocol:    "tcp",
		Address:     addr,
		Clients:     len(t.clients),
		MaxClients:  t.maxClients,
		Connected:   t.connected,
	}
}

func (t *TCPTransport) SetName(name string) {
	t.name = name
}

func (t *TCPTransport) SetMaxClients(n int) {
	t.maxClients = n
}

func (t *TCPTransport) SetDescription(description string) {
	t.description = description
}
