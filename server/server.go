// Package server accepts client connections, authenticates them and
// dispatches their calls to a robot.Registry.
package server

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/juju/errors"
	"golang.org/x/sync/errgroup"

	"github.com/mbocsi/dartlink/robot"
	"github.com/mbocsi/dartlink/transport"
)

// Service is an optional surface run alongside the transports, such as the
// status API, the MCP server or the mDNS advertiser.
type Service interface {
	Start(ctx context.Context) error
	Shutdown() error
}

type Options struct {
	Token      string          // Shared secret every message must carry
	Registry   *robot.Registry // Optional (defaults to a registry over a new Simulator)
	Sessions   *SessionRegistry
	Dispatcher []DispatcherOption
}

type Server struct {
	token      string
	registry   *robot.Registry
	sessions   *SessionRegistry
	dispatcher *Dispatcher

	mu         sync.Mutex
	transports []Transport
	services   []Service

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	closed   bool
	shutdown sync.Once
}

func NewServer(opts Options) *Server {
	if opts.Registry == nil {
		opts.Registry = robot.NewRegistry(robot.NewSimulator())
	}
	if opts.Sessions == nil {
		opts.Sessions = NewSessionRegistry()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		token:      opts.Token,
		registry:   opts.Registry,
		sessions:   opts.Sessions,
		dispatcher: NewDispatcher(opts.Token, opts.Registry, opts.Dispatcher...),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (s *Server) Registry() *robot.Registry  { return s.registry }
func (s *Server) Sessions() *SessionRegistry { return s.sessions }
func (s *Server) Dispatcher() *Dispatcher    { return s.dispatcher }

// Token reports whether token matches the server secret.
func (s *Server) Token(token string) bool { return token == s.token }

func (s *Server) RegisterTransport(t Transport) {
	protocol := t.Meta().Protocol
	t.OnConnect(func(conn transport.Conn) { s.serveConn(protocol, conn) })
	s.mu.Lock()
	s.transports = append(s.transports, t)
	s.mu.Unlock()
}

func (s *Server) RegisterService(svc Service) {
	s.mu.Lock()
	s.services = append(s.services, svc)
	s.mu.Unlock()
}

func (s *Server) Transports() []Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Transport(nil), s.transports...)
}

func (s *Server) serveConn(protocol string, conn transport.Conn) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	// Stored under mu, before Shutdown can run CloseAll.
	session := NewSession(protocol, conn)
	s.sessions.Store(session)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	slog.Info("Registered session", "session", session.Id, "addr", session.RemoteAddr)

	defer func() {
		s.sessions.Delete(session.Id)
		slog.Info("Session closed", "session", session.Id, "requests", session.Requests())
	}()

	if err := s.dispatcher.Serve(s.ctx, session); err != nil {
		slog.Debug("Session ended", "session", session.Id, "reason", err)
	}
}

// Listen binds every registered transport, so their addresses are known
// before Start.
func (s *Server) Listen() error {
	for _, t := range s.Transports() {
		if err := t.Listen(); err != nil {
			return err
		}
	}
	return nil
}

// Start runs the transports and services until ctx is done or one of them
// fails, then shuts everything down.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range s.Transports() {
		g.Go(t.Serve)
	}
	s.mu.Lock()
	services := append([]Service(nil), s.services...)
	s.mu.Unlock()
	for _, svc := range services {
		g.Go(func() error { return svc.Start(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down transports and server")
		s.Shutdown()
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Shutdown closes the listeners, stops the services and closes every live
// session. It waits for the session goroutines to exit and is safe to call
// more than once.
func (s *Server) Shutdown() {
	s.shutdown.Do(s.doShutdown)
}

func (s *Server) doShutdown() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	for _, t := range s.Transports() {
		if err := t.Shutdown(); err != nil {
			slog.Error("There was an error when shutting down transport server", "error", err.Error())
		}
	}
	s.mu.Lock()
	services := append([]Service(nil), s.services...)
	s.mu.Unlock()
	for _, svc := range services {
		if err := svc.Shutdown(); err != nil {
			slog.Error("There was an error when shutting down service", "error", err.Error())
		}
	}

	s.sessions.CloseAll()
	s.wg.Wait()
}
