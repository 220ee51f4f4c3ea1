package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/juju/errors"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	otlog "github.com/opentracing/opentracing-go/log"

	"github.com/mbocsi/dartlink/proto"
	"github.com/mbocsi/dartlink/robot"
)

// Error messages sent back to clients.
const (
	msgInvalidJSON   = "Invalid JSON"
	msgInvalidShape  = "Invalid message"
	msgInvalidToken  = "Invalid token"
	msgAuthRequired  = "Authentication required"
	msgAuthenticated = "Authentication successful"
)

// Dispatcher applies the protocol rules to each message of a session and
// routes calls to the function registry.
type Dispatcher struct {
	token    string
	registry *robot.Registry
	tracer   opentracing.Tracer
}

type DispatcherOption func(*Dispatcher)

// WithTracer sets the tracer used for per-message spans. The default is the
// opentracing global tracer.
func WithTracer(t opentracing.Tracer) DispatcherOption {
	return func(d *Dispatcher) { d.tracer = t }
}

func NewDispatcher(token string, registry *robot.Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{token: token, registry: registry}
	for _, opt := range opts {
		opt(d)
	}
	if d.tracer == nil {
		d.tracer = opentracing.GlobalTracer()
	}
	return d
}

// Serve reads messages from the session until the connection fails or is
// closed. Each message gets exactly one response.
func (d *Dispatcher) Serve(ctx context.Context, s *Session) error {
	for {
		var msg proto.Message
		err := s.conn.Receive(&msg)
		if errors.Is(err, proto.ErrMalformedMessage) {
			slog.Warn("Invalid JSON message received", "session", s.Id, "error", err)
			if err := s.conn.Send(malformedResponse(err)); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		resp := d.Handle(ctx, s, msg)
		if err := s.conn.Send(resp); err != nil {
			return err
		}
	}
}

func malformedResponse(err error) proto.Response {
	var fieldErr *proto.FieldError
	if errors.As(err, &fieldErr) {
		return proto.Error(msgInvalidShape + ": " + fieldErr.Error())
	}
	return proto.Error(msgInvalidJSON)
}

// Handle produces the response for one message and never panics.
func (d *Dispatcher) Handle(ctx context.Context, s *Session, msg proto.Message) (resp proto.Response) {
	s.requests.Add(1)

	span, ctx := opentracing.StartSpanFromContextWithTracer(ctx, d.tracer, "dartlink."+spanName(msg.Type))
	span.SetTag("message.type", msg.Type)
	span.SetTag("session.id", s.Id)
	if msg.Function != "" {
		span.SetTag("function", msg.Function)
	}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Panic while handling message", "session", s.Id, "type", msg.Type, "panic", rec)
			resp = proto.Error(fmt.Sprint(rec))
		}
		span.SetTag("status", resp.Status())
		if !resp.OK() {
			ext.Error.Set(span, true)
			span.LogFields(otlog.String("message", resp.Message()))
		}
		span.Finish()
	}()

	slog.Debug("Message received", "session", s.Id, "type", msg.Type, "function", msg.Function)
	return d.route(ctx, s, msg)
}

func (d *Dispatcher) route(ctx context.Context, s *Session, msg proto.Message) proto.Response {
	// The token is checked before anything else, ping included.
	if msg.Token != d.token {
		slog.Warn("Invalid token", "session", s.Id, "type", msg.Type)
		return proto.Error(msgInvalidToken)
	}

	if msg.Type == proto.TypeAuth {
		s.authenticated.Store(true)
		slog.Info("Session authenticated", "session", s.Id, "addr", s.RemoteAddr)
		return proto.OK(map[string]any{"message": msgAuthenticated})
	}

	if !s.Authenticated() && msg.Type != proto.TypePing {
		return proto.Error(msgAuthRequired)
	}

	switch msg.Type {
	case proto.TypePing:
		return proto.OK(map[string]any{"pong": true})
	case proto.TypeCall:
		return d.registry.Dispatch(ctx, msg.Function, msg.Args)
	case proto.TypeSequence:
		return d.sequence(ctx, s, msg.Commands)
	default:
		return proto.Error("Unknown message type: " + msg.Type)
	}
}

// sequence runs the commands in order and stops after the first non-ok
// result. The envelope is ok even when a command failed; callers inspect
// executed_commands and the last result.
func (d *Dispatcher) sequence(ctx context.Context, s *Session, commands []proto.Command) proto.Response {
	results := make([]proto.Response, 0, len(commands))
	for i, cmd := range commands {
		slog.Debug("Executing sequence command", "session", s.Id, "index", i+1, "total", len(commands), "function", cmd.Function)
		result := d.registry.Dispatch(ctx, cmd.Function, cmd.Args)
		results = append(results, result)
		if !result.OK() {
			break
		}
	}
	return proto.OK(map[string]any{
		"total_commands":    len(commands),
		"executed_commands": len(results),
		"results":           results,
	})
}

func spanName(msgType string) string {
	switch msgType {
	case proto.TypeAuth, proto.TypePing, proto.TypeCall, proto.TypeSequence:
		return msgType
	}
	return "unknown"
}
