package robot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/juju/clock"

	"github.com/mbocsi/dartlink/proto"
)

// Op is one validated invocation of a registry function. Each function has
// its own Op type carrying typed arguments.
type Op interface {
	Function() string
	Exec(ctx context.Context, env Env) (map[string]any, error)
}

// Env is what an Op executes against.
type Env struct {
	Backend Backend
	Clock   clock.Clock
}

type parser func(args map[string]any) (Op, error)

// CallError is returned by Invoke. Its message is the text put in the
// response; errors.Is matches its Kind.
type CallError struct {
	Kind    error
	Message string
}

func (e *CallError) Error() string { return e.Message }
func (e *CallError) Unwrap() error { return e.Kind }

// Registry maps function names to operations on a Backend. It holds no
// locks; concurrent callers rely on the backend's own synchronization.
type Registry struct {
	env     Env
	parsers map[string]parser
}

type RegistryOption func(*Registry)

// WithRegistryClock sets the clock used by WaitMs.
func WithRegistryClock(c clock.Clock) RegistryOption {
	return func(r *Registry) { r.env.Clock = c }
}

func NewRegistry(backend Backend, opts ...RegistryOption) *Registry {
	r := &Registry{
		env: Env{Backend: backend, Clock: clock.WallClock},
		parsers: map[string]parser{
			proto.FuncMoveJ:          parseMoveJ,
			proto.FuncMoveL:          parseMoveL,
			proto.FuncSetDO:          parseSetDO,
			proto.FuncGetDI:          parseGetDI,
			proto.FuncWaitMs:         parseWaitMs,
			proto.FuncGetCurrentPose: noArgs(GetCurrentPose{}),
			proto.FuncGetJointAngles: noArgs(GetJointAngles{}),
			proto.FuncEmergencyStop:  noArgs(EmergencyStop{}),
			proto.FuncResetRobot:     noArgs(ResetRobot{}),
			proto.FuncGetRobotState:  noArgs(GetRobotState{}),
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Functions lists the registered names in sorted order.
func (r *Registry) Functions() []string {
	names := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Parse validates args for function without touching the backend.
func (r *Registry) Parse(function string, args map[string]any) (Op, error) {
	parse, ok := r.parsers[function]
	if !ok {
		return nil, &CallError{Kind: proto.ErrDispatch, Message: "Unknown function: " + function}
	}
	op, err := parse(args)
	if err != nil {
		return nil, &CallError{Kind: proto.ErrArgument, Message: err.Error()}
	}
	return op, nil
}

// Invoke validates and executes one function. Backend failures and panics
// come back as a *CallError of kind proto.ErrBackend.
func (r *Registry) Invoke(ctx context.Context, function string, args map[string]any) (fields map[string]any, err error) {
	op, err := r.Parse(function, args)
	if err != nil {
		return nil, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Function panicked", "function", function, "panic", rec)
			fields, err = nil, &CallError{Kind: proto.ErrBackend, Message: fmt.Sprintf("%s error: %v", function, rec)}
		}
	}()

	slog.Debug("Executing function", "function", function, "args", args)
	fields, err = op.Exec(ctx, r.env)
	if err != nil {
		return nil, &CallError{Kind: proto.ErrBackend, Message: fmt.Sprintf("%s error: %v", function, err)}
	}
	return fields, nil
}

// Dispatch runs one function and always returns a structured response.
func (r *Registry) Dispatch(ctx context.Context, function string, args map[string]any) proto.Response {
	fields, err := r.Invoke(ctx, function, args)
	if err != nil {
		slog.Warn("Function call failed", "function", function, "error", err)
		return proto.Error(err.Error())
	}
	return proto.OK(fields)
}

// Specs returns the catalogue of registered functions.
func (r *Registry) Specs() []proto.FunctionSpec {
	specs := make([]proto.FunctionSpec, 0, len(r.parsers))
	for _, name := range r.Functions() {
		if spec, ok := catalogue[name]; ok {
			specs = append(specs, spec)
		} else {
			specs = append(specs, proto.FunctionSpec{Name: name})
		}
	}
	return specs
}

func noArgs(op Op) parser {
	return func(map[string]any) (Op, error) { return op, nil }
}
