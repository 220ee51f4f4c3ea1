package client

import (
	"context"
	"fmt"

	"github.com/juju/errors"

	"github.com/mbocsi/dartlink/proto"
)

// ErrRemote is returned by the typed accessors when the server answers with
// status "error".
const ErrRemote = errors.ConstError("remote call failed")

// MoveJoint moves to the given joint angles. Arguments are checked before any
// network activity.
func (l *Link) MoveJoint(ctx context.Context, positions []float64, speed float64) (proto.Response, error) {
	if err := checkMotion(positions, speed); err != nil {
		return nil, fmt.Errorf("MoveJ: %w", err)
	}
	return l.Call(ctx, proto.FuncMoveJ, map[string]any{"positions": positions, "speed": speed})
}

// MoveLinear moves to pose [x, y, z, rx, ry, rz].
func (l *Link) MoveLinear(ctx context.Context, pose []float64, speed float64) (proto.Response, error) {
	if err := checkMotion(pose, speed); err != nil {
		return nil, fmt.Errorf("MoveL: %w", err)
	}
	return l.Call(ctx, proto.FuncMoveL, map[string]any{"positions": pose, "speed": speed})
}

func checkMotion(v []float64, speed float64) error {
	if err := proto.ValidateVector(v); err != nil {
		return fmt.Errorf("%w: positions %v", proto.ErrArgument, err)
	}
	if err := proto.ValidateSpeed(speed); err != nil {
		return fmt.Errorf("%w: %v", proto.ErrArgument, err)
	}
	return nil
}

func (l *Link) SetDigitalOutput(ctx context.Context, pin int, value bool) (proto.Response, error) {
	if pin < 0 {
		return nil, fmt.Errorf("%w: SetDO pin must be non-negative, got %d", proto.ErrArgument, pin)
	}
	return l.Call(ctx, proto.FuncSetDO, map[string]any{"pin": pin, "value": value})
}

func (l *Link) DigitalInput(ctx context.Context, pin int) (bool, error) {
	if pin < 0 {
		return false, fmt.Errorf("%w: GetDI pin must be non-negative, got %d", proto.ErrArgument, pin)
	}
	resp, err := l.call(ctx, proto.FuncGetDI, map[string]any{"pin": pin})
	if err != nil {
		return false, err
	}
	value, ok := resp["value"].(bool)
	if !ok {
		return false, fmt.Errorf("%w: GetDI response has no boolean value", proto.ErrMalformedMessage)
	}
	return value, nil
}

func (l *Link) WaitMs(ctx context.Context, ms int) (proto.Response, error) {
	if ms < 0 {
		return nil, fmt.Errorf("%w: WaitMs requires a non-negative ms, got %d", proto.ErrArgument, ms)
	}
	return l.Call(ctx, proto.FuncWaitMs, map[string]any{"ms": ms})
}

func (l *Link) CurrentPose(ctx context.Context) ([]float64, error) {
	resp, err := l.call(ctx, proto.FuncGetCurrentPose, nil)
	if err != nil {
		return nil, err
	}
	return vectorField(resp, "pose")
}

func (l *Link) JointAngles(ctx context.Context) ([]float64, error) {
	resp, err := l.call(ctx, proto.FuncGetJointAngles, nil)
	if err != nil {
		return nil, err
	}
	return vectorField(resp, "joints")
}

func (l *Link) EmergencyStop(ctx context.Context) (proto.Response, error) {
	return l.Call(ctx, proto.FuncEmergencyStop, nil)
}

func (l *Link) ResetRobot(ctx context.Context) (proto.Response, error) {
	return l.Call(ctx, proto.FuncResetRobot, nil)
}

func (l *Link) RobotState(ctx context.Context) (map[string]any, error) {
	resp, err := l.call(ctx, proto.FuncGetRobotState, nil)
	if err != nil {
		return nil, err
	}
	state, ok := resp["robot_state"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: GetRobotState response has no robot_state", proto.ErrMalformedMessage)
	}
	return state, nil
}

// call is Call with a non-ok response turned into ErrRemote.
func (l *Link) call(ctx context.Context, function string, args map[string]any) (proto.Response, error) {
	resp, err := l.Call(ctx, function, args)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: %s", ErrRemote, resp.Message())
	}
	return resp, nil
}

func vectorField(resp proto.Response, key string) ([]float64, error) {
	raw, ok := resp[key].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: response has no %s list", proto.ErrMalformedMessage, key)
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] is not a number", proto.ErrMalformedMessage, key, i)
		}
		out[i] = f
	}
	return out, nil
}
