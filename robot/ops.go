package robot

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/errors"

	"github.com/mbocsi/dartlink/proto"
)

type MoveJ struct {
	Positions []float64
	Speed     float64
}

type MoveL struct {
	Pose  []float64
	Speed float64
}

type SetDO struct {
	Pin   int
	Value bool
}

type GetDI struct {
	Pin int
}

type WaitMs struct {
	Ms int
}

type (
	GetCurrentPose struct{}
	GetJointAngles struct{}
	EmergencyStop  struct{}
	ResetRobot     struct{}
	GetRobotState  struct{}
)

type motionArgs struct {
	Positions []float64 `json:"positions"`
	Speed     *float64  `json:"speed"`
}

func parseMotion(function, requirement string, args map[string]any) ([]float64, float64, error) {
	var a motionArgs
	if err := proto.DecodeArgs(args, &a); err != nil {
		return nil, 0, fmt.Errorf("%s invalid arguments: %v", function, err)
	}
	if err := proto.ValidateVector(a.Positions); err != nil {
		return nil, 0, errors.New(requirement)
	}
	speed := proto.DefaultSpeed
	if a.Speed != nil {
		speed = *a.Speed
	}
	if err := proto.ValidateSpeed(speed); err != nil {
		return nil, 0, fmt.Errorf("%s %v", function, err)
	}
	return a.Positions, speed, nil
}

func parseMoveJ(args map[string]any) (Op, error) {
	positions, speed, err := parseMotion(proto.FuncMoveJ, "MoveJ requires 6 joint positions", args)
	if err != nil {
		return nil, err
	}
	return MoveJ{Positions: positions, Speed: speed}, nil
}

func parseMoveL(args map[string]any) (Op, error) {
	pose, speed, err := parseMotion(proto.FuncMoveL, "MoveL requires 6 pose values", args)
	if err != nil {
		return nil, err
	}
	return MoveL{Pose: pose, Speed: speed}, nil
}

func parseSetDO(args map[string]any) (Op, error) {
	var a struct {
		Pin   *int  `json:"pin"`
		Value *bool `json:"value"`
	}
	if err := proto.DecodeArgs(args, &a); err != nil {
		return nil, fmt.Errorf("SetDO invalid arguments: %v", err)
	}
	if a.Pin == nil || a.Value == nil {
		return nil, errors.New("SetDO requires pin and value")
	}
	if *a.Pin < 0 {
		return nil, fmt.Errorf("SetDO pin must be non-negative, got %d", *a.Pin)
	}
	return SetDO{Pin: *a.Pin, Value: *a.Value}, nil
}

func parseGetDI(args map[string]any) (Op, error) {
	var a struct {
		Pin *int `json:"pin"`
	}
	if err := proto.DecodeArgs(args, &a); err != nil {
		return nil, fmt.Errorf("GetDI invalid arguments: %v", err)
	}
	if a.Pin == nil {
		return nil, errors.New("GetDI requires pin")
	}
	if *a.Pin < 0 {
		return nil, fmt.Errorf("GetDI pin must be non-negative, got %d", *a.Pin)
	}
	return GetDI{Pin: *a.Pin}, nil
}

func parseWaitMs(args map[string]any) (Op, error) {
	var a struct {
		Ms *int `json:"ms"`
	}
	if err := proto.DecodeArgs(args, &a); err != nil {
		return nil, fmt.Errorf("WaitMs invalid arguments: %v", err)
	}
	ms := 0
	if a.Ms != nil {
		ms = *a.Ms
	}
	if ms < 0 {
		return nil, fmt.Errorf("WaitMs requires a non-negative ms, got %d", ms)
	}
	return WaitMs{Ms: ms}, nil
}

func (MoveJ) Function() string          { return proto.FuncMoveJ }
func (MoveL) Function() string          { return proto.FuncMoveL }
func (SetDO) Function() string          { return proto.FuncSetDO }
func (GetDI) Function() string          { return proto.FuncGetDI }
func (WaitMs) Function() string         { return proto.FuncWaitMs }
func (GetCurrentPose) Function() string { return proto.FuncGetCurrentPose }
func (GetJointAngles) Function() string { return proto.FuncGetJointAngles }
func (EmergencyStop) Function() string  { return proto.FuncEmergencyStop }
func (ResetRobot) Function() string     { return proto.FuncResetRobot }
func (GetRobotState) Function() string  { return proto.FuncGetRobotState }

func (op MoveJ) Exec(ctx context.Context, env Env) (map[string]any, error) {
	if err := env.Backend.MoveJoint(ctx, op.Positions, op.Speed); err != nil {
		return nil, err
	}
	return map[string]any{"message": "MoveJ completed", "positions": op.Positions, "speed": op.Speed}, nil
}

func (op MoveL) Exec(ctx context.Context, env Env) (map[string]any, error) {
	if err := env.Backend.MoveLinear(ctx, op.Pose, op.Speed); err != nil {
		return nil, err
	}
	return map[string]any{"message": "MoveL completed", "positions": op.Pose, "speed": op.Speed}, nil
}

func (op SetDO) Exec(ctx context.Context, env Env) (map[string]any, error) {
	if err := env.Backend.SetDigitalOutput(ctx, op.Pin, op.Value); err != nil {
		return nil, err
	}
	return map[string]any{
		"message": fmt.Sprintf("DO%d set to %t", op.Pin, op.Value),
		"pin":     op.Pin,
		"value":   op.Value,
	}, nil
}

func (op GetDI) Exec(ctx context.Context, env Env) (map[string]any, error) {
	value, err := env.Backend.DigitalInput(ctx, op.Pin)
	if err != nil {
		return nil, err
	}
	return map[string]any{"pin": op.Pin, "value": value}, nil
}

func (op WaitMs) Exec(ctx context.Context, env Env) (map[string]any, error) {
	if op.Ms > 0 {
		select {
		case <-env.Clock.After(time.Duration(op.Ms) * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return map[string]any{"message": fmt.Sprintf("Waited %dms", op.Ms)}, nil
}

func (GetCurrentPose) Exec(ctx context.Context, env Env) (map[string]any, error) {
	pose, err := env.Backend.CurrentPose(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"pose": pose}, nil
}

func (GetJointAngles) Exec(ctx context.Context, env Env) (map[string]any, error) {
	joints, err := env.Backend.JointAngles(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"joints": joints}, nil
}

func (EmergencyStop) Exec(ctx context.Context, env Env) (map[string]any, error) {
	if err := env.Backend.EmergencyStop(ctx); err != nil {
		return nil, err
	}
	return map[string]any{"message": "Emergency stop executed"}, nil
}

func (ResetRobot) Exec(ctx context.Context, env Env) (map[string]any, error) {
	if err := env.Backend.Reset(ctx); err != nil {
		return nil, err
	}
	return map[string]any{"message": "Robot reset completed"}, nil
}

func (GetRobotState) Exec(ctx context.Context, env Env) (map[string]any, error) {
	state, err := env.Backend.State(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"robot_state": state.Map()}, nil
}
