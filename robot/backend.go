// Package robot holds the function registry that the server dispatches calls
// to, and the execution backends it drives.
package robot

import (
	"context"
	"strconv"

	"github.com/juju/errors"
)

// Robot states reported by GetRobotState.
const (
	StateIdle             = "IDLE"
	StateMoving           = "MOVING"
	StateEmergencyStopped = "EMERGENCY_STOPPED"
)

const (
	// ErrEmergencyStopped is returned for motion requested while stopped.
	ErrEmergencyStopped = errors.ConstError("robot is emergency stopped")

	// ErrMotionAborted is returned by a motion interrupted by EmergencyStop.
	ErrMotionAborted = errors.ConstError("motion aborted by emergency stop")
)

// Backend is the actuation and sensing interface shared by every connection.
// Implementations synchronize their own access; EmergencyStop and Reset must
// not wait for an in-flight motion to complete.
type Backend interface {
	MoveJoint(ctx context.Context, positions []float64, speed float64) error
	MoveLinear(ctx context.Context, pose []float64, speed float64) error
	SetDigitalOutput(ctx context.Context, pin int, value bool) error
	DigitalInput(ctx context.Context, pin int) (bool, error)
	CurrentPose(ctx context.Context) ([]float64, error)
	JointAngles(ctx context.Context) ([]float64, error)
	EmergencyStop(ctx context.Context) error
	Reset(ctx context.Context) error
	State(ctx context.Context) (State, error)
}

type State struct {
	RobotState    string       `json:"robot_state"`
	IsMoving      bool         `json:"is_moving"`
	IsReady       bool         `json:"is_ready"`
	CurrentJoints []float64    `json:"current_joints"`
	CurrentPose   []float64    `json:"current_pose"`
	Outputs       map[int]bool `json:"digital_outputs,omitempty"`
}

// Map converts the state to the generic form carried in responses.
func (s State) Map() map[string]any {
	m := map[string]any{
		"robot_state":    s.RobotState,
		"is_moving":      s.IsMoving,
		"is_ready":       s.IsReady,
		"current_joints": s.CurrentJoints,
		"current_pose":   s.CurrentPose,
	}
	if len(s.Outputs) > 0 {
		outputs := make(map[string]bool, len(s.Outputs))
		for pin, v := range s.Outputs {
			outputs[strconv.Itoa(pin)] = v
		}
		m["digital_outputs"] = outputs
	}
	return m
}
