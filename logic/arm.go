// Package logic builds task level robot operations on top of a client Link.
package logic

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/juju/clock"

	"github.com/mbocsi/dartlink/proto"
)

// Linker is the part of client.Link that Arm drives.
type Linker interface {
	Ping(ctx context.Context) bool
	MoveJoint(ctx context.Context, positions []float64, speed float64) (proto.Response, error)
	MoveLinear(ctx context.Context, pose []float64, speed float64) (proto.Response, error)
	SetDigitalOutput(ctx context.Context, pin int, value bool) (proto.Response, error)
	CurrentPose(ctx context.Context) ([]float64, error)
	JointAngles(ctx context.Context) ([]float64, error)
	RobotState(ctx context.Context) (map[string]any, error)
	EmergencyStop(ctx context.Context) (proto.Response, error)
	ResetRobot(ctx context.Context) (proto.Response, error)
}

// Workspace limits used for warnings only; nothing is rejected on them.
const (
	MaxJointAngle = 180.0
	MinReach      = 200.0
	MaxReach      = 1000.0
)

// DefaultSettleTime is the pause between waypoints of a MoveSequence.
const DefaultSettleTime = 500 * time.Millisecond

// Envelope is the uniform result of an Arm operation.
type Envelope struct {
	Status   string `json:"status"`
	Function string `json:"function,omitempty"`
	Data     any    `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (e Envelope) OK() bool { return e.Status == proto.StatusOK }

type Arm struct {
	link Linker

	HomePosition []float64
	SafePosition []float64
	GripperPin   int
	GripperClose bool

	clock  clock.Clock
	settle time.Duration
}

type Option func(*Arm)

func WithClock(c clock.Clock) Option {
	return func(a *Arm) { a.clock = c }
}

// WithSettleTime sets the pause between waypoints.
func WithSettleTime(d time.Duration) Option {
	return func(a *Arm) { a.settle = d }
}

func NewArm(link Linker, opts ...Option) *Arm {
	a := &Arm{
		link:         link,
		HomePosition: []float64{0, 0, 0, 0, 0, 0},
		SafePosition: []float64{0, -20, 40, 0, -20, 0},
		GripperPin:   1,
		GripperClose: true,
		clock:        clock.WallClock,
		settle:       DefaultSettleTime,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// wrap turns a link result into an Envelope.
func wrap(function string, resp proto.Response, err error) Envelope {
	if err != nil {
		slog.Error("Arm operation failed", "function", function, "error", err)
		return Envelope{Status: proto.StatusError, Function: function, Error: err.Error()}
	}
	if !resp.OK() {
		msg := resp.Message()
		if msg == "" {
			msg = "unknown error"
		}
		slog.Error("Arm operation rejected", "function", function, "error", msg)
		return Envelope{Status: proto.StatusError, Function: function, Error: msg}
	}
	slog.Info("Arm operation succeeded", "function", function)
	return Envelope{Status: proto.StatusOK, Function: function, Data: resp}
}

func (a *Arm) Home(ctx context.Context) Envelope {
	resp, err := a.link.MoveJoint(ctx, a.HomePosition, proto.DefaultSpeed)
	return wrap("home", resp, err)
}

func (a *Arm) MoveToSafePosition(ctx context.Context) Envelope {
	resp, err := a.link.MoveJoint(ctx, a.SafePosition, proto.DefaultSpeed)
	return wrap("move_to_safe_position", resp, err)
}

// TestMoveJoint moves in joint space, warning about angles beyond
// MaxJointAngle.
func (a *Arm) TestMoveJoint(ctx context.Context, positions []float64, speed float64) Envelope {
	for i, p := range positions {
		if math.Abs(p) > MaxJointAngle {
			slog.Warn("Joint angle may be outside the safe range", "joint", i+1, "angle", p)
		}
	}
	resp, err := a.link.MoveJoint(ctx, positions, speed)
	return wrap("test_move_j", resp, err)
}

// TestMoveLinear moves linearly, warning when the target lies outside the
// reach shell.
func (a *Arm) TestMoveLinear(ctx context.Context, pose []float64, speed float64) Envelope {
	if len(pose) >= 3 {
		reach := math.Sqrt(pose[0]*pose[0] + pose[1]*pose[1] + pose[2]*pose[2])
		if reach < MinReach || reach > MaxReach {
			slog.Warn("Target may be outside the workspace", "reach", reach)
		}
	}
	resp, err := a.link.MoveLinear(ctx, pose, speed)
	return wrap("test_move_l", resp, err)
}

// TestGripper drives the gripper output closed or open.
func (a *Arm) TestGripper(ctx context.Context, closed bool) Envelope {
	value := a.GripperClose
	action := "close"
	if !closed {
		value = !a.GripperClose
		action = "open"
	}
	resp, err := a.link.SetDigitalOutput(ctx, a.GripperPin, value)
	return wrap("test_gripper_"+action, resp, err)
}

func (a *Arm) EmergencyStop(ctx context.Context) Envelope {
	resp, err := a.link.EmergencyStop(ctx)
	return wrap("emergency_stop", resp, err)
}

func (a *Arm) ResetRobot(ctx context.Context) Envelope {
	resp, err := a.link.ResetRobot(ctx)
	return wrap("reset_robot", resp, err)
}

// Status aggregates the robot's pose, joints and state.
type Status struct {
	Status        string         `json:"status"`
	Timestamp     time.Time      `json:"timestamp"`
	CurrentPose   []float64      `json:"current_pose,omitempty"`
	CurrentJoints []float64      `json:"current_joints,omitempty"`
	RobotState    map[string]any `json:"robot_state,omitempty"`
	Connection    string         `json:"connection,omitempty"`
	Error         string         `json:"error,omitempty"`
}

func (a *Arm) CurrentStatus(ctx context.Context) Status {
	if !a.link.Ping(ctx) {
		return Status{Status: proto.StatusError, Timestamp: a.clock.Now(), Error: "connection lost"}
	}
	fail := func(err error) Status {
		return Status{Status: proto.StatusError, Timestamp: a.clock.Now(), Error: err.Error()}
	}

	pose, err := a.link.CurrentPose(ctx)
	if err != nil {
		return fail(err)
	}
	joints, err := a.link.JointAngles(ctx)
	if err != nil {
		return fail(err)
	}
	state, err := a.link.RobotState(ctx)
	if err != nil {
		return fail(err)
	}
	return Status{
		Status:        proto.StatusOK,
		Timestamp:     a.clock.Now(),
		CurrentPose:   pose,
		CurrentJoints: joints,
		RobotState:    state,
		Connection:    proto.StatusOK,
	}
}

// Waypoint types.
const (
	WaypointJoint  = "joint"
	WaypointLinear = "linear"
)

type Waypoint struct {
	Type      string    `json:"type,omitempty"` // defaults to "joint"
	Positions []float64 `json:"positions"`
	Speed     float64   `json:"speed,omitempty"` // defaults to the sequence speed
}

type WaypointResult struct {
	Waypoint int      `json:"waypoint"`
	Result   Envelope `json:"result"`
}

type SequenceResult struct {
	Status            string           `json:"status"`
	TotalWaypoints    int              `json:"total_waypoints"`
	ExecutedWaypoints int              `json:"executed_waypoints"`
	Results           []WaypointResult `json:"results"`
	Error             string           `json:"error,omitempty"`
}

// MoveSequence runs the waypoints in order, pausing between them, and stops
// at the first failure. A zero defaultSpeed means proto.DefaultSpeed.
func (a *Arm) MoveSequence(ctx context.Context, waypoints []Waypoint, defaultSpeed float64) SequenceResult {
	if defaultSpeed == 0 {
		defaultSpeed = proto.DefaultSpeed
	}
	res := SequenceResult{Status: proto.StatusOK, TotalWaypoints: len(waypoints), Results: []WaypointResult{}}

	for i, wp := range waypoints {
		speed := wp.Speed
		if speed == 0 {
			speed = defaultSpeed
		}
		kind := wp.Type
		if kind == "" {
			kind = WaypointJoint
		}
		slog.Info("Executing waypoint", "index", i+1, "total", len(waypoints), "type", kind)

		var result Envelope
		switch kind {
		case WaypointJoint:
			result = a.TestMoveJoint(ctx, wp.Positions, speed)
		case WaypointLinear:
			result = a.TestMoveLinear(ctx, wp.Positions, speed)
		default:
			result = Envelope{Status: proto.StatusError, Error: fmt.Sprintf("unknown move type: %s", kind)}
		}
		res.Results = append(res.Results, WaypointResult{Waypoint: i, Result: result})

		if !result.OK() {
			slog.Error("Waypoint failed, stopping sequence", "index", i+1)
			break
		}
		if a.settle > 0 && i < len(waypoints)-1 {
			select {
			case <-a.clock.After(a.settle):
			case <-ctx.Done():
				res.ExecutedWaypoints = len(res.Results)
				res.Status = proto.StatusError
				res.Error = ctx.Err().Error()
				return res
			}
		}
	}

	res.ExecutedWaypoints = len(res.Results)
	return res
}
