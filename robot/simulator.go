package robot

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
)

// DefaultMotionTime is how long a simulated move takes.
const DefaultMotionTime = time.Second

// Simulator is an in-memory Backend used when no robot is attached.
//
// Motion commands are serialized by motionMu. EmergencyStop only takes mu, so
// it preempts a move that is waiting on the clock: the move observes the
// closed stop channel and returns ErrMotionAborted.
type Simulator struct {
	clock      clock.Clock
	motionTime time.Duration

	motionMu sync.Mutex

	mu      sync.RWMutex
	joints  []float64
	pose    []float64
	outputs map[int]bool
	inputs  map[int]bool
	state   string
	stop    chan struct{}
}

type SimulatorOption func(*Simulator)

// WithClock sets the clock used to time simulated motion.
func WithClock(c clock.Clock) SimulatorOption {
	return func(s *Simulator) { s.clock = c }
}

// WithMotionTime sets the duration of every simulated move.
func WithMotionTime(d time.Duration) SimulatorOption {
	return func(s *Simulator) { s.motionTime = d }
}

func NewSimulator(opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		clock:      clock.WallClock,
		motionTime: DefaultMotionTime,
		joints:     []float64{0, 0, 0, 0, 0, 0},
		pose:       []float64{400, 0, 300, 0, 0, 0},
		outputs:    make(map[int]bool),
		inputs:     make(map[int]bool),
		state:      StateIdle,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) MoveJoint(ctx context.Context, positions []float64, speed float64) error {
	slog.Info("[SIM] MoveJ", "positions", positions, "speed", speed)
	return s.move(ctx, func() { s.joints = slices.Clone(positions) })
}

func (s *Simulator) MoveLinear(ctx context.Context, pose []float64, speed float64) error {
	slog.Info("[SIM] MoveL", "pose", pose, "speed", speed)
	return s.move(ctx, func() { s.pose = slices.Clone(pose) })
}

func (s *Simulator) move(ctx context.Context, apply func()) error {
	s.motionMu.Lock()
	defer s.motionMu.Unlock()

	s.mu.Lock()
	if s.state == StateEmergencyStopped {
		s.mu.Unlock()
		return ErrEmergencyStopped
	}
	s.state = StateMoving
	stop := s.stop
	s.mu.Unlock()

	var err error
	if s.motionTime > 0 {
		select {
		case <-s.clock.After(s.motionTime):
		case <-stop:
			err = ErrMotionAborted
		case <-ctx.Done():
			err = errors.Annotate(ctx.Err(), "motion interrupted")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		apply()
	}
	if s.state == StateMoving {
		s.state = StateIdle
	}
	return err
}

func (s *Simulator) SetDigitalOutput(ctx context.Context, pin int, value bool) error {
	slog.Info("[SIM] Set DO", "pin", pin, "value", value)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[pin] = value
	return nil
}

// DigitalInput reports false for every pin not set with SetDigitalInput.
func (s *Simulator) DigitalInput(ctx context.Context, pin int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inputs[pin], nil
}

// SetDigitalInput drives a simulated input pin.
func (s *Simulator) SetDigitalInput(pin int, value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs[pin] = value
}

func (s *Simulator) CurrentPose(ctx context.Context) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.pose), nil
}

func (s *Simulator) JointAngles(ctx context.Context) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.joints), nil
}

func (s *Simulator) EmergencyStop(ctx context.Context) error {
	slog.Warn("[SIM] EMERGENCY STOP")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEmergencyStopped {
		close(s.stop)
		s.stop = make(chan struct{})
	}
	s.state = StateEmergencyStopped
	return nil
}

func (s *Simulator) Reset(ctx context.Context) error {
	slog.Info("[SIM] Robot reset")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	return nil
}

func (s *Simulator) State(ctx context.Context) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		RobotState:    s.state,
		IsMoving:      s.state == StateMoving,
		IsReady:       s.state == StateIdle,
		CurrentJoints: slices.Clone(s.joints),
		CurrentPose:   slices.Clone(s.pose),
		Outputs:       maps.Clone(s.outputs),
	}, nil
}
