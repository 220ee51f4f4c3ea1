package logic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"github.com/mbocsi/dartlink/client"
	"github.com/mbocsi/dartlink/proto"
)

var _ Linker = (*client.Link)(nil)

type move struct {
	kind      string
	positions []float64
	speed     float64
}

// fakeLinker records motion calls and fails the call numbered failAt.
type fakeLinker struct {
	down    bool
	moves   []move
	outputs map[int]bool
	failAt  int
	reject  string
	err     error
}

func (f *fakeLinker) result(kind string, positions []float64, speed float64) (proto.Response, error) {
	f.moves = append(f.moves, move{kind, positions, speed})
	if f.err != nil {
		return nil, f.err
	}
	if len(f.moves) == f.failAt {
		return proto.Error(f.reject), nil
	}
	return proto.OK(map[string]any{"message": kind + " completed"}), nil
}

func (f *fakeLinker) Ping(ctx context.Context) bool { return !f.down }

func (f *fakeLinker) MoveJoint(ctx context.Context, positions []float64, speed float64) (proto.Response, error) {
	return f.result("MoveJ", positions, speed)
}

func (f *fakeLinker) MoveLinear(ctx context.Context, pose []float64, speed float64) (proto.Response, error) {
	return f.result("MoveL", pose, speed)
}

func (f *fakeLinker) SetDigitalOutput(ctx context.Context, pin int, value bool) (proto.Response, error) {
	if f.outputs == nil {
		f.outputs = make(map[int]bool)
	}
	f.outputs[pin] = value
	return proto.OK(nil), nil
}

func (f *fakeLinker) CurrentPose(ctx context.Context) ([]float64, error) {
	return []float64{400, 0, 300, 0, 0, 0}, f.err
}

func (f *fakeLinker) JointAngles(ctx context.Context) ([]float64, error) {
	return []float64{0, 0, 0, 0, 0, 0}, f.err
}

func (f *fakeLinker) RobotState(ctx context.Context) (map[string]any, error) {
	return map[string]any{"robot_state": "IDLE"}, f.err
}

func (f *fakeLinker) EmergencyStop(ctx context.Context) (proto.Response, error) {
	return proto.OK(map[string]any{"message": "Emergency stop executed"}), nil
}

func (f *fakeLinker) ResetRobot(ctx context.Context) (proto.Response, error) {
	return proto.Error("ResetRobot error: controller busy"), nil
}

func TestArm_HomeAndSafePosition(t *testing.T) {
	link := &fakeLinker{}
	arm := NewArm(link)
	ctx := context.Background()

	env := arm.Home(ctx)
	if !env.OK() || env.Function != "home" {
		t.Errorf("Expected ok home envelope, got %+v", env)
	}
	env = arm.MoveToSafePosition(ctx)
	if !env.OK() || env.Function != "move_to_safe_position" {
		t.Errorf("Expected ok safe position envelope, got %+v", env)
	}

	if len(link.moves) != 2 {
		t.Fatalf("Expected 2 moves, got %d", len(link.moves))
	}
	want := []float64{0, -20, 40, 0, -20, 0}
	for i := range want {
		if link.moves[1].positions[i] != want[i] {
			t.Fatalf("Expected safe position %v, got %v", want, link.moves[1].positions)
		}
	}
	if link.moves[0].speed != proto.DefaultSpeed {
		t.Errorf("Expected speed %v, got %v", proto.DefaultSpeed, link.moves[0].speed)
	}
}

func TestArm_Envelopes(t *testing.T) {
	link := &fakeLinker{}
	arm := NewArm(link)
	ctx := context.Background()

	env := arm.ResetRobot(ctx)
	if env.OK() || env.Error != "ResetRobot error: controller busy" {
		t.Errorf("Expected error envelope carrying the message, got %+v", env)
	}

	link.err = errors.New("link down")
	env = arm.TestMoveJoint(ctx, []float64{0, 0, 0, 0, 0, 200}, 0.5)
	if env.OK() || env.Error != "link down" || env.Function != "test_move_j" {
		t.Errorf("Expected error envelope for link failure, got %+v", env)
	}
}

func TestArm_TestGripper(t *testing.T) {
	link := &fakeLinker{}
	arm := NewArm(link)

	env := arm.TestGripper(context.Background(), true)
	if env.Function != "test_gripper_close" || !link.outputs[1] {
		t.Errorf("Expected DO1 closed, got %+v %v", env, link.outputs)
	}
	env = arm.TestGripper(context.Background(), false)
	if env.Function != "test_gripper_open" || link.outputs[1] {
		t.Errorf("Expected DO1 open, got %+v %v", env, link.outputs)
	}
}

func TestArm_CurrentStatus(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	link := &fakeLinker{}
	arm := NewArm(link, WithClock(testclock.NewClock(now)))
	ctx := context.Background()

	status := arm.CurrentStatus(ctx)
	if status.Status != proto.StatusOK || status.Connection != "ok" {
		t.Errorf("Expected ok status, got %+v", status)
	}
	if !status.Timestamp.Equal(now) {
		t.Errorf("Expected timestamp %v, got %v", now, status.Timestamp)
	}
	if status.RobotState["robot_state"] != "IDLE" {
		t.Errorf("Expected IDLE state, got %v", status.RobotState)
	}

	link.down = true
	status = arm.CurrentStatus(ctx)
	if status.Status != proto.StatusError || status.Error != "connection lost" {
		t.Errorf("Expected connection lost, got %+v", status)
	}
}

func TestArm_MoveSequenceStopsOnFailure(t *testing.T) {
	link := &fakeLinker{failAt: 2, reject: "MoveL requires 6 pose values"}
	arm := NewArm(link, WithSettleTime(0))

	res := arm.MoveSequence(context.Background(), []Waypoint{
		{Positions: []float64{0, 0, 0, 0, 0, 0}},
		{Type: WaypointLinear, Positions: []float64{400, 0, 300, 0, 0, 0}, Speed: 0.5},
		{Positions: []float64{10, 0, 0, 0, 0, 0}},
	}, 0)

	if res.Status != proto.StatusOK {
		t.Errorf("Expected ok sequence status, got %s", res.Status)
	}
	if res.TotalWaypoints != 3 || res.ExecutedWaypoints != 2 {
		t.Errorf("Expected 3 total and 2 executed, got %d and %d", res.TotalWaypoints, res.ExecutedWaypoints)
	}
	if res.Results[1].Waypoint != 1 || res.Results[1].Result.OK() {
		t.Errorf("Expected waypoint 1 to fail, got %+v", res.Results[1])
	}
	if link.moves[0].speed != proto.DefaultSpeed || link.moves[1].speed != 0.5 {
		t.Errorf("Expected default then explicit speed, got %v", link.moves)
	}
	if link.moves[1].kind != "MoveL" {
		t.Errorf("Expected linear move, got %s", link.moves[1].kind)
	}
}

func TestArm_MoveSequenceUnknownType(t *testing.T) {
	link := &fakeLinker{}
	arm := NewArm(link, WithSettleTime(0))

	res := arm.MoveSequence(context.Background(), []Waypoint{{Type: "circular", Positions: make([]float64, 6)}}, 0.3)
	if res.ExecutedWaypoints != 1 || res.Results[0].Result.Error != "unknown move type: circular" {
		t.Errorf("Expected unknown move type failure, got %+v", res)
	}
	if len(link.moves) != 0 {
		t.Errorf("Expected no moves, got %v", link.moves)
	}
}

func TestArm_MoveSequenceSettles(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	link := &fakeLinker{}
	arm := NewArm(link, WithClock(clk))

	done := make(chan SequenceResult, 1)
	go func() {
		done <- arm.MoveSequence(context.Background(), []Waypoint{
			{Positions: make([]float64, 6)},
			{Positions: make([]float64, 6)},
		}, 0)
	}()

	if err := clk.WaitAdvance(DefaultSettleTime, time.Second, 1); err != nil {
		t.Fatalf("Expected a settle timer, got %v", err)
	}

	select {
	case res := <-done:
		if res.ExecutedWaypoints != 2 {
			t.Errorf("Expected 2 executed waypoints, got %d", res.ExecutedWaypoints)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for sequence")
	}
}
