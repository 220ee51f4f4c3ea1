package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/opentracing/opentracing-go/mocktracer"

	"github.com/mbocsi/dartlink/proto"
	"github.com/mbocsi/dartlink/robot"
	"github.com/mbocsi/dartlink/transport"
)

const testToken = "TEST_TOKEN_123"

func newTestRegistry() *robot.Registry {
	return robot.NewRegistry(robot.NewSimulator(robot.WithMotionTime(0)))
}

// startPipeSession serves one session over net.Pipe and returns the client
// side of the pipe.
func startPipeSession(t *testing.T, d *Dispatcher) (*transport.StreamConn, net.Conn, *Session) {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	session := NewSession("tcp", transport.NewStreamConn(serverSide))

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Serve(context.Background(), session)
	}()
	t.Cleanup(func() {
		clientSide.Close()
		serverSide.Close()
		<-done
	})
	return transport.NewStreamConn(clientSide), clientSide, session
}

func roundTrip(t *testing.T, conn *transport.StreamConn, msg proto.Message) proto.Response {
	t.Helper()
	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if err := conn.Send(msg); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}
	var resp proto.Response
	if err := conn.Receive(&resp); err != nil {
		t.Fatalf("Failed to receive response: %v", err)
	}
	return resp
}

func TestDispatcher_WrongTokenAlwaysRejected(t *testing.T) {
	d := NewDispatcher(testToken, newTestRegistry())
	conn, _, _ := startPipeSession(t, d)

	messages := []proto.Message{
		proto.NewPing("WRONG"),
		proto.NewAuth("WRONG"),
		proto.NewCall("WRONG", proto.FuncGetJointAngles, nil),
		proto.NewSequence("WRONG", nil),
		{Token: "WRONG", Type: "bogus"},
	}
	for _, msg := range messages {
		resp := roundTrip(t, conn, msg)
		if resp.OK() || resp.Message() != "Invalid token" {
			t.Errorf("Expected 'Invalid token' for %s, got %v", msg.Type, resp)
		}
	}
}

func TestDispatcher_PingBeforeAuth(t *testing.T) {
	d := NewDispatcher(testToken, newTestRegistry())
	conn, _, session := startPipeSession(t, d)

	resp := roundTrip(t, conn, proto.NewPing(testToken))
	if !resp.OK() || resp["pong"] != true {
		t.Errorf("Expected pong, got %v", resp)
	}
	if session.Authenticated() {
		t.Error("Expected ping not to authenticate the session")
	}
}

func TestDispatcher_CallRequiresAuth(t *testing.T) {
	d := NewDispatcher(testToken, newTestRegistry())
	conn, _, _ := startPipeSession(t, d)

	resp := roundTrip(t, conn, proto.NewCall(testToken, proto.FuncGetJointAngles, nil))
	if resp.OK() || resp.Message() != "Authentication required" {
		t.Errorf("Expected 'Authentication required', got %v", resp)
	}

	resp = roundTrip(t, conn, proto.NewSequence(testToken, []proto.Command{proto.Call(proto.FuncWaitMs, nil)}))
	if resp.Message() != "Authentication required" {
		t.Errorf("Expected 'Authentication required' for sequence, got %v", resp)
	}
}

func TestDispatcher_AuthThenCall(t *testing.T) {
	d := NewDispatcher(testToken, newTestRegistry())
	conn, _, session := startPipeSession(t, d)

	resp := roundTrip(t, conn, proto.NewAuth(testToken))
	if !resp.OK() || resp.Message() != "Authentication successful" {
		t.Fatalf("Expected successful auth, got %v", resp)
	}
	if !session.Authenticated() {
		t.Error("Expected session to be authenticated")
	}

	resp = roundTrip(t, conn, proto.NewCall(testToken, proto.FuncMoveJ, map[string]any{
		"positions": []float64{0, 0, 90, 0, 90, 0},
		"speed":     0.3,
	}))
	if !resp.OK() || resp.Message() != "MoveJ completed" {
		t.Fatalf("Expected MoveJ completed, got %v", resp)
	}

	resp = roundTrip(t, conn, proto.NewCall(testToken, proto.FuncGetJointAngles, nil))
	joints, ok := resp["joints"].([]any)
	if !ok || len(joints) != 6 || joints[2] != 90.0 {
		t.Errorf("Expected joints [0 0 90 0 90 0], got %v", resp["joints"])
	}

	resp = roundTrip(t, conn, proto.NewCall(testToken, "Teleport", nil))
	if resp.Message() != "Unknown function: Teleport" {
		t.Errorf("Expected unknown function error, got %v", resp)
	}

	if session.Requests() != 4 {
		t.Errorf("Expected 4 requests, got %d", session.Requests())
	}
}

func TestDispatcher_SequenceStopsAtFirstFailure(t *testing.T) {
	d := NewDispatcher(testToken, newTestRegistry())
	conn, _, _ := startPipeSession(t, d)
	roundTrip(t, conn, proto.NewAuth(testToken))

	resp := roundTrip(t, conn, proto.NewSequence(testToken, []proto.Command{
		proto.Call(proto.FuncSetDO, map[string]any{"pin": 1, "value": true}),
		proto.Call(proto.FuncMoveJ, map[string]any{"positions": []float64{0, 0, 0, 0, 0}}),
		proto.Call(proto.FuncGetJointAngles, nil),
	}))

	if !resp.OK() {
		t.Fatalf("Expected ok envelope, got %v", resp)
	}
	if total, _ := resp.Int("total_commands"); total != 3 {
		t.Errorf("Expected total_commands 3, got %v", resp["total_commands"])
	}
	if executed, _ := resp.Int("executed_commands"); executed != 2 {
		t.Errorf("Expected executed_commands 2, got %v", resp["executed_commands"])
	}
	results := resp.Results()
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if !results[0].OK() {
		t.Errorf("Expected first result ok, got %v", results[0])
	}
	if results[1].OK() || results[1].Message() != "MoveJ requires 6 joint positions" {
		t.Errorf("Expected second result to fail validation, got %v", results[1])
	}
}

func TestDispatcher_UnknownType(t *testing.T) {
	d := NewDispatcher(testToken, newTestRegistry())
	conn, _, _ := startPipeSession(t, d)
	roundTrip(t, conn, proto.NewAuth(testToken))

	resp := roundTrip(t, conn, proto.Message{Token: testToken, Type: "dance"})
	if resp.OK() || resp.Message() != "Unknown message type: dance" {
		t.Errorf("Expected unknown message type error, got %v", resp)
	}
}

func TestDispatcher_MalformedInputKeepsConnection(t *testing.T) {
	d := NewDispatcher(testToken, newTestRegistry())
	conn, raw, _ := startPipeSession(t, d)

	tests := []struct {
		frame string
		want  string
	}{
		{"not json\n", "Invalid JSON"},
		{"[1,2,3]\n", "Invalid JSON"},
		{"{\"token\": 5}\n", "Invalid message: field token must be string, got number"},
		{"{\"token\":\"" + testToken + "\",\"type\":\"call\",\"function\":\"MoveJ\",\"args\":[1]}\n",
			"Invalid message: field args must be object, got array"},
	}

	for _, tt := range tests {
		raw.SetDeadline(time.Now().Add(2 * time.Second))
		if _, err := raw.Write([]byte(tt.frame)); err != nil {
			t.Fatalf("Failed to write frame: %v", err)
		}
		var resp proto.Response
		if err := conn.Receive(&resp); err != nil {
			t.Fatalf("Failed to receive response: %v", err)
		}
		if resp.OK() || resp.Message() != tt.want {
			t.Errorf("Expected %q for %q, got %v", tt.want, tt.frame, resp)
		}
	}

	resp := roundTrip(t, conn, proto.NewPing(testToken))
	if !resp.OK() {
		t.Errorf("Expected connection to remain usable, got %v", resp)
	}
}

func TestDispatcher_Tracing(t *testing.T) {
	tracer := mocktracer.New()
	d := NewDispatcher(testToken, newTestRegistry(), WithTracer(tracer))
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()
	session := NewSession("tcp", transport.NewStreamConn(serverSide))

	d.Handle(context.Background(), session, proto.NewAuth(testToken))
	d.Handle(context.Background(), session, proto.NewCall(testToken, "Nope", nil))

	spans := tracer.FinishedSpans()
	if len(spans) != 2 {
		t.Fatalf("Expected 2 finished spans, got %d", len(spans))
	}
	if spans[0].OperationName != "dartlink.auth" {
		t.Errorf("Expected operation dartlink.auth, got %s", spans[0].OperationName)
	}
	if spans[0].Tag("status") != proto.StatusOK {
		t.Errorf("Expected status tag ok, got %v", spans[0].Tag("status"))
	}
	if spans[1].Tag("function") != "Nope" {
		t.Errorf("Expected function tag Nope, got %v", spans[1].Tag("function"))
	}
	if spans[1].Tag("error") != true {
		t.Errorf("Expected error tag on failed call, got %v", spans[1].Tag("error"))
	}
}
