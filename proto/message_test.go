package proto

import "testing"

func TestResponseHelpers(t *testing.T) {
	ok := OK(map[string]any{"pong": true})
	if !ok.OK() || ok["pong"] != true {
		t.Errorf("Unexpected ok response: %v", ok)
	}

	e := Error("Invalid token")
	if e.OK() {
		t.Error("Expected error response to not be ok")
	}
	if e.Message() != "Invalid token" {
		t.Errorf("Expected message 'Invalid token', got %q", e.Message())
	}
}

func TestResponseResults(t *testing.T) {
	resp := Response{
		"status": "ok",
		"results": []any{
			map[string]any{"status": "ok"},
			"garbage",
			map[string]any{"status": "error", "message": "MoveJ requires 6 joint positions"},
		},
	}
	results := resp.Results()
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[1].Message() != "MoveJ requires 6 joint positions" {
		t.Errorf("Unexpected last result: %v", results[1])
	}

	typed := Response{"results": []Response{OK(nil)}}
	if len(typed.Results()) != 1 {
		t.Errorf("Expected typed results to be returned as-is")
	}
}

func TestResponseInt(t *testing.T) {
	resp := Response{"a": 3.0, "b": 2, "c": 1.5, "d": "x"}
	if v, ok := resp.Int("a"); !ok || v != 3 {
		t.Errorf("Expected 3, got %d (%v)", v, ok)
	}
	if v, ok := resp.Int("b"); !ok || v != 2 {
		t.Errorf("Expected 2, got %d (%v)", v, ok)
	}
	if _, ok := resp.Int("c"); ok {
		t.Error("Expected non-integral float to be rejected")
	}
	if _, ok := resp.Int("d"); ok {
		t.Error("Expected string to be rejected")
	}
}

func TestNewCallDefaultsArgs(t *testing.T) {
	msg := NewCall("T", FuncGetRobotState, nil)
	if msg.Args == nil {
		t.Error("Expected args to default to an empty map")
	}
	if msg.Type != TypeCall || msg.Function != FuncGetRobotState {
		t.Errorf("Unexpected call message: %+v", msg)
	}
}
