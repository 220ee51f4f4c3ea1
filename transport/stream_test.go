package transport

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/mbocsi/dartlink/proto"
)

func pipe(t *testing.T) (*StreamConn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return NewStreamConn(a), b
}

func TestStreamConn_SendReceive(t *testing.T) {
	client, raw := pipe(t)
	server := NewStreamConn(raw)

	go func() {
		if err := client.Send(proto.NewPing("T")); err != nil {
			t.Errorf("Send failed: %v", err)
		}
	}()

	var msg proto.Message
	if err := server.Receive(&msg); err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if msg.Type != proto.TypePing || msg.Token != "T" {
		t.Errorf("Unexpected message: %+v", msg)
	}
}

func TestStreamConn_PartialReads(t *testing.T) {
	conn, raw := pipe(t)

	go func() {
		raw.Write([]byte(`{"token":"T",`))
		time.Sleep(20 * time.Millisecond)
		raw.Write([]byte(`"type":"auth"`))
		time.Sleep(20 * time.Millisecond)
		raw.Write([]byte("}\n"))
	}()

	var msg proto.Message
	if err := conn.Receive(&msg); err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if msg.Type != proto.TypeAuth {
		t.Errorf("Expected auth message, got %+v", msg)
	}
}

func TestStreamConn_LeftoverBytesStayBuffered(t *testing.T) {
	conn, raw := pipe(t)

	go func() {
		raw.Write([]byte("{\"status\":\"ok\",\"n\":1}\n{\"status\":\"ok\",\"n\":2}\n{\"status\":"))
		raw.Write([]byte("\"error\",\"message\":\"x\"}\n"))
	}()

	for i, want := range []string{"ok", "ok", "error"} {
		var resp proto.Response
		if err := conn.Receive(&resp); err != nil {
			t.Fatalf("Receive %d failed: %v", i, err)
		}
		if resp.Status() != want {
			t.Errorf("Frame %d: expected status %q, got %q", i, want, resp.Status())
		}
	}
}

func TestStreamConn_ClosedBeforeDelimiter(t *testing.T) {
	conn, raw := pipe(t)

	go func() {
		raw.Write([]byte(`{"status":"ok"`))
		raw.Close()
	}()

	var resp proto.Response
	err := conn.Receive(&resp)
	if !errors.Is(err, proto.ErrTransport) {
		t.Fatalf("Expected ErrTransport, got %v", err)
	}
}

func TestStreamConn_MalformedFrameIsConsumed(t *testing.T) {
	conn, raw := pipe(t)

	go func() {
		raw.Write([]byte("{invalid json\n{\"token\":\"T\",\"type\":\"ping\"}\n"))
	}()

	var msg proto.Message
	err := conn.Receive(&msg)
	if !errors.Is(err, proto.ErrMalformedMessage) {
		t.Fatalf("Expected ErrMalformedMessage, got %v", err)
	}
	if err := conn.Receive(&msg); err != nil {
		t.Fatalf("Expected next frame to decode, got %v", err)
	}
	if msg.Type != proto.TypePing {
		t.Errorf("Expected ping, got %+v", msg)
	}
}

func TestStreamConn_OversizedFrame(t *testing.T) {
	conn, raw := pipe(t)

	go func() {
		raw.Write([]byte(strings.Repeat("a", MaxFrameSize+64)))
	}()

	var msg proto.Message
	err := conn.Receive(&msg)
	if !errors.Is(err, proto.ErrTransport) {
		t.Fatalf("Expected ErrTransport for oversized frame, got %v", err)
	}
}

func TestStreamConn_SendOnClosed(t *testing.T) {
	conn, raw := pipe(t)
	raw.Close()

	err := conn.Send(proto.NewPing("T"))
	if !errors.Is(err, proto.ErrTransport) {
		t.Fatalf("Expected ErrTransport, got %v", err)
	}
}

func TestStreamConn_Deadline(t *testing.T) {
	conn, _ := pipe(t)

	if err := conn.SetDeadline(time.Now().Add(20 * time.Millisecond)); err != nil {
		t.Fatalf("SetDeadline failed: %v", err)
	}
	var msg proto.Message
	err := conn.Receive(&msg)
	if !errors.Is(err, proto.ErrTransport) {
		t.Fatalf("Expected ErrTransport on timeout, got %v", err)
	}
}
