package proto

import "encoding/json"

// Message types accepted by the server.
const (
	TypeAuth     = "auth"
	TypePing     = "ping"
	TypeCall     = "call"
	TypeSequence = "sequence"
)

// Response status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

type Message struct {
	Token    string         `json:"token"`              // shared secret, checked on every message
	Type     string         `json:"type"`               // "auth", "ping", "call", "sequence"
	Function string         `json:"function,omitempty"` // registry entry (call only)
	Args     map[string]any `json:"args,omitempty"`     // function specific arguments (call only)
	Commands []Command      `json:"commands,omitempty"` // ordered call-shaped entries (sequence only)
}

// Command is one call-shaped entry of a sequence.
type Command struct {
	Type     string         `json:"type,omitempty"`
	Function string         `json:"function"`
	Args     map[string]any `json:"args,omitempty"`
}

func NewAuth(token string) Message {
	return Message{Token: token, Type: TypeAuth}
}

func NewPing(token string) Message {
	return Message{Token: token, Type: TypePing}
}

func NewCall(token, function string, args map[string]any) Message {
	if args == nil {
		args = map[string]any{}
	}
	return Message{Token: token, Type: TypeCall, Function: function, Args: args}
}

func NewSequence(token string, commands []Command) Message {
	if commands == nil {
		commands = []Command{}
	}
	return Message{Token: token, Type: TypeSequence, Commands: commands}
}

// Call builds a sequence entry.
func Call(function string, args map[string]any) Command {
	if args == nil {
		args = map[string]any{}
	}
	return Command{Type: TypeCall, Function: function, Args: args}
}

// MarshalJSON always writes "args" on a call and "commands" on a sequence,
// even when empty.
func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	switch m.Type {
	case TypeCall:
		return json.Marshal(struct {
			plain
			Args map[string]any `json:"args"`
		}{plain(m), argsOrEmpty(m.Args)})
	case TypeSequence:
		commands := m.Commands
		if commands == nil {
			commands = []Command{}
		}
		return json.Marshal(struct {
			plain
			Commands []Command `json:"commands"`
		}{plain(m), commands})
	}
	return json.Marshal(plain(m))
}

// UnmarshalJSON treats a missing or null "args" on a call as {} and missing
// "commands" on a sequence as [].
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	if err := json.Unmarshal(data, (*plain)(m)); err != nil {
		return err
	}
	switch m.Type {
	case TypeCall:
		m.Args = argsOrEmpty(m.Args)
	case TypeSequence:
		if m.Commands == nil {
			m.Commands = []Command{}
		}
	}
	return nil
}

func (c Command) MarshalJSON() ([]byte, error) {
	type plain Command
	return json.Marshal(struct {
		plain
		Args map[string]any `json:"args"`
	}{plain(c), argsOrEmpty(c.Args)})
}

func (c *Command) UnmarshalJSON(data []byte) error {
	type plain Command
	if err := json.Unmarshal(data, (*plain)(c)); err != nil {
		return err
	}
	c.Args = argsOrEmpty(c.Args)
	return nil
}

func argsOrEmpty(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	return args
}

// Response is the structured reply to a Message. It always carries "status";
// error responses carry "message".
type Response map[string]any

func OK(fields map[string]any) Response {
	resp := Response{"status": StatusOK}
	for k, v := range fields {
		resp[k] = v
	}
	return resp
}

func Error(message string) Response {
	return Response{"status": StatusError, "message": message}
}

func (r Response) Status() string {
	s, _ := r["status"].(string)
	return s
}

func (r Response) OK() bool {
	return r.Status() == StatusOK
}

func (r Response) Message() string {
	s, _ := r["message"].(string)
	return s
}

// Results returns the per-command results of a sequence response. Entries
// that are not objects are skipped.
func (r Response) Results() []Response {
	var results []Response
	switch raw := r["results"].(type) {
	case []Response:
		return raw
	case []any:
		for _, item := range raw {
			switch v := item.(type) {
			case Response:
				results = append(results, v)
			case map[string]any:
				results = append(results, Response(v))
			}
		}
	}
	return results
}

// Int reads an integral numeric field. JSON numbers decode as float64.
func (r Response) Int(key string) (int, bool) {
	switch v := r[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), v == float64(int(v))
	}
	return 0, false
}
