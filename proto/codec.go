package proto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/juju/errors"
)

// Delimiter terminates every frame on the wire.
const Delimiter = '\n'

// Encode serializes v as compact JSON followed by exactly one Delimiter.
// encoding/json escapes control characters inside strings, so the delimiter
// never occurs inside the encoding.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return append(data, Delimiter), nil
}

// Decode parses one frame (without its delimiter) into v, which must point to
// a Message, a Response or another object-shaped value.
func Decode(frame []byte, v any) error {
	if bytes.IndexByte(frame, Delimiter) >= 0 {
		return fmt.Errorf("%w: stray delimiter inside frame", ErrMalformedMessage)
	}
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 {
		return fmt.Errorf("%w: empty frame", ErrMalformedMessage)
	}
	if frame[0] != '{' {
		return fmt.Errorf("%w: frame is not a JSON object", ErrMalformedMessage)
	}
	if err := json.Unmarshal(frame, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &FieldError{Field: typeErr.Field, Expected: jsonKind(typeErr.Type), Got: typeErr.Value}
		}
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return nil
}

// FieldError reports a frame that is valid JSON but has a field of the wrong
// type. It matches ErrMalformedMessage.
type FieldError struct {
	Field    string
	Expected string
	Got      string
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("expected %s, got %s", e.Expected, e.Got)
	}
	return fmt.Sprintf("field %s must be %s, got %s", e.Field, e.Expected, e.Got)
}

func (e *FieldError) Unwrap() error { return ErrMalformedMessage }

func jsonKind(t reflect.Type) string {
	if t == nil {
		return "value"
	}
	switch t.Kind() {
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	}
	return t.String()
}
