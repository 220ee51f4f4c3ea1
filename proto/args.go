package proto

import (
	"encoding/json"
	"fmt"
	"math"
)

// Limits shared by client pre-flight checks and server validation.
const (
	VectorSize   = 6 // joints, or x, y, z, rx, ry, rz
	MinSpeed     = 0.01
	MaxSpeed     = 1.0
	DefaultSpeed = 0.2
)

// ValidateVector checks a joint or pose vector.
func ValidateVector(v []float64) error {
	if len(v) != VectorSize {
		return fmt.Errorf("must contain %d values, got %d", VectorSize, len(v))
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("value %d is not a finite number", i)
		}
	}
	return nil
}

// ValidateSpeed checks a speed fraction against [MinSpeed, MaxSpeed].
func ValidateSpeed(speed float64) error {
	if math.IsNaN(speed) || speed < MinSpeed || speed > MaxSpeed {
		return fmt.Errorf("speed must be between %.2f and %.1f, got %v", MinSpeed, MaxSpeed, speed)
	}
	return nil
}

// DecodeArgs converts a generic argument map into a typed struct by way of
// its JSON form, so values built in-process ([]float64, int) and values read
// off the wire ([]any, float64) decode the same way.
func DecodeArgs(args map[string]any, v any) error {
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
