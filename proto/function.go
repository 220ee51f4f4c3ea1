package proto

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
)

// Function names understood by the server registry.
const (
	FuncMoveJ          = "MoveJ"
	FuncMoveL          = "MoveL"
	FuncSetDO          = "SetDO"
	FuncGetDI          = "GetDI"
	FuncWaitMs         = "WaitMs"
	FuncGetCurrentPose = "GetCurrentPose"
	FuncGetJointAngles = "GetJointAngles"
	FuncEmergencyStop  = "EmergencyStop"
	FuncResetRobot     = "ResetRobot"
	FuncGetRobotState  = "GetRobotState"
)

// FunctionSpec describes a registry function for introspection (HTTP API,
// MCP tools). It is documentation only; the registry validates on its own.
type FunctionSpec struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Args        map[string]DataType `json:"args,omitempty"`
	Result      map[string]DataType `json:"result,omitempty"`
}

type DataType struct {
	Type        string    `json:"type"`
	Unit        string    `json:"unit,omitempty"`
	Description string    `json:"description,omitempty"`
	Optional    bool      `json:"optional,omitempty"`
	Range       []float64 `json:"range,omitempty"`
	Length      int       `json:"length,omitempty"` // fixed length for "vector"
}

func (f *FunctionSpec) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return errors.New("function name is required")
	}
	for field, dt := range f.Args {
		if err := validateDataType(fmt.Sprintf("%s.args.%s", f.Name, field), dt); err != nil {
			return err
		}
	}
	for field, dt := range f.Result {
		if err := validateDataType(fmt.Sprintf("%s.result.%s", f.Name, field), dt); err != nil {
			return err
		}
	}
	return nil
}

var validDataTypes = map[string]bool{
	"number":  true,
	"integer": true,
	"string":  true,
	"bool":    true,
	"vector":  true,
	"object":  true,
}

func validateDataType(path string, dt DataType) error {
	if _, ok := validDataTypes[dt.Type]; !ok {
		return fmt.Errorf("invalid data type %q at %s", dt.Type, path)
	}
	if dt.Type == "vector" && dt.Length <= 0 {
		return fmt.Errorf("vector type at %s must define a positive length", path)
	}
	if len(dt.Range) > 0 && len(dt.Range) != 2 {
		return fmt.Errorf("range at %s must have exactly two values (min, max)", path)
	}
	if len(dt.Range) == 2 && dt.Range[0] > dt.Range[1] {
		return fmt.Errorf("range at %s has min greater than max", path)
	}
	return nil
}
