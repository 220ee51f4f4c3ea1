package robot

import "github.com/mbocsi/dartlink/proto"

var (
	vector = proto.DataType{Type: "vector", Length: proto.VectorSize}
	speed  = proto.DataType{
		Type:        "number",
		Range:       []float64{proto.MinSpeed, proto.MaxSpeed},
		Optional:    true,
		Description: "fraction of maximum speed, default 0.2",
	}
	pin = proto.DataType{Type: "integer", Description: "digital I/O pin number"}
)

var catalogue = map[string]proto.FunctionSpec{
	proto.FuncMoveJ: {
		Name:        proto.FuncMoveJ,
		Description: "Move in joint space to the given joint angles",
		Args:        map[string]proto.DataType{"positions": withUnit(vector, "deg"), "speed": speed},
		Result:      map[string]proto.DataType{"positions": vector, "speed": {Type: "number"}},
	},
	proto.FuncMoveL: {
		Name:        proto.FuncMoveL,
		Description: "Move linearly in Cartesian space to pose [x, y, z, rx, ry, rz]",
		Args:        map[string]proto.DataType{"positions": withUnit(vector, "mm/deg"), "speed": speed},
		Result:      map[string]proto.DataType{"positions": vector, "speed": {Type: "number"}},
	},
	proto.FuncSetDO: {
		Name:        proto.FuncSetDO,
		Description: "Set a digital output",
		Args:        map[string]proto.DataType{"pin": pin, "value": {Type: "bool"}},
		Result:      map[string]proto.DataType{"pin": pin, "value": {Type: "bool"}},
	},
	proto.FuncGetDI: {
		Name:        proto.FuncGetDI,
		Description: "Read a digital input",
		Args:        map[string]proto.DataType{"pin": pin},
		Result:      map[string]proto.DataType{"pin": pin, "value": {Type: "bool"}},
	},
	proto.FuncWaitMs: {
		Name:        proto.FuncWaitMs,
		Description: "Wait for a number of milliseconds",
		Args:        map[string]proto.DataType{"ms": {Type: "integer", Unit: "ms", Optional: true}},
	},
	proto.FuncGetCurrentPose: {
		Name:        proto.FuncGetCurrentPose,
		Description: "Read the current Cartesian pose",
		Result:      map[string]proto.DataType{"pose": withUnit(vector, "mm/deg")},
	},
	proto.FuncGetJointAngles: {
		Name:        proto.FuncGetJointAngles,
		Description: "Read the current joint angles",
		Result:      map[string]proto.DataType{"joints": withUnit(vector, "deg")},
	},
	proto.FuncEmergencyStop: {
		Name:        proto.FuncEmergencyStop,
		Description: "Stop all motion immediately; motion stays refused until ResetRobot",
	},
	proto.FuncResetRobot: {
		Name:        proto.FuncResetRobot,
		Description: "Clear an emergency stop and return to idle",
	},
	proto.FuncGetRobotState: {
		Name:        proto.FuncGetRobotState,
		Description: "Read the robot state",
		Result:      map[string]proto.DataType{"robot_state": {Type: "object"}},
	},
}

func withUnit(dt proto.DataType, unit string) proto.DataType {
	dt.Unit = unit
	return dt
}
