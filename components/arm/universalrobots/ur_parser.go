// Package universalrobots talks to a Universal Robots controller over its realtime interface: a
// feedback channel decoding the state stream and a command channel sending URScript.
package universalrobots

import (
	"encoding/binary"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/rtdebridge/spatialmath"
)

// Byte offsets into a realtime interface packet, counted from the start of the 4 byte length
// header. Every field is a big-endian double; vectors are six consecutive doubles.
const (
	headerLen = 4

	offsetTime            = 4
	offsetJointsActual    = 252
	offsetToolVector      = 444
	offsetTCPSpeedActual  = 492
	offsetRobotMode       = 756
	offsetSafetyMode      = 812
	offsetProgramState    = 1052
	minPacketLen          = offsetToolVector + 6*8
	maxPacketLen          = 10000
	programStatePacketLen = offsetProgramState + 8
)

// RobotMode is the controller's robot mode as reported on the realtime interface.
type RobotMode int

// Robot modes of interest. Any other value is reported as is.
const (
	RobotModeUnknown RobotMode = iota - 1
	RobotModeDisconnected
	RobotModeConfirmSafety
	RobotModeBooting
	RobotModePowerOff
	RobotModePowerOn
	RobotModeIdle
	RobotModeBackdrive
	RobotModeRunning
)

func (m RobotMode) String() string {
	switch m {
	case RobotModeDisconnected:
		return "disconnected"
	case RobotModeConfirmSafety:
		return "confirm_safety"
	case RobotModeBooting:
		return "booting"
	case RobotModePowerOff:
		return "power_off"
	case RobotModePowerOn:
		return "power_on"
	case RobotModeIdle:
		return "idle"
	case RobotModeBackdrive:
		return "backdrive"
	case RobotModeRunning:
		return "running"
	}
	return "unknown"
}

// RobotState is one decoded realtime packet.
type RobotState struct {
	// RobotTime is the controller's time since power on, in seconds.
	RobotTime float64
	// JointPositions are the actual joint angles in radians.
	JointPositions [6]float64
	// TCPPose is the actual tool pose in the base frame, position in meters.
	TCPPose spatialmath.AxisAnglePose
	// TCPSpeed is the actual tool speed; zero if the packet is too short to carry it.
	TCPSpeed [6]float64
	// RobotMode is RobotModeUnknown if the packet is too short to carry it.
	RobotMode RobotMode
	// SafetyMode is -1 if the packet is too short to carry it.
	SafetyMode int
	// ProgramRunning is false if the packet is too short to carry the program state.
	ProgramRunning bool
}

// parseRealtimePacket decodes a packet body, i.e. everything after the length header.
func parseRealtimePacket(body []byte) (RobotState, error) {
	packetLen := len(body) + headerLen
	if packetLen < minPacketLen {
		return RobotState{}, errors.Errorf("realtime packet too short: %d bytes, need at least %d", packetLen, minPacketLen)
	}

	state := RobotState{
		RobotTime:  readDouble(body, offsetTime),
		RobotMode:  RobotModeUnknown,
		SafetyMode: -1,
	}
	state.JointPositions = readVector6(body, offsetJointsActual)
	tool := readVector6(body, offsetToolVector)
	state.TCPPose = spatialmath.AxisAnglePose{
		Point:          r3.Vector{X: tool[0], Y: tool[1], Z: tool[2]},
		RotationVector: r3.Vector{X: tool[3], Y: tool[4], Z: tool[5]},
	}
	if packetLen >= offsetTCPSpeedActual+6*8 {
		state.TCPSpeed = readVector6(body, offsetTCPSpeedActual)
	}
	if packetLen >= offsetRobotMode+8 {
		state.RobotMode = RobotMode(int(readDouble(body, offsetRobotMode)))
	}
	if packetLen >= offsetSafetyMode+8 {
		state.SafetyMode = int(readDouble(body, offsetSafetyMode))
	}
	if packetLen >= programStatePacketLen {
		// 1 is stopped, 2 is running.
		state.ProgramRunning = readDouble(body, offsetProgramState) == 2
	}
	return state, nil
}

func readDouble(body []byte, packetOffset int) float64 {
	i := packetOffset - headerLen
	return math.Float64frombits(binary.BigEndian.Uint64(body[i : i+8]))
}

func readVector6(body []byte, packetOffset int) [6]float64 {
	var out [6]float64
	for i := range out {
		out[i] = readDouble(body, packetOffset+8*i)
	}
	return out
}
