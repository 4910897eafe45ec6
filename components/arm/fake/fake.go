// Package fake implements an in-memory arm that stands in for a robot controller.
package fake

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/rtdebridge/control"
	"go.viam.com/rtdebridge/logging"
	"go.viam.com/rtdebridge/spatialmath"
)

// ErrClosed is returned by every call on a closed Arm.
var ErrClosed = errors.New("fake arm is closed")

// CommandKind names a motion command received by the fake arm.
type CommandKind string

// The commands a fake arm records.
const (
	CommandMoveL  = CommandKind("movel")
	CommandServoL = CommandKind("servol")
	CommandStopL  = CommandKind("stopl")
)

// Command is one recorded motion command. Fields that do not apply to its kind are zero.
type Command struct {
	Kind         CommandKind
	Pose         spatialmath.AxisAnglePose
	Speed        float64
	Acceleration float64
	Dt           float64
	Lookahead    float64
	Gain         float64
}

// Arm is a fake arm whose tool jumps to every commanded pose. It serves as both the command and
// the feedback channel.
type Arm struct {
	*control.ClockScheduler
	logger logging.Logger

	mu         sync.RWMutex
	pose       spatialmath.AxisAnglePose
	commands   []Command
	closed     bool
	closeCount int
}

// NewArm returns a fake arm at the initial pose, pacing cycles at frequency Hz on clk. A nil clk
// uses the wall clock.
func NewArm(initial spatialmath.AxisAnglePose, frequency float64, clk clock.Clock, logger logging.Logger) (*Arm, error) {
	scheduler, err := control.NewClockScheduler(clk, frequency)
	if err != nil {
		return nil, err
	}
	return &Arm{ClockScheduler: scheduler, logger: logger, pose: initial}, nil
}

func (a *Arm) record(cmd Command, moveTo bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	a.commands = append(a.commands, cmd)
	if moveTo {
		a.pose = cmd.Pose
	}
	return nil
}

// MoveL moves the tool to pose.
func (a *Arm) MoveL(ctx context.Context, pose spatialmath.AxisAnglePose, speed, acceleration float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.logger.CDebugw(ctx, "fake movel", "pose", pose.String(), "v", speed, "a", acceleration)
	return a.record(Command{Kind: CommandMoveL, Pose: pose, Speed: speed, Acceleration: acceleration}, true)
}

// ServoL moves the tool to pose.
func (a *Arm) ServoL(
	ctx context.Context,
	pose spatialmath.AxisAnglePose,
	speed, acceleration, dt, lookahead, gain float64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.record(Command{
		Kind:         CommandServoL,
		Pose:         pose,
		Speed:        speed,
		Acceleration: acceleration,
		Dt:           dt,
		Lookahead:    lookahead,
		Gain:         gain,
	}, true)
}

// StopL records the stop. The tool is never in motion.
func (a *Arm) StopL(ctx context.Context, acceleration float64) error {
	return a.record(Command{Kind: CommandStopL, Acceleration: acceleration}, false)
}

// ActualTCPPose returns the current tool pose.
func (a *Arm) ActualTCPPose(ctx context.Context) (spatialmath.AxisAnglePose, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return spatialmath.AxisAnglePose{}, ErrClosed
	}
	return a.pose, nil
}

// SetPose moves the tool without recording a command, as if pushed by hand.
func (a *Arm) SetPose(pose spatialmath.AxisAnglePose) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pose = pose
}

// Commands returns every command received so far, oldest first.
func (a *Arm) Commands() []Command {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Command(nil), a.commands...)
}

// CloseCount returns how many times Close has been called.
func (a *Arm) CloseCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.closeCount
}

// Close marks the arm closed. Calling it again is harmless.
func (a *Arm) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.closeCount++
	return nil
}
