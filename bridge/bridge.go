// Package bridge connects a fixed-rate control loop to a robot arm. It exchanges quaternion poses
// with the caller, rotation vector poses with the arm, and checks every pose against a safety
// zone.
//
// A Bridge is driven from a single control goroutine:
//
//	for {
//		p := b.BeginCycle()
//		pose, err := b.GetCartesian(ctx)
//		...
//		err = b.StreamCartesian(ctx, next)
//		...
//		err = b.WaitForCycleEnd(ctx, p)
//	}
//
// None of its methods may be called concurrently.
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"go.viam.com/rtdebridge/config"
	"go.viam.com/rtdebridge/control"
	"go.viam.com/rtdebridge/logging"
	"go.viam.com/rtdebridge/realtime"
	"go.viam.com/rtdebridge/spatialmath"
)

var (
	// ErrAlreadyConnected is returned by New when another bridge holds the same target.
	ErrAlreadyConnected = errors.New("a bridge to this robot is already open")
	// ErrClosed is returned by every call on a closed bridge.
	ErrClosed = errors.New("bridge is closed")
	// ErrWrongOperationMode is returned when a motion call does not match the configured mode.
	ErrWrongOperationMode = errors.New("operation not allowed in the configured operation mode")
	// ErrNotImplemented is returned by joint space calls.
	ErrNotImplemented = errors.New("not implemented")
	// ErrCommandRejected wraps every error returned by the command channel.
	ErrCommandRejected = errors.New("robot rejected the command")
)

// ControlInterface is the command channel to the robot. It also owns the cycle clock of the
// control loop.
type ControlInterface interface {
	control.Scheduler
	// MoveL moves the tool linearly to pose and blocks until it arrives.
	MoveL(ctx context.Context, pose spatialmath.AxisAnglePose, speed, acceleration float64) error
	// ServoL sends one streaming target and returns immediately.
	ServoL(ctx context.Context, pose spatialmath.AxisAnglePose, speed, acceleration, dt, lookahead, gain float64) error
	// StopL decelerates the tool to a stop.
	StopL(ctx context.Context, acceleration float64) error
	Close() error
}

// ReceiveInterface is the feedback channel from the robot.
type ReceiveInterface interface {
	ActualTCPPose(ctx context.Context) (spatialmath.AxisAnglePose, error)
	Close() error
}

// Bridge is a connection to one robot.
type Bridge struct {
	cfg       config.Config
	logger    logging.Logger
	registry  *Registry
	session   uuid.UUID
	command   ControlInterface
	feedback  ReceiveInterface
	loop      *control.LoopController
	startTime time.Time
	closed    bool

	violationLog rate.Sometimes
}

// New validates cfg, claims its host and connects both channels. The calling thread is moved to
// the configured interface priority; callers that want this should hold their OS thread with
// runtime.LockOSThread first. Failing to raise the priority is logged and otherwise ignored.
func New(ctx context.Context, cfg config.Config, logger logging.Logger, opts ...Option) (*Bridge, error) {
	o := options{dialer: DialUR, registry: DefaultRegistry}
	for _, opt := range opts {
		opt.apply(&o)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	zone := *cfg.SafeZone
	cfg.SafeZone = &zone

	session, err := o.registry.Claim(cfg.Address())
	if err != nil {
		return nil, err
	}
	logger.CInfow(ctx, "connecting to robot", "address", cfg.Address(), "session", session)

	command, feedback, err := o.dialer(ctx, &cfg, logger)
	if err != nil {
		o.registry.Release(cfg.Address(), session)
		return nil, errors.Wrapf(err, "connecting to robot at %s", cfg.Address())
	}

	loop, err := control.NewLoopController(command, cfg.Frequency, logger.Sublogger("loop"))
	if err != nil {
		o.registry.Release(cfg.Address(), session)
		return nil, multierr.Combine(err, command.Close(), feedback.Close())
	}

	if err := realtime.SetThreadPriority(cfg.InterfacePriority); err != nil {
		logger.CWarnw(ctx, "could not set interface realtime priority, continuing with default scheduling",
			"priority", cfg.InterfacePriority, "error", err)
	}

	startTime := o.startTime
	if startTime.IsZero() {
		startTime = time.Now()
	}
	logger.CInfow(ctx, "connected to robot", "host", cfg.Host, "frequency_hz", cfg.Frequency, "mode", cfg.OperationMode)
	return &Bridge{
		cfg:          cfg,
		logger:       logger,
		registry:     o.registry,
		session:      session,
		command:      command,
		feedback:     feedback,
		loop:         loop,
		startTime:    startTime,
		violationLog: rate.Sometimes{First: 1, Interval: time.Second},
	}, nil
}

// GetCartesian reads the actual tool pose. If it lies outside the safety zone the pose is returned
// together with a *safety.ViolationError.
func (b *Bridge) GetCartesian(ctx context.Context) (spatialmath.CartesianPose, error) {
	if b.closed {
		return spatialmath.CartesianPose{}, ErrClosed
	}
	raw, err := b.feedback.ActualTCPPose(ctx)
	if err != nil {
		return spatialmath.CartesianPose{}, errors.Wrap(err, "reading tool pose")
	}
	pose := spatialmath.AxisAngleToPose(raw.Point, raw.RotationVector)
	if err := b.cfg.SafeZone.Check(pose.Point); err != nil {
		b.logViolation(ctx, "robot is outside the safety zone", err)
		return pose, err
	}
	return pose, nil
}

// SetCartesian moves the tool to pose at the configured linear velocity and acceleration and
// blocks until it arrives.
func (b *Bridge) SetCartesian(ctx context.Context, pose spatialmath.CartesianPose) error {
	target, err := b.commandTarget(ctx, pose)
	if err != nil {
		return err
	}
	if err := b.command.MoveL(ctx, target, b.cfg.LinearVelocity, b.cfg.LinearAcceleration); err != nil {
		return rejected(err)
	}
	return nil
}

// StreamCartesian sends pose as the next streaming target and returns without waiting for motion.
// It is meant to be called once per cycle.
func (b *Bridge) StreamCartesian(ctx context.Context, pose spatialmath.CartesianPose) error {
	target, err := b.commandTarget(ctx, pose)
	if err != nil {
		return err
	}
	err = b.command.ServoL(ctx, target,
		b.cfg.LinearVelocity, b.cfg.LinearAcceleration, b.loop.Dt(), b.cfg.ServoLookaheadTime, b.cfg.ServoGain)
	if err != nil {
		return rejected(err)
	}
	return nil
}

// commandTarget checks that a Cartesian command may be sent and converts pose for the arm.
func (b *Bridge) commandTarget(ctx context.Context, pose spatialmath.CartesianPose) (spatialmath.AxisAnglePose, error) {
	if b.closed {
		return spatialmath.AxisAnglePose{}, ErrClosed
	}
	if b.cfg.OperationMode != config.OperationModeCartesian {
		return spatialmath.AxisAnglePose{}, errors.Wrapf(ErrWrongOperationMode,
			"cartesian command in %q mode", b.cfg.OperationMode)
	}
	if !b.cfg.AllowCommandsOutsideZone {
		if err := b.cfg.SafeZone.Check(pose.Point); err != nil {
			b.logViolation(ctx, "refusing command outside the safety zone", err)
			return spatialmath.AxisAnglePose{}, err
		}
	}
	return spatialmath.PoseToAxisAngle(pose), nil
}

func (b *Bridge) logViolation(ctx context.Context, msg string, err error) {
	b.violationLog.Do(func() {
		b.logger.CWarnw(ctx, msg, "error", err)
	})
}

func rejected(err error) error {
	return fmt.Errorf("%w: %w", ErrCommandRejected, err)
}

// Stop decelerates the tool to a stop at the configured linear acceleration.
func (b *Bridge) Stop(ctx context.Context) error {
	if b.closed {
		return ErrClosed
	}
	if err := b.command.StopL(ctx, b.cfg.LinearAcceleration); err != nil {
		return rejected(err)
	}
	return nil
}

// BeginCycle starts a control cycle on the command channel's clock. On a closed bridge it returns
// nil, which WaitForCycleEnd rejects with ErrClosed.
func (b *Bridge) BeginCycle() *control.Period {
	if b.closed {
		return nil
	}
	return b.loop.BeginCycle()
}

// WaitForCycleEnd blocks until the end of the cycle started by p. Each period may be waited on
// once.
func (b *Bridge) WaitForCycleEnd(ctx context.Context, p *control.Period) error {
	if b.closed {
		return ErrClosed
	}
	return b.loop.WaitForCycleEnd(ctx, p)
}

// GetJoints is not supported.
func (b *Bridge) GetJoints(ctx context.Context) ([]float64, error) {
	b.logger.CErrorw(ctx, "joint space feedback is not implemented")
	return nil, errors.Wrap(ErrNotImplemented, "get joints")
}

// SetJoints is not supported.
func (b *Bridge) SetJoints(ctx context.Context, joints []float64) error {
	b.logger.CErrorw(ctx, "joint space control is not implemented", "joints", joints)
	return errors.Wrap(ErrNotImplemented, "set joints")
}

// StartTime returns the start of the caller's session.
func (b *Bridge) StartTime() time.Time {
	return b.startTime
}

// Dt returns the control cycle duration in seconds.
func (b *Bridge) Dt() float64 {
	return b.loop.Dt()
}

// Config returns the configuration the bridge runs with, defaults included.
func (b *Bridge) Config() config.Config {
	return b.cfg
}

// Session returns the id under which the bridge holds its target.
func (b *Bridge) Session() uuid.UUID {
	return b.session
}

// Stats returns the control loop timing statistics.
func (b *Bridge) Stats() *control.CycleStats {
	return b.loop.Stats()
}

// Close closes both channels and releases the target. It is safe to call more than once.
func (b *Bridge) Close(ctx context.Context) error {
	if b.closed {
		return nil
	}
	b.closed = true

	err := multierr.Combine(b.command.Close(), b.feedback.Close())
	b.registry.Release(b.cfg.Address(), b.session)

	if summary, sErr := b.loop.Stats().Summary(); sErr == nil {
		b.logger.CInfow(ctx, "control loop statistics",
			"cycles", summary.Cycles,
			"overruns", summary.Overruns,
			"mean", summary.Mean,
			"p99", summary.P99,
			"max", summary.Max)
	}
	b.logger.CInfow(ctx, "disconnected from robot", "host", b.cfg.Host, "session", b.session)
	return err
}
