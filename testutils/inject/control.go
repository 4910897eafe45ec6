package inject

import (
	"context"
	"time"

	"go.viam.com/rtdebridge/bridge"
	"go.viam.com/rtdebridge/spatialmath"
)

// Control is an injected command channel.
type Control struct {
	bridge.ControlInterface
	InitPeriodFunc func() time.Time
	WaitPeriodFunc func(ctx context.Context, start time.Time) error
	MoveLFunc      func(ctx context.Context, pose spatialmath.AxisAnglePose, speed, acceleration float64) error
	ServoLFunc     func(
		ctx context.Context,
		pose spatialmath.AxisAnglePose,
		speed, acceleration, dt, lookahead, gain float64,
	) error
	StopLFunc func(ctx context.Context, acceleration float64) error
	CloseFunc func() error
}

// InitPeriod calls the injected InitPeriod or the real version.
func (c *Control) InitPeriod() time.Time {
	if c.InitPeriodFunc == nil {
		return c.ControlInterface.InitPeriod()
	}
	return c.InitPeriodFunc()
}

// WaitPeriod calls the injected WaitPeriod or the real version.
func (c *Control) WaitPeriod(ctx context.Context, start time.Time) error {
	if c.WaitPeriodFunc == nil {
		return c.ControlInterface.WaitPeriod(ctx, start)
	}
	return c.WaitPeriodFunc(ctx, start)
}

// MoveL calls the injected MoveL or the real version.
func (c *Control) MoveL(ctx context.Context, pose spatialmath.AxisAnglePose, speed, acceleration float64) error {
	if c.MoveLFunc == nil {
		return c.ControlInterface.MoveL(ctx, pose, speed, acceleration)
	}
	return c.MoveLFunc(ctx, pose, speed, acceleration)
}

// ServoL calls the injected ServoL or the real version.
func (c *Control) ServoL(
	ctx context.Context,
	pose spatialmath.AxisAnglePose,
	speed, acceleration, dt, lookahead, gain float64,
) error {
	if c.ServoLFunc == nil {
		return c.ControlInterface.ServoL(ctx, pose, speed, acceleration, dt, lookahead, gain)
	}
	return c.ServoLFunc(ctx, pose, speed, acceleration, dt, lookahead, gain)
}

// StopL calls the injected StopL or the real version.
func (c *Control) StopL(ctx context.Context, acceleration float64) error {
	if c.StopLFunc == nil {
		return c.ControlInterface.StopL(ctx, acceleration)
	}
	return c.StopLFunc(ctx, acceleration)
}

// Close calls the injected Close or the real version.
func (c *Control) Close() error {
	if c.CloseFunc == nil {
		if c.ControlInterface == nil {
			return nil
		}
		return c.ControlInterface.Close()
	}
	return c.CloseFunc()
}
