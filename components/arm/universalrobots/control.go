package universalrobots

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/rtdebridge/control"
	"go.viam.com/rtdebridge/logging"
	"go.viam.com/rtdebridge/operation"
	"go.viam.com/rtdebridge/realtime"
	"go.viam.com/rtdebridge/spatialmath"
	"go.viam.com/rtdebridge/utils"
)

var (
	errorPollDuration   = 2 * time.Millisecond
	defaultTimeout      = 10 * time.Second
	defaultWriteTimeout = 100 * time.Millisecond
)

// Tolerances for deciding that a blocking move has arrived.
const (
	positionTolerance    = 1e-3
	orientationTolerance = 1e-2
)

// ControlConfig configures the command channel.
type ControlConfig struct {
	Host string
	// Port defaults to RealtimePort.
	Port int
	// Frequency is the control cycle rate in Hz.
	Frequency float64
	// Priority is the SCHED_FIFO priority of the channel's background thread; 0 keeps the default.
	Priority int
	// Clock drives the cycle scheduler. Defaults to the wall clock.
	Clock clock.Clock
	// WriteTimeout bounds every command write. Defaults to 100ms.
	WriteTimeout time.Duration
}

// PoseReader reports the actual tool pose. The command channel polls it to detect when a
// blocking move has arrived.
type PoseReader interface {
	ActualTCPPose(ctx context.Context) (spatialmath.AxisAnglePose, error)
}

// ControlClient sends URScript motion commands and paces the control loop with a
// control.ClockScheduler.
type ControlClient struct {
	*control.ClockScheduler

	logger       logging.Logger
	addr         string
	priority     int
	feedback     PoseReader
	opMgr        *operation.SingleOperationManager
	writeTimeout time.Duration
	workers      utils.StoppableWorkers

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// NewControlClient connects the command channel. Blocking moves poll feedback for completion.
func NewControlClient(ctx context.Context, cfg ControlConfig, feedback PoseReader, logger logging.Logger) (*ControlClient, error) {
	if feedback == nil {
		return nil, errors.New("ur command channel requires a feedback source")
	}
	scheduler, err := control.NewClockScheduler(cfg.Clock, cfg.Frequency)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithDeadline(ctx, time.Now().Add(connectTimeout))
	defer cancel()
	addr := address(cfg.Host, cfg.Port)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("can't connect to ur command interface (%s): %w", addr, err)
	}

	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	cc := &ControlClient{
		ClockScheduler: scheduler,
		logger:         logger,
		addr:           addr,
		priority:       cfg.Priority,
		feedback:       feedback,
		opMgr:          &operation.SingleOperationManager{},
		writeTimeout:   writeTimeout,
		conn:           conn,
	}
	cc.workers = utils.NewStoppableWorkers(cc.drain)
	return cc, nil
}

// drain discards everything the controller sends on the command connection. The realtime port
// streams state to every client, and an unread socket eventually makes the controller drop it.
func (cc *ControlClient) drain(ctx context.Context) {
	realtime.LockThread(cc.priority, "ur_control", cc.logger)
	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return
		}
		if err := cc.conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			return
		}
		if _, err := cc.conn.Read(buf); err != nil {
			if os.IsTimeout(err) {
				continue
			}
			if ctx.Err() == nil && !cc.isClosed() {
				cc.logger.CErrorw(ctx, "ur command connection failed", "addr", cc.addr, "error", err)
			}
			return
		}
	}
}

func (cc *ControlClient) isClosed() bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.closed
}

func (cc *ControlClient) write(cmd string) error {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.closed {
		return net.ErrClosed
	}
	if err := cc.conn.SetWriteDeadline(time.Now().Add(cc.writeTimeout)); err != nil {
		return err
	}
	_, err := cc.conn.Write([]byte(cmd))
	return err
}

// MoveL moves the tool linearly to pose at speed (m/s) and acceleration (m/s^2) and blocks until
// feedback reports arrival. If ctx is canceled first, or the arm does not arrive in time, it is
// decelerated to a stop.
func (cc *ControlClient) MoveL(ctx context.Context, pose spatialmath.AxisAnglePose, speed, acceleration float64) error {
	if speed <= 0 || acceleration <= 0 {
		return errors.Errorf("movel needs positive speed and acceleration, got v=%v a=%v", speed, acceleration)
	}
	ctx, done := cc.opMgr.New(ctx)
	defer done()

	start, err := cc.feedback.ActualTCPPose(ctx)
	if err != nil {
		return err
	}

	cmd := fmt.Sprintf("movel(%s, a=%1.4f, v=%1.4f)\n", pose, acceleration, speed)

	// make the timeout the max between the default and time calculated by slapping a 20% factor on the estimated time to complete
	timeout := defaultTimeout
	distance := pose.Point.Sub(start.Point).Norm()
	if estTime := time.Duration(1.2 * distance / speed * float64(time.Second)); estTime > timeout {
		timeout = estTime
	}

	if err := cc.write(cmd); err != nil {
		return err
	}

	target := pose.ToPose()
	now := time.Now()
	return cc.opMgr.WaitForSuccessOrStop(
		ctx,
		errorPollDuration,
		func(ctx context.Context) (bool, error) {
			cur, err := cc.feedback.ActualTCPPose(ctx)
			if err != nil {
				return false, err
			}
			if reached(target, cur.ToPose()) {
				return true, nil
			}
			if time.Since(now) > timeout {
				return false, errors.Errorf("can't reach position.\n want: %v\n   at: %v", pose, cur)
			}
			return false, nil
		},
		func(ctx context.Context) error {
			return cc.StopL(ctx, acceleration)
		},
	)
}

func reached(target, cur spatialmath.CartesianPose) bool {
	return target.Point.Sub(cur.Point).Norm() <= positionTolerance &&
		spatialmath.OrientationDistance(target.Orientation, cur.Orientation) <= orientationTolerance
}

// ServoL sends one streaming servo target and returns without waiting for motion. The controller
// tracks the target for dt seconds using its inverse kinematics.
func (cc *ControlClient) ServoL(
	ctx context.Context,
	pose spatialmath.AxisAnglePose,
	speed, acceleration, dt, lookahead, gain float64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd := fmt.Sprintf("servoj(get_inverse_kin(%s), a=%1.4f, v=%1.4f, t=%1.4f, lookahead_time=%1.4f, gain=%1.1f)\n",
		pose, acceleration, speed, dt, lookahead, gain)
	return cc.write(cmd)
}

// StopL decelerates the tool to a stop at acceleration (m/s^2).
func (cc *ControlClient) StopL(ctx context.Context, acceleration float64) error {
	return cc.write(fmt.Sprintf("stopl(%1.4f)\n", acceleration))
}

// IsMoving returns whether a blocking move is in progress.
func (cc *ControlClient) IsMoving() bool {
	return cc.opMgr.OpRunning()
}

// Close stops the background reader and closes the connection. It is safe to call more than once.
func (cc *ControlClient) Close() error {
	cc.mu.Lock()
	if cc.closed {
		cc.mu.Unlock()
		return nil
	}
	cc.closed = true
	err := cc.conn.Close()
	cc.mu.Unlock()

	cc.workers.Stop()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
