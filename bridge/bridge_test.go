package bridge_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/rtdebridge/bridge"
	"go.viam.com/rtdebridge/components/arm/fake"
	"go.viam.com/rtdebridge/config"
	"go.viam.com/rtdebridge/control"
	"go.viam.com/rtdebridge/logging"
	"go.viam.com/rtdebridge/safety"
	"go.viam.com/rtdebridge/spatialmath"
	"go.viam.com/rtdebridge/testutils"
	"go.viam.com/rtdebridge/testutils/inject"
)

func TestMain(m *testing.M) {
	testutils.VerifyTestMain(m)
}

var testZone = safety.Zone{XMin: -1, XMax: 1, YMin: -1, YMax: 1, ZMin: 0, ZMax: 1}

func testConfig(host string) config.Config {
	zone := testZone
	return config.Config{Host: host, SafeZone: &zone}
}

func fakeDialer(arm *fake.Arm) bridge.Dialer {
	return func(ctx context.Context, cfg *config.Config, logger logging.Logger) (bridge.ControlInterface, bridge.ReceiveInterface, error) {
		return arm, arm, nil
	}
}

func newFakeBridge(t *testing.T, cfg config.Config, start spatialmath.AxisAnglePose) (*bridge.Bridge, *fake.Arm) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	arm, err := fake.NewArm(start, 500, clock.NewMock(), logger)
	test.That(t, err, test.ShouldBeNil)
	b, err := bridge.New(context.Background(), cfg, logger,
		bridge.WithDialer(fakeDialer(arm)), bridge.WithRegistry(bridge.NewRegistry()))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { b.Close(context.Background()) })
	return b, arm
}

func TestNewClaimsTarget(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	registry := bridge.NewRegistry()
	arm, err := fake.NewArm(spatialmath.AxisAnglePose{}, 500, clock.NewMock(), logger)
	test.That(t, err, test.ShouldBeNil)
	opts := []bridge.Option{bridge.WithDialer(fakeDialer(arm)), bridge.WithRegistry(registry)}

	b, err := bridge.New(ctx, testConfig("ur-a"), logger, opts...)
	test.That(t, err, test.ShouldBeNil)
	session, ok := registry.Session("ur-a")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, session, test.ShouldEqual, b.Session())

	_, err = bridge.New(ctx, testConfig("ur-a"), logger, opts...)
	test.That(t, errors.Is(err, bridge.ErrAlreadyConnected), test.ShouldBeTrue)

	other, err := bridge.New(ctx, testConfig("ur-b"), logger, opts...)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, other.Close(ctx), test.ShouldBeNil)

	test.That(t, b.Close(ctx), test.ShouldBeNil)
	_, ok = registry.Session("ur-a")
	test.That(t, ok, test.ShouldBeFalse)

	again, err := bridge.New(ctx, testConfig("ur-a"), logger, opts...)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again.Session(), test.ShouldNotEqual, session)
	test.That(t, again.Close(ctx), test.ShouldBeNil)
}

func TestNewFailures(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	registry := bridge.NewRegistry()

	t.Run("invalid config", func(t *testing.T) {
		_, err := bridge.New(ctx, config.Config{Host: "ur"}, logger, bridge.WithRegistry(registry))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "safe_zone")
		_, ok := registry.Session("ur")
		test.That(t, ok, test.ShouldBeFalse)
	})

	t.Run("dial failure releases the target", func(t *testing.T) {
		dialErr := errors.New("no route to robot")
		_, err := bridge.New(ctx, testConfig("ur"), logger, bridge.WithRegistry(registry),
			bridge.WithDialer(func(ctx context.Context, cfg *config.Config, logger logging.Logger) (
				bridge.ControlInterface, bridge.ReceiveInterface, error,
			) {
				return nil, nil, dialErr
			}))
		test.That(t, errors.Is(err, dialErr), test.ShouldBeTrue)
		_, ok := registry.Session("ur")
		test.That(t, ok, test.ShouldBeFalse)
	})

	t.Run("no controller", func(t *testing.T) {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		test.That(t, err, test.ShouldBeNil)
		port := listener.Addr().(*net.TCPAddr).Port
		test.That(t, listener.Close(), test.ShouldBeNil)

		cfg := testConfig("127.0.0.1")
		cfg.Port = port
		_, err = bridge.New(ctx, cfg, logger, bridge.WithRegistry(registry))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, fmt.Sprintf("connecting to robot at 127.0.0.1:%d", port))
		_, ok := registry.Session(fmt.Sprintf("127.0.0.1:%d", port))
		test.That(t, ok, test.ShouldBeFalse)
	})
}

func TestConfigIsCopied(t *testing.T) {
	cfg := testConfig("ur")
	b, _ := newFakeBridge(t, cfg, spatialmath.AxisAnglePose{})
	cfg.SafeZone.ZMax = 100

	got := b.Config()
	test.That(t, got.SafeZone.ZMax, test.ShouldEqual, 1.0)
	test.That(t, got.Frequency, test.ShouldEqual, config.DefaultFrequency)
	test.That(t, got.OperationMode, test.ShouldEqual, config.OperationModeCartesian)
	test.That(t, b.Dt(), test.ShouldEqual, 1/config.DefaultFrequency)
}

func TestStartTime(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	arm, err := fake.NewArm(spatialmath.AxisAnglePose{}, 500, nil, logger)
	test.That(t, err, test.ShouldBeNil)
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	b, err := bridge.New(ctx, testConfig("ur"), logger, bridge.WithDialer(fakeDialer(arm)),
		bridge.WithRegistry(bridge.NewRegistry()), bridge.WithStartTime(start))
	test.That(t, err, test.ShouldBeNil)
	defer b.Close(ctx)
	test.That(t, b.StartTime(), test.ShouldEqual, start)
}

func TestGetCartesian(t *testing.T) {
	ctx := context.Background()
	start := spatialmath.AxisAnglePose{
		Point:          r3.Vector{X: 0.1, Y: 0.2, Z: 0.3},
		RotationVector: r3.Vector{Z: math.Pi / 2},
	}
	logger, logs := logging.NewObservedTestLogger(t)
	arm, err := fake.NewArm(start, 500, clock.NewMock(), logger)
	test.That(t, err, test.ShouldBeNil)
	b, err := bridge.New(ctx, testConfig("ur"), logger,
		bridge.WithDialer(fakeDialer(arm)), bridge.WithRegistry(bridge.NewRegistry()))
	test.That(t, err, test.ShouldBeNil)
	defer b.Close(ctx)

	pose, err := b.GetCartesian(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.Point, test.ShouldResemble, start.Point)
	test.That(t, pose.Orientation.Real, test.ShouldAlmostEqual, math.Cos(math.Pi/4))
	test.That(t, pose.Orientation.Imag, test.ShouldAlmostEqual, 0)
	test.That(t, pose.Orientation.Jmag, test.ShouldAlmostEqual, 0)
	test.That(t, pose.Orientation.Kmag, test.ShouldAlmostEqual, math.Sin(math.Pi/4))

	outside := r3.Vector{X: 0.5, Y: 0.5, Z: 1.5}
	arm.SetPose(spatialmath.AxisAnglePose{Point: outside})
	for i := 0; i < 3; i++ {
		pose, err = b.GetCartesian(ctx)
		test.That(t, errors.Is(err, safety.ErrOutsideZone), test.ShouldBeTrue)
		test.That(t, pose.Point, test.ShouldResemble, outside)
		test.That(t, pose.Orientation, test.ShouldResemble, spatialmath.NewZeroOrientation())
	}
	var violation *safety.ViolationError
	test.That(t, errors.As(err, &violation), test.ShouldBeTrue)
	test.That(t, violation.Axes, test.ShouldResemble, []string{"z"})
	test.That(t, logs.FilterMessage("robot is outside the safety zone").Len(), test.ShouldEqual, 1)

	readErr := errors.New("stream down")
	failing, err := bridge.New(ctx, testConfig("ur-failing"), logger, bridge.WithRegistry(bridge.NewRegistry()),
		bridge.WithDialer(func(ctx context.Context, cfg *config.Config, logger logging.Logger) (
			bridge.ControlInterface, bridge.ReceiveInterface, error,
		) {
			return &inject.Control{ControlInterface: arm}, &inject.Receive{
				ActualTCPPoseFunc: func(ctx context.Context) (spatialmath.AxisAnglePose, error) {
					return spatialmath.AxisAnglePose{}, readErr
				},
			}, nil
		}))
	test.That(t, err, test.ShouldBeNil)
	defer failing.Close(ctx)
	_, err = failing.GetCartesian(ctx)
	test.That(t, errors.Is(err, readErr), test.ShouldBeTrue)
}

func TestSetCartesian(t *testing.T) {
	ctx := context.Background()
	b, arm := newFakeBridge(t, testConfig("ur"), spatialmath.AxisAnglePose{Point: r3.Vector{Z: 0.5}})

	target := spatialmath.NewCartesianPose(r3.Vector{X: 0.1, Y: 0.2, Z: 0.3}, math.Cos(math.Pi/4), 0, 0, math.Sin(math.Pi/4))
	test.That(t, b.SetCartesian(ctx, target), test.ShouldBeNil)

	cmds := arm.Commands()
	test.That(t, cmds, test.ShouldHaveLength, 1)
	test.That(t, cmds[0].Kind, test.ShouldEqual, fake.CommandMoveL)
	test.That(t, cmds[0].Speed, test.ShouldEqual, config.DefaultLinearVelocity)
	test.That(t, cmds[0].Acceleration, test.ShouldEqual, config.DefaultLinearAcceleration)
	test.That(t, cmds[0].Pose.Point, test.ShouldResemble, target.Point)
	test.That(t, cmds[0].Pose.RotationVector.X, test.ShouldAlmostEqual, 0)
	test.That(t, cmds[0].Pose.RotationVector.Y, test.ShouldAlmostEqual, 0)
	test.That(t, cmds[0].Pose.RotationVector.Z, test.ShouldAlmostEqual, math.Pi/2, 1e-6)

	pose, err := b.GetCartesian(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.PoseAlmostEqual(pose, target, 1e-9), test.ShouldBeTrue)

	t.Run("identity orientation", func(t *testing.T) {
		test.That(t, b.SetCartesian(ctx, spatialmath.NewCartesianPose(r3.Vector{Z: 0.5}, 1, 0, 0, 0)), test.ShouldBeNil)
		cmds := arm.Commands()
		test.That(t, cmds[len(cmds)-1].Pose.RotationVector, test.ShouldResemble, r3.Vector{})
	})

	t.Run("target outside the zone is refused", func(t *testing.T) {
		before := len(arm.Commands())
		err := b.SetCartesian(ctx, spatialmath.NewCartesianPose(r3.Vector{X: 2, Z: 0.5}, 1, 0, 0, 0))
		test.That(t, errors.Is(err, safety.ErrOutsideZone), test.ShouldBeTrue)
		test.That(t, arm.Commands(), test.ShouldHaveLength, before)
	})
}

func TestCommandsOutsideZoneAllowed(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig("ur")
	cfg.AllowCommandsOutsideZone = true
	b, arm := newFakeBridge(t, cfg, spatialmath.AxisAnglePose{Point: r3.Vector{Z: 0.5}})

	outside := spatialmath.NewCartesianPose(r3.Vector{X: 0.5, Y: 0.5, Z: 1.5}, 1, 0, 0, 0)
	test.That(t, b.StreamCartesian(ctx, outside), test.ShouldBeNil)
	test.That(t, arm.Commands(), test.ShouldHaveLength, 1)

	pose, err := b.GetCartesian(ctx)
	test.That(t, errors.Is(err, safety.ErrOutsideZone), test.ShouldBeTrue)
	test.That(t, pose.Point, test.ShouldResemble, outside.Point)
}

func TestStreamCartesian(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig("ur")
	cfg.Frequency = 125
	cfg.ServoLookaheadTime = 0.05
	cfg.ServoGain = 500
	b, arm := newFakeBridge(t, cfg, spatialmath.AxisAnglePose{Point: r3.Vector{Z: 0.5}})

	target := spatialmath.NewCartesianPose(r3.Vector{X: 0.2, Y: -0.1, Z: 0.4}, 1, 0, 0, 0)
	test.That(t, b.StreamCartesian(ctx, target), test.ShouldBeNil)
	test.That(t, arm.Commands(), test.ShouldResemble, []fake.Command{{
		Kind:         fake.CommandServoL,
		Pose:         spatialmath.AxisAnglePose{Point: target.Point},
		Speed:        config.DefaultLinearVelocity,
		Acceleration: config.DefaultLinearAcceleration,
		Dt:           0.008,
		Lookahead:    0.05,
		Gain:         500,
	}})
}

func TestWrongOperationMode(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	cmd := &inject.Control{
		InitPeriodFunc: time.Now,
		WaitPeriodFunc: func(ctx context.Context, start time.Time) error { return nil },
		MoveLFunc: func(ctx context.Context, pose spatialmath.AxisAnglePose, speed, acceleration float64) error {
			t.Fatal("movel must not be sent")
			return nil
		},
		ServoLFunc: func(ctx context.Context, pose spatialmath.AxisAnglePose, speed, acceleration, dt, lookahead, gain float64) error {
			t.Fatal("servol must not be sent")
			return nil
		},
	}
	for _, mode := range []config.OperationMode{config.OperationModeJoint, config.OperationModeNone} {
		t.Run(string(mode), func(t *testing.T) {
			cfg := testConfig("ur")
			cfg.OperationMode = mode
			b, err := bridge.New(ctx, cfg, logger, bridge.WithRegistry(bridge.NewRegistry()),
				bridge.WithDialer(func(ctx context.Context, cfg *config.Config, logger logging.Logger) (
					bridge.ControlInterface, bridge.ReceiveInterface, error,
				) {
					return cmd, &inject.Receive{}, nil
				}))
			test.That(t, err, test.ShouldBeNil)
			defer b.Close(ctx)

			pose := spatialmath.NewCartesianPose(r3.Vector{Z: 0.5}, 1, 0, 0, 0)
			test.That(t, errors.Is(b.SetCartesian(ctx, pose), bridge.ErrWrongOperationMode), test.ShouldBeTrue)
			test.That(t, errors.Is(b.StreamCartesian(ctx, pose), bridge.ErrWrongOperationMode), test.ShouldBeTrue)
		})
	}
}

func TestCommandRejected(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	arm, err := fake.NewArm(spatialmath.AxisAnglePose{Point: r3.Vector{Z: 0.5}}, 500, clock.NewMock(), logger)
	test.That(t, err, test.ShouldBeNil)

	channelErr := errors.New("protective stop")
	cmd := &inject.Control{
		ControlInterface: arm,
		MoveLFunc: func(ctx context.Context, pose spatialmath.AxisAnglePose, speed, acceleration float64) error {
			return channelErr
		},
		StopLFunc: func(ctx context.Context, acceleration float64) error {
			return context.DeadlineExceeded
		},
	}
	b, err := bridge.New(ctx, testConfig("ur"), logger, bridge.WithRegistry(bridge.NewRegistry()),
		bridge.WithDialer(func(ctx context.Context, cfg *config.Config, logger logging.Logger) (
			bridge.ControlInterface, bridge.ReceiveInterface, error,
		) {
			return cmd, arm, nil
		}))
	test.That(t, err, test.ShouldBeNil)
	defer b.Close(ctx)

	err = b.SetCartesian(ctx, spatialmath.NewCartesianPose(r3.Vector{Z: 0.5}, 1, 0, 0, 0))
	test.That(t, errors.Is(err, bridge.ErrCommandRejected), test.ShouldBeTrue)
	test.That(t, errors.Is(err, channelErr), test.ShouldBeTrue)

	err = b.Stop(ctx)
	test.That(t, errors.Is(err, bridge.ErrCommandRejected), test.ShouldBeTrue)
	test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)

	test.That(t, b.StreamCartesian(ctx, spatialmath.NewCartesianPose(r3.Vector{Z: 0.5}, 1, 0, 0, 0)), test.ShouldBeNil)
}

func TestCycle(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)
	mock := clock.NewMock()
	arm, err := fake.NewArm(spatialmath.AxisAnglePose{Point: r3.Vector{Z: 0.5}}, 500, mock, logger)
	test.That(t, err, test.ShouldBeNil)
	b, err := bridge.New(ctx, testConfig("ur"), logger,
		bridge.WithDialer(fakeDialer(arm)), bridge.WithRegistry(bridge.NewRegistry()))
	test.That(t, err, test.ShouldBeNil)

	p := b.BeginCycle()
	test.That(t, p.Start(), test.ShouldEqual, mock.Now())
	_, err = b.GetCartesian(ctx)
	test.That(t, err, test.ShouldBeNil)
	mock.Add(3 * time.Millisecond)
	test.That(t, b.WaitForCycleEnd(ctx, p), test.ShouldBeNil)
	test.That(t, p.Consumed(), test.ShouldBeTrue)
	test.That(t, errors.Is(b.WaitForCycleEnd(ctx, p), control.ErrPeriodConsumed), test.ShouldBeTrue)

	test.That(t, b.Stats().Cycles(), test.ShouldEqual, uint64(1))
	test.That(t, b.Stats().Overruns(), test.ShouldEqual, uint64(1))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	err = b.WaitForCycleEnd(canceled, b.BeginCycle())
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)

	test.That(t, b.Close(ctx), test.ShouldBeNil)
	test.That(t, logs.FilterMessage("control loop statistics").Len(), test.ShouldEqual, 1)
	test.That(t, b.BeginCycle(), test.ShouldBeNil)
	test.That(t, errors.Is(b.WaitForCycleEnd(ctx, b.BeginCycle()), bridge.ErrClosed), test.ShouldBeTrue)
}

func TestJoints(t *testing.T) {
	ctx := context.Background()
	b, arm := newFakeBridge(t, testConfig("ur"), spatialmath.AxisAnglePose{})

	_, err := b.GetJoints(ctx)
	test.That(t, errors.Is(err, bridge.ErrNotImplemented), test.ShouldBeTrue)
	err = b.SetJoints(ctx, []float64{0, 0, 0, 0, 0, 0})
	test.That(t, errors.Is(err, bridge.ErrNotImplemented), test.ShouldBeTrue)
	test.That(t, arm.Commands(), test.ShouldBeEmpty)
}

func TestStop(t *testing.T) {
	ctx := context.Background()
	b, arm := newFakeBridge(t, testConfig("ur"), spatialmath.AxisAnglePose{})

	test.That(t, b.Stop(ctx), test.ShouldBeNil)
	test.That(t, arm.Commands(), test.ShouldResemble, []fake.Command{
		{Kind: fake.CommandStopL, Acceleration: config.DefaultLinearAcceleration},
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	b, arm := newFakeBridge(t, testConfig("ur"), spatialmath.AxisAnglePose{Point: r3.Vector{Z: 0.5}})

	test.That(t, b.Close(ctx), test.ShouldBeNil)
	test.That(t, arm.CloseCount(), test.ShouldEqual, 2)
	test.That(t, b.Close(ctx), test.ShouldBeNil)
	test.That(t, arm.CloseCount(), test.ShouldEqual, 2)

	pose := spatialmath.NewCartesianPose(r3.Vector{Z: 0.5}, 1, 0, 0, 0)
	_, err := b.GetCartesian(ctx)
	test.That(t, errors.Is(err, bridge.ErrClosed), test.ShouldBeTrue)
	test.That(t, errors.Is(b.SetCartesian(ctx, pose), bridge.ErrClosed), test.ShouldBeTrue)
	test.That(t, errors.Is(b.StreamCartesian(ctx, pose), bridge.ErrClosed), test.ShouldBeTrue)
	test.That(t, errors.Is(b.Stop(ctx), bridge.ErrClosed), test.ShouldBeTrue)

	t.Run("channel errors are combined", func(t *testing.T) {
		errA := errors.New("a")
		errB := errors.New("b")
		logger := logging.NewTestLogger(t)
		other, err := bridge.New(ctx, testConfig("ur"), logger, bridge.WithRegistry(bridge.NewRegistry()),
			bridge.WithDialer(func(ctx context.Context, cfg *config.Config, logger logging.Logger) (
				bridge.ControlInterface, bridge.ReceiveInterface, error,
			) {
				return &inject.Control{
						InitPeriodFunc: time.Now,
						CloseFunc:      func() error { return errA },
					}, &inject.Receive{
						CloseFunc: func() error { return errB },
					}, nil
			}))
		test.That(t, err, test.ShouldBeNil)
		err = other.Close(ctx)
		test.That(t, errors.Is(err, errA), test.ShouldBeTrue)
		test.That(t, errors.Is(err, errB), test.ShouldBeTrue)
	})
}

func TestRegistryRelease(t *testing.T) {
	registry := bridge.NewRegistry()
	first, err := registry.Claim("ur")
	test.That(t, err, test.ShouldBeNil)

	test.That(t, registry.Release("ur", first), test.ShouldBeTrue)
	second, err := registry.Claim("ur")
	test.That(t, err, test.ShouldBeNil)

	// a stale session must not free the newer claim
	test.That(t, registry.Release("ur", first), test.ShouldBeFalse)
	session, ok := registry.Session("ur")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, session, test.ShouldEqual, second)
	test.That(t, registry.Release("other", second), test.ShouldBeFalse)
}

func TestRegistryTargetsAreNormalized(t *testing.T) {
	registry := bridge.NewRegistry()
	session, err := registry.Claim("UR-1")
	test.That(t, err, test.ShouldBeNil)
	for _, alias := range []string{"ur-1", " ur-1.", "ur-1:30003", "Ur-1:30003"} {
		_, err := registry.Claim(alias)
		test.That(t, errors.Is(err, bridge.ErrAlreadyConnected), test.ShouldBeTrue)
		held, ok := registry.Session(alias)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, held, test.ShouldEqual, session)
	}
	_, err = registry.Claim("ur-1:30004")
	test.That(t, err, test.ShouldBeNil)

	_, err = registry.Claim("localhost")
	test.That(t, err, test.ShouldBeNil)
	for _, alias := range []string{"127.0.0.1", "127.0.0.1:30003", "::1", "[::1]:30003", "LOCALHOST"} {
		_, err := registry.Claim(alias)
		test.That(t, errors.Is(err, bridge.ErrAlreadyConnected), test.ShouldBeTrue)
	}

	_, err = registry.Claim("fe80::1")
	test.That(t, err, test.ShouldBeNil)
	_, err = registry.Claim("[FE80:0:0::1]:30003")
	test.That(t, errors.Is(err, bridge.ErrAlreadyConnected), test.ShouldBeTrue)
}

func TestNewRefusesAliasedTarget(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	registry := bridge.NewRegistry()
	arm, err := fake.NewArm(spatialmath.AxisAnglePose{}, 500, clock.NewMock(), logger)
	test.That(t, err, test.ShouldBeNil)
	opts := []bridge.Option{bridge.WithDialer(fakeDialer(arm)), bridge.WithRegistry(registry)}

	b, err := bridge.New(ctx, testConfig("localhost"), logger, opts...)
	test.That(t, err, test.ShouldBeNil)
	_, err = bridge.New(ctx, testConfig("127.0.0.1"), logger, opts...)
	test.That(t, errors.Is(err, bridge.ErrAlreadyConnected), test.ShouldBeTrue)
	test.That(t, b.Close(ctx), test.ShouldBeNil)
}
