package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"runtime"
	"strconv"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/rtdebridge/bridge"
	"go.viam.com/rtdebridge/components/arm/fake"
	"go.viam.com/rtdebridge/config"
	"go.viam.com/rtdebridge/control"
	"go.viam.com/rtdebridge/logging"
	"go.viam.com/rtdebridge/safety"
	"go.viam.com/rtdebridge/spatialmath"
)

// unitQuaternionTolerance bounds how far a quaternion typed on the command line may be from
// unit length.
const unitQuaternionTolerance = 1e-3

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// loadConfig reads the configuration named on the command line and applies the logging flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Read(c.Context, c.String(configFlag), logging.NewBlankLogger("config"))
	if err != nil {
		return nil, err
	}
	if c.Bool(debugFlag) {
		cfg.Log.Level = "debug"
	}
	if file := c.String(logFileFlag); file != "" {
		cfg.Log.File = file
	}
	return cfg, nil
}

// withBridge connects to the configured robot, or a fake one, runs f and closes the bridge.
func withBridge(c *cli.Context, f func(ctx context.Context, b *bridge.Bridge, logger logging.Logger) error) (err error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, closeLogs, err := logging.NewLoggerFromConfig("rtdebridge", cfg.Log)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, closeLogs())
	}()
	logging.ReplaceGlobal(logger)

	var opts []bridge.Option
	if c.Bool(fakeFlag) {
		arm, err := fake.NewArm(zoneCenter(*cfg.SafeZone), cfg.Frequency, nil, logger.Sublogger("fake"))
		if err != nil {
			return err
		}
		opts = append(opts, bridge.WithDialer(
			func(ctx context.Context, cfg *config.Config, logger logging.Logger) (bridge.ControlInterface, bridge.ReceiveInterface, error) {
				return arm, arm, nil
			}))
	}

	b, err := bridge.New(c.Context, *cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, b.Close(context.WithoutCancel(c.Context)))
	}()
	return f(c.Context, b, logger)
}

func zoneCenter(zone safety.Zone) spatialmath.AxisAnglePose {
	return spatialmath.AxisAnglePose{Point: r3.Vector{
		X: (zone.XMin + zone.XMax) / 2,
		Y: (zone.YMin + zone.YMax) / 2,
		Z: (zone.ZMin + zone.ZMax) / 2,
	}}
}

// CheckAction validates the configuration and prints the effective values.
func CheckAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", cfg)
	return nil
}

// StatusAction connects and prints the tool pose and whether it is inside the safe zone.
func StatusAction(c *cli.Context) error {
	return withBridge(c, func(ctx context.Context, b *bridge.Bridge, logger logging.Logger) error {
		pose, err := b.GetCartesian(ctx)
		inZone := true
		if err != nil {
			if !errors.Is(err, safety.ErrOutsideZone) {
				return err
			}
			inZone = false
		}
		w := c.App.Writer
		printf(w, "pose:    %v", pose.Array())
		printf(w, "rotvec:  %s", pose.ToAxisAngle())
		printf(w, "in zone: %t", inZone)
		return nil
	})
}

// HoldAction streams the pose read at start every cycle until the duration elapses. Leaving the
// safe zone stops the arm and fails.
func HoldAction(c *cli.Context) error {
	// The loop runs on this thread, which New raises to the interface priority. It is never
	// unlocked so the raised thread is not reused.
	runtime.LockOSThread()
	return withBridge(c, func(ctx context.Context, b *bridge.Bridge, logger logging.Logger) error {
		hold, err := b.GetCartesian(ctx)
		if err != nil {
			return err
		}
		cycles := int(c.Duration(durationFlag) / control.CycleDuration(b.Config().Frequency))
		logger.CInfow(ctx, "holding pose", "pose", hold.ToAxisAngle().String(), "cycles", cycles)

		for i := 0; i < cycles; i++ {
			p := b.BeginCycle()
			if _, err := b.GetCartesian(ctx); err != nil {
				return multierr.Combine(err, b.Stop(context.WithoutCancel(ctx)))
			}
			if err := b.StreamCartesian(ctx, hold); err != nil {
				return multierr.Combine(err, b.Stop(context.WithoutCancel(ctx)))
			}
			if err := b.WaitForCycleEnd(ctx, p); err != nil {
				return multierr.Combine(err, b.Stop(context.WithoutCancel(ctx)))
			}
		}

		if summary, err := b.Stats().Summary(); err == nil {
			printf(c.App.Writer, "cycles %d, overruns %d, mean %v, p99 %v, max %v",
				summary.Cycles, summary.Overruns, summary.Mean, summary.P99, summary.Max)
		}
		return nil
	})
}

// MoveAction moves the tool to the pose given as arguments. Without a quaternion the current
// orientation is kept.
func MoveAction(c *cli.Context) error {
	args := c.Args().Slice()
	if len(args) != 3 && len(args) != 7 {
		return errors.Errorf("move takes 3 or 7 numbers, got %d", len(args))
	}
	values := make([]float64, len(args))
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return errors.Wrapf(err, "argument %d", i+1)
		}
		values[i] = v
	}
	var orientation *quat.Number
	if len(values) == 7 {
		q := quat.Number{Real: values[3], Imag: values[4], Jmag: values[5], Kmag: values[6]}
		if norm := spatialmath.QuatNorm(q); math.Abs(norm-1) > unitQuaternionTolerance {
			return errors.Errorf("quaternion %v is not unit length, its norm is %v", values[3:], norm)
		}
		orientation = &q
	}

	return withBridge(c, func(ctx context.Context, b *bridge.Bridge, logger logging.Logger) error {
		target := spatialmath.NewZeroPose()
		if orientation != nil {
			target.Orientation = *orientation
		} else {
			cur, err := b.GetCartesian(ctx)
			if err != nil && !errors.Is(err, safety.ErrOutsideZone) {
				return err
			}
			target.Orientation = cur.Orientation
		}
		target.Point = r3.Vector{X: values[0], Y: values[1], Z: values[2]}

		if err := b.SetCartesian(ctx, target); err != nil {
			return err
		}
		printf(c.App.Writer, "arrived at %v", target.Array())
		return nil
	})
}
