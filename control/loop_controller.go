// Package control paces a fixed-rate control loop against a cycle clock.
package control

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"go.viam.com/rtdebridge/logging"
)

// MaxFrequency is the highest supported control loop rate in Hz.
const MaxFrequency = 500.0

// ErrPeriodConsumed is returned when a Period is handed to WaitForCycleEnd more than once.
var ErrPeriodConsumed = errors.New("loop period already consumed")

// Scheduler is the cycle clock of a motion interface. InitPeriod marks the start of a cycle and
// WaitPeriod blocks until one cycle duration after that start.
type Scheduler interface {
	InitPeriod() time.Time
	WaitPeriod(ctx context.Context, start time.Time) error
}

// Period is the token for a single control cycle. It is created by BeginCycle and consumed by
// exactly one call to WaitForCycleEnd.
type Period struct {
	start    time.Time
	consumed bool
}

// Start returns the scheduled start instant of the cycle.
func (p *Period) Start() time.Time {
	return p.start
}

// Consumed returns whether the cycle has already been waited on.
func (p *Period) Consumed() bool {
	return p.consumed
}

// Dt returns the cycle duration in seconds for the given frequency.
func Dt(frequency float64) float64 {
	return 1.0 / frequency
}

// CycleDuration returns the cycle duration for the given frequency.
func CycleDuration(frequency float64) time.Duration {
	return time.Duration(float64(time.Second) * Dt(frequency))
}

// ValidateFrequency returns an error if the frequency is not in (0, MaxFrequency].
func ValidateFrequency(frequency float64) error {
	if math.IsNaN(frequency) || frequency <= 0 || frequency > MaxFrequency {
		return errors.Errorf("loop frequency must be in (0, %v] Hz, got %v", MaxFrequency, frequency)
	}
	return nil
}

// LoopController hands out cycle tokens and blocks until each cycle's boundary. It is meant to be
// driven from a single control goroutine.
type LoopController struct {
	scheduler Scheduler
	frequency float64
	dt        time.Duration
	now       func() time.Time
	stats     *CycleStats
	logger    logging.Logger

	overrunLog rate.Sometimes
}

// NewLoopController returns a controller pacing cycles at frequency Hz on the scheduler. If the
// scheduler exposes a `Now() time.Time` method, busy times are measured on that clock.
func NewLoopController(scheduler Scheduler, frequency float64, logger logging.Logger) (*LoopController, error) {
	if scheduler == nil {
		return nil, errors.New("loop controller requires a scheduler")
	}
	if err := ValidateFrequency(frequency); err != nil {
		return nil, err
	}

	now := time.Now
	if clk, ok := scheduler.(interface{ Now() time.Time }); ok {
		now = clk.Now
	}
	return &LoopController{
		scheduler:  scheduler,
		frequency:  frequency,
		dt:         CycleDuration(frequency),
		now:        now,
		stats:      NewCycleStats(DefaultStatsWindow),
		logger:     logger,
		overrunLog: rate.Sometimes{First: 1, Interval: 5 * time.Second},
	}, nil
}

// BeginCycle starts a new cycle and returns its token.
func (lc *LoopController) BeginCycle() *Period {
	return &Period{start: lc.scheduler.InitPeriod()}
}

// WaitForCycleEnd records the time spent in the cycle and blocks until its boundary. Overruns are
// counted and logged; whether the wait returns immediately on overrun is up to the scheduler.
func (lc *LoopController) WaitForCycleEnd(ctx context.Context, p *Period) error {
	if p == nil {
		return errors.New("nil loop period")
	}
	if p.consumed {
		return ErrPeriodConsumed
	}
	p.consumed = true

	busy := lc.now().Sub(p.start)
	overrun := busy > lc.dt
	lc.stats.Record(busy, overrun)
	if overrun {
		lc.overrunLog.Do(func() {
			lc.logger.Warnw("control cycle overran its period",
				"busy", busy, "period", lc.dt, "overruns", lc.stats.Overruns())
		})
	}

	return lc.scheduler.WaitPeriod(ctx, p.start)
}

// Frequency returns the loop rate in Hz.
func (lc *LoopController) Frequency() float64 {
	return lc.frequency
}

// Dt returns the cycle duration in seconds.
func (lc *LoopController) Dt() float64 {
	return Dt(lc.frequency)
}

// CycleDuration returns the cycle duration.
func (lc *LoopController) CycleDuration() time.Duration {
	return lc.dt
}

// Stats returns the cycle timing statistics gathered so far.
func (lc *LoopController) Stats() *CycleStats {
	return lc.stats
}
