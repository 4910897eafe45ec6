package control

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// ClockScheduler is a Scheduler for channels without a hardware cycle clock. A wait that starts
// after the boundary has already passed returns immediately.
type ClockScheduler struct {
	clk clock.Clock
	dt  time.Duration
}

// NewClockScheduler returns a scheduler with cycles of 1/frequency on clk. A nil clk uses the
// wall clock.
func NewClockScheduler(clk clock.Clock, frequency float64) (*ClockScheduler, error) {
	if err := ValidateFrequency(frequency); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &ClockScheduler{clk: clk, dt: CycleDuration(frequency)}, nil
}

// Now returns the current time on the scheduler's clock.
func (s *ClockScheduler) Now() time.Time {
	return s.clk.Now()
}

// InitPeriod returns the start of a new cycle.
func (s *ClockScheduler) InitPeriod() time.Time {
	return s.clk.Now()
}

// WaitPeriod blocks until start plus one cycle, or until ctx is done.
func (s *ClockScheduler) WaitPeriod(ctx context.Context, start time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	remaining := start.Add(s.dt).Sub(s.clk.Now())
	if remaining <= 0 {
		return nil
	}

	timer := s.clk.Timer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
