package control

import (
	"sync"
	"time"

	"github.com/montanaflynn/stats"
)

// DefaultStatsWindow is the number of most recent cycles kept for the busy time summary.
const DefaultStatsWindow = 1000

// CycleStats keeps the busy time of the most recent cycles and counts overruns.
type CycleStats struct {
	mu sync.Mutex
	// busy times in nanoseconds
	busy     []float64
	next     int
	cycles   uint64
	overruns uint64
}

// CycleSummary is a snapshot of CycleStats. Mean, P99 and Max cover the window only.
type CycleSummary struct {
	Cycles   uint64
	Overruns uint64
	Mean     time.Duration
	P99      time.Duration
	Max      time.Duration
}

// NewCycleStats returns stats that remember the last window cycles.
func NewCycleStats(window int) *CycleStats {
	if window <= 0 {
		window = DefaultStatsWindow
	}
	return &CycleStats{busy: make([]float64, 0, window)}
}

// Record adds one cycle.
func (cs *CycleStats) Record(busy time.Duration, overrun bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.cycles++
	if overrun {
		cs.overruns++
	}
	if len(cs.busy) < cap(cs.busy) {
		cs.busy = append(cs.busy, float64(busy))
		return
	}
	cs.busy[cs.next] = float64(busy)
	cs.next = (cs.next + 1) % len(cs.busy)
}

// Cycles returns the total number of recorded cycles.
func (cs *CycleStats) Cycles() uint64 {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.cycles
}

// Overruns returns the total number of cycles that took longer than their period.
func (cs *CycleStats) Overruns() uint64 {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.overruns
}

// Summary returns the counters and busy time statistics. It returns an error if no cycle has been
// recorded.
func (cs *CycleStats) Summary() (CycleSummary, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	summary := CycleSummary{Cycles: cs.cycles, Overruns: cs.overruns}
	data := stats.Float64Data(cs.busy)
	mean, err := data.Mean()
	if err != nil {
		return summary, err
	}
	p99, err := data.Percentile(99)
	if err != nil {
		return summary, err
	}
	maxBusy, err := data.Max()
	if err != nil {
		return summary, err
	}
	summary.Mean = time.Duration(mean)
	summary.P99 = time.Duration(p99)
	summary.Max = time.Duration(maxBusy)
	return summary, nil
}
