// Package realtime elevates goroutines that drive robot channels to a realtime scheduling class.
package realtime

import (
	"runtime"

	"github.com/pkg/errors"

	"go.viam.com/rtdebridge/logging"
)

// MaxPriority is the highest SCHED_FIFO priority.
const MaxPriority = 99

// ErrUnsupported is returned when the platform has no realtime scheduling class.
var ErrUnsupported = errors.New("realtime scheduling is not supported on this platform")

// ValidatePriority returns an error unless prio is in [0, MaxPriority]. Zero means the default
// scheduling class is kept.
func ValidatePriority(prio int) error {
	if prio < 0 || prio > MaxPriority {
		return errors.Errorf("realtime priority must be in [0, %d], got %d", MaxPriority, prio)
	}
	return nil
}

// SetThreadPriority moves the calling OS thread to SCHED_FIFO at prio. A zero prio is a no-op.
// The caller must hold the thread with runtime.LockOSThread, otherwise the Go scheduler may move
// the goroutine to another thread.
func SetThreadPriority(prio int) error {
	if err := ValidatePriority(prio); err != nil {
		return err
	}
	if prio == 0 {
		return nil
	}
	return setThreadPriority(prio)
}

// LockThread pins the calling goroutine to its OS thread and elevates that thread to prio. Failing
// to elevate is logged and otherwise ignored. The goroutine is never unpinned: when it exits, the
// runtime discards the thread instead of handing an elevated thread to other goroutines.
func LockThread(prio int, name string, logger logging.Logger) {
	runtime.LockOSThread()
	if err := SetThreadPriority(prio); err != nil {
		logger.Warnw("could not set realtime priority, continuing with default scheduling",
			"thread", name, "priority", prio, "error", err)
	} else if prio > 0 {
		logger.Debugw("realtime priority set", "thread", name, "priority", prio)
	}
}
