//go:build linux

package realtime

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func setThreadPriority(prio int) error {
	attr := &unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(prio),
	}
	// pid 0 is the calling thread.
	if err := unix.SchedSetAttr(0, attr, 0); err != nil {
		return errors.Wrapf(err, "sched_setattr(SCHED_FIFO, %d)", prio)
	}
	return nil
}
