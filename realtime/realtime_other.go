//go:build !linux

package realtime

func setThreadPriority(prio int) error {
	return ErrUnsupported
}
