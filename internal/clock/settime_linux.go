//go:build linux

package clock

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// setSystemTime writes t to the OS realtime clock. Requires CAP_SYS_TIME;
// on the device the daemon runs as root.
func setSystemTime(t time.Time) error {
	tv := unix.NsecToTimespec(t.UnixNano())
	if err := unix.ClockSettime(unix.CLOCK_REALTIME, &tv); err != nil {
		return fmt.Errorf("clock_settime: %w", err)
	}
	return nil
}
