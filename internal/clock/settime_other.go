//go:build !linux

package clock

import (
	"errors"
	"time"
)

// setSystemTime is unsupported off-Linux; development hosts keep their own
// clock and the sync policy treats the failure like any other.
func setSystemTime(time.Time) error {
	return errors.New("setting the system clock is not supported on this platform")
}
