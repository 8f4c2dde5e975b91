// Package sleep computes how long the device sleeps between wake cycles.
package sleep

import (
	"context"
	"time"

	appLog "epdday/internal/log"
)

const (
	// wakeOffset keeps the wake instant just past midnight so the new day's
	// counts are unambiguous when the cycle starts.
	wakeOffset = time.Second

	// SafetyInterval is the fallback sleep when the computed duration is
	// non-positive (clock anomaly). Never sleep indefinitely or negatively.
	SafetyInterval = 60 * time.Second

	// RetryInterval is the short sleep taken when a mandatory time sync
	// failed and the cycle was skipped.
	RetryInterval = 5 * time.Minute
)

// NextWake returns the duration from now until one second past the next
// local midnight. time.Date normalizes month/year rollover, and the target
// is rebuilt from calendar fields so a DST shift lands on the wall-clock
// midnight, not 24h later.
func NextWake(now time.Time) time.Duration {
	loc := now.Location()
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, loc).Add(wakeOffset)

	d := next.Sub(now)
	if d <= 0 {
		appLog.Warn("sleep: non-positive wake interval, using safety fallback",
			"computed", d.String(), "fallback", SafetyInterval.String())
		return SafetyInterval
	}
	return d
}

// PowerManager puts the device into its lowest-power state until the timer
// (or a manual wake trigger, outside this core) fires.
type PowerManager interface {
	DeepSleep(ctx context.Context, d time.Duration) error
}

// ProcessSleeper is the development PowerManager: the process just sleeps.
// On the device the PiSugar RTC alarm plus a systemd unit restart fills the
// same role.
type ProcessSleeper struct{}

func (ProcessSleeper) DeepSleep(ctx context.Context, d time.Duration) error {
	appLog.Info("sleeping", "duration", d.String())
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
