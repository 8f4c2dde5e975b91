package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	appLog "epdday/internal/log"
	"epdday/internal/sleep"
)

// Daemon runs wake cycles continuously: one immediately, then on cronSpec
// (normally the midnight schedule). Retry cycles take a short sleep through
// pm instead of waiting for the next cron firing. Used on hosts that do not
// hardware-deep-sleep between cycles.
func Daemon(ctx context.Context, deps Deps, cronSpec string, pm sleep.PowerManager) error {
	wake := make(chan struct{}, 1)
	kick := func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(cronSpec, kick); err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	// First cycle right away; the device has just woken.
	kick()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
			out := RunCycle(ctx, deps)
			appLog.Info("cycle complete",
				"rendered", out.Rendered,
				"slots", len(out.Selection),
				"retry", out.Retry,
				"sleep", out.SleepFor.String(),
			)
			if out.Retry {
				// At most one sleeper is pending: the next cycle only
				// starts once it kicks.
				go func(d time.Duration) {
					if err := pm.DeepSleep(ctx, d); err == nil {
						kick()
					}
				}(out.SleepFor)
			}
		}
	}
}
