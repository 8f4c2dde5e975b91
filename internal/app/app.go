// Package app runs the wake cycle: sync decision, occurrence resolution,
// ranking, rendering, and next-wake computation.
package app

import (
	"context"
	"time"

	"epdday/internal/clock"
	"epdday/internal/config"
	"epdday/internal/display"
	"epdday/internal/icsimport"
	appLog "epdday/internal/log"
	"epdday/internal/model"
	"epdday/internal/occur"
	"epdday/internal/rank"
	"epdday/internal/sleep"
	"epdday/internal/timesync"
)

// ConfigSource yields the config a cycle should run with. The web server
// implements it, so daemon cycles pick up setup-UI edits without a restart.
type ConfigSource interface {
	Config() *config.Config
}

// StaticConfig is a ConfigSource frozen at one config (one-shot runs, tests).
type StaticConfig struct{ Cfg *config.Config }

func (s StaticConfig) Config() *config.Config { return s.Cfg }

// Deps is the explicit dependency set for one wake cycle. No ambient
// globals: everything the cycle touches is threaded through here.
type Deps struct {
	Conf     ConfigSource
	Clock    clock.Clock
	Policy   *timesync.Policy
	Renderer display.Renderer

	// Importer is optional; nil disables ICS import even when sources are
	// configured.
	Importer *icsimport.Fetcher
}

// Outcome reports what one cycle did and how long the device should sleep.
type Outcome struct {
	// Rendered is false when the cycle degraded to a message screen.
	Rendered bool
	// Retry is true when a mandatory sync failed and SleepFor is the short
	// retry interval instead of a full day.
	Retry bool
	// Selection is the display selection, empty on degraded cycles.
	Selection model.DisplaySelection
	// SleepFor is the duration until the next wake.
	SleepFor time.Duration
}

// RunCycle executes exactly one wake cycle and returns the sleep decision.
// Every path ends in either display-and-day-sleep or message-and-retry-sleep;
// nothing here is fatal to the device.
func RunCycle(ctx context.Context, deps Deps) Outcome {
	syncRes := deps.Policy.Run(ctx)

	if !syncRes.Proceed {
		// Countdowns from an untrusted clock are never shown.
		if err := deps.Renderer.RenderMessage(ctx, "Time sync failed", "Retrying shortly"); err != nil {
			appLog.Error("cycle: failed to render sync-failure message", err)
		}
		return Outcome{Retry: true, SleepFor: sleep.RetryInterval}
	}

	// Read the clock after the policy ran so a fresh correction is used.
	cfg := deps.Conf.Config()
	now := localNow(deps.Clock, cfg)

	events := cfg.Events
	if deps.Importer != nil && len(cfg.ICSImport) > 0 {
		events = icsimport.Merge(events, importEvents(ctx, deps, cfg))
	}

	resolved, skipped := occur.ResolveAll(events, now)
	for _, err := range skipped {
		appLog.Error("cycle: event skipped", err)
	}

	selection := rank.Rank(resolved, cfg.LookaheadDays)
	if err := deps.Renderer.Render(ctx, selection); err != nil {
		appLog.Error("cycle: render failed", err)
		return Outcome{Selection: selection, Retry: true, SleepFor: sleep.RetryInterval}
	}

	return Outcome{
		Rendered:  true,
		Selection: selection,
		SleepFor:  sleep.NextWake(now),
	}
}

func importEvents(ctx context.Context, deps Deps, cfg *config.Config) []model.EventDefinition {
	sources := make([]icsimport.Source, 0, len(cfg.ICSImport))
	for _, src := range cfg.ICSImport {
		sources = append(sources, icsimport.Source{ID: src.ID, URL: src.URL})
	}
	return icsimport.ImportAll(ctx, deps.Importer, sources)
}

// localNow reads the clock in the configured timezone.
func localNow(clk clock.Clock, cfg *config.Config) time.Time {
	now := clk.Now()
	if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
		now = now.In(loc)
	} else {
		appLog.Warn("cycle: unknown timezone, using clock location", "timezone", cfg.Timezone)
	}
	return now
}
