// Package timesync decides whether the device may trust its clock this wake
// cycle and, when it may not, obtains an authoritative network time fix.
package timesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"epdday/internal/clock"
	appLog "epdday/internal/log"
	"epdday/internal/syncstate"
)

// SyncInterval is how stale the last fix may be before a new one is
// mandatory.
const SyncInterval = 7 * 24 * time.Hour

// State names the steps of the per-cycle sync decision. A cycle runs
// Idle → Evaluating → {NoSyncNeeded | SyncInProgress} → {Synced | SyncFailed}.
type State string

const (
	StateIdle           State = "idle"
	StateEvaluating     State = "evaluating"
	StateNoSyncNeeded   State = "no_sync_needed"
	StateSyncInProgress State = "sync_in_progress"
	StateSynced         State = "synced"
	StateSyncFailed     State = "sync_failed"
)

var (
	// ErrConnectivity marks a failed attempt to bring the network up.
	ErrConnectivity = errors.New("network connectivity failed")
	// ErrTimeFetch marks a failed time fix from the provider.
	ErrTimeFetch = errors.New("time fetch failed")
)

// Connector brings network connectivity up and down around a sync. The
// network stack itself is an external collaborator; on hosts where the OS
// owns the link, use Nop.
type Connector interface {
	Connect(ctx context.Context) error
	Disconnect()
}

// Nop is a Connector for always-connected hosts.
type Nop struct{}

func (Nop) Connect(context.Context) error { return nil }
func (Nop) Disconnect()                   {}

// TimeProvider fetches an authoritative timestamp within the given budget.
type TimeProvider interface {
	Fetch(ctx context.Context, timeout time.Duration) (time.Time, error)
}

// Result tells the caller what the policy did this cycle.
type Result struct {
	// State is the terminal state reached: NoSyncNeeded, Synced or SyncFailed.
	State State

	// Corrected is true when a real-time correction was applied, so the
	// caller should prefer a fresh clock read over any earlier one.
	Corrected bool

	// Proceed is false when sync was mandatory and failed: ranking and
	// rendering must be skipped and the cycle should take the short retry
	// sleep. Countdowns from an untrusted clock are never shown.
	Proceed bool
}

// Policy is the sync decision procedure.
type Policy struct {
	clk      clock.Clock
	store    syncstate.Store
	conn     Connector
	provider TimeProvider

	// attempts bounds connect+fetch tries per cycle; timeout bounds each
	// fetch.
	attempts int
	timeout  time.Duration
}

// New builds a Policy. attempts and timeout must be positive; the config
// layer normalizes them.
func New(clk clock.Clock, store syncstate.Store, conn Connector, provider TimeProvider, attempts int, timeout time.Duration) *Policy {
	return &Policy{
		clk:      clk,
		store:    store,
		conn:     conn,
		provider: provider,
		attempts: attempts,
		timeout:  timeout,
	}
}

// NeedsSync reports whether a fix is mandatory before ranking: never synced,
// fix older than SyncInterval, or a clock year that signals RTC loss.
func NeedsSync(now, lastSync time.Time) bool {
	if lastSync.IsZero() {
		return true
	}
	if now.Sub(lastSync) > SyncInterval {
		return true
	}
	return !clock.Plausible(now)
}

// Run evaluates the policy and, when needed, performs the sync.
//
// Side-effect discipline: the clock and the stored sync timestamp are only
// mutated on a fully successful fix. Any failure path disconnects partial
// network state and leaves both untouched.
func (p *Policy) Run(ctx context.Context) Result {
	now := p.clk.Now()

	lastSync, err := p.store.LastSync()
	if err != nil {
		// An unreadable state file is indistinguishable from first run.
		appLog.Error("timesync: reading last sync failed, treating as never synced", err)
		lastSync = time.Time{}
	}

	if !NeedsSync(now, lastSync) {
		appLog.Debug("timesync: clock trusted", "last_sync", lastSync.Format(time.RFC3339))
		return Result{State: StateNoSyncNeeded, Proceed: true}
	}

	appLog.Info("timesync: sync required",
		"never_synced", lastSync.IsZero(),
		"age", now.Sub(lastSync).String(),
		"clock_plausible", clock.Plausible(now),
	)

	fixed, err := p.fetchFix(ctx)
	if err != nil {
		appLog.Error("timesync: sync failed", err, "attempts", p.attempts)
		return Result{State: StateSyncFailed}
	}

	if err := p.clk.Set(fixed); err != nil {
		// The fix could not be applied; the clock is still untrusted.
		appLog.Error("timesync: applying time fix failed", err)
		return Result{State: StateSyncFailed}
	}

	if err := p.store.SetLastSync(fixed); err != nil {
		// The clock is already corrected; next cycle simply syncs again.
		appLog.Error("timesync: persisting sync timestamp failed", err)
	}

	appLog.Info("timesync: synced", "time", fixed.Format(time.RFC3339))
	return Result{State: StateSynced, Corrected: true, Proceed: true}
}

// fetchFix runs the bounded connect+fetch attempt loop. The connection is
// always torn down before returning, success or not.
func (p *Policy) fetchFix(ctx context.Context) (time.Time, error) {
	var lastErr error

	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return time.Time{}, err
		}

		if err := p.conn.Connect(ctx); err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrConnectivity, err)
			appLog.Warn("timesync: connect attempt failed", "attempt", attempt, "err", err)
			continue
		}

		fixed, err := p.provider.Fetch(ctx, p.timeout)
		p.conn.Disconnect()
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrTimeFetch, err)
			appLog.Warn("timesync: time fetch attempt failed", "attempt", attempt, "err", err)
			continue
		}

		return fixed, nil
	}

	return time.Time{}, lastErr
}
