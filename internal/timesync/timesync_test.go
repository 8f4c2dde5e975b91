package timesync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epdday/internal/clock"
	"epdday/internal/syncstate"
)

var plausibleNow = time.Date(2026, time.August, 29, 10, 0, 0, 0, time.UTC)

type fakeConnector struct {
	failFirst   int // fail this many Connect calls before succeeding
	connects    int
	disconnects int
}

func (f *fakeConnector) Connect(context.Context) error {
	f.connects++
	if f.connects <= f.failFirst {
		return errors.New("wifi association failed")
	}
	return nil
}

func (f *fakeConnector) Disconnect() { f.disconnects++ }

type fakeProvider struct {
	t       time.Time
	err     error
	fetches int
}

func (f *fakeProvider) Fetch(context.Context, time.Duration) (time.Time, error) {
	f.fetches++
	if f.err != nil {
		return time.Time{}, f.err
	}
	return f.t, nil
}

func TestNeedsSync(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		lastSync time.Time
		want     bool
	}{
		{"never synced", plausibleNow, time.Time{}, true},
		{"fresh", plausibleNow, plausibleNow.Add(-time.Hour), false},
		{"just under a week", plausibleNow, plausibleNow.Add(-SyncInterval + time.Minute), false},
		{"over a week", plausibleNow, plausibleNow.Add(-SyncInterval - time.Minute), true},
		{"implausible clock", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), plausibleNow.Add(-time.Hour), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NeedsSync(tc.now, tc.lastSync))
		})
	}
}

func TestRun_NoSyncNeeded(t *testing.T) {
	clk := clock.NewFake(plausibleNow)
	store := syncstate.NewMemory(plausibleNow.Add(-time.Hour))
	prov := &fakeProvider{}
	p := New(clk, store, Nop{}, prov, 3, time.Second)

	res := p.Run(context.Background())

	assert.Equal(t, StateNoSyncNeeded, res.State)
	assert.True(t, res.Proceed)
	assert.False(t, res.Corrected)
	assert.Zero(t, prov.fetches, "no network traffic when the clock is trusted")
}

func TestRun_FirstRunSyncsRegardlessOfClock(t *testing.T) {
	fixed := plausibleNow.Add(3 * time.Second)
	clk := clock.NewFake(plausibleNow)
	store := syncstate.NewMemory(time.Time{})
	conn := &fakeConnector{}
	p := New(clk, store, conn, &fakeProvider{t: fixed}, 3, time.Second)

	res := p.Run(context.Background())

	require.Equal(t, StateSynced, res.State)
	assert.True(t, res.Corrected)
	assert.True(t, res.Proceed)
	assert.Equal(t, fixed, clk.Now())
	last, _ := store.LastSync()
	assert.Equal(t, fixed, last)
	assert.Equal(t, 1, conn.disconnects)
}

func TestRun_ImplausibleClockForcesSync(t *testing.T) {
	epoch := time.Date(1970, 1, 1, 0, 2, 0, 0, time.UTC)
	clk := clock.NewFake(epoch)
	store := syncstate.NewMemory(epoch.Add(-time.Hour))
	p := New(clk, store, Nop{}, &fakeProvider{t: plausibleNow}, 3, time.Second)

	res := p.Run(context.Background())

	require.Equal(t, StateSynced, res.State)
	assert.Equal(t, plausibleNow, clk.Now())
}

func TestRun_ConnectRetriesWithinBudget(t *testing.T) {
	clk := clock.NewFake(plausibleNow)
	store := syncstate.NewMemory(time.Time{})
	conn := &fakeConnector{failFirst: 2}
	p := New(clk, store, conn, &fakeProvider{t: plausibleNow}, 3, time.Second)

	res := p.Run(context.Background())

	assert.Equal(t, StateSynced, res.State)
	assert.Equal(t, 3, conn.connects)
}

func TestRun_ConnectivityFailureLeavesStateUntouched(t *testing.T) {
	clk := clock.NewFake(plausibleNow)
	store := syncstate.NewMemory(time.Time{})
	conn := &fakeConnector{failFirst: 99}
	prov := &fakeProvider{t: plausibleNow.Add(time.Hour)}
	p := New(clk, store, conn, prov, 3, time.Second)

	res := p.Run(context.Background())

	assert.Equal(t, StateSyncFailed, res.State)
	assert.False(t, res.Proceed, "mandatory sync failed: cycle must not rank/render")
	assert.False(t, res.Corrected)
	assert.Equal(t, 3, conn.connects, "attempt budget is bounded")
	assert.Zero(t, prov.fetches)
	assert.Equal(t, plausibleNow, clk.Now(), "clock untouched")
	last, _ := store.LastSync()
	assert.True(t, last.IsZero(), "sync timestamp untouched")
}

func TestRun_FetchFailureDisconnectsAndLeavesStateUntouched(t *testing.T) {
	clk := clock.NewFake(plausibleNow)
	store := syncstate.NewMemory(time.Time{})
	conn := &fakeConnector{}
	prov := &fakeProvider{err: errors.New("ntp timeout")}
	p := New(clk, store, conn, prov, 2, time.Second)

	res := p.Run(context.Background())

	assert.Equal(t, StateSyncFailed, res.State)
	assert.False(t, res.Proceed)
	assert.Equal(t, 2, prov.fetches, "fetch bounded by attempt budget")
	assert.Equal(t, conn.connects, conn.disconnects, "no dangling network state")
	assert.Equal(t, plausibleNow, clk.Now())
	last, _ := store.LastSync()
	assert.True(t, last.IsZero())
}

func TestRun_CancelledContextStopsAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clk := clock.NewFake(plausibleNow)
	store := syncstate.NewMemory(time.Time{})
	prov := &fakeProvider{t: plausibleNow}
	p := New(clk, store, Nop{}, prov, 3, time.Second)

	res := p.Run(ctx)

	assert.Equal(t, StateSyncFailed, res.State)
	assert.Zero(t, prov.fetches)
}
