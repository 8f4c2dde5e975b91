// Package clock abstracts the device clock. Production code injects the
// system clock; tests inject a fake with deterministic control.
//
// The hardware RTC survives deep sleep but not a full power loss, so a
// freshly powered device can report a time decades in the past. Plausible
// exists to detect that state.
package clock

import (
	"sync"
	"time"
)

// MinPlausibleYear is the earliest year the device clock can legitimately
// report. Anything earlier means the RTC lost its state across a power
// interruption and an authoritative sync is required.
const MinPlausibleYear = 2024

// Clock supplies current wall-clock time and accepts an authoritative fix.
type Clock interface {
	Now() time.Time
	Set(t time.Time) error
}

// Plausible reports whether t looks like a real current time rather than a
// post-power-loss epoch reset.
func Plausible(t time.Time) bool {
	return t.Year() >= MinPlausibleYear
}

// System is the real device clock. Now reads the OS clock; Set applies an
// authoritative fix via clock_settime on Linux and is a no-op error
// elsewhere (development hosts keep their own time).
type System struct{}

func (System) Now() time.Time { return time.Now() }

func (System) Set(t time.Time) error { return setSystemTime(t) }

// Fake is a settable, steppable clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake frozen at t.
func NewFake(t time.Time) *Fake {
	return &Fake{now: t}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Set(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
	return nil
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
