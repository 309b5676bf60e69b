// Package clock abstracts time for testability. Production code injects
// [Real]; tests inject [NewFake] and advance it deterministically.
//
// Every caller that needs time.Now or time.AfterFunc should hold a Clock
// instead of calling the time package directly, so expiry behavior can be
// exercised without wall-clock sleeps.
package clock

import "time"

// Clock provides the current time and one-shot scheduled callbacks.
type Clock interface {
	Now() time.Time

	// AfterFunc waits for duration d, then calls f in its own goroutine
	// (real clock) or synchronously during Advance (fake clock). The
	// returned Timer cancels the pending call with Stop. If d <= 0, f runs
	// at the next opportunity.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a scheduled one-shot callback handle.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped the timer; false means the timer already fired or was
	// stopped.
	Stop() bool
}

type realClock struct{}

type realTimer struct {
	t *time.Timer
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (r realTimer) Stop() bool { return r.t.Stop() }
