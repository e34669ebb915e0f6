// Package clock abstracts the timers and sleeps used by the IRC engine so
// that the NickServ timeout, join pacing and retry delays can be driven
// deterministically in tests.
package clock

import (
	"context"
	"time"
)

// Clock is the subset of the time package the engine uses
type Clock interface {
	Now() time.Time

	// After returns a channel that receives once d has elapsed.
	After(d time.Duration) <-chan time.Time

	// AfterFunc calls f in its own goroutine after d (Real) or during
	// Advance (Fake). The returned Timer cancels a pending call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancelable one-shot
type Timer interface {
	// Stop prevents the timer from firing. It returns false if the
	// timer already fired or was stopped.
	Stop() bool
}

// Sleep waits for d on c, returning early with ctx's error if ctx ends first.
func Sleep(ctx context.Context, c Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.After(d):
		return nil
	}
}

// Real returns the wall clock
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
