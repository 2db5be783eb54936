// Package clock provides the wall clock shared by the scraper loop and the
// reconciler's retry scheduler.
package clock

import "time"

// Clock is the time source services depend on so tests can drive it
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

// SystemClock is the production Clock. Now reports UTC, matching how block
// and donation timestamps are stored.
type SystemClock struct{}

var _ Clock = SystemClock{}

// After waits for d on the real clock
func (SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Now returns the current time in UTC
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
