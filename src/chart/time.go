package chart

import "time"

// TimerFunc is a factory closure for a timer channel and the associated Stop function.
type TimerFunc func(time.Duration) (<-chan time.Time, func() bool)

// DefaultTimer is the default TimerFunc closure used to produce
// a timer channel and stop function.
func DefaultTimer(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}
