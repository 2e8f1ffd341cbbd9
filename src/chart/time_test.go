package chart

import (
	"time"

	"github.com/xmidt-org/chronon"
)

// fakeTimer creates a fake, controllable TimerFunc
// from the given FakeClock.
func fakeTimer(fc *chronon.FakeClock) TimerFunc {
	return func(d time.Duration) (<-chan time.Time, func() bool) {
		ft := fc.NewTimer(d)
		return ft.C(), ft.Stop
	}
}
