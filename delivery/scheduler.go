package delivery

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler defers work. The returned function stops the pending call and
// reports whether it did so before fn ran.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

type clockScheduler struct {
	clock clockwork.Clock
}

// NewClockScheduler schedules on clock; nil uses the real clock.
func NewClockScheduler(clock clockwork.Clock) Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return clockScheduler{clock: clock}
}

func (s clockScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	if d < 0 {
		d = 0
	}
	t := s.clock.AfterFunc(d, fn)
	return t.Stop
}
