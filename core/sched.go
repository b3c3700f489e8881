package core

import "time"

// Scheduler defers work. The service runs fit retries and focus handoffs
// through it so tests can drive deferred work deterministically.
type Scheduler interface {
	After(d time.Duration, fn func())
}

type timerScheduler struct{}

// NewTimerScheduler returns a Scheduler backed by time.AfterFunc.
func NewTimerScheduler() Scheduler { return timerScheduler{} }

func (timerScheduler) After(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}
