// Package scheduler provides the single scheduled-callback abstraction used
// for both forfeiture timers and rematch expiry. Callbacks must re-validate
// the state they guard at fire time; a Cancel that loses the race against
// firing is indistinguishable from a late Cancel.
package scheduler

import "time"

type Task func()

// Handle identifies one scheduled task and allows cancelling it.
type Handle interface {
	// Cancel stops the task if it has not fired yet. It reports whether the
	// cancellation prevented the task from running.
	Cancel() bool
}

type Scheduler interface {
	Schedule(d time.Duration, task Task) Handle
}

// TimerScheduler runs tasks on real time.AfterFunc timers.
type TimerScheduler struct{}

func New() *TimerScheduler {
	return &TimerScheduler{}
}

func (s *TimerScheduler) Schedule(d time.Duration, task Task) Handle {
	return timerHandle{timer: time.AfterFunc(d, task)}
}

type timerHandle struct {
	timer *time.Timer
}

func (h timerHandle) Cancel() bool {
	return h.timer.Stop()
}
