package mailer

import (
	"sync"
	"time"
)

// monitor fires check once per interval while armed. Pauses nest; the
// timer is only re-armed by schedule or by the last resume.
type monitor struct {
	timer    *time.Timer
	check    func()
	interval time.Duration
	paused   int
	mu       sync.Mutex
}

func newMonitor(interval time.Duration, check func()) *monitor {
	return &monitor{interval: interval, check: check}
}

// schedule (re)arms the timer unless disabled or paused.
func (mo *monitor) schedule() {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	mo.armLocked()
}

func (mo *monitor) armLocked() {
	if mo.interval <= 0 || mo.paused > 0 {
		return
	}
	if mo.timer != nil {
		mo.timer.Stop()
	}
	mo.timer = time.AfterFunc(mo.interval, mo.check)
}

func (mo *monitor) pause() {
	mo.mu.Lock()
	defer mo.mu.Unlock()

	mo.paused++
	if mo.timer != nil {
		mo.timer.Stop()
		mo.timer = nil
	}
}

// resume lifts one pause. The timer is re-armed only when a session
// survived the paused operation.
func (mo *monitor) resume(connected bool) {
	mo.mu.Lock()
	defer mo.mu.Unlock()

	if mo.paused > 0 {
		mo.paused--
	}
	if connected {
		mo.armLocked()
	}
}

func (mo *monitor) isPaused() bool {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	return mo.paused > 0
}

func (mo *monitor) stop() {
	mo.mu.Lock()
	defer mo.mu.Unlock()

	if mo.timer != nil {
		mo.timer.Stop()
		mo.timer = nil
	}
}
