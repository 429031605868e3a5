package runtime

import (
	"sync"
	"time"
)

// manualScheduler never fires on its own; tests call Fire.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	scheduler *manualScheduler
	delay     time.Duration
	f         func()
	stopped   bool
	fired     bool
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{scheduler: s, delay: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.scheduler.mu.Lock()
	defer t.scheduler.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Fire runs every pending timer and returns how many ran.
func (s *manualScheduler) Fire() int {
	return s.fire(false)
}

// FireAll also runs stopped timers, as if their callback was already in
// flight when Stop was called.
func (s *manualScheduler) FireAll() int {
	return s.fire(true)
}

func (s *manualScheduler) fire(includeStopped bool) int {
	s.mu.Lock()
	var due []*manualTimer
	for _, t := range s.timers {
		if t.fired || (t.stopped && !includeStopped) {
			continue
		}
		t.fired = true
		due = append(due, t)
	}
	s.mu.Unlock()
	for _, t := range due {
		t.f()
	}
	return len(due)
}

func (s *manualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}
