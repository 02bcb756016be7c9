// Package schedule provides the one-shot timer primitive that drives phase
// transitions.
package schedule

import (
	"sort"
	"sync"
	"time"
)

// Scheduler runs fn once after delay. Callbacks may run concurrently with
// each other; callers serialise per session themselves.
type Scheduler interface {
	ScheduleOnce(delay time.Duration, fn func())
}

// Timers is a Scheduler backed by time.AfterFunc. It tracks live timers so
// they can all be stopped on shutdown.
type Timers struct {
	mu       sync.Mutex
	seq      uint64
	live     map[uint64]*time.Timer
	stopped  bool
	stopOnce sync.Once
}

// NewTimers creates an empty timer set.
func NewTimers() *Timers {
	return &Timers{live: make(map[uint64]*time.Timer)}
}

// ScheduleOnce implements Scheduler. After Stop it drops the callback.
func (t *Timers) ScheduleOnce(delay time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.seq++
	id := t.seq
	t.live[id] = time.AfterFunc(delay, func() {
		t.mu.Lock()
		_, ok := t.live[id]
		delete(t.live, id)
		t.mu.Unlock()
		if ok {
			fn()
		}
	})
}

// Pending returns the number of timers that have not fired.
func (t *Timers) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// Stop cancels all pending timers. Safe to call multiple times.
func (t *Timers) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.stopped = true
		for id, tm := range t.live {
			tm.Stop()
			delete(t.live, id)
		}
	})
}

type job struct {
	at  time.Duration
	seq int
	fn  func()
}

// Manual is a Scheduler driven by Advance, for tests.
type Manual struct {
	mu   sync.Mutex
	now  time.Duration
	seq  int
	jobs []job
}

// NewManual creates a manual scheduler at time zero.
func NewManual() *Manual {
	return &Manual{}
}

// ScheduleOnce implements Scheduler.
func (m *Manual) ScheduleOnce(delay time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.jobs = append(m.jobs, job{at: m.now + delay, seq: m.seq, fn: fn})
}

// Advance moves the clock forward by d and runs every callback that became
// due, in due order. Callbacks scheduled by callbacks run too if they fall
// inside the window. It returns the number of callbacks run.
func (m *Manual) Advance(d time.Duration) int {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	ran := 0
	for {
		m.mu.Lock()
		sort.SliceStable(m.jobs, func(i, j int) bool {
			if m.jobs[i].at == m.jobs[j].at {
				return m.jobs[i].seq < m.jobs[j].seq
			}
			return m.jobs[i].at < m.jobs[j].at
		})
		if len(m.jobs) == 0 || m.jobs[0].at > target {
			m.now = target
			m.mu.Unlock()
			return ran
		}
		next := m.jobs[0]
		m.jobs = m.jobs[1:]
		m.now = next.at
		m.mu.Unlock()

		next.fn()
		ran++
	}
}

// Pending returns the number of callbacks not yet run.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// Now returns the manual clock's elapsed time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}
