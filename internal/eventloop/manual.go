package eventloop

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler driven by a virtual clock. Nothing runs until Advance or
// Flush is called, which makes timer-driven code deterministic in tests.
type Manual struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*manualTimer
	queue  []func()
}

// NewManual creates a Manual scheduler at virtual time zero.
func NewManual() *Manual {
	return &Manual{}
}

// Post queues fn until the next Flush or Advance.
func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()
}

// AfterFunc schedules fn at now+d on the virtual clock.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{owner: m, at: m.now + d, seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

// Now returns the elapsed virtual time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of live timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Advance moves the clock forward by d, running due timers in deadline order and
// draining posted tasks after each one.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	m.Flush()
	for {
		m.mu.Lock()
		sort.Slice(m.timers, func(i, j int) bool {
			if m.timers[i].at != m.timers[j].at {
				return m.timers[i].at < m.timers[j].at
			}
			return m.timers[i].seq < m.timers[j].seq
		})
		if len(m.timers) == 0 || m.timers[0].at > target {
			m.now = target
			m.mu.Unlock()
			return
		}
		next := m.timers[0]
		m.timers = m.timers[1:]
		m.now = next.at
		m.mu.Unlock()

		next.fn()
		m.Flush()
	}
}

// Flush runs queued tasks, including ones queued while flushing.
func (m *Manual) Flush() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		fn()
	}
}

type manualTimer struct {
	owner *Manual
	at    time.Duration
	seq   int
	fn    func()
}

func (t *manualTimer) Stop() bool {
	m := t.owner
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, other := range m.timers {
		if other == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return true
		}
	}
	return false
}
