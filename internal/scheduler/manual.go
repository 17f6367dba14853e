package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler for tests: tasks fire only when the test advances
// virtual time, so timer-driven paths run deterministically.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	nextID  int
	pending map[int]*manualTask
}

type manualTask struct {
	id       int
	deadline time.Duration
	task     Task
}

func NewManual() *Manual {
	return &Manual{pending: make(map[int]*manualTask)}
}

func (m *Manual) Schedule(d time.Duration, task Task) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	t := &manualTask{id: m.nextID, deadline: m.now + d, task: task}
	m.pending[t.id] = t
	return &manualHandle{sched: m, id: t.id}
}

// Advance moves virtual time forward and runs every task whose deadline has
// passed, in deadline order. Tasks run without the internal lock held, so
// they may schedule or cancel freely.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d

	var due []*manualTask
	for _, t := range m.pending {
		if t.deadline <= m.now {
			due = append(due, t)
		}
	}
	for _, t := range due {
		delete(m.pending, t.id)
	}
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline != due[j].deadline {
			return due[i].deadline < due[j].deadline
		}
		return due[i].id < due[j].id
	})
	for _, t := range due {
		t.task()
	}
}

// Pending returns the number of tasks that have not fired or been cancelled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

type manualHandle struct {
	sched *Manual
	id    int
}

func (h *manualHandle) Cancel() bool {
	h.sched.mu.Lock()
	defer h.sched.mu.Unlock()

	if _, ok := h.sched.pending[h.id]; !ok {
		return false
	}
	delete(h.sched.pending, h.id)
	return true
}
