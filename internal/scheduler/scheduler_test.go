package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerSchedulerFiresOnce(t *testing.T) {
	s := New()

	var fired atomic.Int32
	done := make(chan struct{})
	s.Schedule(10*time.Millisecond, func() {
		fired.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never fired")
	}
	assert.Equal(t, int32(1), fired.Load())
}

func TestTimerSchedulerCancel(t *testing.T) {
	s := New()

	var fired atomic.Int32
	h := s.Schedule(time.Hour, func() { fired.Add(1) })

	assert.True(t, h.Cancel())
	assert.False(t, h.Cancel(), "second cancel reports nothing prevented")
	assert.Equal(t, int32(0), fired.Load())
}

func TestManualAdvanceRunsDueTasksInOrder(t *testing.T) {
	m := NewManual()

	var order []int
	m.Schedule(30*time.Millisecond, func() { order = append(order, 3) })
	m.Schedule(10*time.Millisecond, func() { order = append(order, 1) })
	m.Schedule(20*time.Millisecond, func() { order = append(order, 2) })

	m.Advance(5 * time.Millisecond)
	assert.Empty(t, order)

	m.Advance(25 * time.Millisecond)
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, 1, m.Pending())

	m.Advance(time.Minute)
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, m.Pending())
}

func TestManualCancelPreventsFiring(t *testing.T) {
	m := NewManual()

	fired := false
	h := m.Schedule(time.Second, func() { fired = true })

	require.True(t, h.Cancel())
	m.Advance(time.Minute)

	assert.False(t, fired)
	assert.False(t, h.Cancel())
}

func TestManualTaskCanReschedule(t *testing.T) {
	m := NewManual()

	fired := false
	m.Schedule(time.Second, func() {
		m.Schedule(time.Second, func() { fired = true })
	})

	m.Advance(time.Second)
	assert.Equal(t, 1, m.Pending())

	m.Advance(time.Second)
	assert.True(t, fired)
}
