package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerFiresAfterTimeout(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop()

	fired := make(chan struct{}, 1)
	timer := s.NewTimer(func() { fired <- struct{}{} })
	timer.Restart(10 * time.Millisecond)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestTimerCancelPreventsFire(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop()

	var fired atomic.Bool
	timer := s.NewTimer(func() { fired.Store(true) })
	timer.Restart(30 * time.Millisecond)
	timer.Cancel()
	assert.Equal(t, StateInactive, timer.State())

	time.Sleep(80 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestTimerRestartIsIdempotentAndReplacesDeadline(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop()

	var count atomic.Int32
	timer := s.NewTimer(func() { count.Add(1) })

	timer.Restart(time.Hour)
	timer.Restart(time.Hour)
	timer.Restart(10 * time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), count.Load())
}

func TestCallbackCanRescheduleItself(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop()

	var count atomic.Int32
	var timer *Timer
	done := make(chan struct{})
	timer = s.NewTimer(func() {
		n := count.Add(1)
		if n < 3 {
			timer.Restart(5 * time.Millisecond)
		} else {
			close(done)
		}
	})
	timer.Restart(5 * time.Millisecond)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("periodic reschedule did not complete")
	}
	assert.Equal(t, int32(3), count.Load())
}

func TestManyTimersFireInDeadlineOrder(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(5)

	for i := 4; i >= 0; i-- {
		i := i
		timer := s.NewTimer(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
		timer.Restart(time.Duration(i+1) * 5 * time.Millisecond)
	}

	waitTimeout(t, &wg, time.Second)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestStopDoesNotDeadlockWithPendingTimers(t *testing.T) {
	s := New()
	s.Start()
	timer := s.NewTimer(func() {})
	timer.Restart(time.Hour)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for timers")
	}
}
