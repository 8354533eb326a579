package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// idleWait is how long the service goroutine blocks when the queue is
// empty, just to re-check for a stop signal periodically; a non-empty
// queue always wakes it sooner via the computed deadline.
const idleWait = time.Hour

// Scheduler is one participant's timer service (spec.md §4.8 C9): a
// mutex-guarded, deadline-ordered queue serviced by a single goroutine.
type Scheduler struct {
	mu    sync.Mutex
	queue timerHeap
	wake  chan struct{}
	stop  chan struct{}
	wg    sync.WaitGroup
	log   *logrus.Entry
}

// New returns a Scheduler; call Start to begin servicing timers.
func New() *Scheduler {
	return &Scheduler{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		log:  logrus.WithField("component", "rtps-scheduler"),
	}
}

// NewTimer returns a Timer bound to this scheduler, initially INACTIVE.
func (s *Scheduler) NewTimer(callback func()) *Timer {
	return &Timer{scheduler: s, callback: callback, index: -1}
}

// Start begins the service goroutine.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Stop signals the service goroutine to exit and waits for it to do so.
// Timers still WAITING are left in that state; the scheduler is not
// reusable after Stop.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) pushTimer(t *Timer)   { heap.Push(&s.queue, t) }
func (s *Scheduler) removeTimer(t *Timer) { heap.Remove(&s.queue, t.index) }
func (s *Scheduler) fixTimer(t *Timer)    { heap.Fix(&s.queue, t.index) }

// loop is the single service goroutine: sleep until the nearest deadline
// (or idleWait, if idle), wake early on a signal, then fire everything due.
func (s *Scheduler) loop() {
	defer s.wg.Done()

	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	for {
		s.mu.Lock()
		wait := idleWait
		if s.queue.Len() > 0 {
			wait = time.Until(s.queue[0].deadline)
			if wait < 0 {
				wait = 0
			}
		}
		s.mu.Unlock()

		resetTimer(timer, wait)

		select {
		case <-s.stop:
			return
		case <-s.wake:
		case <-timer.C:
		}

		s.fireDue()
	}
}

// fireDue pops and runs every timer whose deadline has passed, releasing
// the mutex around each callback invocation so a callback may call
// Restart/Cancel on any timer, including itself, without deadlocking
// (spec.md §4.8: "cancel_timer may race with firing and must not deadlock
// the scheduler").
func (s *Scheduler) fireDue() {
	now := time.Now()
	for {
		s.mu.Lock()
		if s.queue.Len() == 0 || s.queue[0].deadline.After(now) {
			s.mu.Unlock()
			return
		}
		t := heap.Pop(&s.queue).(*Timer)
		t.state = StateInactive
		cb := t.callback
		s.mu.Unlock()

		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.WithField("panic", r).Error("timer callback panicked")
				}
			}()
			cb()
		}()
	}
}

// resetTimer stops and drains t before resetting it to d, the standard Go
// idiom for reusing a time.Timer across loop iterations.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
