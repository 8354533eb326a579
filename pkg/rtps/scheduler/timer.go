package scheduler

import "time"

// State is a Timer's position in the scheduler's lifecycle (spec.md §4.8:
// "INACTIVE → READY (enqueued) → WAITING (in queue) → back to INACTIVE
// after fire or cancel"). This implementation collapses READY into the
// single atomic act of inserting into the queue, since nothing observes a
// Timer between those two states.
type State int

const (
	StateInactive State = iota
	StateWaiting
)

func (s State) String() string {
	if s == StateWaiting {
		return "WAITING"
	}
	return "INACTIVE"
}

// Timer is one scheduled callback. Timers are one-shot: a callback that
// wants to run again calls Restart on itself before returning (spec.md
// §4.8: "callbacks ... may reschedule themselves").
type Timer struct {
	scheduler *Scheduler
	callback  func()

	state    State
	deadline time.Time
	index    int // position in the scheduler's heap, -1 when not queued
}

// State reports the timer's current lifecycle state.
func (t *Timer) State() State {
	t.scheduler.mu.Lock()
	defer t.scheduler.mu.Unlock()
	return t.state
}

// Restart (re)schedules the timer to fire after timeout, replacing any
// pending deadline. Idempotent: calling it repeatedly, whether the timer
// is currently INACTIVE or WAITING, always results in exactly one pending
// fire at the new deadline (spec.md §4.8: "restart_timer(timeout?) is
// idempotent").
func (t *Timer) Restart(timeout time.Duration) {
	s := t.scheduler
	s.mu.Lock()
	t.deadline = time.Now().Add(timeout)
	if t.state == StateWaiting {
		s.fixTimer(t)
	} else {
		t.state = StateWaiting
		s.pushTimer(t)
	}
	s.mu.Unlock()
	s.signal()
}

// Cancel removes the timer from the queue if pending. Per spec.md §4.8's
// cancellation contract, once Cancel returns and the callback was not
// already executing, it will not fire for the period that was pending —
// Cancel holds the same mutex the firing loop pops under, so it can never
// race a pop, only a callback already in flight (which it does not
// interrupt).
func (t *Timer) Cancel() {
	s := t.scheduler
	s.mu.Lock()
	if t.state == StateWaiting {
		s.removeTimer(t)
		t.state = StateInactive
	}
	s.mu.Unlock()
}
