// Package scheduler implements the single-threaded cooperative timer
// service each participant owns (spec.md §4.8, C9): a mutex-guarded,
// deadline-ordered queue of timers serviced by one goroutine. External
// callers insert or cancel timers from any goroutine; the service thread
// wakes on whichever comes first, a new/changed deadline or a stop signal,
// using a channel in place of the condition variable spec.md describes —
// the same wake-on-deadline-or-notification semantics, expressed the way
// Go timer loops normally are.
package scheduler
