/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

// Package autosubmit decides when typed input is submitted without an
// explicit confirmation.
package autosubmit

import (
	"sync"
	"time"
)

// Request is an automatic submission handed to the consumer. Seq
// identifies the keystroke that scheduled it.
type Request struct {
	Seq   uint64
	Input string
}

// Trigger is a cancelable debounce timer. Every Schedule supersedes the
// previous one; when the delay elapses without a newer keystroke, fire is
// called with the request from a separate goroutine.
//
// At most one request is in flight at a time. The consumer calls Done once
// it has handled a request; a timer that expires while another request is
// in flight is parked and dispatched by Done if it is still current.
type Trigger struct {
	fire func(Request)

	mu       sync.Mutex
	delay    time.Duration
	timer    *time.Timer
	seq      uint64
	inFlight bool
	parked   *Request
}

// New returns a Trigger that waits delay after the last keystroke. A zero
// delay dispatches as soon as possible.
func New(delay time.Duration, fire func(Request)) *Trigger {
	return &Trigger{
		delay: max(delay, 0),
		fire:  fire,
	}
}

// SetDelay changes the delay used by later calls to Schedule.
func (t *Trigger) SetDelay(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.delay = max(d, 0)
}

func (t *Trigger) Delay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.delay
}

// Schedule arms the timer for input, replacing any pending request.
func (t *Trigger) Schedule(input string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.seq++

	req := Request{Seq: t.seq, Input: input}
	t.timer = time.AfterFunc(t.delay, func() {
		t.dispatch(req)
	})

	return req.Seq
}

// Cancel stops the pending timer and invalidates any request that was
// dispatched but not yet claimed.
func (t *Trigger) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.seq++
}

// Claim reports whether a dispatched request is still the latest one. The
// consumer must call Done afterwards either way.
func (t *Trigger) Claim(seq uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return seq == t.seq
}

// Done marks the in-flight request as handled.
func (t *Trigger) Done() {
	t.mu.Lock()

	t.inFlight = false
	next := t.parked
	t.parked = nil

	if next == nil || next.Seq != t.seq {
		t.mu.Unlock()
		return
	}

	t.inFlight = true
	t.mu.Unlock()

	go t.fire(*next)
}

// Pending reports whether a request is waiting on its timer or parked.
func (t *Trigger) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.timer != nil || t.parked != nil
}

func (t *Trigger) InFlight() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.inFlight
}

func (t *Trigger) dispatch(req Request) {
	t.mu.Lock()

	if req.Seq != t.seq {
		t.mu.Unlock()
		return
	}
	t.timer = nil

	if t.inFlight {
		t.parked = &req
		t.mu.Unlock()
		return
	}

	t.inFlight = true
	t.mu.Unlock()

	t.fire(req)
}

func (t *Trigger) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.parked = nil
}
