// Copyright 2024 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package submissiontimer implements the debounced submission trigger
// (§4.3): a three-state timer that fires at most once per quiet period,
// restarting its countdown every time new activity arrives while idle, and
// collapsing any activity that arrives while it is already counting down
// into a single pending trigger.
package submissiontimer

import (
	"sync"
	"time"
)

// state is the timer's three-state machine.
type state int

const (
	idle      state = iota // nothing scheduled
	active                 // counting down to a fire
	triggered              // fire callback running; NotifyActive is ignored until it returns to idle
)

// Clock abstracts time so tests can drive the timer deterministically,
// grounded on the same seam the teacher's core/blockchain.go tests use for
// injectable time sources.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Timer debounces a stream of NotifyActive calls into a single fire after
// quiet elapses without a new notification, unless Trigger is called to
// force an immediate fire. It is safe for concurrent use.
type Timer struct {
	quiet time.Duration
	clock Clock
	fire  func()

	// opMu serializes NotifyActive/Trigger/Clear against each other, so at
	// most one of them is ever cancelling-and-waiting on the countdown
	// goroutine at a time.
	opMu sync.Mutex

	mu       sync.Mutex
	st       state
	cancelCh chan struct{} // closed to cancel the in-flight countdown goroutine
	doneCh   chan struct{} // closed by the countdown goroutine when it returns
}

// New builds a Timer that calls fire after quiet elapses from the last
// NotifyActive call, or immediately on Trigger.
func New(quiet time.Duration, fire func()) *Timer {
	return &Timer{quiet: quiet, clock: realClock{}, fire: fire, st: idle}
}

// NewWithClock is New with an injectable Clock, used by tests.
func NewWithClock(quiet time.Duration, clock Clock, fire func()) *Timer {
	return &Timer{quiet: quiet, clock: clock, fire: fire, st: idle}
}

// NotifyActive records that new activity happened. From idle it starts the
// countdown; while already counting down it restarts the countdown from
// now (debounce); while triggered it is a no-op, since a fire is already
// pending delivery.
func (t *Timer) NotifyActive() {
	t.opMu.Lock()
	defer t.opMu.Unlock()

	t.mu.Lock()
	st := t.st
	t.mu.Unlock()

	switch st {
	case idle:
		t.mu.Lock()
		t.st = active
		t.startCountdown()
		t.mu.Unlock()
	case active:
		t.cancelAndWait()
		t.mu.Lock()
		t.st = active
		t.startCountdown()
		t.mu.Unlock()
	case triggered:
		// already scheduled to fire; nothing to debounce.
	}
}

// Trigger forces an immediate fire regardless of state, then returns to
// idle. The aggregator calls it once enough actions are eligible to fill
// an aggregate, so there is no reason to wait out the quiet period.
func (t *Timer) Trigger() {
	t.opMu.Lock()
	defer t.opMu.Unlock()

	t.cancelAndWait()
	t.mu.Lock()
	t.st = idle
	t.mu.Unlock()
	t.fire()
}

// Clear cancels any in-flight countdown and returns the timer to idle
// without firing. Used once the caller has acted on a fire (or on
// shutdown) so a stale countdown doesn't double-fire.
func (t *Timer) Clear() {
	t.opMu.Lock()
	defer t.opMu.Unlock()

	t.cancelAndWait()
	t.mu.Lock()
	t.st = idle
	t.mu.Unlock()
}

// cancelAndWait cancels the in-flight countdown goroutine, if any, and
// waits for it to return. Callers must hold opMu, so at most one
// cancellation is ever outstanding, and must not hold t.mu across the
// call: the countdown goroutine needs t.mu itself to notice a fire or a
// cancellation and exit, so waiting on it while holding t.mu would
// deadlock against it.
func (t *Timer) cancelAndWait() {
	t.mu.Lock()
	if t.st != active {
		t.mu.Unlock()
		return
	}
	cancelCh, doneCh := t.cancelCh, t.doneCh
	t.mu.Unlock()

	close(cancelCh)
	<-doneCh
}

// startCountdown must be called with t.mu held; it launches the goroutine
// that waits out the quiet period, or a cancellation.
func (t *Timer) startCountdown() {
	t.cancelCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	cancelCh, doneCh := t.cancelCh, t.doneCh
	go func() {
		defer close(doneCh)
		select {
		case <-t.clock.After(t.quiet):
			t.mu.Lock()
			fire := t.st == active
			if fire {
				t.st = triggered
			}
			t.mu.Unlock()
			if !fire {
				return
			}
			t.fire()
			t.mu.Lock()
			if t.st == triggered {
				t.st = idle
			}
			t.mu.Unlock()
		case <-cancelCh:
		}
	}()
}
