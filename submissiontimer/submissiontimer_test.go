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

package submissiontimer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock is a manually-advanced Clock: After registers a channel and
// fireAll delivers to every channel whose deadline has passed.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Duration
	waiters []fakeWaiter
}

type fakeWaiter struct {
	deadline time.Duration
	ch       chan time.Time
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.mu.Lock()
	c.waiters = append(c.waiters, fakeWaiter{deadline: c.now + d, ch: ch})
	c.mu.Unlock()
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var remaining []fakeWaiter
	for _, w := range c.waiters {
		if w.deadline <= c.now {
			w.ch <- time.Time{}
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
	c.mu.Unlock()
}

func TestTimerFiresOnceAfterQuietPeriod(t *testing.T) {
	clock := &fakeClock{}
	var fires int32
	tm := NewWithClock(time.Second, clock, func() { atomic.AddInt32(&fires, 1) })

	tm.NotifyActive()
	require.EqualValues(t, 0, fires)

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&fires) == 1 }, time.Second, time.Millisecond)
}

func TestNotifyActiveRestartsCountdown(t *testing.T) {
	clock := &fakeClock{}
	var fires int32
	tm := NewWithClock(time.Second, clock, func() { atomic.AddInt32(&fires, 1) })

	tm.NotifyActive()
	clock.Advance(500 * time.Millisecond)
	tm.NotifyActive() // restarts the countdown
	clock.Advance(500 * time.Millisecond)
	// The first countdown would have elapsed by now had it not been reset.
	time.Sleep(10 * time.Millisecond)
	require.EqualValues(t, 0, fires)

	clock.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&fires) == 1 }, time.Second, time.Millisecond)
}

func TestTriggerFiresImmediately(t *testing.T) {
	clock := &fakeClock{}
	var fires int32
	tm := NewWithClock(time.Hour, clock, func() { atomic.AddInt32(&fires, 1) })

	tm.NotifyActive()
	tm.Trigger()
	require.EqualValues(t, 1, fires)
}

func TestClearCancelsPendingCountdown(t *testing.T) {
	clock := &fakeClock{}
	var fires int32
	tm := NewWithClock(time.Second, clock, func() { atomic.AddInt32(&fires, 1) })

	tm.NotifyActive()
	tm.Clear()
	clock.Advance(time.Second)
	time.Sleep(10 * time.Millisecond)
	require.EqualValues(t, 0, fires)

	// A subsequent notification starts a fresh countdown from idle.
	tm.NotifyActive()
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&fires) == 1 }, time.Second, time.Millisecond)
}

func TestNotifyActiveWhileTriggeredIsNoOp(t *testing.T) {
	clock := &fakeClock{}
	var fires int32
	firing := make(chan struct{})
	release := make(chan struct{})
	tm := NewWithClock(time.Millisecond, clock, func() {
		if atomic.AddInt32(&fires, 1) == 1 {
			close(firing)
			<-release
		}
	})

	tm.NotifyActive()
	clock.Advance(time.Millisecond)
	<-firing

	// The fire callback is still running, so the timer is triggered: this
	// NotifyActive must not start a second countdown.
	tm.NotifyActive()
	close(release)

	clock.Advance(time.Hour)
	time.Sleep(10 * time.Millisecond)
	require.EqualValues(t, 1, atomic.LoadInt32(&fires))
}
