/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package numbers

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a one-second countdown. Only one countdown runs at a time.
//
// Callbacks run on their own goroutine, never while the Timer's lock is held,
// so they may call back into Stop or Start.
type Timer struct {
	clock clockwork.Clock

	mu        sync.Mutex
	pending   clockwork.Timer
	gen       uint64
	remaining int
	running   bool
}

// NewTimer returns a Timer driven by clock, or by the system clock if nil.
func NewTimer(clock clockwork.Clock) *Timer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Timer{clock: clock}
}

// Start begins a countdown of seconds (at least 1), replacing any running one.
// onTick receives the remaining seconds after every decrement; onExpire is
// called exactly once, after the tick that reaches zero.
func (t *Timer) Start(seconds int, onTick func(remaining int), onExpire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()

	t.gen++
	t.remaining = max(1, seconds)
	t.running = true
	t.scheduleLocked(t.gen, onTick, onExpire)
}

func (t *Timer) scheduleLocked(gen uint64, onTick func(int), onExpire func()) {
	t.pending = t.clock.AfterFunc(time.Second, func() {
		t.tick(gen, onTick, onExpire)
	})
}

func (t *Timer) tick(gen uint64, onTick func(int), onExpire func()) {
	t.mu.Lock()
	if !t.running || t.gen != gen {
		t.mu.Unlock()

		return
	}

	t.remaining--
	remaining := t.remaining
	expired := remaining <= 0

	if expired {
		t.running = false
		t.pending = nil
	} else {
		t.scheduleLocked(gen, onTick, onExpire)
	}
	t.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}

	if expired && onExpire != nil {
		onExpire()
	}
}

// Stop cancels the running countdown. It is a no-op when nothing is running.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
}

func (t *Timer) stopLocked() {
	if !t.running {
		return
	}

	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}

	t.running = false
	t.gen++
}

// Remaining returns the seconds left on the current or last countdown.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.remaining
}

// Running reports whether a countdown is in progress.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.running
}

// FormatClock renders seconds as m:ss.
func FormatClock(seconds int) string {
	seconds = max(0, seconds)

	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
