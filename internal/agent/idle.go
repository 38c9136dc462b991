// Package agent holds the boundary to the external agent process: the idle
// tracker that shuts a conversation down after inactivity, and the reader
// that feeds the agent's output stream into the dispatcher.
package agent

import (
	"sync"
	"time"
)

// IdleTracker fires onIdle once the conversation has been quiet for the
// configured timeout. Reset postpones the countdown; NotifyIdle re-arms it
// after a turn concludes.
type IdleTracker struct {
	timeout time.Duration
	onIdle  func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewIdleTracker arms the countdown immediately.
func NewIdleTracker(timeout time.Duration, onIdle func()) *IdleTracker {
	t := &IdleTracker{timeout: timeout, onIdle: onIdle}
	t.timer = time.AfterFunc(timeout, t.fire)
	return t
}

func (t *IdleTracker) fire() {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if !stopped && t.onIdle != nil {
		t.onIdle()
	}
}

// Reset postpones the idle deadline by the full timeout.
func (t *IdleTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.timer.Stop()
	t.timer.Reset(t.timeout)
}

// NotifyIdle restarts the normal countdown after a turn has concluded.
func (t *IdleTracker) NotifyIdle() {
	t.Reset()
}

// Stop cancels the tracker. A stopped tracker never fires again.
func (t *IdleTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.timer.Stop()
}
