package session

import (
	"sync"
	"time"
)

// IdleTimer calls onIdle once after timeout elapses without a Touch.
// It is single-shot: after firing it stays idle until the next Touch.
// A zero or negative timeout disables it.
type IdleTimer struct {
	mu      sync.Mutex
	timeout time.Duration
	onIdle  func()
	timer   *time.Timer
	gen     uint64
}

// NewIdleTimer returns a stopped timer. Call Touch to arm it.
func NewIdleTimer(timeout time.Duration, onIdle func()) *IdleTimer {
	return &IdleTimer{timeout: timeout, onIdle: onIdle}
}

// Touch records activity: any pending expiry is stopped and a new one armed.
func (t *IdleTimer) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	if t.timeout <= 0 {
		return
	}
	gen := t.gen
	t.timer = time.AfterFunc(t.timeout, func() { t.fire(gen) })
}

// Stop cancels a pending expiry. It reports whether one was pending.
func (t *IdleTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopLocked()
}

func (t *IdleTimer) stopLocked() bool {
	// a callback already past AfterFunc sees a stale generation and returns
	t.gen++
	if t.timer == nil {
		return false
	}
	stopped := t.timer.Stop()
	t.timer = nil
	return stopped
}

func (t *IdleTimer) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()

	if t.onIdle != nil {
		t.onIdle()
	}
}
