package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdleTimer_Fires(t *testing.T) {
	fired := make(chan struct{}, 2)
	timer := NewIdleTimer(20*time.Millisecond, func() { fired <- struct{}{} })
	timer.Touch()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("idle callback did not fire")
	}

	// single-shot
	select {
	case <-fired:
		t.Fatal("idle callback fired twice")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestIdleTimer_TouchPostpones(t *testing.T) {
	var fired atomic.Int32
	timer := NewIdleTimer(80*time.Millisecond, func() { fired.Add(1) })
	timer.Touch()

	for i := 0; i < 5; i++ {
		time.Sleep(30 * time.Millisecond)
		timer.Touch()
	}
	assert.Equal(t, int32(0), fired.Load(), "activity must keep the timer from firing")

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestIdleTimer_Stop(t *testing.T) {
	var fired atomic.Int32
	timer := NewIdleTimer(20*time.Millisecond, func() { fired.Add(1) })

	assert.False(t, timer.Stop(), "stopping an unarmed timer")

	timer.Touch()
	assert.True(t, timer.Stop())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestIdleTimer_Disabled(t *testing.T) {
	var fired atomic.Int32
	timer := NewIdleTimer(0, func() { fired.Add(1) })
	timer.Touch()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.False(t, timer.Stop())
}

func TestIdleTimer_StaleCallbackIgnored(t *testing.T) {
	var fired atomic.Int32
	timer := NewIdleTimer(time.Hour, func() { fired.Add(1) })
	timer.Touch()

	// simulate a callback that raced with Touch
	gen := timer.gen
	timer.Touch()
	timer.fire(gen)

	assert.Equal(t, int32(0), fired.Load())
	timer.Stop()
}
