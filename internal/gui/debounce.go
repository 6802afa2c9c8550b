package gui

import (
	"sync"
	"time"
)

// debouncer runs only the last of a burst of triggers, delay after the burst ends
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay}
}

// Trigger schedules fn, replacing anything still pending. A zero delay runs fn
// immediately on the calling goroutine.
func (d *debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.delay <= 0 {
		fn()
		return
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop drops any pending call
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
