package moderation

import (
	"sync"
	"time"
)

// DefaultDebounce is the trailing window for search-as-you-type refetches.
const DefaultDebounce = 300 * time.Millisecond

// Debouncer coalesces a burst of triggers into one trailing call: each
// trigger resets the timer, and only the last function runs once the window
// elapses with no further triggers.
type Debouncer struct {
	window time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer creates a Debouncer. A non-positive window falls back to
// DefaultDebounce.
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Debouncer{window: window}
}

// Trigger schedules fn after the window, cancelling any pending call.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, fn)
}

// Stop cancels any pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
