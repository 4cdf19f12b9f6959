// Package notify implements the process-wide ephemeral message surface:
// a single-slot toast with a severity and an auto-dismiss timer.
package notify

import (
	"sync"
	"time"
)

// Severity classifies a message for display.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// DefaultDuration is how long a message stays visible unless replaced or
// dismissed earlier.
const DefaultDuration = 3200 * time.Millisecond

// Message is a single toast entry.
type Message struct {
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
	ShownAt  time.Time
}

// Center holds at most one visible message. Showing a new message while one
// is visible replaces it: depth 1, no backlog, last shown wins. Callers must
// not assume queued delivery.
type Center struct {
	mu       sync.Mutex
	current  *Message
	timer    *time.Timer
	duration time.Duration
	now      func() time.Time // injectable for tests
}

// NewCenter creates a Center with the given display duration.
// A non-positive duration falls back to DefaultDuration.
func NewCenter(duration time.Duration) *Center {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Center{duration: duration, now: time.Now}
}

// Notify shows a message, replacing any visible one and restarting the
// dismiss timer.
func (c *Center) Notify(text string, severity Severity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	msg := &Message{Text: text, Severity: severity, ShownAt: c.now()}
	c.current = msg
	c.timer = time.AfterFunc(c.duration, func() {
		c.expire(msg)
	})
}

// Success, Error, Info and Warning are severity shorthands.
func (c *Center) Success(text string) { c.Notify(text, SeveritySuccess) }
func (c *Center) Error(text string)   { c.Notify(text, SeverityError) }
func (c *Center) Info(text string)    { c.Notify(text, SeverityInfo) }
func (c *Center) Warning(text string) { c.Notify(text, SeverityWarning) }

// Current returns the visible message, if any.
func (c *Center) Current() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Message{}, false
	}
	return *c.current, true
}

// Dismiss clears the visible message before its timer fires.
func (c *Center) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.current = nil
}

// expire clears msg only if it is still the visible one; a message shown
// after it keeps its own timer.
func (c *Center) expire(msg *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == msg {
		c.current = nil
		c.timer = nil
	}
}
