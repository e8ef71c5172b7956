// Package gate blocks startup until the host has finished self-decryption
// and freezes the other threads while binding tables are patched.
package gate

import (
	"context"
	"sync"
	"time"
)

// WaitResult is the outcome of a bounded wait
type WaitResult int

const (
	Signaled WaitResult = iota
	TimedOut
	Cancelled
)

func (r WaitResult) String() string {
	switch r {
	case Signaled:
		return "signaled"
	case TimedOut:
		return "timed out"
	default:
		return "cancelled"
	}
}

// Event is a manual-reset event that is set at most once
type Event struct {
	once sync.Once
	ch   chan struct{}
}

// NewEvent creates an unset event
func NewEvent() *Event {
	return &Event{ch: make(chan struct{})}
}

// Set signals every current and future waiter
func (e *Event) Set() {
	e.once.Do(func() { close(e.ch) })
}

// IsSet reports whether Set was called
func (e *Event) IsSet() bool {
	select {
	case <-e.ch:
		return true
	default:
		return false
	}
}

// Wait blocks until the event is set, timeout elapses or ctx is done.
// A non-positive timeout waits without bound.
func (e *Event) Wait(ctx context.Context, timeout time.Duration) WaitResult {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-e.ch:
		return Signaled
	case <-expired:
		return TimedOut
	case <-ctx.Done():
		return Cancelled
	}
}
