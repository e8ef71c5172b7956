package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"lebinkproxy.dev/proxy/internal/core/domain"
)

// Mode selects how the end of self-decryption is detected
type Mode string

const (
	// ModeEvent watches window creation and waits on an event
	ModeEvent Mode = "event"
	// ModePoll enumerates top-level windows until the title shows up
	ModePoll Mode = "poll"
)

// WindowWatcher reports every top-level window created in the process
type WindowWatcher interface {
	Watch(onCreate func(title string)) error
	Unwatch() error
}

// WindowSource enumerates the current top-level window titles
type WindowSource interface {
	TopLevelTitles() ([]string, error)
}

// Options configures a Waiter
type Options struct {
	Mode         Mode
	Timeout      time.Duration
	PollInterval time.Duration
	// PollTimeout bounds poll mode; zero polls forever
	PollTimeout time.Duration
}

// DefaultOptions waits for the window creation event for 30 seconds
func DefaultOptions() Options {
	return Options{
		Mode:         ModeEvent,
		Timeout:      30 * time.Second,
		PollInterval: 250 * time.Millisecond,
	}
}

// Waiter blocks until a window matching the target appears
type Waiter struct {
	target  domain.Target
	watcher WindowWatcher
	source  WindowSource
	opts    Options
	logger  hclog.Logger

	event *Event
	armed bool
	mode  Mode
}

// NewWaiter creates a waiter for the given target. Either collaborator may be
// nil when its mode is not used.
func NewWaiter(target domain.Target, watcher WindowWatcher, source WindowSource, opts Options, logger hclog.Logger) *Waiter {
	return &Waiter{
		target:  target,
		watcher: watcher,
		source:  source,
		opts:    opts,
		logger:  logger.Named("gate"),
		event:   NewEvent(),
		mode:    opts.Mode,
	}
}

// Mode returns the mode in effect after Arm
func (w *Waiter) Mode() Mode {
	return w.mode
}

// Arm starts watching window creation. It must run before the host can
// create its main window. When the watch cannot be installed the waiter
// falls back to polling.
func (w *Waiter) Arm() error {
	if w.mode != ModeEvent || w.armed {
		return nil
	}
	if w.watcher == nil {
		w.fallBack(fmt.Errorf("%w: no window watcher", domain.ErrUnsupported))
		return nil
	}

	err := w.watcher.Watch(func(title string) {
		if w.target.MatchesTitle(title) {
			w.logger.Info("target window created", "title", title)
			w.event.Set()
		}
	})
	if err != nil {
		w.fallBack(err)
		return err
	}
	w.armed = true
	return nil
}

func (w *Waiter) fallBack(reason error) {
	w.logger.Warn("window watch unavailable, falling back to polling", "error", reason)
	w.mode = ModePoll
}

// Wait blocks until the target window appears. A timeout is logged and
// treated as done; startup continues either way.
func (w *Waiter) Wait(ctx context.Context) WaitResult {
	start := time.Now()
	var result WaitResult
	if w.mode == ModeEvent {
		result = w.event.Wait(ctx, w.opts.Timeout)
	} else {
		result = w.poll(ctx)
	}

	elapsed := time.Since(start)
	switch result {
	case Signaled:
		w.logger.Info("gate passed", "mode", w.mode, "elapsed", elapsed)
	case TimedOut:
		w.logger.Warn("gate wait timed out, continuing anyway", "mode", w.mode, "elapsed", elapsed)
	default:
		w.logger.Warn("gate wait cancelled", "mode", w.mode, "elapsed", elapsed)
	}
	return result
}

func (w *Waiter) poll(ctx context.Context) WaitResult {
	if w.source == nil {
		w.logger.Error("no window source to poll")
		return TimedOut
	}

	var deadline <-chan time.Time
	if w.opts.PollTimeout > 0 {
		timer := time.NewTimer(w.opts.PollTimeout)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		if w.found() {
			return Signaled
		}
		select {
		case <-ticker.C:
		case <-deadline:
			return TimedOut
		case <-ctx.Done():
			return Cancelled
		}
	}
}

func (w *Waiter) found() bool {
	titles, err := w.source.TopLevelTitles()
	if err != nil {
		w.logger.Debug("window enumeration failed", "error", err)
		return false
	}
	for _, title := range titles {
		if w.target.MatchesTitle(title) {
			return true
		}
	}
	return false
}

// Disarm removes the window watch
func (w *Waiter) Disarm() error {
	if !w.armed {
		return nil
	}
	w.armed = false
	if err := w.watcher.Unwatch(); err != nil {
		w.logger.Warn("failed to remove window watch", "error", err)
		return err
	}
	return nil
}
