package plugins

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"
)

// TaskSet tracks asynchronous attach callbacks. Results are discarded; the
// set only makes it possible to wait for them.
type TaskSet struct {
	group   errgroup.Group
	pending atomic.Int64
	logger  hclog.Logger
}

// NewTaskSet creates an empty task set
func NewTaskSet(logger hclog.Logger) *TaskSet {
	return &TaskSet{logger: logger}
}

// Go runs fn on its own goroutine
func (s *TaskSet) Go(name string, fn func()) {
	s.pending.Add(1)
	s.group.Go(func() error {
		defer s.pending.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("async task panicked", "task", name, "panic", fmt.Sprint(r))
			}
		}()
		fn()
		return nil
	})
}

// Pending returns the number of tasks still running
func (s *TaskSet) Pending() int {
	return int(s.pending.Load())
}

// Wait blocks until every task finished or ctx is done
func (s *TaskSet) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = s.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%d async task(s) still running: %w", s.Pending(), ctx.Err())
	}
}
