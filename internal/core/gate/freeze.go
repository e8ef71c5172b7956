package gate

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// ThreadController suspends and resumes OS threads of the current process
type ThreadController interface {
	CurrentThreadID() uint32
	ThreadIDs() ([]uint32, error)
	Suspend(id uint32) error
	Resume(id uint32) error
}

// FreezeGuard holds exactly the threads it suspended
type FreezeGuard struct {
	ctl    ThreadController
	logger hclog.Logger

	mu        sync.Mutex
	suspended []uint32
	released  bool
	gcPercent int
}

// FreezeOtherThreads suspends every thread of the process except the
// calling one. The caller must defer Release.
//
// The calling goroutine stays on its OS thread and the collector is off
// until Release, since a stop-the-world would need suspended runtime threads.
func FreezeOtherThreads(ctl ThreadController, logger hclog.Logger) (*FreezeGuard, error) {
	runtime.LockOSThread()
	g := &FreezeGuard{
		ctl:       ctl,
		logger:    logger.Named("freeze"),
		gcPercent: debug.SetGCPercent(-1),
	}

	ids, err := ctl.ThreadIDs()
	if err != nil {
		g.Release()
		return nil, fmt.Errorf("failed to enumerate threads: %w", err)
	}

	self := ctl.CurrentThreadID()
	for _, id := range ids {
		if id == self {
			continue
		}
		if err := ctl.Suspend(id); err != nil {
			g.logger.Debug("could not suspend thread", "tid", id, "error", err)
			continue
		}
		g.suspended = append(g.suspended, id)
	}

	g.logger.Debug("threads frozen", "count", len(g.suspended))
	return g, nil
}

// Suspended returns the ids this guard suspended
func (g *FreezeGuard) Suspended() []uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]uint32(nil), g.suspended...)
}

// Release resumes the suspended threads. Calling it again does nothing.
func (g *FreezeGuard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return
	}
	g.released = true

	for _, id := range g.suspended {
		if err := g.ctl.Resume(id); err != nil {
			g.logger.Warn("failed to resume thread", "tid", id, "error", err)
		}
	}
	g.logger.Debug("threads resumed", "count", len(g.suspended))

	debug.SetGCPercent(g.gcPercent)
	runtime.UnlockOSThread()
}
