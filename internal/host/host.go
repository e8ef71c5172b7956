// Package host runs the proxy's startup sequence inside the target process.
package host

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"lebinkproxy.dev/proxy/internal/core/domain"
	"lebinkproxy.dev/proxy/internal/core/gate"
	"lebinkproxy.dev/proxy/internal/core/handshake"
	"lebinkproxy.dev/proxy/internal/core/hooks"
	"lebinkproxy.dev/proxy/internal/core/identity"
	"lebinkproxy.dev/proxy/internal/core/modules"
	"lebinkproxy.dev/proxy/internal/core/plugins"
	"lebinkproxy.dev/proxy/internal/core/spi"
)

// Components are the collaborators the host drives. Waiter and Threads are
// only used for the games; the launcher needs neither.
type Components struct {
	Hooks     *hooks.Manager
	Broker    *handshake.Broker
	Service   *spi.Service
	Handles   *spi.HandleTable
	Registry  *modules.Registry
	AsiLoader *modules.AsiLoader
	Waiter    *gate.Waiter
	Threads   gate.ThreadController
	Notifier  identity.Notifier
	// Expose maps the service handle to the value published to plugins.
	// Nil publishes the handle itself.
	Expose func(handle uintptr) uintptr
}

var _ modules.LoggedHookTable = (*hooks.Manager)(nil)

// Options tunes the startup sequence
type Options struct {
	// LauncherDelay is slept on the launcher instead of the gate wait
	LauncherDelay time.Duration
	Sleep         func(time.Duration)
}

// Report summarizes a completed startup
type Report struct {
	Published bool
	PreInit   plugins.DispatchReport
	Gate      gate.WaitResult
	PostInit  plugins.DispatchReport
}

// Host owns the startup sequence and the teardown
type Host struct {
	ctx    domain.HostContext
	c      Components
	opts   Options
	logger hclog.Logger

	handle uintptr
}

// New creates a host for the resolved process
func New(hostCtx domain.HostContext, c Components, opts Options, logger hclog.Logger) *Host {
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &Host{
		ctx:    hostCtx,
		c:      c,
		opts:   opts,
		logger: logger.Named("host"),
	}
}

// Start runs the whole startup sequence. Only a hooking engine failure
// stops it; everything else is logged and startup continues.
func (h *Host) Start(ctx context.Context) (Report, error) {
	var report Report
	game := h.ctx.Game()

	h.logger.Info("LEBinkProxy starting", "version", domain.ProxyVersion, "build_mode", domain.BuildMode,
		"game", game, "exe", h.ctx.ExeName, "pid", h.ctx.PID)

	if err := h.c.Hooks.Initialize(); err != nil {
		h.logger.Error("failed to initialize the hooking engine", "error", err)
		return report, fmt.Errorf("failed to initialize hooks: %w", err)
	}

	if game.IsGame() && h.c.Waiter != nil {
		if err := h.c.Waiter.Arm(); err != nil {
			h.logger.Warn("window watch not installed", "error", err)
		}
	}

	report.Published = h.publish()

	orchestrator := h.c.AsiLoader.Orchestrator()
	if err := h.c.Registry.Activate(ctx, modules.AsiLoaderName); err != nil {
		h.logger.Error("loading of one or more plugins failed", "error", err)
	}

	report.PreInit = orchestrator.Dispatch(ctx, plugins.PhasePreInit)

	if game.IsGame() {
		report.Gate = h.unlockConsole(ctx)
	} else {
		h.opts.Sleep(h.opts.LauncherDelay)
		if err := h.c.Registry.Activate(ctx, modules.LauncherArgsName); err != nil {
			h.logger.Error("handling of launcher args failed", "error", err)
		}
	}

	report.PostInit = orchestrator.Dispatch(ctx, plugins.PhasePostInit)
	h.logger.Info("startup finished")
	return report, nil
}

// publish registers the service and writes the handshake record. A failure
// is shown to the user but does not stop startup.
func (h *Host) publish() bool {
	h.handle = h.c.Handles.Register(h.c.Service)
	published := h.handle
	if h.c.Expose != nil {
		published = h.c.Expose(h.handle)
	}
	h.c.AsiLoader.Orchestrator().SetService(published)

	if _, err := h.c.Broker.Create(published); err != nil {
		h.logger.Error("failed to publish the shared service", "error", err)
		if h.c.Notifier != nil {
			h.c.Notifier.Alert("LEBinkProxy", fmt.Sprintf("Failed to set up the shared service for plugins (%s).\n"+
				"Plugins that depend on it will not work.", domain.CodeOf(err)))
		}
		return false
	}
	return true
}

// unlockConsole waits for the gate, then patches with the other threads frozen
func (h *Host) unlockConsole(ctx context.Context) gate.WaitResult {
	result := gate.TimedOut
	if h.c.Waiter != nil {
		result = h.c.Waiter.Wait(ctx)
		defer func() {
			if err := h.c.Waiter.Disarm(); err != nil {
				h.logger.Warn("failed to disarm the gate", "error", err)
			}
		}()
	}

	if h.c.Threads == nil {
		h.activateConsole(ctx, h.logger)
		return result
	}

	// Suspended threads may hold the logger's lock. Everything logged
	// while frozen is held and written after the release.
	held, pending := newDeferredLog(h.logger)
	guard, err := gate.FreezeOtherThreads(h.c.Threads, held)
	if err != nil {
		pending.replay(h.logger)
		h.logger.Warn("could not freeze threads, patching anyway", "error", err)
		h.activateConsole(ctx, h.logger)
		return result
	}

	func() {
		defer guard.Release()
		h.activateConsole(modules.WithLogger(ctx, held), held)
	}()
	pending.replay(h.logger)
	return result
}

func (h *Host) activateConsole(ctx context.Context, logger hclog.Logger) {
	if err := h.c.Registry.Activate(ctx, modules.ConsoleEnablerName); err != nil {
		logger.Error("console unlock failed", "error", err)
	}
}

// Shutdown detaches plugins and releases what Start acquired. Best effort.
func (h *Host) Shutdown() {
	h.logger.Info("shutting down")
	h.c.Registry.DeactivateAll()

	if err := h.c.Broker.Close(); err != nil {
		h.logger.Warn("failed to close the shared service record", "error", err)
	}
	if h.handle != 0 {
		h.c.Handles.Unregister(h.handle)
		h.handle = 0
	}
	if err := h.c.Hooks.Shutdown(); err != nil {
		h.logger.Warn("failed to shut down hooks", "error", err)
	}
}
