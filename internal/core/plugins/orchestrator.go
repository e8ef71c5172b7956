package plugins

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"lebinkproxy.dev/proxy/internal/core/domain"
)

// Options controls discovery and dispatch
type Options struct {
	// Dir is resolved against the executable's directory
	Dir        string
	Extension  string
	MaxFiles   int
	TryLoadAll bool
	// GraceInterval is slept after every dispatch phase
	GraceInterval time.Duration
	// JoinTimeout, when positive, waits for async attaches after each phase
	JoinTimeout time.Duration
}

// DefaultOptions mirrors the stock layout: ASI/*.asi next to the game
func DefaultOptions() Options {
	return Options{
		Dir:           "ASI",
		Extension:     ".asi",
		MaxFiles:      128,
		TryLoadAll:    true,
		GraceInterval: 300 * time.Millisecond,
	}
}

// DispatchReport summarizes one dispatch phase
type DispatchReport struct {
	Phase        Phase
	Succeeded    int
	Failed       int
	AsyncStarted int
	Skipped      int
}

// Dispatched returns the number of attach callbacks started in the phase
func (r DispatchReport) Dispatched() int {
	return r.Succeeded + r.Failed + r.AsyncStarted
}

// Orchestrator drives the plugin lifecycle. Activate, Dispatch and
// Deactivate must be called from one goroutine.
type Orchestrator struct {
	host      domain.HostContext
	loader    Loader
	inspector Inspector
	opts      Options
	logger    hclog.Logger
	sleep     func(time.Duration)

	service     uintptr
	descriptors []*Descriptor
	tasks       *TaskSet
}

// Option customizes an Orchestrator
type Option func(*Orchestrator)

// WithInspector pre-inspects every candidate before loading it
func WithInspector(inspector Inspector) Option {
	return func(o *Orchestrator) { o.inspector = inspector }
}

// WithSleep replaces the grace interval sleep
func WithSleep(sleep func(time.Duration)) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// NewOrchestrator creates an orchestrator for the given host
func NewOrchestrator(host domain.HostContext, loader Loader, opts Options, logger hclog.Logger, options ...Option) *Orchestrator {
	named := logger.Named("asi")
	o := &Orchestrator{
		host:   host,
		loader: loader,
		opts:   opts,
		logger: named,
		sleep:  time.Sleep,
		tasks:  NewTaskSet(named),
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// SetService sets the handle passed to attach and detach callbacks
func (o *Orchestrator) SetService(handle uintptr) {
	o.service = handle
}

// Activate discovers, loads and classifies every plugin. A missing plugin
// directory is not an error. Individual failures are logged and skipped
// unless TryLoadAll is off.
func (o *Orchestrator) Activate() error {
	dir := o.host.ResolvePath(o.opts.Dir)
	candidates, skipped, err := Discover(dir, o.opts.Extension, o.opts.MaxFiles)
	if err != nil {
		o.logger.Error("aborting plugin discovery", "dir", dir, "error", err)
		return err
	}
	if skipped > 0 {
		o.logger.Warn("too many plugin files, ignoring the rest", "max", o.opts.MaxFiles, "ignored", skipped)
	}
	if len(candidates) == 0 {
		o.logger.Info("no plugins found", "dir", dir)
		return nil
	}

	for _, candidate := range candidates {
		if err := o.load(candidate); err != nil {
			o.logger.Error("failed to load plugin", "file", candidate.FileName, "error", err)
			if !o.opts.TryLoadAll {
				return fmt.Errorf("failed to load %s: %w", candidate.FileName, err)
			}
		}
	}

	o.logger.Info("plugins loaded", "loaded", len(o.descriptors), "active", len(o.Active()))
	return nil
}

func (o *Orchestrator) load(candidate Candidate) error {
	o.logger.Info("loading", "file", candidate.FileName)

	if o.inspector != nil {
		exports, err := o.inspector.Inspect(candidate.Path)
		if err != nil {
			return fmt.Errorf("inspection rejected the file: %w", err)
		}
		o.logger.Debug("inspected", "file", candidate.FileName, "spi_exports", exports)
	}

	lib, err := o.loader.Load(candidate.Path)
	if err != nil {
		return err
	}

	d := &Descriptor{
		FileName:     candidate.FileName,
		Library:      lib,
		Capabilities: lib.Probe(),
		logger:       o.logger,
	}
	o.descriptors = append(o.descriptors, d)
	o.register(d)
	return nil
}

// register negotiates capabilities and applies the compatibility filters
func (o *Orchestrator) register(d *Descriptor) {
	caps := d.Capabilities
	switch {
	case !caps.Declared():
		o.logger.Info("raw plugin, no lifecycle", "file", d.FileName)
		return
	case caps.Demoted():
		o.logger.Warn("incomplete declaration, treated as raw", "file", d.FileName, "missing", caps.Missing())
		return
	}

	decl, err := callDeclare(caps.Declare)
	if err != nil {
		d.FilterReason = err
		o.logger.Error("declaration failed", "file", d.FileName, "error", err)
		return
	}
	d.Declaration = decl

	if err := CheckCompatibility(decl, o.host.Game()); err != nil {
		d.FilterReason = err
		o.logger.Warn("plugin filtered out", "file", d.FileName, "name", decl.Name, "error", err)
		return
	}

	d.Active = true
	o.logger.Info("registered plugin", "file", d.FileName, "name", decl.Name, "author", decl.Author,
		"version", decl.Version, "targets", decl.Targets.String(), "min_spi", decl.MinServiceVersion)
}

// Dispatch runs every active plugin whose attach phase is phase.
// Sequential failures are logged; async results are discarded.
func (o *Orchestrator) Dispatch(ctx context.Context, phase Phase) DispatchReport {
	report := DispatchReport{Phase: phase}

	for _, d := range o.Active() {
		if d.Phase() != phase {
			report.Skipped++
			continue
		}

		attach := d.Capabilities.Attach
		name := d.Declaration.Name
		service := o.service

		if d.Mode() == ModeAsynchronous {
			o.logger.Info("attaching asynchronously", "plugin", name, "phase", phase)
			o.tasks.Go(name, func() { attach(service) })
			report.AsyncStarted++
			continue
		}

		o.logger.Info("attaching", "plugin", name, "phase", phase)
		if callBool(o.logger, d.FileName, SymbolOnAttach, func() bool { return attach(service) }) {
			report.Succeeded++
		} else {
			report.Failed++
			o.logger.Error("attach failed", "plugin", name, "phase", phase)
		}
	}

	o.sleep(o.opts.GraceInterval)

	if o.opts.JoinTimeout > 0 && report.AsyncStarted > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, o.opts.JoinTimeout)
		defer cancel()
		if err := o.tasks.Wait(waitCtx); err != nil {
			o.logger.Warn("async attaches still running", "phase", phase, "error", err)
		}
	}

	o.logger.Info("dispatch finished", "phase", phase, "ok", report.Succeeded,
		"failed", report.Failed, "async", report.AsyncStarted)
	return report
}

// Deactivate calls every active plugin's detach callback. Best effort:
// it may never run at all, so nothing critical depends on it.
func (o *Orchestrator) Deactivate() {
	for _, d := range o.Active() {
		detach := d.Capabilities.Detach
		service := o.service
		if !callBool(o.logger, d.FileName, SymbolOnDetach, func() bool { return detach(service) }) {
			o.logger.Warn("detach failed", "plugin", d.Declaration.Name)
		}
	}
}

// Wait joins outstanding async attaches
func (o *Orchestrator) Wait(ctx context.Context) error {
	return o.tasks.Wait(ctx)
}

// Loaded returns every successfully loaded plugin, raw ones included
func (o *Orchestrator) Loaded() []*Descriptor {
	return append([]*Descriptor(nil), o.descriptors...)
}

// Active returns the plugins in the dispatch set
func (o *Orchestrator) Active() []*Descriptor {
	var active []*Descriptor
	for _, d := range o.descriptors {
		if d.Active {
			active = append(active, d)
		}
	}
	return active
}
