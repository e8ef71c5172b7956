// Package modules holds the independently activatable subsystems of the proxy.
package modules

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Module is a named subsystem with a uniform activation contract
type Module interface {
	Name() string
	Active() bool
	Activate(ctx context.Context) error
	Deactivate()
}

// DefaultCapacity bounds the number of registered modules
const DefaultCapacity = 64

var (
	ErrDuplicateModule = errors.New("module already registered")
	ErrRegistryFull    = errors.New("module registry is full")
	ErrModuleNotFound  = errors.New("module not registered")
	ErrAlreadyActive   = errors.New("module already active")
)

type loggerKey struct{}

// WithLogger makes the modules activated with ctx log to logger instead
// of their own loggers
func WithLogger(ctx context.Context, logger hclog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

func scopedLogger(ctx context.Context) (hclog.Logger, bool) {
	logger, ok := ctx.Value(loggerKey{}).(hclog.Logger)
	return logger, ok
}

// loggerFor returns the logger scoped by ctx under name, or fallback
func loggerFor(ctx context.Context, fallback hclog.Logger, name string) hclog.Logger {
	if logger, ok := scopedLogger(ctx); ok {
		return logger.Named(name)
	}
	return fallback
}

// Registry keeps modules in registration order
type Registry struct {
	mu       sync.Mutex
	modules  []Module
	capacity int
	logger   hclog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger hclog.Logger) *Registry {
	return &Registry{
		capacity: DefaultCapacity,
		logger:   logger.Named("modules"),
	}
}

// Register adds a module. Names are unique.
func (r *Registry) Register(m Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.modules) >= r.capacity {
		return fmt.Errorf("%w: %d modules", ErrRegistryFull, r.capacity)
	}
	if r.find(m.Name()) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateModule, m.Name())
	}
	r.modules = append(r.modules, m)
	return nil
}

func (r *Registry) find(name string) Module {
	for _, m := range r.modules {
		if m.Name() == name {
			return m
		}
	}
	return nil
}

// Get returns a module by name
func (r *Registry) Get(name string) (Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.find(name)
	return m, m != nil
}

// Activate activates a registered module that is not active yet
func (r *Registry) Activate(ctx context.Context, name string) error {
	m, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}
	if m.Active() {
		return fmt.Errorf("%w: %s", ErrAlreadyActive, name)
	}

	logger := loggerFor(ctx, r.logger, "modules")
	logger.Info("activating module", "module", name)
	if err := m.Activate(ctx); err != nil {
		logger.Error("module activation failed", "module", name, "error", err)
		return fmt.Errorf("failed to activate %s: %w", name, err)
	}
	return nil
}

// DeactivateAll deactivates active modules in reverse registration order
func (r *Registry) DeactivateAll() {
	r.mu.Lock()
	modules := append([]Module(nil), r.modules...)
	r.mu.Unlock()

	for i := len(modules) - 1; i >= 0; i-- {
		if modules[i].Active() {
			r.logger.Info("deactivating module", "module", modules[i].Name())
			modules[i].Deactivate()
		}
	}
}

// Names lists the registered modules in order
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.modules))
	for _, m := range r.modules {
		names = append(names, m.Name())
	}
	return names
}

// base carries the name and activation flag shared by every module
type base struct {
	name   string
	mu     sync.Mutex
	active bool
}

func (b *base) Name() string {
	return b.name
}

func (b *base) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

func (b *base) setActive(active bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = active
}
