// Package hooks keeps name-keyed bookkeeping on top of an inline-hooking primitive.
package hooks

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"

	"lebinkproxy.dev/proxy/internal/core/domain"
)

// Detourer is the inline-hooking primitive. It patches a function prologue
// and hands back a trampoline to the original code. It knows nothing about names.
type Detourer interface {
	Initialize() error
	CreateHook(target, detour uintptr) (original uintptr, err error)
	EnableHook(target uintptr) error
	RemoveHook(target uintptr) error
	Uninitialize() error
}

// Record describes one installed detour
type Record struct {
	Name     string
	Target   uintptr
	Detour   uintptr
	Original uintptr
	Identity uint64
}

// Manager installs and uninstalls detours by name
type Manager struct {
	detourer Detourer
	logger   hclog.Logger

	mu          sync.Mutex
	initialized bool
	counter     uint64
	hooks       map[string]Record
}

// NewManager creates a manager over the given primitive
func NewManager(detourer Detourer, logger hclog.Logger) *Manager {
	return &Manager{
		detourer: detourer,
		logger:   logger.Named("hooks"),
		hooks:    make(map[string]Record),
	}
}

// Initialize prepares the primitive. It is safe to call more than once.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}
	if err := m.detourer.Initialize(); err != nil {
		return fmt.Errorf("%w: initialize: %v", domain.ErrHooking, err)
	}
	m.initialized = true
	return nil
}

// Install detours target to detour under a unique name and returns the
// trampoline to the original code.
func (m *Manager) Install(name string, target, detour uintptr) (uintptr, error) {
	return m.install(m.logger, name, target, detour)
}

// InstallLogged is Install writing its lines to logger
func (m *Manager) InstallLogged(logger hclog.Logger, name string, target, detour uintptr) (uintptr, error) {
	return m.install(logger.Named("hooks"), name, target, detour)
}

func (m *Manager) install(logger hclog.Logger, name string, target, detour uintptr) (uintptr, error) {
	if name == "" || target == 0 || detour == 0 {
		return 0, fmt.Errorf("%w: hook %q needs a name, a target and a detour", domain.ErrInvalidParam, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return 0, fmt.Errorf("%w: manager is not initialized", domain.ErrHooking)
	}
	if _, exists := m.hooks[name]; exists {
		logger.Warn("hook already exists", "name", name)
		return 0, fmt.Errorf("%w: %q", domain.ErrDuplicateHook, name)
	}

	original, err := m.detourer.CreateHook(target, detour)
	if err != nil {
		logger.Error("create failed", "name", name, "error", err)
		return 0, fmt.Errorf("%w: create %q: %v", domain.ErrHooking, name, err)
	}
	logger.Debug("created", "name", name, "target", hclog.Fmt("%#x", target), "detour", hclog.Fmt("%#x", detour))

	if err := m.detourer.EnableHook(target); err != nil {
		logger.Error("enable failed", "name", name, "error", err)
		if rmErr := m.detourer.RemoveHook(target); rmErr != nil {
			logger.Warn("rollback remove failed", "name", name, "error", rmErr)
		}
		return 0, fmt.Errorf("%w: enable %q: %v", domain.ErrHooking, name, err)
	}

	m.counter++
	m.hooks[name] = Record{
		Name:     name,
		Target:   target,
		Detour:   detour,
		Original: original,
		Identity: m.counter,
	}

	logger.Info("installed", "name", name, "target", hclog.Fmt("%#x", target), "identity", m.counter)
	return original, nil
}

// Uninstall removes the hook installed under name
func (m *Manager) Uninstall(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, exists := m.hooks[name]
	if !exists {
		m.logger.Warn("hook does not exist", "name", name)
		return fmt.Errorf("%w: %q", domain.ErrHookNotFound, name)
	}

	if err := m.detourer.RemoveHook(record.Target); err != nil {
		m.logger.Error("remove failed", "name", name, "error", err)
		return fmt.Errorf("%w: remove %q: %v", domain.ErrHooking, name, err)
	}
	delete(m.hooks, name)

	m.logger.Info("uninstalled", "name", name, "identity", record.Identity)
	return nil
}

// Exists reports whether a hook is installed under name
func (m *Manager) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.hooks[name]
	return exists
}

// Get returns the record installed under name
func (m *Manager) Get(name string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, exists := m.hooks[name]
	return record, exists
}

// Records returns all installed hooks ordered by identity
func (m *Manager) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]Record, 0, len(m.hooks))
	for _, record := range m.hooks {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Identity < records[j].Identity })
	return records
}

// Shutdown removes every hook and releases the primitive. Best effort.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil
	}
	for name, record := range m.hooks {
		if err := m.detourer.RemoveHook(record.Target); err != nil {
			m.logger.Warn("remove on shutdown failed", "name", name, "error", err)
		}
		delete(m.hooks, name)
	}
	m.initialized = false
	return m.detourer.Uninitialize()
}
