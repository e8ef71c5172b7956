//go:build !windows

package platform

import (
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"lebinkproxy.dev/proxy/internal/core/domain"
)

// CurrentExecutable returns the host's image path, pid and command line
func CurrentExecutable() (path string, pid uint32, cmdLine string, err error) {
	path, err = os.Executable()
	if err != nil {
		return "", 0, "", err
	}
	return path, uint32(os.Getpid()), strings.Join(os.Args, " "), nil
}

// MessageBoxNotifier falls back to stderr
type MessageBoxNotifier = StderrNotifier

// Console falls back to the inherited terminal
type Console = NoConsole

// MainModule cannot locate the main image on this OS
type MainModule struct{}

// ModuleImage implements scanner.ImageSource
func (MainModule) ModuleImage() (uintptr, []byte, error) {
	return 0, nil, ErrUnsupported
}

// Threads cannot suspend threads on this OS
type Threads struct{}

// NewThreads creates the unsupported controller
func NewThreads() *Threads { return &Threads{} }

// CurrentThreadID implements gate.ThreadController
func (*Threads) CurrentThreadID() uint32 { return 0 }

// ThreadIDs implements gate.ThreadController
func (*Threads) ThreadIDs() ([]uint32, error) { return nil, ErrUnsupported }

// Suspend implements gate.ThreadController
func (*Threads) Suspend(uint32) error { return ErrUnsupported }

// Resume implements gate.ThreadController
func (*Threads) Resume(uint32) error { return ErrUnsupported }

// WindowWatcher has no window creation to watch on this OS
type WindowWatcher struct{}

// NewWindowWatcher creates the unsupported watcher
func NewWindowWatcher(HookTable) *WindowWatcher { return &WindowWatcher{} }

// Watch implements gate.WindowWatcher
func (*WindowWatcher) Watch(func(title string)) error { return ErrUnsupported }

// Unwatch implements gate.WindowWatcher
func (*WindowWatcher) Unwatch() error { return nil }

// WindowSource has no windows to list on this OS
type WindowSource struct{}

// TopLevelTitles implements gate.WindowSource
func (WindowSource) TopLevelTitles() ([]string, error) { return nil, ErrUnsupported }

// MinHook is unavailable on this OS
type MinHook struct{}

// NewMinHook creates the unsupported primitive
func NewMinHook(string) *MinHook { return &MinHook{} }

// Initialize implements hooks.Detourer
func (*MinHook) Initialize() error { return ErrUnsupported }

// CreateHook implements hooks.Detourer
func (*MinHook) CreateHook(uintptr, uintptr) (uintptr, error) { return 0, ErrUnsupported }

// EnableHook implements hooks.Detourer
func (*MinHook) EnableHook(uintptr) error { return ErrUnsupported }

// RemoveHook implements hooks.Detourer
func (*MinHook) RemoveHook(uintptr) error { return ErrUnsupported }

// Uninitialize implements hooks.Detourer
func (*MinHook) Uninitialize() error { return nil }

// BindPatcher is unavailable on this OS
type BindPatcher struct{}

// NewBindPatcher creates the unsupported patcher
func NewBindPatcher(hclog.Logger) *BindPatcher { return &BindPatcher{} }

// Detour implements modules.BindPatcher
func (*BindPatcher) Detour(domain.Game, uintptr) (uintptr, error) { return 0, ErrUnsupported }

// SetOriginal implements modules.BindPatcher
func (*BindPatcher) SetOriginal(uintptr) {}
