// Package platform implements the OS collaborators of the core packages:
// module images, shared memory, threads, windows, plugin loading, the
// hooking primitive, the shared console and user notifications.
package platform

import (
	"fmt"
	"os"
	"runtime"

	"lebinkproxy.dev/proxy/internal/core/domain"
)

// ErrUnsupported is returned by collaborators that have no implementation
// on the running OS
var ErrUnsupported = fmt.Errorf("%w: %s", domain.ErrUnsupported, runtime.GOOS)

// CreateWindowHookName is the hook table name of the window watch
const CreateWindowHookName = "CreateWindowExW"

// HookTable installs named detours
type HookTable interface {
	Install(name string, target, detour uintptr) (uintptr, error)
	Uninstall(name string) error
}

// StderrNotifier writes alerts to stderr. Used where no message box exists.
type StderrNotifier struct{}

// Alert implements identity.Notifier
func (StderrNotifier) Alert(title, message string) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", title, message)
}

// NoConsole is a shared console that only counts. Used where the host
// process already owns a terminal.
type NoConsole struct{}

// Open implements spi.Console
func (NoConsole) Open() error { return nil }

// Close implements spi.Console
func (NoConsole) Close() error { return nil }
