//go:build windows

package platform

import (
	"fmt"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"

	"lebinkproxy.dev/proxy/internal/core/hooks"
)

// MinHookLibrary is the file name of the hooking engine
const MinHookLibrary = "MinHook.x64.dll"

// MH_STATUS values that are not failures
const (
	mhOK                 = 0
	mhErrorAlreadyInit   = 1
	mhErrorNotInitialize = 2
)

// MinHook binds the MinHook engine shipped next to the proxy
type MinHook struct {
	dll *windows.LazyDLL

	initialize   *windows.LazyProc
	uninitialize *windows.LazyProc
	createHook   *windows.LazyProc
	enableHook   *windows.LazyProc
	removeHook   *windows.LazyProc
}

var _ hooks.Detourer = (*MinHook)(nil)

// NewMinHook binds the engine from dir. An empty dir uses the search path.
func NewMinHook(dir string) *MinHook {
	name := MinHookLibrary
	if dir != "" {
		name = filepath.Join(dir, MinHookLibrary)
	}
	dll := windows.NewLazyDLL(name)
	return &MinHook{
		dll:          dll,
		initialize:   dll.NewProc("MH_Initialize"),
		uninitialize: dll.NewProc("MH_Uninitialize"),
		createHook:   dll.NewProc("MH_CreateHook"),
		enableHook:   dll.NewProc("MH_EnableHook"),
		removeHook:   dll.NewProc("MH_RemoveHook"),
	}
}

func status(op string, r1 uintptr) error {
	if int32(r1) == mhOK {
		return nil
	}
	return fmt.Errorf("%s: MH_STATUS %d", op, int32(r1))
}

// Initialize implements hooks.Detourer
func (m *MinHook) Initialize() error {
	if err := m.dll.Load(); err != nil {
		return fmt.Errorf("load %s: %w", MinHookLibrary, err)
	}
	r1, _, _ := m.initialize.Call()
	if int32(r1) == mhErrorAlreadyInit {
		return nil
	}
	return status("MH_Initialize", r1)
}

// CreateHook implements hooks.Detourer
func (m *MinHook) CreateHook(target, detour uintptr) (uintptr, error) {
	var original uintptr
	r1, _, _ := m.createHook.Call(target, detour, uintptr(unsafe.Pointer(&original)))
	if err := status("MH_CreateHook", r1); err != nil {
		return 0, err
	}
	return original, nil
}

// EnableHook implements hooks.Detourer
func (m *MinHook) EnableHook(target uintptr) error {
	r1, _, _ := m.enableHook.Call(target)
	return status("MH_EnableHook", r1)
}

// RemoveHook implements hooks.Detourer
func (m *MinHook) RemoveHook(target uintptr) error {
	r1, _, _ := m.removeHook.Call(target)
	return status("MH_RemoveHook", r1)
}

// Uninitialize implements hooks.Detourer
func (m *MinHook) Uninitialize() error {
	r1, _, _ := m.uninitialize.Call()
	if int32(r1) == mhErrorNotInitialize {
		return nil
	}
	return status("MH_Uninitialize", r1)
}
