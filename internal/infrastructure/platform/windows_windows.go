//go:build windows

package platform

import (
	"fmt"
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"lebinkproxy.dev/proxy/internal/core/gate"
)

// Windows callbacks cannot be freed, so each trampoline is created once
var (
	createWindow struct {
		once     sync.Once
		callback uintptr

		mu       sync.RWMutex
		onCreate func(title string)
		original uintptr
	}

	enumWindows struct {
		once     sync.Once
		callback uintptr

		mu     sync.Mutex
		pid    uint32
		titles []string
	}
)

func createWindowExDetour(exStyle, className, windowName, style, x, y, width, height, parent, menu, instance, param uintptr) uintptr {
	createWindow.mu.RLock()
	onCreate, original := createWindow.onCreate, createWindow.original
	createWindow.mu.RUnlock()

	if onCreate != nil && windowName != 0 {
		onCreate(windows.UTF16PtrToString((*uint16)(unsafe.Pointer(windowName))))
	}

	// the trampoline is stored right after the hook is enabled
	for original == 0 {
		runtime.Gosched()
		createWindow.mu.RLock()
		original = createWindow.original
		createWindow.mu.RUnlock()
	}

	r1, _, _ := syscall.SyscallN(original, exStyle, className, windowName, style, x, y, width, height, parent, menu, instance, param)
	return r1
}

// WindowWatcher reports window creation by detouring user32!CreateWindowExW
type WindowWatcher struct {
	hooks HookTable
}

var _ gate.WindowWatcher = (*WindowWatcher)(nil)

// NewWindowWatcher creates a watcher that installs its detour through hooks
func NewWindowWatcher(hooks HookTable) *WindowWatcher {
	return &WindowWatcher{hooks: hooks}
}

// Watch implements gate.WindowWatcher
func (w *WindowWatcher) Watch(onCreate func(title string)) error {
	if err := procCreateWindowExW.Find(); err != nil {
		return fmt.Errorf("resolve CreateWindowExW: %w", err)
	}
	createWindow.once.Do(func() {
		createWindow.callback = windows.NewCallback(createWindowExDetour)
	})

	createWindow.mu.Lock()
	createWindow.onCreate = onCreate
	createWindow.original = 0
	createWindow.mu.Unlock()

	original, err := w.hooks.Install(CreateWindowHookName, procCreateWindowExW.Addr(), createWindow.callback)
	if err != nil {
		createWindow.mu.Lock()
		createWindow.onCreate = nil
		createWindow.mu.Unlock()
		return err
	}

	createWindow.mu.Lock()
	createWindow.original = original
	createWindow.mu.Unlock()
	return nil
}

// Unwatch implements gate.WindowWatcher
func (w *WindowWatcher) Unwatch() error {
	createWindow.mu.Lock()
	createWindow.onCreate = nil
	createWindow.mu.Unlock()
	return w.hooks.Uninstall(CreateWindowHookName)
}

func enumWindowsProc(hwnd windows.HWND, _ uintptr) uintptr {
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil || pid != enumWindows.pid {
		return 1
	}
	if visible, _, _ := procIsWindowVisible.Call(uintptr(hwnd)); visible == 0 {
		return 1
	}

	buf := make([]uint16, 256)
	// Zero means no title or a failed call.
	n, _, _ := procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n > 0 && int(n) <= len(buf) {
		enumWindows.titles = append(enumWindows.titles, windows.UTF16ToString(buf[:n]))
	}
	return 1
}

// WindowSource lists the visible top-level windows of this process
type WindowSource struct{}

var _ gate.WindowSource = WindowSource{}

// TopLevelTitles implements gate.WindowSource
func (WindowSource) TopLevelTitles() ([]string, error) {
	enumWindows.once.Do(func() {
		enumWindows.callback = windows.NewCallback(enumWindowsProc)
	})

	enumWindows.mu.Lock()
	defer enumWindows.mu.Unlock()

	enumWindows.pid = windows.GetCurrentProcessId()
	enumWindows.titles = nil
	if err := windows.EnumWindows(enumWindows.callback, nil); err != nil {
		return nil, fmt.Errorf("enumerate windows: %w", err)
	}
	return enumWindows.titles, nil
}
