//go:build windows

package platform

import (
	"os"

	"golang.org/x/sys/windows"
)

// Procs that x/sys/windows does not wrap
var (
	modkernel32 = windows.NewLazySystemDLL("kernel32.dll")
	moduser32   = windows.NewLazySystemDLL("user32.dll")

	procSuspendThread    = modkernel32.NewProc("SuspendThread")
	procOpenFileMappingW = modkernel32.NewProc("OpenFileMappingW")
	procAllocConsole     = modkernel32.NewProc("AllocConsole")
	procFreeConsole      = modkernel32.NewProc("FreeConsole")

	procCreateWindowExW = moduser32.NewProc("CreateWindowExW")
	procIsWindowVisible = moduser32.NewProc("IsWindowVisible")
	procGetWindowTextW  = moduser32.NewProc("GetWindowTextW")
)

const (
	threadSuspendResume = 0x0002
	mbOK                = 0x00000000
	mbIconError         = 0x00000010
	mbSetForeground     = 0x00010000
)

// CurrentExecutable returns the host's image path, pid and command line
func CurrentExecutable() (path string, pid uint32, cmdLine string, err error) {
	path, err = os.Executable()
	if err != nil {
		return "", 0, "", err
	}
	return path, windows.GetCurrentProcessId(), windows.UTF16PtrToString(windows.GetCommandLine()), nil
}

// MessageBoxNotifier shows a blocking message box
type MessageBoxNotifier struct{}

// Alert implements identity.Notifier
func (MessageBoxNotifier) Alert(title, message string) {
	t, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return
	}
	m, err := windows.UTF16PtrFromString(message)
	if err != nil {
		return
	}
	_, _ = windows.MessageBox(0, m, t, mbOK|mbIconError|mbSetForeground)
}

// Console allocates a console window for the process
type Console struct{}

// Open implements spi.Console
func (Console) Open() error {
	if r1, _, err := procAllocConsole.Call(); r1 == 0 {
		return err
	}
	return nil
}

// Close implements spi.Console
func (Console) Close() error {
	if r1, _, err := procFreeConsole.Call(); r1 == 0 {
		return err
	}
	return nil
}
