//go:build windows

package platform

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"lebinkproxy.dev/proxy/internal/core/domain"
	"lebinkproxy.dev/proxy/internal/core/plugins"
)

// DLLLoader loads plugins with LoadLibraryW. Libraries are never released.
type DLLLoader struct{}

var _ plugins.Loader = DLLLoader{}

// Load implements plugins.Loader
func (DLLLoader) Load(path string) (plugins.Library, error) {
	dll, err := windows.LoadDLL(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return &dllLibrary{path: path, dll: dll}, nil
}

type dllLibrary struct {
	path string
	dll  *windows.DLL
}

func (l *dllLibrary) Path() string {
	return l.path
}

func (l *dllLibrary) proc(name string) uintptr {
	p, err := l.dll.FindProc(name)
	if err != nil {
		return 0
	}
	return p.Addr()
}

func (l *dllLibrary) Probe() plugins.Capabilities {
	var caps plugins.Capabilities

	if fn := l.proc(plugins.SymbolSupportDecl); fn != 0 {
		caps.HasDeclaration = true
		caps.Declare = func() plugins.Declaration { return declare(fn) }
	}
	if fn := l.proc(plugins.SymbolShouldPreload); fn != 0 {
		caps.HasPreload = true
		caps.ShouldPreload = func() bool { return callBool(fn) }
	}
	if fn := l.proc(plugins.SymbolShouldSpawnThread); fn != 0 {
		caps.HasSpawnThread = true
		caps.ShouldSpawnThread = func() bool { return callBool(fn) }
	}
	if fn := l.proc(plugins.SymbolOnAttach); fn != 0 {
		caps.HasAttach = true
		caps.Attach = func(service uintptr) bool { return callBool(fn, service) }
	}
	if fn := l.proc(plugins.SymbolOnDetach); fn != 0 {
		caps.HasDetach = true
		caps.Detach = func(service uintptr) bool { return callBool(fn, service) }
	}
	return caps
}

// callBool calls a function returning a C++ bool, which only sets AL
func callBool(fn uintptr, args ...uintptr) bool {
	r1, _, _ := syscall.SyscallN(fn, args...)
	return r1&0xff != 0
}

func declare(fn uintptr) plugins.Declaration {
	var name, author, version *uint16
	var flags, minVersion int32

	syscall.SyscallN(fn,
		uintptr(unsafe.Pointer(&name)),
		uintptr(unsafe.Pointer(&author)),
		uintptr(unsafe.Pointer(&version)),
		uintptr(unsafe.Pointer(&flags)),
		uintptr(unsafe.Pointer(&minVersion)))

	return plugins.Declaration{
		Name:              windows.UTF16PtrToString(name),
		Author:            windows.UTF16PtrToString(author),
		Version:           windows.UTF16PtrToString(version),
		Targets:           domain.GameFlags(uint32(flags)),
		MinServiceVersion: uint32(minVersion),
	}
}
