//go:build darwin || linux

package platform

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"

	"lebinkproxy.dev/proxy/internal/core/domain"
	"lebinkproxy.dev/proxy/internal/core/plugins"
)

// maxWideString bounds the strings read back from a declaration
const maxWideString = 1024

// DLLLoader loads plugins as shared objects with dlopen. Handles are never closed.
type DLLLoader struct{}

var _ plugins.Loader = DLLLoader{}

// Load implements plugins.Loader
func (DLLLoader) Load(path string) (plugins.Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return &sharedObject{path: path, handle: handle}, nil
}

type sharedObject struct {
	path   string
	handle uintptr
}

func (l *sharedObject) Path() string {
	return l.path
}

func (l *sharedObject) sym(name string) uintptr {
	addr, err := purego.Dlsym(l.handle, name)
	if err != nil {
		return 0
	}
	return addr
}

func (l *sharedObject) Probe() plugins.Capabilities {
	var caps plugins.Capabilities

	if fn := l.sym(plugins.SymbolSupportDecl); fn != 0 {
		var declare func(name, author, version, flags, minVersion unsafe.Pointer)
		purego.RegisterFunc(&declare, fn)
		caps.HasDeclaration = true
		caps.Declare = func() plugins.Declaration {
			var name, author, version *int32
			var flags, minVersion int32
			declare(unsafe.Pointer(&name), unsafe.Pointer(&author), unsafe.Pointer(&version),
				unsafe.Pointer(&flags), unsafe.Pointer(&minVersion))
			return plugins.Declaration{
				Name:              wideString(name),
				Author:            wideString(author),
				Version:           wideString(version),
				Targets:           domain.GameFlags(uint32(flags)),
				MinServiceVersion: uint32(minVersion),
			}
		}
	}
	if fn := l.sym(plugins.SymbolShouldPreload); fn != 0 {
		var preload func() bool
		purego.RegisterFunc(&preload, fn)
		caps.HasPreload = true
		caps.ShouldPreload = preload
	}
	if fn := l.sym(plugins.SymbolShouldSpawnThread); fn != 0 {
		var spawn func() bool
		purego.RegisterFunc(&spawn, fn)
		caps.HasSpawnThread = true
		caps.ShouldSpawnThread = spawn
	}
	if fn := l.sym(plugins.SymbolOnAttach); fn != 0 {
		var attach func(uintptr) bool
		purego.RegisterFunc(&attach, fn)
		caps.HasAttach = true
		caps.Attach = attach
	}
	if fn := l.sym(plugins.SymbolOnDetach); fn != 0 {
		var detach func(uintptr) bool
		purego.RegisterFunc(&detach, fn)
		caps.HasDetach = true
		caps.Detach = detach
	}
	return caps
}

// wideString decodes a NUL-terminated 32-bit wchar_t string
func wideString(p *int32) string {
	if p == nil {
		return ""
	}
	runes := make([]rune, 0, 32)
	for i := 0; i < maxWideString; i++ {
		u := *(*int32)(unsafe.Add(unsafe.Pointer(p), i*4))
		if u == 0 {
			break
		}
		runes = append(runes, rune(u))
	}
	return string(runes)
}
