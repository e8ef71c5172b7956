//go:build windows

// Command proxydll is the proxy DLL. Build with -buildmode=c-shared; the
// Go runtime runs init when the game loads the DLL.
package main

/*
#include "spi.h"
*/
import "C"

import (
	"context"
	"runtime"
	"unsafe"

	"lebinkproxy.dev/proxy/internal/core/domain"
	"lebinkproxy.dev/proxy/internal/core/spi"
	"lebinkproxy.dev/proxy/internal/interfaces/di"
)

func init() {
	go run()
}

func run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	container, sink, err := di.Bootstrap(di.BootstrapOptions{Expose: expose})
	if err != nil {
		if sink != nil {
			sink.Logger.Error("bootstrap failed", "error", err)
			_ = sink.Close()
		}
		return
	}

	report, err := container.Host.Start(context.Background())
	if err != nil {
		container.Logger.Error("startup aborted", "error", err)
		return
	}
	container.Logger.Debug("startup report", "published", report.Published, "gate", report.Gate,
		"pre_init", report.PreInit, "post_init", report.PostInit)
}

// expose wraps the service handle in the object plugins call through.
// The object lives as long as the process.
func expose(handle uintptr) uintptr {
	return uintptr(unsafe.Pointer(C.spiNewObject(C.uintptr_t(handle))))
}

func code(c domain.ReturnCode) C.SPIReturn {
	return C.SPIReturn(c)
}

func lookup(self *C.SpiObject) (*spi.Service, C.SPIReturn) {
	if self == nil {
		return nil, code(domain.FailureInvalidParam)
	}
	svc, ok := spi.Handles.Lookup(uintptr(self.handle))
	if !ok {
		return nil, code(domain.CodeOf(domain.ErrNullPointer))
	}
	return svc, code(domain.Success)
}

//export spiGetVersion
func spiGetVersion(self *C.SpiObject, outVersion *C.ulong) C.SPIReturn {
	svc, rc := lookup(self)
	if svc == nil {
		return rc
	}
	if outVersion == nil {
		return code(domain.FailureInvalidParam)
	}
	*outVersion = C.ulong(svc.Version())
	return rc
}

//export spiGetBuildMode
func spiGetBuildMode(self *C.SpiObject, outIsRelease *C.uchar) C.SPIReturn {
	svc, rc := lookup(self)
	if svc == nil {
		return rc
	}
	if outIsRelease == nil {
		return code(domain.FailureInvalidParam)
	}
	*outIsRelease = 0
	if svc.IsRelease() {
		*outIsRelease = 1
	}
	return rc
}

//export spiGetHostGame
func spiGetHostGame(self *C.SpiObject, outGame *C.int) C.SPIReturn {
	svc, rc := lookup(self)
	if svc == nil {
		return rc
	}
	if outGame == nil {
		return code(domain.FailureInvalidParam)
	}
	*outGame = C.int(svc.HostGame())
	return rc
}

//export spiFindPattern
func spiFindPattern(self *C.SpiObject, outOffset *C.uintptr_t, pattern *C.char) C.SPIReturn {
	svc, rc := lookup(self)
	if svc == nil {
		return rc
	}
	if outOffset == nil || pattern == nil {
		return code(domain.FailureInvalidParam)
	}
	*outOffset = 0
	addr, err := svc.FindPattern(C.GoString(pattern))
	if err != nil {
		return code(domain.CodeOf(err))
	}
	*outOffset = C.uintptr_t(addr)
	return rc
}

//export spiInstallHook
func spiInstallHook(self *C.SpiObject, name *C.char, target, detour C.uintptr_t, outOriginal *C.uintptr_t) C.SPIReturn {
	svc, rc := lookup(self)
	if svc == nil {
		return rc
	}
	if name == nil || outOriginal == nil {
		return code(domain.FailureInvalidParam)
	}
	original, err := svc.InstallHook(C.GoString(name), uintptr(target), uintptr(detour))
	if err != nil {
		return code(domain.CodeOf(err))
	}
	*outOriginal = C.uintptr_t(original)
	return rc
}

//export spiUninstallHook
func spiUninstallHook(self *C.SpiObject, name *C.char) C.SPIReturn {
	svc, rc := lookup(self)
	if svc == nil {
		return rc
	}
	if name == nil {
		return code(domain.FailureInvalidParam)
	}
	return code(domain.CodeOf(svc.UninstallHook(C.GoString(name))))
}

//export spiOpenSharedConsole
func spiOpenSharedConsole(self *C.SpiObject) C.SPIReturn {
	svc, rc := lookup(self)
	if svc == nil {
		return rc
	}
	return code(domain.CodeOf(svc.OpenSharedConsole()))
}

//export spiCloseSharedConsole
func spiCloseSharedConsole(self *C.SpiObject) C.SPIReturn {
	svc, rc := lookup(self)
	if svc == nil {
		return rc
	}
	return code(domain.CodeOf(svc.CloseSharedConsole()))
}

func main() {}
