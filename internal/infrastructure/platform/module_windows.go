//go:build windows

package platform

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// MainModule is the scanner image source for the host executable
type MainModule struct{}

// ModuleImage implements scanner.ImageSource
func (MainModule) ModuleImage() (uintptr, []byte, error) {
	var module windows.Handle
	if err := windows.GetModuleHandleEx(0, nil, &module); err != nil {
		return 0, nil, fmt.Errorf("get module handle: %w", err)
	}
	defer windows.FreeLibrary(module)

	var info windows.ModuleInfo
	if err := windows.GetModuleInformation(windows.CurrentProcess(), module, &info, uint32(unsafe.Sizeof(info))); err != nil {
		return 0, nil, fmt.Errorf("get module information: %w", err)
	}
	if info.BaseOfDll == 0 || info.SizeOfImage == 0 {
		return 0, nil, fmt.Errorf("empty module range")
	}

	image := unsafe.Slice((*byte)(unsafe.Pointer(info.BaseOfDll)), int(info.SizeOfImage))
	return info.BaseOfDll, image, nil
}
