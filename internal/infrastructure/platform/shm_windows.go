//go:build windows

package platform

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"lebinkproxy.dev/proxy/internal/core/domain"
	"lebinkproxy.dev/proxy/internal/core/handshake"
)

// sessionNamespace keeps the mapping private to the user's session
const sessionNamespace = `Local\`

// SharedMemory maps named pagefile-backed sections
type SharedMemory struct{}

var _ handshake.Mapper = SharedMemory{}

// Create implements handshake.Mapper
func (SharedMemory) Create(name string, size int) (handshake.Region, error) {
	namep, err := windows.UTF16PtrFromString(sessionNamespace + name)
	if err != nil {
		return nil, err
	}

	section, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE, 0, uint32(size), namep)
	if section == 0 {
		return nil, fmt.Errorf("%w: create mapping %q: %v", domain.ErrSharedMemory, name, err)
	}
	if err != nil && !errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		windows.CloseHandle(section)
		return nil, fmt.Errorf("%w: create mapping %q: %v", domain.ErrSharedMemory, name, err)
	}

	return mapSection(section, name, size)
}

// Open implements handshake.Mapper
func (SharedMemory) Open(name string) (handshake.Region, error) {
	namep, err := windows.UTF16PtrFromString(sessionNamespace + name)
	if err != nil {
		return nil, err
	}

	r1, _, callErr := procOpenFileMappingW.Call(
		uintptr(windows.FILE_MAP_READ|windows.FILE_MAP_WRITE), 0, uintptr(unsafe.Pointer(namep)))
	if r1 == 0 {
		return nil, fmt.Errorf("%w: open mapping %q: %v", domain.ErrSharedMemory, name, callErr)
	}
	return mapSection(windows.Handle(r1), name, 0)
}

func mapSection(section windows.Handle, name string, size int) (handshake.Region, error) {
	addr, err := windows.MapViewOfFile(section, windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(section)
		return nil, fmt.Errorf("%w: map view of %q: %v", domain.ErrSharedMemory, name, err)
	}

	if size == 0 {
		var mbi windows.MemoryBasicInformation
		if err := windows.VirtualQuery(addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
			windows.UnmapViewOfFile(addr)
			windows.CloseHandle(section)
			return nil, fmt.Errorf("%w: query view of %q: %v", domain.ErrSharedMemory, name, err)
		}
		size = int(mbi.RegionSize)
	}

	return &sectionView{
		section: section,
		addr:    addr,
		data:    unsafe.Slice((*byte)(unsafe.Pointer(addr)), size),
	}, nil
}

type sectionView struct {
	section windows.Handle
	addr    uintptr
	data    []byte
	once    sync.Once
	err     error
}

func (v *sectionView) Bytes() []byte {
	return v.data
}

func (v *sectionView) Close() error {
	v.once.Do(func() {
		v.data = nil
		v.err = errors.Join(windows.UnmapViewOfFile(v.addr), windows.CloseHandle(v.section))
	})
	return v.err
}
