//go:build unix

package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sys/unix"

	"lebinkproxy.dev/proxy/internal/core/domain"
	"lebinkproxy.dev/proxy/internal/core/handshake"
)

// SharedMemory maps named files under the shared memory directory
type SharedMemory struct {
	// Dir overrides the backing directory
	Dir string
}

var _ handshake.Mapper = SharedMemory{}

func (m SharedMemory) path(name string) string {
	dir := m.Dir
	if dir == "" {
		dir = "/dev/shm"
		if runtime.GOOS != "linux" {
			dir = os.TempDir()
		}
	}
	return filepath.Join(dir, name)
}

// Create implements handshake.Mapper
func (m SharedMemory) Create(name string, size int) (handshake.Region, error) {
	path := m.path(name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: create %q: %v", domain.ErrSharedMemory, name, err)
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("%w: size %q: %v", domain.ErrSharedMemory, name, err)
	}
	return mapFile(f, path, size, true)
}

// Open implements handshake.Mapper
func (m SharedMemory) Open(name string) (handshake.Region, error) {
	path := m.path(name)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", domain.ErrSharedMemory, name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %q: %v", domain.ErrSharedMemory, name, err)
	}
	return mapFile(f, path, int(info.Size()), false)
}

func mapFile(f *os.File, path string, size int, owner bool) (handshake.Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %q is empty", domain.ErrSharedMemory, path)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %q: %v", domain.ErrSharedMemory, path, err)
	}
	return &fileView{path: path, data: data, owner: owner}, nil
}

type fileView struct {
	path  string
	data  []byte
	owner bool
	once  sync.Once
	err   error
}

func (v *fileView) Bytes() []byte {
	return v.data
}

// Close unmaps the view. The creating side also removes the name.
func (v *fileView) Close() error {
	v.once.Do(func() {
		err := unix.Munmap(v.data)
		v.data = nil
		if v.owner {
			if rmErr := os.Remove(v.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				err = errors.Join(err, rmErr)
			}
		}
		v.err = err
	})
	return v.err
}
