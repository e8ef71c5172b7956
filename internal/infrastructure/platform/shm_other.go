//go:build !windows && !unix

package platform

import (
	"lebinkproxy.dev/proxy/internal/core/handshake"
)

// SharedMemory has no backing on this OS
type SharedMemory struct {
	Dir string
}

// Create implements handshake.Mapper
func (SharedMemory) Create(name string, size int) (handshake.Region, error) {
	return nil, ErrUnsupported
}

// Open implements handshake.Mapper
func (SharedMemory) Open(name string) (handshake.Region, error) {
	return nil, ErrUnsupported
}
