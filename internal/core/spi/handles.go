package spi

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"lebinkproxy.dev/proxy/internal/core/domain"
	"lebinkproxy.dev/proxy/internal/core/handshake"
)

// handleBase keeps handles away from small integers a plugin might pass by mistake
const handleBase uintptr = 0x5350_0000

// HandleTable maps opaque handles to services. The handshake record stores a
// handle, never a Go pointer.
type HandleTable struct {
	mu       sync.RWMutex
	next     uintptr
	services map[uintptr]*Service
}

// NewHandleTable creates an empty table
func NewHandleTable() *HandleTable {
	return &HandleTable{
		next:     handleBase,
		services: make(map[uintptr]*Service),
	}
}

// Handles is the process-wide table used by the exported ABI
var Handles = NewHandleTable()

// Register returns a fresh handle for svc
func (t *HandleTable) Register(svc *Service) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	t.services[t.next] = svc
	return t.next
}

// Lookup resolves a handle
func (t *HandleTable) Lookup(handle uintptr) (*Service, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	svc, ok := t.services[handle]
	return svc, ok
}

// Unregister forgets a handle
func (t *HandleTable) Unregister(handle uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.services, handle)
}

// Acquire runs the plugin-side handshake and resolves the handle to a service
func Acquire(table *HandleTable, mapper handshake.Mapper, pid uint32, minVersion uint32, game domain.Game, callerName, callerAuthor string, logger hclog.Logger) (*Service, error) {
	handle, err := handshake.NewClient(mapper, pid, logger).Acquire(minVersion, game, callerName, callerAuthor)
	if err != nil {
		return nil, err
	}

	svc, ok := table.Lookup(handle)
	if !ok {
		return nil, fmt.Errorf("%w: handle %#x is not registered", domain.ErrNullPointer, handle)
	}
	return svc, nil
}
