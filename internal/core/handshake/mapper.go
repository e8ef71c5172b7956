package handshake

import (
	"fmt"
	"sync"

	"lebinkproxy.dev/proxy/internal/core/domain"
)

// Region is a mapped view of a named shared memory block
type Region interface {
	Bytes() []byte
	Close() error
}

// Mapper creates and opens named shared memory
type Mapper interface {
	// Create allocates a block of size bytes under name.
	Create(name string, size int) (Region, error)
	// Open maps an existing block; the view covers the whole block.
	Open(name string) (Region, error)
}

// MemoryMapper keeps named blocks in process memory.
// Useful where both sides live in one Go process, and in tests.
type MemoryMapper struct {
	mu     sync.Mutex
	blocks map[string]*memoryBlock
}

type memoryBlock struct {
	data []byte
	refs int
}

// NewMemoryMapper creates an empty in-process mapper
func NewMemoryMapper() *MemoryMapper {
	return &MemoryMapper{blocks: make(map[string]*memoryBlock)}
}

// Create implements Mapper
func (m *MemoryMapper) Create(name string, size int) (Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	block, ok := m.blocks[name]
	if !ok {
		block = &memoryBlock{data: make([]byte, size)}
		m.blocks[name] = block
	}
	block.refs++
	return &memoryRegion{mapper: m, name: name, block: block}, nil
}

// Open implements Mapper
func (m *MemoryMapper) Open(name string) (Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	block, ok := m.blocks[name]
	if !ok {
		return nil, fmt.Errorf("%w: no mapping named %q", domain.ErrSharedMemory, name)
	}
	block.refs++
	return &memoryRegion{mapper: m, name: name, block: block}, nil
}

// Exists reports whether a block is currently mapped under name
func (m *MemoryMapper) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.blocks[name]
	return ok
}

func (m *MemoryMapper) release(name string, block *memoryBlock) {
	m.mu.Lock()
	defer m.mu.Unlock()

	block.refs--
	if block.refs <= 0 && m.blocks[name] == block {
		delete(m.blocks, name)
	}
}

type memoryRegion struct {
	mapper *MemoryMapper
	name   string
	block  *memoryBlock
	once   sync.Once
}

func (r *memoryRegion) Bytes() []byte {
	return r.block.data
}

func (r *memoryRegion) Close() error {
	r.once.Do(func() { r.mapper.release(r.name, r.block) })
	return nil
}
