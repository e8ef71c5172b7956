package handshake

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"lebinkproxy.dev/proxy/internal/core/domain"
)

// Broker is the host side: it owns the published record
type Broker struct {
	mapper    Mapper
	host      domain.HostContext
	buildDate string
	logger    hclog.Logger

	mu      sync.Mutex
	created bool
	name    string
	region  Region
	record  Record
}

// NewBroker creates a host-side broker for the given process
func NewBroker(mapper Mapper, host domain.HostContext, logger hclog.Logger) *Broker {
	return &Broker{
		mapper:    mapper,
		host:      host,
		buildDate: time.Now().UTC().Format("Jan 02 2006 15:04:05"),
		logger:    logger.Named("handshake"),
	}
}

// Create publishes the record pointing at servicePointer.
// A second call returns the already published record.
func (b *Broker) Create(servicePointer uintptr) (Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.created {
		return b.record, nil
	}
	if servicePointer == 0 {
		return Record{}, fmt.Errorf("%w: cannot publish a null service", domain.ErrNullPointer)
	}

	name := MemoryName(b.host.Game(), b.host.PID)
	b.logger.Info("creating a file mapping", "name", name, "size", RecordSize)

	region, err := b.mapper.Create(name, RecordSize)
	if err != nil {
		return Record{}, fmt.Errorf("%w: create %q: %v", domain.ErrSharedMemory, name, err)
	}

	record := NewRecord(b.buildDate, domain.BuildMode, servicePointer)
	if err := record.Encode(region.Bytes()); err != nil {
		_ = region.Close()
		return Record{}, err
	}

	b.name = name
	b.region = region
	b.record = record
	b.created = true

	b.logger.Info("published service record", "version", record.Version, "build_mode", record.BuildMode)
	return record, nil
}

// Created reports whether a record is currently published
func (b *Broker) Created() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.created
}

// Name returns the mapping name of the published record
func (b *Broker) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.name
}

// Close clears the record, unmaps it and allows Create to run again
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.created {
		return nil
	}

	data := b.region.Bytes()
	for i := range data {
		data[i] = 0
	}
	err := b.region.Close()

	b.created = false
	b.region = nil
	b.record = Record{}
	b.logger.Info("closed service record", "name", b.name)

	if err != nil {
		return fmt.Errorf("%w: close %q: %v", domain.ErrSharedMemory, b.name, err)
	}
	return nil
}
