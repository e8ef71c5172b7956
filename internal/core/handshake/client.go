package handshake

import (
	"fmt"
	"unicode/utf8"

	"github.com/hashicorp/go-hclog"

	"lebinkproxy.dev/proxy/internal/core/domain"
)

const (
	minCallerLen = 3
	maxCallerLen = 63
)

// Client is the plugin side of the handshake
type Client struct {
	mapper Mapper
	pid    uint32
	logger hclog.Logger
}

// NewClient creates a reader for records published by process pid
func NewClient(mapper Mapper, pid uint32, logger hclog.Logger) *Client {
	return &Client{
		mapper: mapper,
		pid:    pid,
		logger: logger.Named("handshake"),
	}
}

// Acquire opens the record for the given target and returns the service
// pointer once every field has been validated.
func (c *Client) Acquire(minVersion uint32, game domain.Game, callerName, callerAuthor string) (uintptr, error) {
	if err := validateCaller("name", callerName); err != nil {
		return 0, err
	}
	if err := validateCaller("author", callerAuthor); err != nil {
		return 0, err
	}

	name := MemoryName(game, c.pid)
	region, err := c.mapper.Open(name)
	if err != nil {
		return 0, fmt.Errorf("%w: open %q: %v", domain.ErrSharedMemory, name, err)
	}
	defer region.Close()

	view := region.Bytes()
	record, err := Decode(view)
	if err != nil {
		return 0, err
	}
	if err := record.ValidateView(minVersion, len(view)); err != nil {
		c.logger.Warn("rejected service record", "caller", callerName, "author", callerAuthor, "error", err)
		return 0, err
	}

	c.logger.Debug("acquired service", "caller", callerName, "author", callerAuthor, "version", record.Version)
	return record.ServicePointer, nil
}

func validateCaller(field, value string) error {
	n := utf8.RuneCountInString(value)
	if n < minCallerLen || n > maxCallerLen {
		return fmt.Errorf("%w: caller %s must be %d to %d characters, got %d", domain.ErrInvalidCaller, field, minCallerLen, maxCallerLen, n)
	}
	return nil
}
