package scanner

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"lebinkproxy.dev/proxy/internal/core/domain"
)

// Find returns the offset of the first match of p in image.
// It is a linear sliding-window scan; only the first match is reported.
func Find(image []byte, p Pattern) (int, bool) {
	n := len(p.Bytes)
	if n == 0 || len(p.Mask) != n || len(image) < n {
		return 0, false
	}

	for start := 0; start+n <= len(image); start++ {
		matched := true
		for i := 0; i < n; i++ {
			if p.Mask[i] != MaskWildcard && image[start+i] != p.Bytes[i] {
				matched = false
				break
			}
		}
		if matched {
			return start, true
		}
	}
	return 0, false
}

// ImageSource yields the address range of the module to scan
type ImageSource interface {
	// ModuleImage returns the base address of the module and a view of its bytes
	ModuleImage() (base uintptr, image []byte, err error)
}

// Scanner scans the host's main module
type Scanner struct {
	source ImageSource
	logger hclog.Logger
}

// New creates a scanner over the given image source
func New(source ImageSource, logger hclog.Logger) *Scanner {
	return &Scanner{
		source: source,
		logger: logger.Named("scanner"),
	}
}

// Scan returns the absolute address of the first match, or false when the
// pattern is absent or the module range cannot be determined.
func (s *Scanner) Scan(p Pattern) (uintptr, bool) {
	addr, err := s.Lookup(p)
	if err != nil {
		s.logger.Debug("scan failed", "pattern", p.String(), "error", err)
		return 0, false
	}
	return addr, true
}

// Lookup is Scan with the failure reason
func (s *Scanner) Lookup(p Pattern) (uintptr, error) {
	base, image, err := s.source.ModuleImage()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrModuleRange, err)
	}
	if base == 0 || len(image) == 0 {
		return 0, domain.ErrModuleRange
	}

	offset, ok := Find(image, p)
	if !ok {
		return 0, domain.ErrPatternMissing
	}
	return base + uintptr(offset), nil
}

// FindString parses text and scans for it
func (s *Scanner) FindString(text string) (uintptr, error) {
	p, err := ParsePattern(text)
	if err != nil {
		return 0, err
	}
	return s.Lookup(p)
}

// StaticImage is an ImageSource over an in-memory buffer.
// It backs binkctl's offline search and the tests.
type StaticImage struct {
	Base  uintptr
	Bytes []byte
	Err   error
}

// ModuleImage implements ImageSource
func (s StaticImage) ModuleImage() (uintptr, []byte, error) {
	return s.Base, s.Bytes, s.Err
}
