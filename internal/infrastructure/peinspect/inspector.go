// Package peinspect reads plugin and host binaries with saferwall/pe
// without mapping them into the process.
package peinspect

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
	peparser "github.com/saferwall/pe"

	"lebinkproxy.dev/proxy/internal/core/plugins"
)

// spiPrefix is shared by every plugin entry point
const spiPrefix = "Spi"

var (
	// ErrNotDLL rejects executables and other non-library images
	ErrNotDLL = errors.New("image is not a DLL")
	// ErrSectionNotFound is returned when a named section is absent
	ErrSectionNotFound = errors.New("section not found")
)

// Inspector implements plugins.Inspector over PE files
type Inspector struct {
	logger hclog.Logger
}

var _ plugins.Inspector = (*Inspector)(nil)

// New creates an inspector
func New(logger hclog.Logger) *Inspector {
	return &Inspector{logger: logger.Named("peinspect")}
}

// Inspect parses the file, requires a DLL and returns its plugin entry points
func (i *Inspector) Inspect(path string) ([]string, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !f.IsDLL() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotDLL)
	}

	names := make([]string, 0, len(f.Export.Functions))
	for _, fn := range f.Export.Functions {
		names = append(names, fn.Name)
	}
	exports := SpiExports(names)
	i.logger.Trace("inspected", "path", path, "exports", len(names), "spi_exports", exports)
	return exports, nil
}

// SpiExports keeps the known plugin entry points, sorted
func SpiExports(names []string) []string {
	known := map[string]bool{
		plugins.SymbolSupportDecl:       true,
		plugins.SymbolShouldPreload:     true,
		plugins.SymbolShouldSpawnThread: true,
		plugins.SymbolOnAttach:          true,
		plugins.SymbolOnDetach:          true,
	}

	var out []string
	for _, name := range names {
		if strings.HasPrefix(name, spiPrefix) && known[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func open(path string) (*peparser.File, error) {
	f, err := peparser.New(path, &peparser.Options{})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := f.Parse(); err != nil {
		f.Close()
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}
