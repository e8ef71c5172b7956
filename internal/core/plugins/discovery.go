package plugins

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Candidate is a plugin file found on disk
type Candidate struct {
	FileName string
	Path     string
}

// Discover lists the plugin files in dir. A missing directory yields no
// candidates and no error. Results are sorted by name and capped at maxFiles.
func Discover(dir, extension string, maxFiles int) ([]Candidate, int, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat plugin directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, 0, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read plugin directory %s: %w", dir, err)
	}

	var candidates []Candidate
	skipped := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), extension) {
			continue
		}
		if maxFiles > 0 && len(candidates) >= maxFiles {
			skipped++
			continue
		}
		candidates = append(candidates, Candidate{
			FileName: entry.Name(),
			Path:     filepath.Join(dir, entry.Name()),
		})
	}
	return candidates, skipped, nil
}
