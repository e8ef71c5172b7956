//go:build !windows && !darwin && !linux

package platform

import (
	"lebinkproxy.dev/proxy/internal/core/plugins"
)

// DLLLoader has no dynamic loader to use on this OS
type DLLLoader struct{}

// Load implements plugins.Loader
func (DLLLoader) Load(path string) (plugins.Library, error) {
	return nil, ErrUnsupported
}
