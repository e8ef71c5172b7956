package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfigSource reads a YAML file. JSON files parse too.
type FileConfigSource struct {
	filePath string
}

// NewFileConfigSource creates a file layer
func NewFileConfigSource(filePath string) *FileConfigSource {
	return &FileConfigSource{filePath: filePath}
}

// Load returns nil when the file does not exist
func (f *FileConfigSource) Load() (*Overlay, error) {
	data, err := os.ReadFile(f.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var overlay Overlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", f.filePath, err)
	}
	return &overlay, nil
}

// Priority implements ConfigSource
func (f *FileConfigSource) Priority() int { return 10 }

// Name implements ConfigSource
func (f *FileConfigSource) Name() string { return "file" }

// Environment variables read by EnvironmentConfigSource
const (
	EnvDebug         = "LEBINK_DEBUG"
	EnvLogFile       = "LEBINK_LOG_FILE"
	EnvPluginDir     = "LEBINK_PLUGIN_DIR"
	EnvGateMode      = "LEBINK_GATE_MODE"
	EnvGateTimeout   = "LEBINK_GATE_TIMEOUT"
	EnvGraceInterval = "LEBINK_GRACE_INTERVAL"
	EnvDebugger      = "LEBINK_DEBUGGER"
)

// EnvironmentConfigSource reads LEBINK_* variables
type EnvironmentConfigSource struct {
	lookup func(string) (string, bool)
}

// NewEnvironmentConfigSource creates an environment layer over the process environment
func NewEnvironmentConfigSource() *EnvironmentConfigSource {
	return &EnvironmentConfigSource{lookup: os.LookupEnv}
}

// Load implements ConfigSource. Malformed values are errors.
func (e *EnvironmentConfigSource) Load() (*Overlay, error) {
	overlay := &Overlay{}
	var errs []error

	if val, ok := e.get(EnvDebug); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvDebug, err))
		} else {
			overlay.Debug = &b
		}
	}
	if val, ok := e.get(EnvLogFile); ok {
		overlay.LogFile = &val
	}
	if val, ok := e.get(EnvPluginDir); ok {
		overlay.PluginDir = &val
	}
	if val, ok := e.get(EnvGateMode); ok {
		mode := strings.ToLower(val)
		overlay.GateMode = &mode
	}
	if val, ok := e.get(EnvGateTimeout); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvGateTimeout, err))
		} else {
			overlay.GateTimeout = &d
		}
	}
	if val, ok := e.get(EnvGraceInterval); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvGraceInterval, err))
		} else {
			overlay.GraceInterval = &d
		}
	}
	if val, ok := e.get(EnvDebugger); ok {
		overlay.Debugger = &val
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return overlay, nil
}

func (e *EnvironmentConfigSource) get(key string) (string, bool) {
	val, ok := e.lookup(key)
	val = strings.TrimSpace(val)
	return val, ok && val != ""
}

// Priority implements ConfigSource
func (e *EnvironmentConfigSource) Priority() int { return 100 }

// Name implements ConfigSource
func (e *EnvironmentConfigSource) Name() string { return "environment" }
