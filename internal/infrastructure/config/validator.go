package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Limits enforced by the validator
const (
	MinGateTimeout = 1 * time.Second
	MaxGateTimeout = 300 * time.Second
	MaxPluginFiles = 4096
)

// ConfigValidator validates configuration values
type ConfigValidator struct{}

// NewConfigValidator creates a new configuration validator
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// Validate checks every field and reports all problems at once
func (v *ConfigValidator) Validate(config *Configuration) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}

	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	add(v.ValidatePluginDir(config.PluginDir))
	add(v.ValidateExtension(config.PluginExtension))
	if config.MaxPluginFiles <= 0 || config.MaxPluginFiles > MaxPluginFiles {
		add(fmt.Errorf("max plugin files must be between 1 and %d", MaxPluginFiles))
	}
	add(v.ValidateGateMode(config.GateMode))
	add(v.ValidateGateTimeout(config.GateTimeout))
	if config.PollInterval <= 0 {
		add(fmt.Errorf("poll interval must be greater than 0"))
	}
	if config.PollTimeout < 0 {
		add(fmt.Errorf("poll timeout cannot be negative"))
	}
	if config.GraceInterval < 0 {
		add(fmt.Errorf("grace interval cannot be negative"))
	}
	if config.JoinTimeout < 0 {
		add(fmt.Errorf("join timeout cannot be negative"))
	}
	if config.LauncherDelay < 0 {
		add(fmt.Errorf("launcher delay cannot be negative"))
	}

	return errors.Join(errs...)
}

// ValidatePluginDir rejects an empty directory
func (v *ConfigValidator) ValidatePluginDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("plugin directory cannot be empty")
	}
	return nil
}

// ValidateExtension requires a dotted extension without separators
func (v *ConfigValidator) ValidateExtension(ext string) error {
	if len(ext) < 2 || ext[0] != '.' {
		return fmt.Errorf("plugin extension must start with a dot: %q", ext)
	}
	if strings.ContainsAny(ext[1:], `./\ `) {
		return fmt.Errorf("plugin extension contains invalid characters: %q", ext)
	}
	return nil
}

// ValidateGateMode accepts event and poll
func (v *ConfigValidator) ValidateGateMode(mode string) error {
	switch mode {
	case GateModeEvent, GateModePoll:
		return nil
	}
	return fmt.Errorf("gate mode must be one of: %s, %s", GateModeEvent, GateModePoll)
}

// ValidateGateTimeout bounds the gate wait
func (v *ConfigValidator) ValidateGateTimeout(timeout time.Duration) error {
	if timeout < MinGateTimeout || timeout > MaxGateTimeout {
		return fmt.Errorf("gate timeout must be between %s and %s", MinGateTimeout, MaxGateTimeout)
	}
	return nil
}
