package plugins

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
)

// Descriptor tracks one loaded plugin binary
type Descriptor struct {
	FileName     string
	Library      Library
	Capabilities Capabilities
	Declaration  Declaration
	// Active is set once the plugin passed the compatibility filters
	Active bool
	// FilterReason holds why a declaring plugin was excluded
	FilterReason error

	logger hclog.Logger

	phaseAsked bool
	phase      Phase
	modeAsked  bool
	mode       Mode
}

// DeclaresService reports whether the plugin takes part in the lifecycle
func (d *Descriptor) DeclaresService() bool {
	return d.Capabilities.Complete()
}

// Phase asks the plugin once and returns the cached answer afterwards.
// Only the orchestrator goroutine calls it.
func (d *Descriptor) Phase() Phase {
	if !d.phaseAsked {
		d.phaseAsked = true
		d.phase = PhasePostInit
		if callBool(d.logger, d.FileName, SymbolShouldPreload, d.Capabilities.ShouldPreload) {
			d.phase = PhasePreInit
		}
	}
	return d.phase
}

// Mode asks the plugin once and returns the cached answer afterwards
func (d *Descriptor) Mode() Mode {
	if !d.modeAsked {
		d.modeAsked = true
		d.mode = ModeSequential
		if callBool(d.logger, d.FileName, SymbolShouldSpawnThread, d.Capabilities.ShouldSpawnThread) {
			d.mode = ModeAsynchronous
		}
	}
	return d.mode
}

// callBool invokes plugin code and converts a panic into false
func callBool(logger hclog.Logger, plugin, symbol string, fn func() bool) (result bool) {
	if fn == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("plugin entry point panicked", "plugin", plugin, "symbol", symbol, "panic", fmt.Sprint(r))
			result = false
		}
	}()
	return fn()
}

// callDeclare reads the declaration, converting a panic into an error
func callDeclare(fn func() Declaration) (decl Declaration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", SymbolSupportDecl, r)
		}
	}()
	return fn(), nil
}
