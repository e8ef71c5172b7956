package modules

import (
	"context"

	"lebinkproxy.dev/proxy/internal/core/plugins"
)

// AsiLoaderName is the registry name of the plugin loader
const AsiLoaderName = "AsiLoader"

// AsiLoader exposes the plugin orchestrator as a module
type AsiLoader struct {
	base
	orchestrator *plugins.Orchestrator
}

// NewAsiLoader wraps an orchestrator
func NewAsiLoader(orchestrator *plugins.Orchestrator) *AsiLoader {
	return &AsiLoader{
		base:         base{name: AsiLoaderName},
		orchestrator: orchestrator,
	}
}

// Orchestrator returns the wrapped orchestrator
func (a *AsiLoader) Orchestrator() *plugins.Orchestrator {
	return a.orchestrator
}

// Activate discovers, loads and classifies the plugins
func (a *AsiLoader) Activate(ctx context.Context) error {
	if err := a.orchestrator.Activate(); err != nil {
		return err
	}
	a.setActive(true)
	return nil
}

// Deactivate runs the detach callbacks
func (a *AsiLoader) Deactivate() {
	a.orchestrator.Deactivate()
	a.setActive(false)
}
