// Package plugins discovers plugin binaries, negotiates their capabilities and
// dispatches their lifecycle callbacks in two ordered phases.
package plugins

import (
	"errors"
	"fmt"

	"lebinkproxy.dev/proxy/internal/core/domain"
)

// Entry point names a plugin binary may export. Lookup is case-sensitive.
const (
	SymbolSupportDecl       = "SpiSupportDecl"
	SymbolShouldPreload     = "SpiShouldPreload"
	SymbolShouldSpawnThread = "SpiShouldSpawnThread"
	SymbolOnAttach          = "SpiOnAttach"
	SymbolOnDetach          = "SpiOnDetach"
)

// Phase is the dispatch phase an attach callback runs in
type Phase int

const (
	PhasePreInit Phase = iota
	PhasePostInit
)

func (p Phase) String() string {
	if p == PhasePreInit {
		return "PreInit"
	}
	return "PostInit"
}

// Mode is how an attach callback is dispatched within its phase
type Mode int

const (
	ModeSequential Mode = iota
	ModeAsynchronous
)

func (m Mode) String() string {
	if m == ModeSequential {
		return "Sequential"
	}
	return "Asynchronous"
}

// Declaration is what a plugin reports about itself. The strings live in
// the plugin's static data and are copied on read.
type Declaration struct {
	Name              string
	Author            string
	Version           string
	Targets           domain.GameFlags
	MinServiceVersion uint32
}

// Capabilities is the negotiated plugin contract. Every entry point has a
// validity flag so a partial declaration is an explicit state.
type Capabilities struct {
	HasDeclaration    bool
	HasPreload        bool
	HasSpawnThread    bool
	HasAttach         bool
	HasDetach         bool
	Declare           func() Declaration
	ShouldPreload     func() bool
	ShouldSpawnThread func() bool
	Attach            func(service uintptr) bool
	Detach            func(service uintptr) bool
}

// Declared reports whether the declaration entry point is present
func (c Capabilities) Declared() bool {
	return c.HasDeclaration && c.Declare != nil
}

// Complete reports whether all five entry points are present
func (c Capabilities) Complete() bool {
	return c.Declared() &&
		c.HasPreload && c.ShouldPreload != nil &&
		c.HasSpawnThread && c.ShouldSpawnThread != nil &&
		c.HasAttach && c.Attach != nil &&
		c.HasDetach && c.Detach != nil
}

// Demoted reports a declaration with missing lifecycle entry points.
// Such a plugin is treated as raw.
func (c Capabilities) Demoted() bool {
	return c.Declared() && !c.Complete()
}

// Missing lists the absent lifecycle entry points
func (c Capabilities) Missing() []string {
	var missing []string
	if !c.HasPreload || c.ShouldPreload == nil {
		missing = append(missing, SymbolShouldPreload)
	}
	if !c.HasSpawnThread || c.ShouldSpawnThread == nil {
		missing = append(missing, SymbolShouldSpawnThread)
	}
	if !c.HasAttach || c.Attach == nil {
		missing = append(missing, SymbolOnAttach)
	}
	if !c.HasDetach || c.Detach == nil {
		missing = append(missing, SymbolOnDetach)
	}
	return missing
}

// Library is a loaded plugin binary. It stays mapped for the process lifetime.
type Library interface {
	Path() string
	Probe() Capabilities
}

// Loader loads plugin binaries
type Loader interface {
	Load(path string) (Library, error)
}

// Inspector looks at a candidate file before it is loaded and returns its
// exported symbol names. An error rejects the candidate.
type Inspector interface {
	Inspect(path string) ([]string, error)
}

// Filtering rejections
var (
	ErrVersionTooHigh    = errors.New("plugin requires a newer service version")
	ErrVersionTooLow     = errors.New("plugin requires a service version no longer supported")
	ErrUnsupportedTarget = errors.New("plugin does not support this target")
)

// CheckCompatibility applies the version filter and then the target filter
func CheckCompatibility(decl Declaration, game domain.Game) error {
	if decl.MinServiceVersion > domain.ServiceVersion {
		return fmt.Errorf("%w: wants %d, host is %d", ErrVersionTooHigh, decl.MinServiceVersion, domain.ServiceVersion)
	}
	if decl.MinServiceVersion < domain.ServiceVersionMinSupported {
		return fmt.Errorf("%w: wants %d, oldest supported is %d", ErrVersionTooLow, decl.MinServiceVersion, domain.ServiceVersionMinSupported)
	}
	if !decl.Targets.Has(game) {
		return fmt.Errorf("%w: supports %s, host is %s", ErrUnsupportedTarget, decl.Targets, game)
	}
	return nil
}
