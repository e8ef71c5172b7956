package modules

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"lebinkproxy.dev/proxy/internal/core/domain"
	"lebinkproxy.dev/proxy/internal/core/scanner"
)

const (
	// ConsoleEnablerName is the registry name of the console unlocker
	ConsoleEnablerName = "ConsoleEnabler"
	// BindHookName is the hook name used for UFunction::Bind
	BindHookName = "UFunctionBind"
)

// ConsolePatterns locate the functions the console unlock needs
type ConsolePatterns struct {
	Bind         scanner.Pattern
	GetName      scanner.Pattern
	GetNameLabel string
}

var bindPattern = scanner.MustParsePattern("48 8B C4 55 41 56 41 57 48 8D A8 78 F8 FF FF 48 81 EC 70 08 00 00 48 C7 44 24 50 FE FF FF FF " +
	"48 89 58 10 48 89 70 18 48 89 78 20 48 8B ?? ?? ?? ?? ?? 48 33 C4 48 89 85 60 07 00 00 48 8B F1 E8 ?? ?? ?? ?? 48 8B F8 F7 86")

// PatternsByGame holds the per-game pattern table
var PatternsByGame = map[domain.Game]ConsolePatterns{
	domain.GameLE1: {
		Bind: bindPattern,
		GetName: scanner.MustParsePattern("48 8B C4 48 89 50 10 57 48 83 EC 30 48 C7 40 F0 FE FF FF FF 48 89 58 08 48 89 68 18 " +
			"48 89 70 20 48 8B DA 48 8B F1 33 FF 89 78 E8 48 89 3A 48 89 7A 08 C7 40 E8 01 00 00 00 48 63 01 48 8D " +
			"?? ?? ?? ?? ?? 85 C0 74 23 48 8B C8 48 C1 F8 1D 83 E0 07 81 E1 FF FF FF 1F 48 03 4C C5 00"),
		GetNameLabel: "GetName",
	},
	domain.GameLE2: {
		Bind: bindPattern,
		GetName: scanner.MustParsePattern("48 89 5C 24 08 48 89 6C 24 10 48 89 74 24 18 57 48 83 EC 20 48 63 01 48 8D " +
			"?? ?? ?? ?? ?? 48 8B DA 48 8B F1 85 C0 74 23"),
		GetNameLabel: "NewGetName",
	},
	domain.GameLE3: {
		Bind: bindPattern,
		GetName: scanner.MustParsePattern("48 89 5C 24 08 48 89 6C 24 10 48 89 74 24 18 57 48 83 EC 20 48 63 01 48 8D " +
			"?? ?? ?? ?? ?? 33 DB 48 8B FA 48 8B F1 85 C0 74 17"),
		GetNameLabel: "NewGetName",
	},
}

// NativeOverride returns the constant a script native is rebound to.
// The shipping checks report true so the console stays enabled; LE3's
// IsShip reports false.
func NativeOverride(game domain.Game, function string) (value bool, ok bool) {
	switch function {
	case "IsShippingPCBuild", "IsShippingBuild", "IsFinalReleaseDebugConsoleBuild":
		return true, true
	case "IsShip":
		if game == domain.GameLE3 {
			return false, true
		}
	}
	return false, false
}

// PatternLookup resolves a pattern in the main module
type PatternLookup interface {
	Lookup(p scanner.Pattern) (uintptr, error)
}

// HookTable installs named detours
type HookTable interface {
	Install(name string, target, detour uintptr) (uintptr, error)
	Uninstall(name string) error
}

// LoggedHookTable is a HookTable that can write the lines of one install
// to a given logger
type LoggedHookTable interface {
	InstallLogged(logger hclog.Logger, name string, target, detour uintptr) (uintptr, error)
}

// BindPatcher builds the UFunction::Bind replacement
type BindPatcher interface {
	// Detour returns the replacement entry point for the game, which
	// resolves function names through getName.
	Detour(game domain.Game, getName uintptr) (uintptr, error)
	// SetOriginal hands the trampoline to the replacement
	SetOriginal(original uintptr)
}

// ConsoleEnabler unlocks the developer console by rebinding the shipping
// checks while the game binds its script natives
type ConsoleEnabler struct {
	base
	game    domain.Game
	lookup  PatternLookup
	hooks   HookTable
	patcher BindPatcher
	logger  hclog.Logger
}

// NewConsoleEnabler creates the module for the given game
func NewConsoleEnabler(game domain.Game, lookup PatternLookup, hooks HookTable, patcher BindPatcher, logger hclog.Logger) *ConsoleEnabler {
	return &ConsoleEnabler{
		base:    base{name: ConsoleEnablerName},
		game:    game,
		lookup:  lookup,
		hooks:   hooks,
		patcher: patcher,
		logger:  logger.Named("console"),
	}
}

// Activate finds the offsets and installs the bind detour
func (c *ConsoleEnabler) Activate(ctx context.Context) error {
	patterns, ok := PatternsByGame[c.game]
	if !ok {
		return fmt.Errorf("%w: no console patterns for %s", domain.ErrUnsupported, c.game)
	}
	logger := loggerFor(ctx, c.logger, "console")

	bind, err := c.find(logger, "UFunction::Bind", patterns.Bind)
	if err != nil {
		return err
	}
	getName, err := c.find(logger, patterns.GetNameLabel, patterns.GetName)
	if err != nil {
		return err
	}

	detour, err := c.patcher.Detour(c.game, getName)
	if err != nil {
		return fmt.Errorf("failed to build bind detour: %w", err)
	}

	original, err := c.install(ctx, bind, detour)
	if err != nil {
		return err
	}
	c.patcher.SetOriginal(original)
	c.setActive(true)

	logger.Info("console unlocked", "bind", fmt.Sprintf("%#x", bind), "original", fmt.Sprintf("%#x", original))
	return nil
}

func (c *ConsoleEnabler) find(logger hclog.Logger, label string, p scanner.Pattern) (uintptr, error) {
	addr, err := c.lookup.Lookup(p)
	if err != nil {
		logger.Error("failed to find function", "function", label, "error", err)
		return 0, fmt.Errorf("failed to find %s: %w", label, err)
	}
	logger.Info("found function", "function", label, "address", fmt.Sprintf("%#x", addr))
	return addr, nil
}

func (c *ConsoleEnabler) install(ctx context.Context, target, detour uintptr) (uintptr, error) {
	if logger, ok := scopedLogger(ctx); ok {
		if logged, ok := c.hooks.(LoggedHookTable); ok {
			return logged.InstallLogged(logger, BindHookName, target, detour)
		}
	}
	return c.hooks.Install(BindHookName, target, detour)
}

// Deactivate removes the bind detour
func (c *ConsoleEnabler) Deactivate() {
	if err := c.hooks.Uninstall(BindHookName); err != nil {
		c.logger.Warn("failed to remove bind detour", "error", err)
	}
	c.setActive(false)
}
