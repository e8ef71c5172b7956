package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Game identifies which executable the proxy is attached to.
// The numeric values are part of the plugin ABI and the shared memory name.
type Game int

const (
	GameLauncher    Game = 0
	GameLE1         Game = 1
	GameLE2         Game = 2
	GameLE3         Game = 3
	GameUnsupported Game = 4
)

// String returns a short human-readable name
func (g Game) String() string {
	switch g {
	case GameLauncher:
		return "Launcher"
	case GameLE1:
		return "LE1"
	case GameLE2:
		return "LE2"
	case GameLE3:
		return "LE3"
	default:
		return fmt.Sprintf("Unsupported(%d)", int(g))
	}
}

// IsGame reports whether g is one of the three games (not the launcher)
func (g Game) IsGame() bool {
	return g == GameLE1 || g == GameLE2 || g == GameLE3
}

// Flag returns the bit plugins use in their supported-target declaration
func (g Game) Flag() GameFlags {
	switch g {
	case GameLauncher:
		return FlagLauncher
	case GameLE1:
		return FlagLE1
	case GameLE2:
		return FlagLE2
	case GameLE3:
		return FlagLE3
	default:
		return 0
	}
}

// GameFlags is the supported-target bitset declared by plugins.
// Not interchangeable with Game values.
type GameFlags uint32

const (
	FlagLauncher GameFlags = 1 << 0
	FlagLE1      GameFlags = 1 << 1
	FlagLE2      GameFlags = 1 << 2
	FlagLE3      GameFlags = 1 << 3

	FlagAllGames = FlagLE1 | FlagLE2 | FlagLE3
)

// Has reports whether the bitset includes the given game
func (f GameFlags) Has(g Game) bool {
	flag := g.Flag()
	return flag != 0 && f&flag == flag
}

// String lists the targets in the set
func (f GameFlags) String() string {
	var names []string
	for _, g := range []Game{GameLauncher, GameLE1, GameLE2, GameLE3} {
		if f.Has(g) {
			names = append(names, g.String())
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Target describes a recognized executable
type Target struct {
	Game           Game
	ExecutableName string
	WindowTitle    string
	// SplashTitles are additional window titles that mark the end of
	// self-decryption just as well as the main window.
	SplashTitles []string
}

// MatchesTitle reports whether a created window title ends the gate wait
func (t Target) MatchesTitle(title string) bool {
	if title == "" {
		return false
	}
	if title == t.WindowTitle {
		return true
	}
	for _, splash := range t.SplashTitles {
		if title == splash {
			return true
		}
	}
	return false
}

// HostContext is the read-only description of the process the proxy lives in.
// It is built once at startup and passed down to every component.
type HostContext struct {
	ExePath string
	ExeName string
	ExeDir  string
	Target  Target
	PID     uint32
	CmdLine string
}

// Game is a shortcut for Target.Game
func (h HostContext) Game() Game {
	return h.Target.Game
}

// ResolvePath resolves a path relative to the executable directory.
// Absolute paths are returned unchanged.
func (h HostContext) ResolvePath(path string) string {
	if filepath.IsAbs(path) || h.ExeDir == "" {
		return path
	}
	return filepath.Join(h.ExeDir, path)
}
