// Package identity maps the running executable onto one of the known targets.
package identity

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"lebinkproxy.dev/proxy/internal/core/domain"
)

// KnownTargets is the fixed table of executables the proxy attaches to.
// Splash titles are supplied through configuration (WithSplashTitles).
var KnownTargets = []domain.Target{
	{
		Game:           domain.GameLauncher,
		ExecutableName: "MassEffectLauncher.exe",
		WindowTitle:    "Mass Effect Legendary Edition",
	},
	{
		Game:           domain.GameLE1,
		ExecutableName: "MassEffect1.exe",
		WindowTitle:    "Mass Effect",
	},
	{
		Game:           domain.GameLE2,
		ExecutableName: "MassEffect2.exe",
		WindowTitle:    "Mass Effect 2",
	},
	{
		Game:           domain.GameLE3,
		ExecutableName: "MassEffect3.exe",
		WindowTitle:    "Mass Effect 3",
	},
}

// WithSplashTitles returns a copy of the host context whose target also
// accepts the given window titles
func WithSplashTitles(host domain.HostContext, titles []string) domain.HostContext {
	if len(titles) == 0 {
		return host
	}
	host.Target.SplashTitles = append(append([]string(nil), host.Target.SplashTitles...), titles...)
	return host
}

// Notifier shows a blocking message to the user
type Notifier interface {
	Alert(title, message string)
}

// BaseName strips the directory from an executable path.
// Both separators are handled so windows paths resolve on any host OS.
func BaseName(exePath string) string {
	if idx := strings.LastIndexAny(exePath, `\/`); idx >= 0 {
		return exePath[idx+1:]
	}
	return exePath
}

// dirName is the counterpart of BaseName
func dirName(exePath string) string {
	if idx := strings.LastIndexAny(exePath, `\/`); idx >= 0 {
		return exePath[:idx]
	}
	return "."
}

// Lookup finds the target for an executable file name. Case is ignored,
// as it is by the Windows file system.
func Lookup(exeName string) (domain.Target, bool) {
	for _, target := range KnownTargets {
		if strings.EqualFold(target.ExecutableName, exeName) {
			return target, true
		}
	}
	return domain.Target{}, false
}

// Resolve builds the host context for the executable at exePath
func Resolve(exePath string, pid uint32, cmdLine string) (domain.HostContext, error) {
	name := BaseName(exePath)
	target, ok := Lookup(name)
	if !ok {
		return domain.HostContext{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedExecutable, name)
	}

	return domain.HostContext{
		ExePath: exePath,
		ExeName: name,
		ExeDir:  filepath.FromSlash(dirName(exePath)),
		Target:  target,
		PID:     pid,
		CmdLine: cmdLine,
	}, nil
}

// Resolver resolves the identity and terminates the process when it is unknown.
// Every later component depends on the identity, so there is no degraded mode.
type Resolver struct {
	logger   hclog.Logger
	notifier Notifier
	exit     func(code int)
}

// NewResolver creates a resolver that calls exit on unknown executables
func NewResolver(logger hclog.Logger, notifier Notifier, exit func(code int)) *Resolver {
	return &Resolver{
		logger:   logger.Named("identity"),
		notifier: notifier,
		exit:     exit,
	}
}

// MustResolve resolves the identity or exits with -1
func (r *Resolver) MustResolve(exePath string, pid uint32, cmdLine string) domain.HostContext {
	host, err := Resolve(exePath, pid, cmdLine)
	if err != nil {
		r.logger.Error("unsupported executable, exiting", "path", exePath, "error", err)
		if r.notifier != nil {
			r.notifier.Alert("LEBinkProxy", fmt.Sprintf("Unsupported executable %q, the process will exit.", BaseName(exePath)))
		}
		r.exit(-1)
		return domain.HostContext{Target: domain.Target{Game: domain.GameUnsupported}}
	}

	r.logger.Info("resolved host", "exe_path", host.ExePath, "exe_name", host.ExeName,
		"game", host.Game(), "win_title", host.Target.WindowTitle)
	return host
}
