package di

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"lebinkproxy.dev/proxy/internal/core/domain"
	"lebinkproxy.dev/proxy/internal/core/gate"
	"lebinkproxy.dev/proxy/internal/core/hooks"
	"lebinkproxy.dev/proxy/internal/core/identity"
	"lebinkproxy.dev/proxy/internal/infrastructure/config"
	"lebinkproxy.dev/proxy/internal/infrastructure/launcher"
	"lebinkproxy.dev/proxy/internal/infrastructure/logging"
	"lebinkproxy.dev/proxy/internal/infrastructure/peinspect"
	"lebinkproxy.dev/proxy/internal/infrastructure/platform"
)

// NativePlatform returns the collaborators of the running OS. The hooking
// engine is looked up in engineDir.
func NativePlatform(engineDir string, logger hclog.Logger) Platform {
	return Platform{
		Detourer:  platform.NewMinHook(engineDir),
		Image:     platform.MainModule{},
		Mapper:    platform.SharedMemory{},
		Loader:    platform.DLLLoader{},
		Inspector: peinspect.New(logger),
		Console:   platform.Console{},
		Notifier:  platform.MessageBoxNotifier{},
		Threads:   platform.NewThreads(),
		Windows:   platform.WindowSource{},
		Patcher:   platform.NewBindPatcher(logger),
		Starter:   launcher.NewExecutor(),
		Watcher: func(hookTable *hooks.Manager) gate.WindowWatcher {
			return platform.NewWindowWatcher(hookTable)
		},
		Exit:   os.Exit,
		Getenv: os.Getenv,
	}
}

// BootstrapOptions tunes Bootstrap
type BootstrapOptions struct {
	// ConfigPath overrides the configuration file
	ConfigPath string
	// Expose maps the service handle to what plugins receive
	Expose func(handle uintptr) uintptr
	// Exit replaces os.Exit
	Exit func(code int)
}

// Bootstrap builds the container for the process it runs in: identity,
// configuration, log sink, then every component. The returned sink must be
// closed by the caller.
func Bootstrap(opts BootstrapOptions) (*Container, *logging.Sink, error) {
	exit := opts.Exit
	if exit == nil {
		exit = os.Exit
	}

	exePath, pid, cmdLine, err := platform.CurrentExecutable()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to locate the host executable: %w", err)
	}
	exeDir := filepath.Dir(exePath)

	repo := config.NewCompositeConfigRepository(exeDir, opts.ConfigPath)
	cfg, cfgErr := repo.Load()
	if cfg == nil {
		cfg = repo.LoadDefault()
		cfg.PluginDir = filepath.Join(exeDir, cfg.PluginDir)
		cfg.LogFile = filepath.Join(exeDir, cfg.LogFile)
	}

	sink, logErr := logging.New(logging.Options{Debug: cfg.Debug, File: cfg.LogFile, Stderr: cfg.LogToStderr})
	logger := sink.Logger
	if logErr != nil {
		logger.Warn("log file unavailable, logging to stderr", "error", logErr)
	}
	if cfgErr != nil {
		logger.Warn("failed to load configuration, using what could be loaded", "path", repo.ConfigPath(), "error", cfgErr)
	}

	notifier := platform.MessageBoxNotifier{}
	hostCtx := identity.NewResolver(logger, notifier, exit).MustResolve(exePath, pid, cmdLine)
	if hostCtx.Game() == domain.GameUnsupported {
		return nil, sink, fmt.Errorf("%w: %s", domain.ErrUnsupportedExecutable, identity.BaseName(exePath))
	}

	p := NativePlatform(exeDir, logger)
	p.Notifier = notifier
	p.Expose = opts.Expose
	p.Exit = exit

	container, err := NewContainer(hostCtx, cfg, p, logger)
	if err != nil {
		return nil, sink, err
	}
	return container, sink, nil
}
