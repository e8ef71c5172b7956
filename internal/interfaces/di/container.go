package di

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"

	"lebinkproxy.dev/proxy/internal/core/domain"
	"lebinkproxy.dev/proxy/internal/core/gate"
	"lebinkproxy.dev/proxy/internal/core/handshake"
	"lebinkproxy.dev/proxy/internal/core/hooks"
	"lebinkproxy.dev/proxy/internal/core/identity"
	"lebinkproxy.dev/proxy/internal/core/modules"
	"lebinkproxy.dev/proxy/internal/core/plugins"
	"lebinkproxy.dev/proxy/internal/core/scanner"
	"lebinkproxy.dev/proxy/internal/core/spi"
	"lebinkproxy.dev/proxy/internal/host"
	"lebinkproxy.dev/proxy/internal/infrastructure/config"
)

// Platform holds the OS collaborators the container wires in
type Platform struct {
	Detourer  hooks.Detourer
	Image     scanner.ImageSource
	Mapper    handshake.Mapper
	Loader    plugins.Loader
	Inspector plugins.Inspector
	Console   spi.Console
	Notifier  identity.Notifier
	Threads   gate.ThreadController
	Windows   gate.WindowSource
	Patcher   modules.BindPatcher
	Starter   modules.ProcessStarter
	// Watcher builds the window watch on top of the hook manager; nil
	// forces poll mode.
	Watcher func(hookTable *hooks.Manager) gate.WindowWatcher
	// Expose maps the service handle to what plugins receive
	Expose func(handle uintptr) uintptr
	Exit   func(code int)
	Getenv func(key string) string
}

// Container holds all proxy dependencies for one host process
type Container struct {
	HostContext domain.HostContext
	Config      *config.Configuration
	Logger      hclog.Logger

	Hooks        *hooks.Manager
	Scanner      *scanner.Scanner
	Broker       *handshake.Broker
	Service      *spi.Service
	Handles      *spi.HandleTable
	Orchestrator *plugins.Orchestrator
	AsiLoader    *modules.AsiLoader
	Registry     *modules.Registry
	Waiter       *gate.Waiter
	Host         *host.Host
}

// NewContainer wires every component for the resolved host
func NewContainer(hostCtx domain.HostContext, cfg *config.Configuration, p Platform, logger hclog.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if p.Exit == nil {
		p.Exit = os.Exit
	}
	if p.Getenv == nil {
		p.Getenv = os.Getenv
	}

	hostCtx = identity.WithSplashTitles(hostCtx, cfg.SplashTitles)
	c := &Container{
		HostContext: hostCtx,
		Config:      cfg,
		Logger:      logger,
		Handles:     spi.Handles,
	}

	if err := c.initializeComponents(p); err != nil {
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}
	return c, nil
}

func (c *Container) initializeComponents(p Platform) error {
	cfg := c.Config
	game := c.HostContext.Game()

	// 1. Core services shared with plugins
	c.Hooks = hooks.NewManager(p.Detourer, c.Logger)
	c.Scanner = scanner.New(p.Image, c.Logger)
	c.Broker = handshake.NewBroker(p.Mapper, c.HostContext, c.Logger)
	c.Service = spi.NewService(c.HostContext, c.Scanner, c.Hooks, p.Console, c.Logger)

	// 2. Plugin orchestration
	var orchestratorOpts []plugins.Option
	if cfg.InspectPlugins && p.Inspector != nil {
		orchestratorOpts = append(orchestratorOpts, plugins.WithInspector(p.Inspector))
	}
	c.Orchestrator = plugins.NewOrchestrator(c.HostContext, p.Loader, plugins.Options{
		Dir:           cfg.PluginDir,
		Extension:     cfg.PluginExtension,
		MaxFiles:      cfg.MaxPluginFiles,
		TryLoadAll:    cfg.TryLoadAll,
		GraceInterval: cfg.GraceInterval,
		JoinTimeout:   cfg.JoinTimeout,
	}, c.Logger, orchestratorOpts...)
	c.AsiLoader = modules.NewAsiLoader(c.Orchestrator)

	// 3. Modules for this target
	c.Registry = modules.NewRegistry(c.Logger)
	if err := c.Registry.Register(c.AsiLoader); err != nil {
		return err
	}

	var threads gate.ThreadController
	switch {
	case game.IsGame():
		enabler := modules.NewConsoleEnabler(game, c.Scanner, c.Hooks, p.Patcher, c.Logger)
		if err := c.Registry.Register(enabler); err != nil {
			return err
		}
		c.Waiter = c.newWaiter(p)
		threads = p.Threads
	case game == domain.GameLauncher:
		getenv := func(key string) string {
			if key == modules.DebuggerEnv && cfg.Debugger != "" {
				return cfg.Debugger
			}
			return p.Getenv(key)
		}
		launcherArgs := modules.NewLauncherArgs(c.HostContext, p.Starter, getenv, p.Exit, c.Logger)
		if err := c.Registry.Register(launcherArgs); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedExecutable, game)
	}

	// 4. Startup sequence
	c.Host = host.New(c.HostContext, host.Components{
		Hooks:     c.Hooks,
		Broker:    c.Broker,
		Service:   c.Service,
		Handles:   c.Handles,
		Registry:  c.Registry,
		AsiLoader: c.AsiLoader,
		Waiter:    c.Waiter,
		Threads:   threads,
		Notifier:  p.Notifier,
		Expose:    p.Expose,
	}, host.Options{LauncherDelay: cfg.LauncherDelay}, c.Logger)
	return nil
}

func (c *Container) newWaiter(p Platform) *gate.Waiter {
	opts := gate.Options{
		Mode:         gate.ModeEvent,
		Timeout:      c.Config.GateTimeout,
		PollInterval: c.Config.PollInterval,
		PollTimeout:  c.Config.PollTimeout,
	}
	if c.Config.GateMode == config.GateModePoll {
		opts.Mode = gate.ModePoll
	}

	var watcher gate.WindowWatcher
	if p.Watcher != nil {
		watcher = p.Watcher(c.Hooks)
	}
	return gate.NewWaiter(c.HostContext.Target, watcher, p.Windows, opts, c.Logger)
}
