package di

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lebinkproxy.dev/proxy/internal/core/domain"
	"lebinkproxy.dev/proxy/internal/core/gate"
	"lebinkproxy.dev/proxy/internal/core/handshake"
	"lebinkproxy.dev/proxy/internal/core/hooks"
	"lebinkproxy.dev/proxy/internal/core/modules"
	"lebinkproxy.dev/proxy/internal/core/plugins"
	"lebinkproxy.dev/proxy/internal/core/scanner"
	"lebinkproxy.dev/proxy/internal/infrastructure/config"
)

type nopDetourer struct{}

func (nopDetourer) Initialize() error { return nil }

func (nopDetourer) Uninitialize() error { return nil }

func (nopDetourer) CreateHook(t, d uintptr) (uintptr, error) { return t + 1, nil }

func (nopDetourer) EnableHook(uintptr) error { return nil }

func (nopDetourer) RemoveHook(uintptr) error { return nil }

type nopConsole struct{}

func (nopConsole) Open() error { return nil }

func (nopConsole) Close() error { return nil }

type emptyLoader struct{}

func (emptyLoader) Load(path string) (plugins.Library, error) {
	return nil, errors.New("not a plugin")
}

type countingInspector struct {
	mu    sync.Mutex
	calls int
}

func (i *countingInspector) Inspect(string) ([]string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls++
	return nil, errors.New("rejected")
}

type nopPatcher struct{}

func (nopPatcher) Detour(domain.Game, uintptr) (uintptr, error) { return 0xD000, nil }
func (nopPatcher) SetOriginal(uintptr) {}

type noWindows struct{}

func (noWindows) TopLevelTitles() ([]string, error) { return nil, nil }

type recordingStarter struct {
	mu    sync.Mutex
	specs []modules.LaunchSpec
}

func (s *recordingStarter) Start(_ context.Context, spec modules.LaunchSpec) (modules.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specs = append(s.specs, spec)
	return nil, errors.New("not started")
}

type failingWatcher struct{}

func (failingWatcher) Watch(func(string)) error { return errors.New("no user32") }

func (failingWatcher) Unwatch() error { return nil }

func testPlatform(inspector plugins.Inspector, starter modules.ProcessStarter) Platform {
	return Platform{
		Detourer:  nopDetourer{},
		Image:     scanner.StaticImage{Base: 0x140000000, Bytes: []byte{0x90}},
		Mapper:    handshake.NewMemoryMapper(),
		Loader:    emptyLoader{},
		Inspector: inspector,
		Console:   nopConsole{},
		Windows:   noWindows{},
		Patcher:   nopPatcher{},
		Starter:   starter,
		Watcher:   func(*hooks.Manager) gate.WindowWatcher { return failingWatcher{} },
		Exit:      func(int) {},
		Getenv:    func(string) string { return "" },
	}
}

func testHost(t *testing.T, game domain.Game) domain.HostContext {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ASI"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ASI", "mod.asi"), nil, 0o644))
	return domain.HostContext{
		ExeDir:  dir,
		ExeName: "MassEffect1.exe",
		Target:  domain.Target{Game: game, WindowTitle: "Mass Effect"},
		PID:     77,
		CmdLine: "MassEffectLauncher.exe -game 2",
	}
}

func testConfig() *config.Configuration {
	return &config.Configuration{
		PluginDir:       "ASI",
		PluginExtension: ".asi",
		MaxPluginFiles:  128,
		TryLoadAll:      true,
		InspectPlugins:  true,
		GateMode:        config.GateModeEvent,
		GateTimeout:     time.Second,
		PollInterval:    time.Millisecond,
	}
}

func TestNewContainer_Game(t *testing.T) {
	c, err := NewContainer(testHost(t, domain.GameLE1), testConfig(), testPlatform(nil, nil), hclog.NewNullLogger())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{modules.AsiLoaderName, modules.ConsoleEnablerName}, c.Registry.Names())
	require.NotNil(t, c.Waiter)
	assert.Equal(t, gate.ModeEvent, c.Waiter.Mode())
	assert.NotNil(t, c.Host)
}

func TestNewContainer_Game_WatcherFailureFallsBackToPoll(t *testing.T) {
	c, err := NewContainer(testHost(t, domain.GameLE2), testConfig(), testPlatform(nil, nil), hclog.NewNullLogger())
	require.NoError(t, err)

	assert.Error(t, c.Waiter.Arm())
	assert.Equal(t, gate.ModePoll, c.Waiter.Mode())
}

func TestNewContainer_Launcher(t *testing.T) {
	starter := &recordingStarter{}
	cfg := testConfig()
	cfg.Debugger = "C:/dbg/x64dbg.exe"

	c, err := NewContainer(testHost(t, domain.GameLauncher), cfg, testPlatform(nil, starter), hclog.NewNullLogger())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{modules.AsiLoaderName, modules.LauncherArgsName}, c.Registry.Names())
	assert.Nil(t, c.Waiter)

	require.NoError(t, c.Registry.Activate(context.Background(), modules.LauncherArgsName))
	m, ok := c.Registry.Get(modules.LauncherArgsName)
	require.True(t, ok)
	m.(*modules.LauncherArgs).Wait()

	require.Len(t, starter.specs, 1)
	assert.Equal(t, "C:/dbg/x64dbg.exe", starter.specs[0].Path)
	assert.Contains(t, starter.specs[0].Args, "MassEffect2.exe")
}

func TestNewContainer_SplashTitlesFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.SplashTitles = []string{"Mass Effect Splash"}

	c, err := NewContainer(testHost(t, domain.GameLE3), cfg, testPlatform(nil, nil), hclog.NewNullLogger())
	require.NoError(t, err)
	assert.True(t, c.HostContext.Target.MatchesTitle("Mass Effect Splash"))
}

func TestNewContainer_Inspection(t *testing.T) {
	tests := []struct {
		name    string
		inspect bool
		calls   int
	}{
		{name: "enabled", inspect: true, calls: 1},
		{name: "disabled", inspect: false, calls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inspector := &countingInspector{}
			cfg := testConfig()
			cfg.InspectPlugins = tt.inspect

			c, err := NewContainer(testHost(t, domain.GameLE1), cfg, testPlatform(inspector, nil), hclog.NewNullLogger())
			require.NoError(t, err)
			require.NoError(t, c.Orchestrator.Activate())

			assert.Equal(t, tt.calls, inspector.calls)
			assert.Empty(t, c.Orchestrator.Loaded())
		})
	}
}

func TestNewContainer_Errors(t *testing.T) {
	_, err := NewContainer(testHost(t, domain.GameLE1), nil, testPlatform(nil, nil), hclog.NewNullLogger())
	assert.Error(t, err)

	_, err = NewContainer(testHost(t, domain.GameUnsupported), testConfig(), testPlatform(nil, nil), hclog.NewNullLogger())
	assert.ErrorIs(t, err, domain.ErrUnsupportedExecutable)
}

func TestNewContainer_StartAndShutdown(t *testing.T) {
	cfg := testConfig()
	cfg.GateMode = config.GateModePoll
	cfg.PollTimeout = 20 * time.Millisecond
	p := testPlatform(nil, nil)
	p.Watcher = nil

	c, err := NewContainer(testHost(t, domain.GameLE1), cfg, p, hclog.NewNullLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	report, err := c.Host.Start(ctx)
	require.NoError(t, err)
	assert.True(t, report.Published)
	assert.True(t, c.Broker.Created())

	c.Host.Shutdown()
	assert.False(t, c.Broker.Created())
}
