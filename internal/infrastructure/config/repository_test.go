package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	name     string
	priority int
	overlay  *Overlay
	err      error
}

func (s staticSource) Load() (*Overlay, error) { return s.overlay, s.err }

func (s staticSource) Priority() int { return s.priority }

func (s staticSource) Name() string { return s.name }

func ptr[T any](v T) *T { return &v }

func emptyRepo(baseDir string) *CompositeConfigRepository {
	return &CompositeConfigRepository{baseDir: baseDir}
}

func TestCompositeConfigRepository_Load_Defaults(t *testing.T) {
	dir := t.TempDir()

	config, err := emptyRepo(dir).Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "ASI"), config.PluginDir)
	assert.Equal(t, ".asi", config.PluginExtension)
	assert.Equal(t, 128, config.MaxPluginFiles)
	assert.True(t, config.TryLoadAll)
	assert.Equal(t, GateModeEvent, config.GateMode)
	assert.Equal(t, 30*time.Second, config.GateTimeout)
	assert.Equal(t, 250*time.Millisecond, config.PollInterval)
	assert.Zero(t, config.PollTimeout)
	assert.Equal(t, 300*time.Millisecond, config.GraceInterval)
	assert.Zero(t, config.JoinTimeout)
	assert.Equal(t, 3*time.Second, config.LauncherDelay)
	assert.Equal(t, filepath.Join(dir, DefaultLogFileName), config.LogFile)
}

func TestCompositeConfigRepository_Load_PriorityOrder(t *testing.T) {
	repo := emptyRepo("")
	repo.AddSource(staticSource{name: "high", priority: 100, overlay: &Overlay{GateMode: ptr(GateModePoll)}})
	repo.AddSource(staticSource{name: "low", priority: 10, overlay: &Overlay{
		GateMode:   ptr(GateModeEvent),
		TryLoadAll: ptr(false),
	}})

	config, err := repo.Load()
	require.NoError(t, err)

	assert.Equal(t, GateModePoll, config.GateMode)
	assert.False(t, config.TryLoadAll)
	assert.Equal(t, []string{"low", "high"}, repo.LoadedSources())
}

func TestCompositeConfigRepository_Load_FailingSourceStillMerges(t *testing.T) {
	repo := emptyRepo("")
	repo.AddSource(staticSource{name: "broken", priority: 1, err: errors.New("boom")})
	repo.AddSource(staticSource{name: "ok", priority: 2, overlay: &Overlay{Debug: ptr(true)}})

	config, err := repo.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	require.NotNil(t, config)
	assert.True(t, config.Debug)
}

func TestCompositeConfigRepository_Load_InvalidResult(t *testing.T) {
	repo := emptyRepo("")
	repo.AddSource(staticSource{name: "bad", priority: 1, overlay: &Overlay{GateTimeout: ptr(time.Hour)}})

	_, err := repo.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gate timeout")
}

func TestCompositeConfigRepository_Load_AbsolutePathsKept(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "plugins")
	repo := emptyRepo(t.TempDir())
	repo.AddSource(staticSource{name: "file", priority: 1, overlay: &Overlay{PluginDir: ptr(abs)}})

	config, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, abs, config.PluginDir)
}

func TestFileConfigSource_Load(t *testing.T) {
	t.Run("missing_file", func(t *testing.T) {
		overlay, err := NewFileConfigSource(filepath.Join(t.TempDir(), DefaultFileName)).Load()
		assert.NoError(t, err)
		assert.Nil(t, overlay)
	})

	t.Run("yaml_file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), DefaultFileName)
		require.NoError(t, os.WriteFile(path, []byte(`
debug: true
plugin_dir: mods
try_load_all: false
gate_mode: poll
poll_timeout: 45s
grace_interval: 150ms
splash_titles:
  - Splash
`), 0o644))

		overlay, err := NewFileConfigSource(path).Load()
		require.NoError(t, err)
		require.NotNil(t, overlay)
		assert.Equal(t, true, *overlay.Debug)
		assert.Equal(t, "mods", *overlay.PluginDir)
		assert.Equal(t, false, *overlay.TryLoadAll)
		assert.Equal(t, GateModePoll, *overlay.GateMode)
		assert.Equal(t, 45*time.Second, *overlay.PollTimeout)
		assert.Equal(t, 150*time.Millisecond, *overlay.GraceInterval)
		assert.Equal(t, []string{"Splash"}, overlay.SplashTitles)
		assert.Nil(t, overlay.MaxPluginFiles)
	})

	t.Run("malformed_file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), DefaultFileName)
		require.NoError(t, os.WriteFile(path, []byte("debug: [unterminated"), 0o644))

		_, err := NewFileConfigSource(path).Load()
		assert.Error(t, err)
	})
}

func TestEnvironmentConfigSource_Load(t *testing.T) {
	t.Setenv(EnvDebug, "1")
	t.Setenv(EnvPluginDir, "D:/mods")
	t.Setenv(EnvGateMode, "POLL")
	t.Setenv(EnvGateTimeout, "10s")
	t.Setenv(EnvDebugger, "C:/tools/x64dbg.exe")

	overlay, err := NewEnvironmentConfigSource().Load()
	require.NoError(t, err)

	assert.True(t, *overlay.Debug)
	assert.Equal(t, "D:/mods", *overlay.PluginDir)
	assert.Equal(t, GateModePoll, *overlay.GateMode)
	assert.Equal(t, 10*time.Second, *overlay.GateTimeout)
	assert.Equal(t, "C:/tools/x64dbg.exe", *overlay.Debugger)
	assert.Nil(t, overlay.GraceInterval)
}

func TestEnvironmentConfigSource_Load_Malformed(t *testing.T) {
	t.Setenv(EnvDebug, "maybe")
	t.Setenv(EnvGateTimeout, "soon")

	_, err := NewEnvironmentConfigSource().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvDebug)
	assert.Contains(t, err.Error(), EnvGateTimeout)
}

func TestNewCompositeConfigRepository_ConfigPath(t *testing.T) {
	dir := t.TempDir()

	t.Setenv(ConfigFileEnv, "")
	assert.Equal(t, filepath.Join(dir, DefaultFileName), NewCompositeConfigRepository(dir, "").ConfigPath())

	t.Setenv(ConfigFileEnv, "/etc/bink.yaml")
	assert.Equal(t, "/etc/bink.yaml", NewCompositeConfigRepository(dir, "").ConfigPath())
	assert.Equal(t, "/tmp/flag.yaml", NewCompositeConfigRepository(dir, "/tmp/flag.yaml").ConfigPath())
}
