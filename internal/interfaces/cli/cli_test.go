package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lebinkproxy.dev/proxy/internal/core/domain"
	"lebinkproxy.dev/proxy/internal/core/modules"
	"lebinkproxy.dev/proxy/internal/core/plugins"
	"lebinkproxy.dev/proxy/internal/infrastructure/config"
)

var allSymbols = []string{
	plugins.SymbolSupportDecl,
	plugins.SymbolShouldPreload,
	plugins.SymbolShouldSpawnThread,
	plugins.SymbolOnAttach,
	plugins.SymbolOnDetach,
}

type mapInspector map[string][]string

func (m mapInspector) Inspect(path string) ([]string, error) {
	exports, ok := m[filepath.Base(path)]
	if !ok {
		return nil, errors.New("not a DLL")
	}
	return exports, nil
}

type declaringLibrary struct {
	path string
	decl plugins.Declaration
}

func (l declaringLibrary) Path() string { return l.path }

func (l declaringLibrary) Probe() plugins.Capabilities {
	return plugins.Capabilities{
		HasDeclaration: true,
		Declare:        func() plugins.Declaration { return l.decl },
	}
}

type declaringLoader struct {
	decl plugins.Declaration
}

func (d declaringLoader) Load(path string) (plugins.Library, error) {
	return declaringLibrary{path: path, decl: d.decl}, nil
}

type fakeProcess struct{}

func (fakeProcess) PID() int { return 4242 }

func (fakeProcess) Wait() error { return nil }

type recordingStarter struct {
	specs []modules.LaunchSpec
}

func (s *recordingStarter) Start(_ context.Context, spec modules.LaunchSpec) (modules.Process, error) {
	s.specs = append(s.specs, spec)
	return fakeProcess{}, nil
}

func execute(t *testing.T, container *CLIContainer, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), container, args, &stdout, &stderr)
	return stdout.String(), err
}

func writePlugins(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("MZ"), 0o644))
	}
	return dir
}

func TestClassifyExports(t *testing.T) {
	tests := []struct {
		name    string
		exports []string
		class   string
		missing []string
	}{
		{name: "complete", exports: allSymbols, class: ClassService},
		{name: "declaration only", exports: []string{plugins.SymbolSupportDecl, plugins.SymbolOnAttach},
			class: ClassDemoted, missing: []string{plugins.SymbolShouldPreload, plugins.SymbolShouldSpawnThread, plugins.SymbolOnDetach}},
		{name: "no declaration", exports: []string{plugins.SymbolOnAttach}, class: ClassRaw},
		{name: "nothing", exports: nil, class: ClassRaw},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, missing := ClassifyExports(tt.exports)
			assert.Equal(t, tt.class, class)
			assert.Equal(t, tt.missing, missing)
		})
	}
}

func TestIdentityCommand(t *testing.T) {
	out, err := execute(t, NewCLIContainer(), "identity", "C:/MELE/Game/ME2/Binaries/Win64/MassEffect2.exe")
	require.NoError(t, err)
	assert.Contains(t, out, "MassEffect2.exe")
	assert.Contains(t, out, "LE2")
	assert.Contains(t, out, "Mass Effect 2")

	_, err = execute(t, NewCLIContainer(), "identity", "notepad.exe")
	assert.ErrorIs(t, err, domain.ErrUnsupportedExecutable)
}

func TestScanCommand_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.exe")
	require.NoError(t, os.WriteFile(path, []byte("not a PE file at all"), 0o644))

	_, err := execute(t, NewCLIContainer(), "scan", path, "48 8B ZZ")
	assert.ErrorIs(t, err, domain.ErrPatternInvalid)

	_, err = execute(t, NewCLIContainer(), "scan", path, "48 8B ??")
	assert.ErrorIs(t, err, domain.ErrModuleRange)
}

func TestPluginsCommand_Classification(t *testing.T) {
	dir := writePlugins(t, "a_service.asi", "b_demoted.asi", "c_raw.asi", "d_broken.asi", "readme.txt")
	container := NewCLIContainer()
	container.Inspector = mapInspector{
		"a_service.asi": allSymbols,
		"b_demoted.asi": {plugins.SymbolSupportDecl},
		"c_raw.asi":     {"DllMain"},
	}

	out, err := execute(t, container, "plugins", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "a_service.asi")
	assert.Contains(t, out, "missing: SpiShouldPreload, SpiShouldSpawnThread, SpiOnAttach, SpiOnDetach")
	assert.Contains(t, out, "not a DLL")
	assert.NotContains(t, out, "readme.txt")
	assert.Contains(t, out, "1 service, 1 demoted, 1 raw, 1 rejected")
}

func TestPluginsCommand_LoadChecksCompatibility(t *testing.T) {
	dir := writePlugins(t, "console.asi")
	container := NewCLIContainer()
	container.Inspector = mapInspector{"console.asi": allSymbols}
	container.Loader = declaringLoader{decl: plugins.Declaration{
		Name:              "Console",
		Author:            "modder",
		Version:           "1.0",
		Targets:           domain.FlagLE1,
		MinServiceVersion: domain.ServiceVersion,
	}}

	out, err := execute(t, container, "plugins", dir, "--load", "--host", "MassEffect2.exe")
	require.NoError(t, err)
	assert.Contains(t, out, "Console by modder, version 1.0, targets LE1")
	assert.Contains(t, out, "filtered: "+plugins.ErrUnsupportedTarget.Error())

	out, err = execute(t, container, "plugins", dir, "--load", "--host", "MassEffect1.exe")
	require.NoError(t, err)
	assert.NotContains(t, out, "filtered")

	_, err = execute(t, container, "plugins", dir, "--host", "notepad.exe")
	assert.ErrorIs(t, err, domain.ErrUnsupportedExecutable)
}

func TestPluginsCommand_EmptyDirectory(t *testing.T) {
	out, err := execute(t, NewCLIContainer(), "plugins", filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Contains(t, out, "No plugin files found.")
}

func TestLaunchCommand(t *testing.T) {
	t.Setenv(modules.DebuggerEnv, "")

	t.Run("dry run", func(t *testing.T) {
		starter := &recordingStarter{}
		container := NewCLIContainer()
		container.Starter = starter

		out, err := execute(t, container, "launch", "--game", "2", "--dry-run")
		require.NoError(t, err)
		assert.Contains(t, out, "MassEffect2.exe")
		assert.Contains(t, out, "-NoHomeDir")
		assert.Empty(t, starter.specs)
	})

	t.Run("starts and waits", func(t *testing.T) {
		starter := &recordingStarter{}
		container := NewCLIContainer()
		container.Starter = starter

		out, err := execute(t, container, "launch", "--game", "3", "--debugger", "/opt/dbg")
		require.NoError(t, err)
		require.Len(t, starter.specs, 1)
		assert.Equal(t, "/opt/dbg", starter.specs[0].Path)
		assert.Contains(t, starter.specs[0].Args, "MassEffect3.exe")
		assert.Contains(t, out, "4242")
		assert.Contains(t, out, "Game exited")
	})

	t.Run("invalid target", func(t *testing.T) {
		_, err := execute(t, NewCLIContainer(), "launch", "--game", "7")
		assert.ErrorIs(t, err, modules.ErrInvalidLaunchTarget)
	})
}

func TestConfigCommand(t *testing.T) {
	t.Setenv(config.ConfigFileEnv, "")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultFileName),
		[]byte("gate_mode: poll\nsplash_titles:\n  - Mass Effect Splash\n"), 0o644))

	out, err := execute(t, NewCLIContainer(), "config", "show", "--game-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "poll")
	assert.Contains(t, out, "Mass Effect Splash")
	assert.Contains(t, out, filepath.Join(dir, "ASI"))

	out, err = execute(t, NewCLIContainer(), "config", "path", "--game-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, config.DefaultFileName))
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, NewCLIContainer(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, domain.ProxyVersion)
	assert.Contains(t, out, "SPI version")
	assert.Contains(t, out, domain.BuildMode)
}

func TestLaunchCommand_AutoTerminateDoesNotWait(t *testing.T) {
	t.Setenv(modules.DebuggerEnv, "")
	starter := &recordingStarter{}
	container := NewCLIContainer()
	container.Starter = starter

	out, err := execute(t, container, "launch", "--game", "1", "--autoterminate")
	require.NoError(t, err)
	require.Len(t, starter.specs, 1)
	assert.Contains(t, starter.specs[0].Path, "MassEffect1.exe")
	assert.NotContains(t, out, "Game exited")
}
