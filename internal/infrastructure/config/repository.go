// Package config loads the proxy settings: defaults, then the optional
// binkproxy.yaml next to the host executable, then LEBINK_* variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	// DefaultFileName is looked up in the host executable's directory
	DefaultFileName = "binkproxy.yaml"
	// DefaultLogFileName is the log sink next to the host executable
	DefaultLogFileName = "bink_proxy_log.txt"
	// ConfigFileEnv overrides the configuration file path
	ConfigFileEnv = "LEBINK_CONFIG_FILE"
)

// Gate modes
const (
	GateModeEvent = "event"
	GateModePoll  = "poll"
)

// Configuration is the effective proxy configuration
type Configuration struct {
	Debug       bool
	LogFile     string
	LogToStderr bool

	PluginDir       string
	PluginExtension string
	MaxPluginFiles  int
	TryLoadAll      bool
	InspectPlugins  bool
	GraceInterval   time.Duration
	JoinTimeout     time.Duration

	GateMode     string
	GateTimeout  time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
	SplashTitles []string

	LauncherDelay time.Duration
	Debugger      string
}

// Overlay is a partial configuration. Nil fields leave the value below untouched.
type Overlay struct {
	Debug       *bool   `yaml:"debug"`
	LogFile     *string `yaml:"log_file"`
	LogToStderr *bool   `yaml:"log_to_stderr"`

	PluginDir       *string        `yaml:"plugin_dir"`
	PluginExtension *string        `yaml:"plugin_extension"`
	MaxPluginFiles  *int           `yaml:"max_plugin_files"`
	TryLoadAll      *bool          `yaml:"try_load_all"`
	InspectPlugins  *bool          `yaml:"inspect_plugins"`
	GraceInterval   *time.Duration `yaml:"grace_interval"`
	JoinTimeout     *time.Duration `yaml:"join_timeout"`

	GateMode     *string        `yaml:"gate_mode"`
	GateTimeout  *time.Duration `yaml:"gate_timeout"`
	PollInterval *time.Duration `yaml:"poll_interval"`
	PollTimeout  *time.Duration `yaml:"poll_timeout"`
	SplashTitles []string       `yaml:"splash_titles"`

	LauncherDelay *time.Duration `yaml:"launcher_delay"`
	Debugger      *string        `yaml:"debugger"`
}

// ConfigSource provides one configuration layer
type ConfigSource interface {
	Load() (*Overlay, error)
	// Priority orders the layers; higher numbers are applied later and win
	Priority() int
	Name() string
}

// CompositeConfigRepository merges its sources over the defaults
type CompositeConfigRepository struct {
	baseDir    string
	configPath string
	sources    []ConfigSource
	loaded     []string
}

// NewCompositeConfigRepository creates a repository rooted at the host
// executable's directory. An empty configPath uses LEBINK_CONFIG_FILE or
// binkproxy.yaml in baseDir.
func NewCompositeConfigRepository(baseDir, configPath string) *CompositeConfigRepository {
	if configPath == "" {
		configPath = os.Getenv(ConfigFileEnv)
	}
	if configPath == "" {
		configPath = filepath.Join(baseDir, DefaultFileName)
	}

	repo := &CompositeConfigRepository{
		baseDir:    baseDir,
		configPath: configPath,
	}
	repo.AddSource(NewFileConfigSource(configPath))
	repo.AddSource(NewEnvironmentConfigSource())
	return repo
}

// AddSource adds a configuration layer
func (r *CompositeConfigRepository) AddSource(source ConfigSource) {
	r.sources = append(r.sources, source)
}

// ConfigPath returns the configuration file path in use
func (r *CompositeConfigRepository) ConfigPath() string {
	return r.configPath
}

// LoadedSources names the layers the last Load applied
func (r *CompositeConfigRepository) LoadedSources() []string {
	return append([]string(nil), r.loaded...)
}

// Load applies every source over the defaults and validates the result.
// A source that fails to load is reported; the others still apply.
func (r *CompositeConfigRepository) Load() (*Configuration, error) {
	config := r.LoadDefault()

	sorted := make([]ConfigSource, len(r.sources))
	copy(sorted, r.sources)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})

	r.loaded = r.loaded[:0]
	var sourceErr error
	for _, source := range sorted {
		overlay, err := source.Load()
		if err != nil {
			if sourceErr == nil {
				sourceErr = fmt.Errorf("config source %s: %w", source.Name(), err)
			}
			continue
		}
		if overlay == nil {
			continue
		}
		mergeConfigurations(config, overlay)
		r.loaded = append(r.loaded, source.Name())
	}

	config.PluginDir = r.resolve(config.PluginDir)
	config.LogFile = r.resolve(config.LogFile)

	if err := NewConfigValidator().Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, sourceErr
}

// LoadDefault returns the built-in configuration
func (r *CompositeConfigRepository) LoadDefault() *Configuration {
	return &Configuration{
		LogFile:         DefaultLogFileName,
		PluginDir:       "ASI",
		PluginExtension: ".asi",
		MaxPluginFiles:  128,
		TryLoadAll:      true,
		InspectPlugins:  true,
		GraceInterval:   300 * time.Millisecond,
		GateMode:        GateModeEvent,
		GateTimeout:     30 * time.Second,
		PollInterval:    250 * time.Millisecond,
		LauncherDelay:   3 * time.Second,
	}
}

// resolve makes relative paths relative to the host executable
func (r *CompositeConfigRepository) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || r.baseDir == "" {
		return path
	}
	return filepath.Join(r.baseDir, path)
}

// mergeConfigurations applies the set fields of source onto target
func mergeConfigurations(target *Configuration, source *Overlay) {
	setBool(&target.Debug, source.Debug)
	setString(&target.LogFile, source.LogFile)
	setBool(&target.LogToStderr, source.LogToStderr)

	setString(&target.PluginDir, source.PluginDir)
	setString(&target.PluginExtension, source.PluginExtension)
	if source.MaxPluginFiles != nil {
		target.MaxPluginFiles = *source.MaxPluginFiles
	}
	setBool(&target.TryLoadAll, source.TryLoadAll)
	setBool(&target.InspectPlugins, source.InspectPlugins)
	setDuration(&target.GraceInterval, source.GraceInterval)
	setDuration(&target.JoinTimeout, source.JoinTimeout)

	setString(&target.GateMode, source.GateMode)
	setDuration(&target.GateTimeout, source.GateTimeout)
	setDuration(&target.PollInterval, source.PollInterval)
	setDuration(&target.PollTimeout, source.PollTimeout)
	if len(source.SplashTitles) > 0 {
		target.SplashTitles = append([]string(nil), source.SplashTitles...)
	}

	setDuration(&target.LauncherDelay, source.LauncherDelay)
	setString(&target.Debugger, source.Debugger)
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *time.Duration) {
	if src != nil {
		*dst = *src
	}
}
