package modules

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"lebinkproxy.dev/proxy/internal/core/domain"
)

const (
	// LauncherArgsName is the registry name of the auto-launch module
	LauncherArgsName = "LauncherArgs"
	// DebuggerEnv names a debugger to start the game under
	DebuggerEnv = "LEBINK_DEBUGGER"
	// DefaultGameArgs is the argument string the stock launcher passes
	DefaultGameArgs = " -NoHomeDir -SeekFreeLoadingPCConsole -locale {locale} -Subtitles 20 -OVERRIDELANGUAGE=INT"
)

// ErrInvalidLaunchTarget is returned for a -game value outside [1;3]
var ErrInvalidLaunchTarget = errors.New("launch target must be 1, 2 or 3")

// LaunchRequest is what the launcher command line asks for
type LaunchRequest struct {
	Game          domain.Game
	AutoTerminate bool
}

// ParseLaunchRequest looks for "-game N" and "-autoterminate". ok is false
// when no target was requested, which is not an error.
func ParseLaunchRequest(cmdLine string) (req LaunchRequest, ok bool, err error) {
	idx := strings.Index(cmdLine, "-game ")
	if idx < 0 || idx+len("-game ") >= len(cmdLine) {
		return LaunchRequest{}, false, nil
	}

	n := leadingInt(cmdLine[idx+len("-game "):])
	if n < 1 || n > 3 {
		return LaunchRequest{}, false, fmt.Errorf("%w: got %d", ErrInvalidLaunchTarget, n)
	}

	return LaunchRequest{
		Game:          domain.Game(n),
		AutoTerminate: strings.Contains(cmdLine, "-autoterminate"),
	}, true, nil
}

// leadingInt parses an optionally signed decimal prefix; garbage reads as 0
func leadingInt(s string) int {
	s = strings.TrimLeft(s, " \t")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// LaunchSpec describes the process to start
type LaunchSpec struct {
	Path    string
	Args    string
	WorkDir string
}

// BuildLaunchSpec returns the executable, arguments and working directory
// for a game, relative to the launcher directory. With a debugger the
// debugger is started and the game path moves into the arguments.
func BuildLaunchSpec(game domain.Game, launcherDir, debugger string) LaunchSpec {
	workDir := fmt.Sprintf("../ME%d/Binaries/Win64", int(game))
	exe := fmt.Sprintf("%s/MassEffect%d.exe", workDir, int(game))

	spec := LaunchSpec{
		Path:    resolveRelative(launcherDir, exe),
		Args:    DefaultGameArgs,
		WorkDir: resolveRelative(launcherDir, workDir),
	}
	if debugger != "" {
		spec.Args = fmt.Sprintf("%s %s", spec.Path, spec.Args)
		spec.Path = debugger
	}
	return spec
}

func resolveRelative(dir, path string) string {
	if dir == "" {
		return filepath.FromSlash(path)
	}
	return filepath.Join(dir, filepath.FromSlash(path))
}

// Process is a started child process
type Process interface {
	PID() int
	Wait() error
}

// ProcessStarter starts processes
type ProcessStarter interface {
	Start(ctx context.Context, spec LaunchSpec) (Process, error)
}

// LauncherArgs starts the requested game straight from the launcher
type LauncherArgs struct {
	base
	host    domain.HostContext
	starter ProcessStarter
	getenv  func(string) string
	exit    func(code int)
	logger  hclog.Logger

	wg sync.WaitGroup
}

// NewLauncherArgs creates the module. exit terminates the launcher when
// auto-termination was requested.
func NewLauncherArgs(host domain.HostContext, starter ProcessStarter, getenv func(string) string, exit func(code int), logger hclog.Logger) *LauncherArgs {
	return &LauncherArgs{
		base:    base{name: LauncherArgsName},
		host:    host,
		starter: starter,
		getenv:  getenv,
		exit:    exit,
		logger:  logger.Named("launcher"),
	}
}

// Activate parses the command line and starts the game in the background
func (l *LauncherArgs) Activate(ctx context.Context) error {
	req, ok, err := ParseLaunchRequest(l.host.CmdLine)
	if err != nil {
		return err
	}
	if !ok {
		l.logger.Info("no launch target on the command line")
		return nil
	}
	l.logger.Info("autoboot target detected", "game", req.Game, "autoterminate", req.AutoTerminate)

	spec := BuildLaunchSpec(req.Game, l.host.ExeDir, l.getenv(DebuggerEnv))
	l.setActive(true)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.launch(ctx, req, spec)
	}()
	return nil
}

func (l *LauncherArgs) launch(ctx context.Context, req LaunchRequest, spec LaunchSpec) {
	l.logger.Info("starting game", "path", spec.Path, "args", spec.Args, "dir", spec.WorkDir)

	proc, err := l.starter.Start(ctx, spec)
	if err != nil {
		l.logger.Error("failed to create a process", "error", err)
		return
	}

	if req.AutoTerminate {
		l.logger.Info("created a process, terminating the launcher", "pid", proc.PID())
		l.exit(0)
		return
	}

	l.logger.Info("created a process, waiting until it exits", "pid", proc.PID())
	if err := proc.Wait(); err != nil {
		l.logger.Warn("game exited with an error", "error", err)
		return
	}
	l.logger.Info("game exited")
}

// Wait blocks until the background launch finished
func (l *LauncherArgs) Wait() {
	l.wg.Wait()
}

// Deactivate does nothing; the game outlives the launcher
func (l *LauncherArgs) Deactivate() {
	l.setActive(false)
}
