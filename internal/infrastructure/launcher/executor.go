// Package launcher starts game processes for the launcher variant.
package launcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"lebinkproxy.dev/proxy/internal/core/modules"
)

// Executor implements modules.ProcessStarter with os/exec
type Executor struct {
	env []string
}

var _ modules.ProcessStarter = (*Executor)(nil)

// NewExecutor creates an executor that passes the current environment on
func NewExecutor() *Executor {
	return &Executor{env: os.Environ()}
}

// NewExecutorWithEnv creates an executor with an explicit environment
func NewExecutorWithEnv(env []string) *Executor {
	if env == nil {
		env = os.Environ()
	}
	return &Executor{env: env}
}

// Start launches spec. The child is not tied to ctx: the game outlives
// the launcher that started it.
func (e *Executor) Start(ctx context.Context, spec modules.LaunchSpec) (modules.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(spec.Path)
	setCommandLine(cmd, spec)
	cmd.Dir = spec.WorkDir
	cmd.Env = append([]string(nil), e.env...)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start process: %w", err)
	}
	return &process{cmd: cmd}, nil
}

type process struct {
	cmd  *exec.Cmd
	once sync.Once
	err  error
}

func (p *process) PID() int {
	return p.cmd.Process.Pid
}

func (p *process) Wait() error {
	p.once.Do(func() { p.err = p.cmd.Wait() })
	return p.err
}
