//go:build !windows

package launcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lebinkproxy.dev/proxy/internal/core/modules"
)

func TestExecutor_Start_RunsInWorkDir(t *testing.T) {
	sh, err := os.Stat("/bin/sh")
	if err != nil || sh.IsDir() {
		t.Skip("no /bin/sh")
	}

	dir := t.TempDir()
	proc, err := NewExecutor().Start(context.Background(), modules.LaunchSpec{
		Path:    "/bin/sh",
		Args:    "-c pwd>out.txt",
		WorkDir: dir,
	})
	require.NoError(t, err)
	assert.Positive(t, proc.PID())
	require.NoError(t, proc.Wait())
	assert.NoError(t, proc.Wait())

	out, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestExecutor_Start_MissingExecutable(t *testing.T) {
	_, err := NewExecutor().Start(context.Background(), modules.LaunchSpec{
		Path: filepath.Join(t.TempDir(), "MassEffect1.exe"),
	})
	assert.Error(t, err)
}

func TestExecutor_Start_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExecutor().Start(ctx, modules.LaunchSpec{Path: "/bin/sh"})
	assert.ErrorIs(t, err, context.Canceled)
}
