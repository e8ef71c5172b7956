//go:build windows

package launcher

import (
	"os/exec"
	"syscall"

	"lebinkproxy.dev/proxy/internal/core/modules"
)

// setCommandLine hands the argument string to CreateProcess untouched
func setCommandLine(cmd *exec.Cmd, spec modules.LaunchSpec) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CmdLine: syscall.EscapeArg(spec.Path) + " " + spec.Args,
	}
}
