//go:build !windows

package launcher

import (
	"os/exec"
	"strings"

	"lebinkproxy.dev/proxy/internal/core/modules"
)

func setCommandLine(cmd *exec.Cmd, spec modules.LaunchSpec) {
	cmd.Args = append([]string{spec.Path}, strings.Fields(spec.Args)...)
}
