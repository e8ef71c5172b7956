package cli

import (
	"github.com/spf13/cobra"

	"lebinkproxy.dev/proxy/internal/core/identity"
)

// NewIdentityCommand creates the identity command
func NewIdentityCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "identity <exe-path>",
		Short: "Show which target an executable resolves to",
		Long: `Resolve an executable path the way the proxy does when it is loaded
into a process. Unknown executables are reported as an error; the proxy
terminates such processes.`,
		Example: `  binkctl identity "C:/Games/MELE/Game/ME1/Binaries/Win64/MassEffect1.exe"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, err := identity.Resolve(args[0], 0, "")
			if err != nil {
				return err
			}
			container.Logger.Debug("resolved", "exe", host.ExeName, "game", host.Game())

			out := cmd.OutOrStdout()
			printTitle(out, "Host identity")
			printField(out, "Executable", host.ExeName)
			printField(out, "Directory", host.ExeDir)
			printField(out, "Game", host.Game())
			printField(out, "Window title", host.Target.WindowTitle)
			printField(out, "Target flag", host.Game().Flag())
			return nil
		},
	}
}
