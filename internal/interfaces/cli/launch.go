package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"lebinkproxy.dev/proxy/internal/core/domain"
	"lebinkproxy.dev/proxy/internal/core/modules"
)

// NewLaunchCommand creates the launch command
func NewLaunchCommand(container *CLIContainer) *cobra.Command {
	var (
		game          int
		launcherDir   string
		debugger      string
		dryRun        bool
		autoTerminate bool
	)

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Start a game the way the launcher does",
		Long: `Start one of the games with the arguments the proxy passes when the
launcher is run with "-game N". Paths are relative to the launcher
directory (the directory holding MassEffectLauncher.exe).

With a debugger, the debugger is started and the game path becomes its
first argument. The LEBINK_DEBUGGER environment variable is used when
--debugger is not given.`,
		Example: `  binkctl launch --game 1 --launcher-dir "C:/Games/MELE/Game/Launcher"
  binkctl launch --game 3 --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if game < int(domain.GameLE1) || game > int(domain.GameLE3) {
				return fmt.Errorf("%w: got %d", modules.ErrInvalidLaunchTarget, game)
			}
			if debugger == "" {
				debugger = os.Getenv(modules.DebuggerEnv)
			}

			dir, err := filepath.Abs(launcherDir)
			if err != nil {
				return fmt.Errorf("failed to resolve launcher directory: %w", err)
			}
			spec := modules.BuildLaunchSpec(domain.Game(game), dir, debugger)

			out := cmd.OutOrStdout()
			printTitle(out, fmt.Sprintf("Launch %s", domain.Game(game)))
			printField(out, "Executable", spec.Path)
			printField(out, "Arguments", spec.Args)
			printField(out, "Working dir", spec.WorkDir)
			if dryRun {
				return nil
			}

			proc, err := container.Starter.Start(cmd.Context(), spec)
			if err != nil {
				return fmt.Errorf("failed to start %s: %w", spec.Path, err)
			}
			printField(out, "PID", proc.PID())
			container.Logger.Debug("started", "pid", proc.PID(), "path", spec.Path)

			if autoTerminate {
				return nil
			}
			if err := proc.Wait(); err != nil {
				return fmt.Errorf("game exited: %w", err)
			}
			fmt.Fprintln(out, okStyle.Render("Game exited"))
			return nil
		},
	}

	cmd.Flags().IntVar(&game, "game", 0, "Game to start: 1, 2 or 3")
	cmd.Flags().StringVar(&launcherDir, "launcher-dir", ".", "Launcher directory")
	cmd.Flags().StringVar(&debugger, "debugger", "", "Start the game under this debugger")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print what would be started")
	cmd.Flags().BoolVar(&autoTerminate, "autoterminate", false, "Return once the game is started")
	_ = cmd.MarkFlagRequired("game")

	return cmd
}
