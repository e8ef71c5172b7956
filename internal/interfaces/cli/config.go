package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"lebinkproxy.dev/proxy/internal/infrastructure/config"
)

// NewConfigCommand creates the config command
func NewConfigCommand(container *CLIContainer) *cobra.Command {
	var gameDir, configPath string

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show the proxy configuration",
		Long: `Show the configuration the proxy would run with in a game directory.

Settings come from the defaults, then binkproxy.yaml next to the game
executable, then the LEBINK_* environment variables.`,
	}

	configCmd.PersistentFlags().StringVar(&gameDir, "game-dir", ".", "Directory holding the game executable")
	configCmd.PersistentFlags().StringVar(&configPath, "file", "", "Configuration file (default <game-dir>/binkproxy.yaml)")

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := config.NewCompositeConfigRepository(gameDir, configPath)
			cfg, err := repo.Load()
			if cfg == nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if err != nil {
				container.Logger.Warn("configuration partially loaded", "error", err)
				fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(err.Error()))
			}

			printConfig(cmd.OutOrStdout(), cfg, repo.LoadedSources())
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := config.NewCompositeConfigRepository(gameDir, configPath)
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file path: %s\n", repo.ConfigPath())
			return nil
		},
	})

	return configCmd
}

func printConfig(w io.Writer, cfg *config.Configuration, sources []string) {
	printTitle(w, "Proxy configuration")
	printField(w, "Sources", strings.Join(append([]string{"defaults"}, sources...), ", "))
	printField(w, "Debug", cfg.Debug)
	printField(w, "Log file", cfg.LogFile)
	printField(w, "Plugin dir", cfg.PluginDir)
	printField(w, "Plugin extension", cfg.PluginExtension)
	printField(w, "Max plugins", cfg.MaxPluginFiles)
	printField(w, "Try load all", cfg.TryLoadAll)
	printField(w, "Inspect plugins", cfg.InspectPlugins)
	printField(w, "Gate mode", cfg.GateMode)
	printField(w, "Gate timeout", cfg.GateTimeout)
	if len(cfg.SplashTitles) > 0 {
		printField(w, "Splash titles", strings.Join(cfg.SplashTitles, ", "))
	}
	if cfg.Debugger != "" {
		printField(w, "Debugger", cfg.Debugger)
	}
}
