package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"lebinkproxy.dev/proxy/internal/core/domain"
	"lebinkproxy.dev/proxy/internal/core/modules"
	"lebinkproxy.dev/proxy/internal/core/plugins"
	"lebinkproxy.dev/proxy/internal/infrastructure/launcher"
	"lebinkproxy.dev/proxy/internal/infrastructure/logging"
	"lebinkproxy.dev/proxy/internal/infrastructure/peinspect"
	"lebinkproxy.dev/proxy/internal/infrastructure/platform"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// CLIContainer holds the dependencies of the binkctl commands
type CLIContainer struct {
	Logger    hclog.Logger
	Inspector plugins.Inspector
	Loader    plugins.Loader
	Starter   modules.ProcessStarter
}

// NewCLIContainer returns the container backed by the running OS
func NewCLIContainer() *CLIContainer {
	return &CLIContainer{
		Loader:  platform.DLLLoader{},
		Starter: launcher.NewExecutor(),
	}
}

// NewRootCommand creates binkctl, the offline companion of the proxy
func NewRootCommand(container *CLIContainer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "binkctl",
		Short: "LEBinkProxy companion tool",
		Long: `binkctl inspects a Mass Effect Legendary Edition install the way the
proxy sees it at runtime.

It resolves executables to targets, searches byte patterns in game
binaries, classifies plugins in the ASI directory and starts games the
way the launcher does.`,
		Version:      Version,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debugMode, _ := cmd.Flags().GetBool("debug")
			container.Logger = logging.CLI(debugMode)
			if container.Inspector == nil {
				container.Inspector = peinspect.New(container.Logger)
			}
			return nil
		},
	}

	rootCmd.SetVersionTemplate("{{.Name}} version {{.Version}}\n" + buildInfo())

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging on stderr")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewIdentityCommand(container))
	rootCmd.AddCommand(NewScanCommand(container))
	rootCmd.AddCommand(NewPluginsCommand(container))
	rootCmd.AddCommand(NewLaunchCommand(container))
	rootCmd.AddCommand(NewConfigCommand(container))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show binkctl and SPI versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			printTitle(out, "binkctl "+Version)
			printField(out, "Proxy version", domain.ProxyVersion)
			printField(out, "SPI version", domain.ServiceVersion)
			printField(out, "Oldest SPI", domain.ServiceVersionMinSupported)
			printField(out, "Build mode", domain.BuildMode)
			fmt.Fprint(out, mutedStyle.Render(buildInfo()))
			return nil
		},
	}
}

func buildInfo() string {
	return fmt.Sprintf("Build time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH)
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// ExecuteContext runs binkctl with the process arguments. The error has
// already been printed when it is returned.
func ExecuteContext(ctx context.Context, container *CLIContainer) error {
	err := run(ctx, container, os.Args[1:], os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func run(ctx context.Context, container *CLIContainer, args []string, stdout, stderr io.Writer) error {
	rootCmd := NewRootCommand(container)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SilenceErrors = true
	return rootCmd.ExecuteContext(ctx)
}
