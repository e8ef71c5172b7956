package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"lebinkproxy.dev/proxy/internal/core/domain"
	"lebinkproxy.dev/proxy/internal/core/identity"
	"lebinkproxy.dev/proxy/internal/core/plugins"
)

// Plugin classes as the orchestrator treats them
const (
	ClassService  = "service"
	ClassDemoted  = "demoted"
	ClassRaw      = "raw"
	ClassRejected = "rejected"
)

var lifecycleSymbols = []string{
	plugins.SymbolSupportDecl,
	plugins.SymbolShouldPreload,
	plugins.SymbolShouldSpawnThread,
	plugins.SymbolOnAttach,
	plugins.SymbolOnDetach,
}

// PluginReport is the classification of one plugin file
type PluginReport struct {
	FileName string
	Class    string
	Missing  []string
	Err      error

	Declaration *plugins.Declaration

	// Compatibility is nil when the plugin would be activated on the host
	Compatibility error
}

// ClassifyExports derives the plugin class from its exported entry points
func ClassifyExports(exports []string) (class string, missing []string) {
	if !slices.Contains(exports, plugins.SymbolSupportDecl) {
		return ClassRaw, nil
	}
	for _, symbol := range lifecycleSymbols[1:] {
		if !slices.Contains(exports, symbol) {
			missing = append(missing, symbol)
		}
	}
	if len(missing) > 0 {
		return ClassDemoted, missing
	}
	return ClassService, nil
}

// NewPluginsCommand creates the plugins command
func NewPluginsCommand(container *CLIContainer) *cobra.Command {
	var (
		extension string
		maxFiles  int
		load      bool
		hostExe   string
	)

	cmd := &cobra.Command{
		Use:   "plugins [dir]",
		Short: "Classify the plugins of an ASI directory",
		Long: `List the plugin files the proxy would load from a directory and how
each one is treated, based on its exported entry points:

  service   declares itself and implements the whole lifecycle
  demoted   declares itself but misses lifecycle entry points; loaded raw
  raw       plain ASI without declaration; loaded as is
  rejected  not a loadable DLL

With --load the declaring plugins are loaded and their declaration is
printed. This runs plugin code, do it on a machine you trust the plugins on.`,
		Example: `  binkctl plugins ./ASI
  binkctl plugins ./ASI --load --host MassEffect2.exe`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "ASI"
			if len(args) == 1 {
				dir = args[0]
			}

			game := domain.GameUnsupported
			if hostExe != "" {
				target, ok := identity.Lookup(identity.BaseName(hostExe))
				if !ok {
					return fmt.Errorf("%w: %s", domain.ErrUnsupportedExecutable, hostExe)
				}
				game = target.Game
			}

			candidates, skipped, err := plugins.Discover(dir, extension, maxFiles)
			if err != nil {
				return err
			}

			reports := make([]PluginReport, 0, len(candidates))
			for _, candidate := range candidates {
				report := inspectCandidate(container, candidate, load, game)
				reports = append(reports, report)
			}

			printPluginReports(cmd.OutOrStdout(), dir, reports, skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&extension, "ext", ".asi", "Plugin file extension")
	cmd.Flags().IntVar(&maxFiles, "max", 128, "Maximum number of plugin files")
	cmd.Flags().BoolVar(&load, "load", false, "Load declaring plugins and print their declaration")
	cmd.Flags().StringVar(&hostExe, "host", "", "Check compatibility against this game executable")

	return cmd
}

func inspectCandidate(container *CLIContainer, candidate plugins.Candidate, load bool, game domain.Game) PluginReport {
	report := PluginReport{FileName: candidate.FileName}

	exports, err := container.Inspector.Inspect(candidate.Path)
	if err != nil {
		container.Logger.Debug("inspection failed", "plugin", candidate.FileName, "error", err)
		report.Class = ClassRejected
		report.Err = err
		return report
	}
	report.Class, report.Missing = ClassifyExports(exports)

	if !load || report.Class == ClassRaw || container.Loader == nil {
		return report
	}

	lib, err := container.Loader.Load(candidate.Path)
	if err != nil {
		report.Err = err
		return report
	}
	caps := lib.Probe()
	if !caps.Declared() {
		return report
	}

	decl, err := declare(caps.Declare)
	if err != nil {
		report.Err = err
		return report
	}
	report.Declaration = &decl
	if game != domain.GameUnsupported {
		report.Compatibility = plugins.CheckCompatibility(decl, game)
	}
	return report
}

func declare(fn func() plugins.Declaration) (decl plugins.Declaration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", plugins.SymbolSupportDecl, r)
		}
	}()
	return fn(), nil
}

func printPluginReports(w io.Writer, dir string, reports []PluginReport, skipped int) {
	printTitle(w, fmt.Sprintf("Plugins in %s", dir))
	if len(reports) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No plugin files found."))
		return
	}

	counts := make(map[string]int)
	for _, r := range reports {
		counts[r.Class]++

		fmt.Fprintf(w, "%s %s\n", classStyle(r.Class).Render(fmt.Sprintf("%-10s", r.Class)), r.FileName)
		if len(r.Missing) > 0 {
			fmt.Fprintf(w, "           missing: %s\n", strings.Join(r.Missing, ", "))
		}
		if r.Declaration != nil {
			d := r.Declaration
			fmt.Fprintf(w, "           %s by %s, version %s, targets %s, service >= %d\n",
				d.Name, d.Author, d.Version, d.Targets, d.MinServiceVersion)
		}
		if r.Compatibility != nil {
			fmt.Fprintf(w, "           %s\n", warnStyle.Render("filtered: "+r.Compatibility.Error()))
		}
		if r.Err != nil {
			fmt.Fprintf(w, "           %s\n", failStyle.Render(r.Err.Error()))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d service, %d demoted, %d raw, %d rejected\n",
		counts[ClassService], counts[ClassDemoted], counts[ClassRaw], counts[ClassRejected])
	if skipped > 0 {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("%d files over the limit were skipped", skipped)))
	}
}

func classStyle(class string) lipgloss.Style {
	switch class {
	case ClassService:
		return okStyle
	case ClassDemoted:
		return warnStyle
	case ClassRejected:
		return failStyle
	default:
		return mutedStyle
	}
}
