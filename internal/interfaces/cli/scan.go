package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"lebinkproxy.dev/proxy/internal/core/scanner"
	"lebinkproxy.dev/proxy/internal/infrastructure/peinspect"
)

// NewScanCommand creates the scan command
func NewScanCommand(container *CLIContainer) *cobra.Command {
	var section string

	cmd := &cobra.Command{
		Use:   "scan <binary> <pattern>",
		Short: "Search a byte pattern in a game binary",
		Long: `Search a pattern in one section of a PE file, the way FindPattern
searches the main module of the running game. The pattern is written as
space separated hex bytes where ?? matches any byte.

The reported address assumes the image is loaded at its preferred base.`,
		Example: `  binkctl scan MassEffect1.exe "40 53 48 83 EC ?? 48 8B D9"
  binkctl scan MassEffect3.exe "48 8B C4 ?? ?? 41 56" --section .text`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern, err := scanner.ParsePattern(args[1])
			if err != nil {
				return fmt.Errorf("invalid pattern: %w", err)
			}

			image := peinspect.FileImage{Path: args[0], Section: section}
			addr, err := scanner.New(image, container.Logger).Lookup(pattern)
			if err != nil {
				return fmt.Errorf("pattern not found in %s: %w", args[0], err)
			}

			base, _, err := image.ModuleImage()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printTitle(out, "Pattern match")
			printField(out, "Pattern", pattern.String())
			printField(out, "Section", image.Section)
			printField(out, "Address", fmt.Sprintf("%#x", addr))
			printField(out, "Section offset", fmt.Sprintf("%#x", addr-base))
			return nil
		},
	}

	cmd.Flags().StringVar(&section, "section", peinspect.DefaultSection, "PE section to search")

	return cmd
}
