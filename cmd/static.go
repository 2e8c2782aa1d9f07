package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/plonepack/internal/config"
	"github.com/conneroisu/plonepack/internal/overrides"
)

var staticCmd = &cobra.Command{
	Use:   "static",
	Short: "Write the bundled static fallbacks to the static directory",
	Long: `Write the static assets plonepack bundles for requests the portal cannot
serve (fonts, images and stylesheets of the core resources) into the
configured static directory. Files already present are kept.

Examples:
  plonepack static
  plonepack static --dir build/static`,
	RunE: runStatic,
}

func init() {
	rootCmd.AddCommand(staticCmd)

	staticCmd.Flags().String("dir", "", "Target directory (default is resolve.static_dir)")
	bindFlags(staticCmd, map[string]string{"dir": "resolve.static_dir"}, false)
}

func runStatic(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	dir := cfg.Resolve.StaticDir
	if dir == "" {
		return fmt.Errorf("no static directory configured (set resolve.static_dir or --dir)")
	}

	written, err := overrides.Materialize(dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, p := range written {
		fmt.Fprintf(out, "wrote %s\n", p)
	}
	fmt.Fprintf(out, "%d of %d static fallbacks written to %s\n",
		len(written), len(overrides.BundledNames()), dir)
	return nil
}
