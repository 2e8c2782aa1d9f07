package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/plonepack/internal/version"
)

var (
	versionFormat   string
	versionShort    bool
	versionDetailed bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for plonepack including the version, git
commit, build time, Go version, platform and the linked esbuild version.

Examples:
  plonepack version              # Show version
  plonepack version --detailed   # Show detailed version info
  plonepack version -o json      # Output as JSON`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	addOutputFlag(versionCmd, &versionFormat)
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	return render(cmd.OutOrStdout(), versionFormat, version.GetBuildInfo(), func(w io.Writer) error {
		switch {
		case versionShort:
			fmt.Fprintln(w, version.GetShortVersion())
		case versionDetailed:
			fmt.Fprintln(w, version.GetDetailedVersion())
		default:
			fmt.Fprintf(w, "plonepack %s\n", version.GetShortVersion())
		}
		return nil
	})
}
