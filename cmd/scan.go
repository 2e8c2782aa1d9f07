package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/plonepack/internal/scanner"
	"github.com/conneroisu/plonepack/internal/watcher"
)

var (
	scanOutput   string
	scanAll      bool
	scanStrict   bool
	scanWatch    bool
	scanDebounce time.Duration
)

var scanCmd = &cobra.Command{
	Use:   "scan [theme-dir]",
	Short: "Resolve every asset a theme's templates reference",
	Long: `Scan theme templates for script, stylesheet and image references and
resolve each one against the portal.

Only references that do not resolve are listed unless --all is given.

Examples:
  plonepack scan ./theme
  plonepack scan --pattern "**/*.pt" --all
  plonepack scan ./theme --watch
  plonepack scan -o yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringSlice("pattern", nil, "Template glob patterns (default **/*.html, **/*.pt)")
	scanCmd.Flags().BoolVarP(&scanAll, "all", "a", false, "List resolved references too")
	scanCmd.Flags().BoolVar(&scanStrict, "strict", false, "Exit non-zero when any reference fails to resolve")
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "Rescan whenever a template changes")
	scanCmd.Flags().DurationVar(&scanDebounce, "debounce", 300*time.Millisecond, "Quiet period before a rescan")
	addOutputFlag(scanCmd, &scanOutput)

	bindFlags(scanCmd, map[string]string{"pattern": "theme.patterns"}, false)
}

type scanReport struct {
	Root     string            `json:"root" yaml:"root"`
	Summary  map[string]int    `json:"summary" yaml:"summary"`
	Outcomes []scanner.Outcome `json:"outcomes" yaml:"outcomes"`
}

func runScan(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		viper.Set("theme.source_path", args[0])
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	root := a.cfg.Theme.SourcePath
	if root == "" {
		root = "."
	}
	coords, err := a.cfg.Coordinates()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s := scanner.New(scanner.Options{
		Root:     root,
		Patterns: a.cfg.Theme.Patterns,
		Coords:   &coords,
		Workers:  a.cfg.Probe.Concurrency,
		Logger:   a.logger,
	})

	report, err := scanOnce(ctx, a, s, root)
	if err != nil {
		return err
	}
	if err := writeScanReport(cmd.OutOrStdout(), report); err != nil {
		return err
	}

	if scanWatch {
		return watchTheme(ctx, cmd.OutOrStdout(), a, s, root)
	}

	if failed := report.Summary[string(scanner.StatusFailed)]; scanStrict && failed > 0 {
		return fmt.Errorf("%d references failed to resolve", failed)
	}
	return nil
}

func scanOnce(ctx context.Context, a *app, s *scanner.Scanner, root string) (scanReport, error) {
	refs, err := s.Scan(ctx)
	if err != nil {
		return scanReport{}, err
	}

	outcomes, err := scanner.Resolve(ctx, a.engine, refs, a.cfg.Probe.Concurrency)
	if err != nil {
		return scanReport{}, err
	}

	report := scanReport{Root: root, Summary: map[string]int{}}
	for status, n := range scanner.Summary(outcomes) {
		report.Summary[string(status)] = n
	}
	for _, o := range outcomes {
		if scanAll || o.Status != scanner.StatusResolved {
			report.Outcomes = append(report.Outcomes, o)
		}
	}
	return report, nil
}

func writeScanReport(out io.Writer, report scanReport) error {
	return render(out, scanOutput, report, func(w io.Writer) error {
		return printScanTable(w, report)
	})
}

// watchTheme rescans on every batch of template changes until interrupted.
func watchTheme(ctx context.Context, out io.Writer, a *app, s *scanner.Scanner, root string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watcher.New(scanDebounce, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.AddFilter(watcher.PatternFilter(root, a.cfg.Theme.Patterns))
	w.AddHandler(func(ctx context.Context, events []watcher.Event) error {
		fmt.Fprintf(out, "\n%d template(s) changed, rescanning\n", len(events))
		report, err := scanOnce(ctx, a, s, root)
		if err != nil {
			return err
		}
		return writeScanReport(out, report)
	})
	if err := w.AddRecursive(root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	fmt.Fprintf(out, "Watching %s for template changes\n", root)
	return w.Run(ctx)
}

func printScanTable(out io.Writer, report scanReport) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if len(report.Outcomes) > 0 {
		fmt.Fprintln(w, "TEMPLATE\tREFERENCE\tSTATUS\tLOCATION")
		fmt.Fprintln(w, "--------\t---------\t------\t--------")
		for _, o := range report.Outcomes {
			template := o.Reference.Template
			if rel, err := filepath.Rel(report.Root, template); err == nil {
				template = rel
			}
			detail := o.Error
			if o.Location != nil {
				detail = o.Location.String()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", template, o.Reference.Value, o.Status, detail)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "resolved: %d\tcontinue: %d\tfailed: %d\n",
		report.Summary[string(scanner.StatusResolved)],
		report.Summary[string(scanner.StatusFallthrough)],
		report.Summary[string(scanner.StatusFailed)])
	return w.Flush()
}
