package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/plonepack/internal/resource"
)

var (
	resolveContext string
	resolveKind    string
	resolveQuery   string
	resolveExplain bool
	resolveOutput  string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <request>...",
	Short: "Resolve requests against the portal",
	Long: `Resolve one or more file or module requests the way a bundler would.

Each request prints the location it resolves to, or "continue" when the
bundler's default resolution should take over.

Examples:
  plonepack resolve ++plone++static/plone.js
  plonepack resolve --kind module mockup-patterns-select2
  plonepack resolve --context ./src ../logo.png --explain
  plonepack resolve ./jqtree-circle.png -o json`,
	Aliases: []string{"r"},
	Args:    cobra.MinimumNArgs(1),
	RunE:    runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVarP(&resolveContext, "context", "c", "", "Directory of the importing file (default is the working directory)")
	resolveCmd.Flags().StringVarP(&resolveKind, "kind", "k", "file", "Request kind (file, module)")
	resolveCmd.Flags().StringVarP(&resolveQuery, "query", "q", "", "Query suffix carried onto the result")
	resolveCmd.Flags().BoolVar(&resolveExplain, "explain", false, "Show the rule that decided each request")
	addOutputFlag(resolveCmd, &resolveOutput)
}

// resolveResult is one line of resolve output.
type resolveResult struct {
	Request  string             `json:"request" yaml:"request"`
	Kind     string             `json:"kind" yaml:"kind"`
	Strategy string             `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Reason   string             `json:"reason,omitempty" yaml:"reason,omitempty"`
	Target   string             `json:"target,omitempty" yaml:"target,omitempty"`
	Location *resource.Location `json:"location,omitempty" yaml:"location,omitempty"`
	Continue bool               `json:"continue" yaml:"continue"`
	Error    string             `json:"error,omitempty" yaml:"error,omitempty"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	kind, ok := resource.ParseKind(resolveKind)
	if !ok {
		return fmt.Errorf("unknown request kind %q (supported: file, module)", resolveKind)
	}

	contextDir := resolveContext
	if contextDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		contextDir = wd
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]resolveResult, 0, len(args))
	failed := 0
	for _, raw := range args {
		req := resource.NewRequest(raw, contextDir, resolveQuery, kind)
		res := resolveResult{Request: raw, Kind: kind.String()}

		if resolveExplain {
			d := a.engine.Explain(req)
			res.Strategy = d.Strategy.String()
			res.Reason = d.Reason
			res.Target = d.Target
		}

		loc, err := a.engine.Resolve(ctx, req)
		switch {
		case err != nil:
			res.Error = err.Error()
			failed++
		case loc == nil:
			res.Continue = true
		default:
			res.Location = loc
		}
		results = append(results, res)
	}

	if err := render(cmd.OutOrStdout(), resolveOutput, results, func(w io.Writer) error {
		return printResolveText(w, results)
	}); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d requests failed", failed, len(args))
	}
	return nil
}

var titleCaser = cases.Title(language.English)

// strategyTitle turns "plus-plus-resource" into "Plus Plus Resource".
func strategyTitle(s string) string {
	return titleCaser.String(strings.ReplaceAll(s, "-", " "))
}

func printResolveText(w io.Writer, results []resolveResult) error {
	for _, r := range results {
		switch {
		case r.Error != "":
			fmt.Fprintf(w, "%s: error: %s\n", r.Request, r.Error)
		case r.Continue:
			fmt.Fprintf(w, "%s: continue\n", r.Request)
		default:
			fmt.Fprintf(w, "%s: %s\n", r.Request, r.Location)
		}
		if r.Strategy != "" {
			fmt.Fprintf(w, "  strategy: %s (%s)\n", strategyTitle(r.Strategy), r.Reason)
			if r.Target != "" {
				fmt.Fprintf(w, "  target:   %s\n", r.Target)
			}
		}
	}
	return nil
}
