package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/spf13/cobra"

	"github.com/conneroisu/plonepack/internal/config"
	"github.com/conneroisu/plonepack/internal/esbuildplugin"
	"github.com/conneroisu/plonepack/internal/overrides"
)

var (
	bundleOutfile   string
	bundleMinify    bool
	bundleSourcemap bool
	bundleFormat    string
	bundleExternal  []string
)

var bundleCmd = &cobra.Command{
	Use:   "bundle <entry>...",
	Short: "Bundle entry points with esbuild, resolving against the portal",
	Long: `Bundle one or more entry points with esbuild. Imports that the portal
serves are fetched from it, static fallbacks are used for assets it cannot
serve and everything else resolves through node_modules as usual.

Examples:
  plonepack bundle src/main.js --outfile dist/main.js
  plonepack bundle src/main.js -o dist/main.js --minify --sourcemap`,
	Aliases: []string{"b"},
	Args:    cobra.MinimumNArgs(1),
	RunE:    runBundle,
}

func init() {
	rootCmd.AddCommand(bundleCmd)

	bundleCmd.Flags().StringVarP(&bundleOutfile, "outfile", "o", "", "Output file (required)")
	bundleCmd.Flags().BoolVar(&bundleMinify, "minify", false, "Minify the output")
	bundleCmd.Flags().BoolVar(&bundleSourcemap, "sourcemap", false, "Write a linked source map")
	bundleCmd.Flags().StringVar(&bundleFormat, "format", "iife", "Output module format (iife, esm, cjs)")
	bundleCmd.Flags().StringSliceVar(&bundleExternal, "external", nil, "Modules to leave out of the bundle")
	_ = bundleCmd.MarkFlagRequired("outfile")
	AddFlagValidation(bundleCmd, "format", func(f string) error {
		return ValidateFormat(f, []string{"iife", "esm", "cjs"})
	})
}

func runBundle(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if dir := cfg.Resolve.StaticDir; dir != "" {
		if _, err := overrides.Materialize(dir); err != nil {
			return err
		}
	}

	a, err := newAppFrom(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	hook, err := a.cfg.ContextHook()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	plugin := esbuildplugin.New(a.engine, esbuildplugin.Options{
		Hook:         hook,
		Replacements: a.cfg.Replacements(),
		Context:      ctx,
		Logger:       a.logger.WithComponent("esbuild"),
	})

	opts := api.BuildOptions{
		EntryPoints:       args,
		Bundle:            true,
		Outfile:           bundleOutfile,
		Write:             true,
		Plugins:           []api.Plugin{plugin},
		External:          bundleExternal,
		Format:            esbuildFormat(bundleFormat),
		MinifyWhitespace:  bundleMinify,
		MinifyIdentifiers: bundleMinify,
		MinifySyntax:      bundleMinify,
		LogLevel:          api.LogLevelSilent,
	}
	if bundleSourcemap {
		opts.Sourcemap = api.SourceMapLinked
	}

	result := api.Build(opts)
	out := cmd.ErrOrStderr()
	for _, msg := range api.FormatMessages(result.Warnings, api.FormatMessagesOptions{Kind: api.WarningMessage}) {
		fmt.Fprint(out, msg)
	}
	if len(result.Errors) > 0 {
		msgs := api.FormatMessages(result.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage})
		return fmt.Errorf("bundle failed with %d errors:\n%s", len(result.Errors), strings.Join(msgs, ""))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", bundleOutfile)
	return nil
}

func esbuildFormat(name string) api.Format {
	switch strings.ToLower(name) {
	case "esm":
		return api.FormatESModule
	case "cjs":
		return api.FormatCommonJS
	default:
		return api.FormatIIFE
	}
}
