package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/plonepack/internal/config"
)

var configOutput string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration after files, environment and flags are merged",
	Long: `Print the effective configuration. The default output is YAML, which can
be saved as .plonepack.yml.

Examples:
  plonepack config show
  PLONEPACK_PROBE_MODE=dir plonepack config show -o json`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and report every problem",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configValidateCmd)

	configShowCmd.Flags().StringVarP(&configOutput, "output", "o", formatYAML, "Output format (yaml|json)")
	AddFlagValidation(configShowCmd, "output", func(format string) error {
		return ValidateFormat(format, []string{formatYAML, formatJSON})
	})
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), configOutput, cfg, func(io.Writer) error {
		return ValidateFormat(configOutput, []string{formatYAML, formatJSON})
	})
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Building the engine catches what only a wired engine can check.
	if _, err := cfg.ContextHook(); err != nil {
		return err
	}
	a, err := newAppFrom(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "config file: %s\n", used)
	}
	fmt.Fprintf(out, "portal:      %s\n", a.engine.Coordinates().URL)
	fmt.Fprintf(out, "namespace:   %s\n", a.engine.Mapper().Namespace.Root())
	fmt.Fprintf(out, "extensions:  %q\n", a.engine.Extensions())
	fmt.Fprintln(out, "configuration is valid")
	return nil
}

