// Package cmd provides the command-line interface for plonepack.
//
// Configuration System:
//
//	Settings come from several sources with clear precedence:
//	1. Command-line flags (--portal-url, --debug, etc.) - highest priority
//	2. Individual environment variables (PLONEPACK_PORTAL_URL, etc.)
//	3. Configuration file (.plonepack.yml, --config or PLONEPACK_CONFIG_FILE)
//	4. Built-in defaults - lowest priority
//
// Environment Variables:
//
//	PLONEPACK_CONFIG_FILE: Path to custom configuration file
//	PLONEPACK_PORTAL_URL: Override the portal URL
//	PLONEPACK_PROBE_MODE: http or dir
//	And every other key following the PLONEPACK_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "plonepack",
	Short: "Resolve theme and bundle requests against a running Plone portal",
	Long: `plonepack resolves the file and module requests of a Plone theme build
against a running portal. Requests that the portal serves become remote
locations, a few well known static assets come from local fallbacks and
everything else is left to the bundler's default resolution.

Quick Start:
  plonepack resolve ++plone++static/plone   Resolve one request
  plonepack scan ./theme                    Resolve every asset a theme references
  plonepack bundle src/main.js -o out.js    Bundle with esbuild against the portal
  plonepack serve                           Expose the resolver over HTTP and websockets

Configuration is read from .plonepack.yml and PLONEPACK_ environment variables.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .plonepack.yml, can also use PLONEPACK_CONFIG_FILE env var)")
	flags.String("portal-url", "", "portal URL requests resolve against")
	flags.Bool("debug", false, "log every resolution decision and probe")
	flags.StringP("log-level", "l", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json)")

	bindFlags(rootCmd, map[string]string{
		"portal-url": "portal.url",
		"debug":      "debug",
		"log-level":  "log.level",
		"log-format": "log.format",
	}, true)
}

// initConfig points viper at the config file and the environment.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag
//  2. PLONEPACK_CONFIG_FILE environment variable
//  3. .plonepack.yml in the current directory
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("PLONEPACK_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".plonepack")
	}

	viper.SetEnvPrefix("PLONEPACK")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing file means defaults; a broken one surfaces when the config
	// is validated.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Warning: cannot read config file:", err)
	}
}
