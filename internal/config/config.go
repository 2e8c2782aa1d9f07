// Package config provides configuration management for plonepack using
// Viper for loading from files, environment variables and command-line
// flags.
//
// The configuration is read from .plonepack.yml, overridden by PLONEPACK_
// environment variables and flags, defaulted and validated once at start
// up. Nothing re-reads it afterwards.
package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/plonepack/internal/contexthook"
	"github.com/conneroisu/plonepack/internal/logging"
	"github.com/conneroisu/plonepack/internal/overrides"
	"github.com/conneroisu/plonepack/internal/portal"
)

// Config is the complete configuration.
type Config struct {
	Portal  PortalConfig  `mapstructure:"portal" yaml:"portal" json:"portal"`
	Resolve ResolveConfig `mapstructure:"resolve" yaml:"resolve" json:"resolve"`
	Probe   ProbeConfig   `mapstructure:"probe" yaml:"probe" json:"probe"`
	Hook    HookConfig    `mapstructure:"hook" yaml:"hook" json:"hook"`
	Theme   ThemeConfig   `mapstructure:"theme" yaml:"theme" json:"theme"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server" json:"server"`
	Debug   bool          `mapstructure:"debug" yaml:"debug" json:"debug"`
	Log     LogConfig     `mapstructure:"log" yaml:"log" json:"log"`
}

type PortalConfig struct {
	URL string `mapstructure:"url" yaml:"url" json:"url"`
}

// MappingEntry substitutes a request before its URL is built. Mapping is a
// list rather than a map because viper splits keys on dots.
type MappingEntry struct {
	From string `mapstructure:"from" yaml:"from" json:"from"`
	To   string `mapstructure:"to" yaml:"to" json:"to"`
}

type ResolveConfig struct {
	Extensions      []string       `mapstructure:"extensions" yaml:"extensions" json:"extensions"`
	Blacklist       []string       `mapstructure:"blacklist" yaml:"blacklist" json:"blacklist"`
	Mapping         []MappingEntry `mapstructure:"mapping" yaml:"mapping" json:"mapping"`
	StaticDir       string         `mapstructure:"static_dir" yaml:"static_dir" json:"static_dir"`
	NamespaceMarker string         `mapstructure:"namespace_marker" yaml:"namespace_marker" json:"namespace_marker"`
	// Replacements enables the request rewrites of host adapters.
	Replacements bool `mapstructure:"replacements" yaml:"replacements" json:"replacements"`
}

// Probe modes.
const (
	ProbeModeHTTP = "http"
	ProbeModeDir  = "dir"
)

type ProbeConfig struct {
	Mode        string        `mapstructure:"mode" yaml:"mode" json:"mode"`
	Root        string        `mapstructure:"root" yaml:"root" json:"root"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	Retries     int           `mapstructure:"retries" yaml:"retries" json:"retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" yaml:"retry_delay" json:"retry_delay"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency"`
}

type HookConfig struct {
	Enabled   bool     `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Condition string   `mapstructure:"condition" yaml:"condition" json:"condition"`
	Extras    []string `mapstructure:"extras" yaml:"extras" json:"extras"`
}

type ThemeConfig struct {
	SourcePath string   `mapstructure:"source_path" yaml:"source_path" json:"source_path"`
	Patterns   []string `mapstructure:"patterns" yaml:"patterns" json:"patterns"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host" json:"host"`
	Port           int      `mapstructure:"port" yaml:"port" json:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
	MaxInFlight    int      `mapstructure:"max_in_flight" yaml:"max_in_flight" json:"max_in_flight"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// SetDefaults registers every default on v. Registering them also makes
// each key known to AutomaticEnv.
func SetDefaults(v *viper.Viper) {
	hook := contexthook.Defaults()

	v.SetDefault("portal.url", portal.DefaultURL)

	v.SetDefault("resolve.extensions", []string{".js", ""})
	v.SetDefault("resolve.blacklist", overrides.DefaultBlacklist())
	v.SetDefault("resolve.mapping", defaultMapping())
	v.SetDefault("resolve.static_dir", ".plonepack/static")
	v.SetDefault("resolve.namespace_marker", portal.DefaultMarker)
	v.SetDefault("resolve.replacements", true)

	v.SetDefault("probe.mode", ProbeModeHTTP)
	v.SetDefault("probe.root", "")
	v.SetDefault("probe.timeout", 10*time.Second)
	v.SetDefault("probe.retries", 1)
	v.SetDefault("probe.retry_delay", 200*time.Millisecond)
	v.SetDefault("probe.concurrency", 8)

	v.SetDefault("hook.enabled", true)
	v.SetDefault("hook.condition", hook.Condition.String())
	v.SetDefault("hook.extras", hook.Extras)

	v.SetDefault("theme.source_path", "")
	v.SetDefault("theme.patterns", []string{"**/*.html", "**/*.pt"})

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 9000)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.max_in_flight", 64)

	v.SetDefault("debug", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func defaultMapping() []map[string]interface{} {
	var out []map[string]interface{}
	for _, e := range mappingEntries(overrides.DefaultMapping()) {
		out = append(out, map[string]interface{}{"from": e.From, "to": e.To})
	}
	return out
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads, defaults and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Env and flag overrides arrive as strings; the typed getters apply
	// viper's conversions.
	cfg.Debug = v.GetBool("debug")
	if v.IsSet("resolve.extensions") && cfg.Resolve.Extensions == nil {
		cfg.Resolve.Extensions = v.GetStringSlice("resolve.extensions")
	}
	if cfg.Resolve.Extensions == nil {
		cfg.Resolve.Extensions = []string{".js", ""}
	}
	if cfg.Resolve.Blacklist == nil {
		cfg.Resolve.Blacklist = []string{}
	}
	if cfg.Debug {
		cfg.Log.Level = "debug"
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Coordinates parses the portal URL.
func (c *Config) Coordinates() (portal.Coordinates, error) {
	return portal.ParseCoordinates(c.Portal.URL)
}

// Tables builds the override tables.
func (c *Config) Tables() *overrides.Tables {
	mapping := make(map[string]string, len(c.Resolve.Mapping))
	for _, e := range c.Resolve.Mapping {
		mapping[e.From] = e.To
	}
	return overrides.NewTables(c.Resolve.Blacklist, mapping)
}

// Replacements returns the host adapter rewrites that are enabled.
func (c *Config) Replacements() overrides.Replacements {
	if !c.Resolve.Replacements {
		return nil
	}
	return overrides.DefaultReplacements()
}

// ContextHook builds the context injection hook, or nil when disabled.
func (c *Config) ContextHook() (*contexthook.Hook, error) {
	if !c.Hook.Enabled {
		return nil, nil
	}
	cond, err := regexp.Compile(c.Hook.Condition)
	if err != nil {
		return nil, fmt.Errorf("hook condition: %w", err)
	}
	h := contexthook.New(cond, c.Hook.Extras)
	if c.Hook.Condition == contexthook.Defaults().Condition.String() {
		h.Filter = contexthook.Defaults().Filter
	}
	return h, nil
}

// LoggerConfig converts the log section for logging.NewLogger.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	lc := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Log.Level); err == nil {
		lc.Level = level
	}
	if c.Log.Format != "" {
		lc.Format = c.Log.Format
	}
	return lc
}

func mappingEntries(m map[string]string) []MappingEntry {
	out := make([]MappingEntry, 0, len(m))
	for from, to := range m {
		out = append(out, MappingEntry{From: from, To: to})
	}
	sortEntries(out)
	return out
}
