package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"

	perrors "github.com/conneroisu/plonepack/internal/errors"
	"github.com/conneroisu/plonepack/internal/logging"
	"github.com/conneroisu/plonepack/internal/portal"
)

// Validate checks every section and reports all problems at once as a
// config error.
func Validate(cfg *Config) error {
	errs := &perrors.ValidationErrorCollection{}

	validatePortal(&cfg.Portal, errs)
	validateResolve(&cfg.Resolve, errs)
	validateProbe(&cfg.Probe, errs)
	validateHook(&cfg.Hook, errs)
	validateTheme(&cfg.Theme, errs)
	validateServer(&cfg.Server, errs)
	validateLog(&cfg.Log, errs)

	if err := errs.ToResolveError(); err != nil {
		return err
	}
	return nil
}

func validatePortal(c *PortalConfig, errs *perrors.ValidationErrorCollection) {
	if _, err := portal.ParseCoordinates(c.URL); err != nil {
		errs.AddField("portal.url", c.URL, err.Error(),
			"use an absolute URL such as "+portal.DefaultURL)
	}
}

func validateResolve(c *ResolveConfig, errs *perrors.ValidationErrorCollection) {
	if c.Extensions == nil {
		errs.AddField("resolve.extensions", nil, "extensions must be a list", `use [".js", ""]`)
	}
	for _, ext := range c.Extensions {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			errs.AddField("resolve.extensions", ext, "extension must be empty or start with a dot")
		}
	}
	for i, e := range c.Mapping {
		if e.From == "" || e.To == "" {
			errs.AddField(fmt.Sprintf("resolve.mapping[%d]", i), e, "mapping entries need both from and to")
		}
	}
	if strings.ContainsAny(c.NamespaceMarker, `/\`) {
		errs.AddField("resolve.namespace_marker", c.NamespaceMarker, "marker must be a single path segment")
	}
}

func validateProbe(c *ProbeConfig, errs *perrors.ValidationErrorCollection) {
	switch c.Mode {
	case ProbeModeHTTP:
	case ProbeModeDir:
		if c.Root == "" {
			errs.AddField("probe.root", c.Root, "dir mode needs a root directory")
		}
	default:
		errs.AddField("probe.mode", c.Mode, "unknown probe mode", "use http or dir")
	}
	if c.Timeout < 0 {
		errs.AddField("probe.timeout", c.Timeout, "timeout must not be negative")
	}
	if c.Retries < 0 {
		errs.AddField("probe.retries", c.Retries, "retries must not be negative")
	}
	if c.RetryDelay < 0 {
		errs.AddField("probe.retry_delay", c.RetryDelay, "retry delay must not be negative")
	}
	if c.Concurrency < 1 {
		errs.AddField("probe.concurrency", c.Concurrency, "concurrency must be at least 1")
	}
}

func validateHook(c *HookConfig, errs *perrors.ValidationErrorCollection) {
	if !c.Enabled {
		return
	}
	if c.Condition == "" {
		errs.AddField("hook.condition", c.Condition, "an enabled hook needs a condition")
		return
	}
	if _, err := regexp.Compile(c.Condition); err != nil {
		errs.AddField("hook.condition", c.Condition, err.Error())
	}
}

func validateTheme(c *ThemeConfig, errs *perrors.ValidationErrorCollection) {
	for _, p := range c.Patterns {
		if _, err := doublestar.Match(p, "probe"); err != nil {
			errs.AddField("theme.patterns", p, err.Error())
		}
	}
}

func validateServer(c *ServerConfig, errs *perrors.ValidationErrorCollection) {
	// 0 lets the system pick a port.
	if c.Port < 0 || c.Port > 65535 {
		errs.AddField("server.port", c.Port, fmt.Sprintf("port %d is not in valid range 0-65535", c.Port))
	}
	if c.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " "}
		for _, char := range dangerousChars {
			if strings.Contains(c.Host, char) {
				errs.AddField("server.host", c.Host, "host contains dangerous character: "+char)
				break
			}
		}
	}
	if c.MaxInFlight < 0 {
		errs.AddField("server.max_in_flight", c.MaxInFlight, "max_in_flight must not be negative")
	}
}

func validateLog(c *LogConfig, errs *perrors.ValidationErrorCollection) {
	if _, err := logging.ParseLevel(c.Level); err != nil {
		errs.AddField("log.level", c.Level, err.Error(), "use debug, info, warn or error")
	}
	switch c.Format {
	case "", "text", "json":
	default:
		errs.AddField("log.format", c.Format, "unknown log format", "use text or json")
	}
}

func sortEntries(entries []MappingEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].From < entries[j].From })
}
