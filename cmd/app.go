package cmd

import (
	"fmt"
	"os"

	"github.com/conneroisu/plonepack/internal/config"
	"github.com/conneroisu/plonepack/internal/logging"
	"github.com/conneroisu/plonepack/internal/overrides"
	"github.com/conneroisu/plonepack/internal/prober"
	"github.com/conneroisu/plonepack/internal/resolver"
	"github.com/conneroisu/plonepack/internal/version"
)

// app holds what every command needs: the validated configuration, a
// logger and a ready engine.
type app struct {
	cfg    *config.Config
	logger logging.Logger
	engine *resolver.Engine
	// closers release prober resources such as directory watches.
	closers []func() error
}

// newApp loads the configuration and builds the engine it describes.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return newAppFrom(cfg)
}

func newAppFrom(cfg *config.Config) (*app, error) {
	logger := logging.NewLogger(cfg.LoggerConfig())
	a := &app{cfg: cfg, logger: logger}

	p, err := a.newProber()
	if err != nil {
		return nil, err
	}

	engine, err := resolver.New(resolver.Options{
		PortalURL:  cfg.Portal.URL,
		Extensions: cfg.Resolve.Extensions,
		Tables:     cfg.Tables(),
		Fallbacks:  a.fallbacks(),
		Prober:     p,
		Marker:     cfg.Resolve.NamespaceMarker,
		Debug:      cfg.Debug,
		Logger:     logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = engine
	return a, nil
}

func (a *app) newProber() (prober.Prober, error) {
	switch a.cfg.Probe.Mode {
	case config.ProbeModeDir:
		coords, err := a.cfg.Coordinates()
		if err != nil {
			return nil, err
		}
		dp, err := prober.NewDirProber(a.cfg.Probe.Root, coords, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, dp.Close)
		return dp, nil
	default:
		return prober.NewHTTPProber(prober.HTTPOptions{
			Timeout:    a.cfg.Probe.Timeout,
			Retries:    a.cfg.Probe.Retries,
			RetryDelay: a.cfg.Probe.RetryDelay,
			UserAgent:  "plonepack/" + version.GetShortVersion(),
			Logger:     a.logger,
		}), nil
	}
}

// fallbacks serves static assets only once the directory exists; the
// static and bundle commands create it.
func (a *app) fallbacks() overrides.StaticFallbacks {
	dir := a.cfg.Resolve.StaticDir
	if dir == "" {
		return nil
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil
	}
	return overrides.DirFallbacks{Dir: dir}
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cleanup failed: %v\n", err)
		}
	}
	a.closers = nil
}
