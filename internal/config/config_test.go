package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/conneroisu/plonepack/internal/errors"
	"github.com/conneroisu/plonepack/internal/logging"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/Plone", cfg.Portal.URL)
	assert.Equal(t, []string{".js", ""}, cfg.Resolve.Extensions)
	assert.ElementsMatch(t, []string{"events", "layouts-editor", "plone", "translate"}, cfg.Resolve.Blacklist)
	assert.Equal(t, []MappingEntry{{From: "./jqtree-circle.png", To: "./components/jqtree/jqtree-circle.png"}}, cfg.Resolve.Mapping)
	assert.Equal(t, "@", cfg.Resolve.NamespaceMarker)
	assert.True(t, cfg.Resolve.Replacements)
	assert.Equal(t, ProbeModeHTTP, cfg.Probe.Mode)
	assert.Equal(t, 10*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, 200*time.Millisecond, cfg.Probe.RetryDelay)
	assert.Equal(t, 1, cfg.Probe.Retries)
	assert.True(t, cfg.Hook.Enabled)
	assert.Len(t, cfg.Hook.Extras, 4)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".plonepack.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
portal:
  url: https://cms.example.org/site/
resolve:
  extensions: [".js", ".css", ""]
  blacklist: [jquery]
  mapping:
    - from: ./a.png
      to: ./img/a.png
probe:
  mode: dir
  root: ./mirror
  timeout: 3s
server:
  port: 9100
debug: true
`), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "https://cms.example.org/site/", cfg.Portal.URL)
	coords, err := cfg.Coordinates()
	require.NoError(t, err)
	assert.Equal(t, "/site", coords.Path)

	assert.Equal(t, []string{".js", ".css", ""}, cfg.Resolve.Extensions)
	tables := cfg.Tables()
	assert.True(t, tables.Blacklisted("jquery"))
	assert.False(t, tables.Blacklisted("events"))
	mapped, ok := tables.Mapped("./a.png")
	assert.True(t, ok)
	assert.Equal(t, "./img/a.png", mapped)

	assert.Equal(t, ProbeModeDir, cfg.Probe.Mode)
	assert.Equal(t, 3*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, logging.LevelDebug, cfg.LoggerConfig().Level)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PLONEPACK_PORTAL_URL", "http://env.example.org:8080/Plone")
	t.Setenv("PLONEPACK_DEBUG", "true")
	t.Setenv("PLONEPACK_PROBE_RETRIES", "3")

	v := viper.New()
	v.SetEnvPrefix("PLONEPACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "http://env.example.org:8080/Plone", cfg.Portal.URL)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 3, cfg.Probe.Retries)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		set   map[string]interface{}
		field string
	}{
		{"portal without host", map[string]interface{}{"portal.url": "/Plone"}, "portal.url"},
		{"portal with query", map[string]interface{}{"portal.url": "http://h/Plone?x=1"}, "portal.url"},
		{"extension without dot", map[string]interface{}{"resolve.extensions": []string{"js"}}, "resolve.extensions"},
		{"marker with slash", map[string]interface{}{"resolve.namespace_marker": "a/b"}, "resolve.namespace_marker"},
		{"unknown probe mode", map[string]interface{}{"probe.mode": "ftp"}, "probe.mode"},
		{"dir without root", map[string]interface{}{"probe.mode": "dir"}, "probe.root"},
		{"zero concurrency", map[string]interface{}{"probe.concurrency": 0}, "probe.concurrency"},
		{"bad hook condition", map[string]interface{}{"hook.condition": "mockup/("}, "hook.condition"},
		{"port out of range", map[string]interface{}{"server.port": 70000}, "server.port"},
		{"dangerous host", map[string]interface{}{"server.host": "localhost;rm"}, "server.host"},
		{"unknown level", map[string]interface{}{"log.level": "loud"}, "log.level"},
		{"unknown format", map[string]interface{}{"log.format": "xml"}, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.set {
				v.Set(k, val)
			}

			_, err := LoadFrom(v)
			require.Error(t, err)
			assert.True(t, perrors.IsConfigError(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	v := viper.New()
	v.Set("portal.url", "nope")
	v.Set("server.port", -1)

	_, err := LoadFrom(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "portal.url")
	assert.Contains(t, err.Error(), "server.port")
}

func TestDisabledHookIsNotValidated(t *testing.T) {
	v := viper.New()
	v.Set("hook.enabled", false)
	v.Set("hook.condition", "(")

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	hook, err := cfg.ContextHook()
	require.NoError(t, err)
	assert.Nil(t, hook)
}

func TestContextHook(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	hook, err := cfg.ContextHook()
	require.NoError(t, err)
	require.NotNil(t, hook)
	assert.True(t, hook.Matches("/x/mockup/patterns/structure/js"))
	assert.NotNil(t, hook.Filter)

	cfg.Hook.Condition = "custom/dir"
	hook, err = cfg.ContextHook()
	require.NoError(t, err)
	assert.Nil(t, hook.Filter)
}

func TestReplacements(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)
	assert.Len(t, cfg.Replacements(), 2)

	cfg.Resolve.Replacements = false
	assert.Nil(t, cfg.Replacements())
}
