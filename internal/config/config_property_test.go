//go:build property
// +build property

package config

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/viper"
)

// TestServerConfigProperties checks that the port range check matches the
// documented bounds.
func TestServerConfigProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("ports in range load, others are rejected", prop.ForAll(
		func(port int) bool {
			v := viper.New()
			v.Set("server.port", port)
			_, err := LoadFrom(v)
			valid := port >= 0 && port <= 65535
			return (err == nil) == valid
		},
		gen.IntRange(-1000, 70000),
	))

	properties.TestingRun(t)
}

// TestPortalURLProperties checks that any well formed portal URL loads and
// keeps its path as the coordinates' path.
func TestPortalURLProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("well formed portal URLs load", prop.ForAll(
		func(host string, port int, site string) bool {
			raw := fmt.Sprintf("http://%s:%d/%s", host, port, site)
			v := viper.New()
			v.Set("portal.url", raw)
			cfg, err := LoadFrom(v)
			if err != nil {
				return false
			}
			coords, err := cfg.Coordinates()
			return err == nil && coords.Path == "/"+site && coords.URL == raw
		},
		gen.Identifier(),
		gen.IntRange(1, 65535),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

// TestMappingRoundTrip checks that mapping entries become table lookups.
func TestMappingRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every mapping entry is looked up", prop.ForAll(
		func(from, to string) bool {
			v := viper.New()
			v.Set("resolve.mapping", []map[string]interface{}{{"from": "./" + from, "to": "./" + to}})
			cfg, err := LoadFrom(v)
			if err != nil {
				return false
			}
			got, ok := cfg.Tables().Mapped("./" + from)
			return ok && got == "./"+to
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
