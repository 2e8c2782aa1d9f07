// Package internal contains the core implementation packages for plonepack.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the plonepack CLI tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - resource: Requests, request kinds and resolved locations
//   - portal: Portal coordinates, the virtual namespace and URL mapping
//   - overrides: Blacklist, mapping, request rewrites and static fallbacks
//   - classifier: The ordered rule table that picks a resolution strategy
//   - prober: Existence checks against the portal over HTTP or a mirror
//   - resolver: The engine combining classification and probing
//   - contexthook: One-time injection of extra alternatives per context
//   - esbuildplugin: The engine as an esbuild plugin
//   - scanner: Template scanning for asset references
//   - server: HTTP and websocket access to the engine
//   - config: Configuration loading and validation
//   - errors: Typed resolution errors
//   - logging: Structured logging
//   - version: Build information
//
// # Request Flow
//
// A request enters through a host adapter (the esbuild plugin, the server
// or the CLI), is classified against the rule table, mapped to a portal
// URL and probed. The engine answers with a location, with "continue with
// the default chain" or with a probe failure:
//
//	adapter -> resolver -> classifier -> portal.Mapper -> prober
//
// # Concurrency
//
// The engine holds only read-only configuration, so resolutions run in
// parallel. The prober collapses duplicate in-flight probes and the
// context hook guards its per-context tokens with a mutex.
package internal
