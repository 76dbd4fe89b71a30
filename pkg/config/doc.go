// Package config defines Nylon's configuration surface (spec §6.1): the
// typed, validated tree the core consumes — listeners, TLS entries, plugin
// descriptors, services, endpoints, middleware groups, routes, messaging
// configs, and runtime tuning.
//
// The core never parses YAML files or watches them for changes (that is an
// external collaborator's job per spec §1); Load here exists so `cmd/nylon`
// and tests have a convenient, teacher-style entry point, but the package
// boundary that matters is Config itself plus Validate. Hot reload is
// exposed as an atomic-swap entry point on the Shared Store (pkg/store),
// not as a singleton inside this package — see pkg/store/doc.go.
package config
