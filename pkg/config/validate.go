package config

import "fmt"

// ConfigInvalid is the error taxonomy entry for config.Validate failures
// (spec §7): detected at commit time, never surfaced on the request path.
type ConfigInvalid struct {
	Reason string
}

func (e *ConfigInvalid) Error() string { return "config invalid: " + e.Reason }

// Validate enforces the identifier-uniqueness and reference-integrity
// invariants of spec §3: service/route/plugin/middleware-group/messaging-
// config names are each globally unique, and every reference (middleware
// group, plugin, service) resolves to something declared.
func Validate(cfg *Config) error {
	if err := validateUnique(cfg); err != nil {
		return err
	}
	if err := validateTLSDomains(cfg); err != nil {
		return err
	}
	if err := validateReferences(cfg); err != nil {
		return err
	}
	return nil
}

func validateUnique(cfg *Config) error {
	// Maps are already keyed by name for services/plugins/middleware
	// groups/messaging configs, so YAML decoding itself refuses
	// duplicate keys within one section; what remains is cross-checking
	// names embedded in values against their map keys and checking route
	// names if routes ever gain names (currently unnamed/ordered).
	for name, svc := range cfg.Services {
		if svc.Name != "" && svc.Name != name {
			return &ConfigInvalid{Reason: fmt.Sprintf("service key %q does not match service.name %q", name, svc.Name)}
		}
	}
	for name, p := range cfg.Plugins {
		if p.Name != "" && p.Name != name {
			return &ConfigInvalid{Reason: fmt.Sprintf("plugin key %q does not match plugin.name %q", name, p.Name)}
		}
	}
	return nil
}

// validateTLSDomains enforces "at most one TlsEntry claims a domain"
// (spec §3).
func validateTLSDomains(cfg *Config) error {
	claimed := make(map[string]string, len(cfg.TLS))
	for name, entry := range cfg.TLS {
		for _, domain := range entry.Domains {
			if owner, ok := claimed[domain]; ok {
				return &ConfigInvalid{Reason: fmt.Sprintf("domain %q claimed by both tls entries %q and %q", domain, owner, name)}
			}
			claimed[domain] = name
		}
	}
	return nil
}

// validateReferences checks that every middleware step and path resolves
// to a name declared elsewhere in the committed configuration.
func validateReferences(cfg *Config) error {
	checkStep := func(step MiddlewareStep) error {
		if step.GroupRef != "" {
			if _, ok := cfg.MiddlewareGroups[step.GroupRef]; !ok {
				return &ConfigInvalid{Reason: fmt.Sprintf("middleware group %q is not declared", step.GroupRef)}
			}
			return nil
		}
		if step.PluginName != "" {
			if _, ok := cfg.Plugins[step.PluginName]; !ok {
				return &ConfigInvalid{Reason: fmt.Sprintf("plugin %q is not declared", step.PluginName)}
			}
		}
		return nil
	}

	for _, group := range cfg.MiddlewareGroups {
		for _, step := range group.Steps {
			if err := checkStep(step); err != nil {
				return err
			}
		}
	}

	for ri, route := range cfg.Routes {
		for _, step := range route.Middleware {
			if err := checkStep(step); err != nil {
				return err
			}
		}
		for pi, path := range route.Paths {
			for _, step := range path.Middleware {
				if err := checkStep(step); err != nil {
					return err
				}
			}
			if path.Service == "" {
				return &ConfigInvalid{Reason: fmt.Sprintf("route[%d].paths[%d] has no service", ri, pi)}
			}
			if _, ok := cfg.Services[path.Service]; !ok {
				return &ConfigInvalid{Reason: fmt.Sprintf("route[%d].paths[%d] references undeclared service %q", ri, pi, path.Service)}
			}
		}
	}

	for name, svc := range cfg.Services {
		if svc.Kind == "plugin" && svc.Plugin != nil {
			if _, ok := cfg.Plugins[svc.Plugin.PluginName]; !ok {
				return &ConfigInvalid{Reason: fmt.Sprintf("service %q references undeclared plugin %q", name, svc.Plugin.PluginName)}
			}
		}
	}

	for name, p := range cfg.Plugins {
		if p.Backend.Kind == "messaging" {
			if _, ok := cfg.Messaging[p.Backend.MessagingConfigName]; !ok {
				return &ConfigInvalid{Reason: fmt.Sprintf("plugin %q references undeclared messaging config %q", name, p.Backend.MessagingConfigName)}
			}
		}
	}

	return nil
}
