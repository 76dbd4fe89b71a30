package config

import "time"

// Default values for configuration fields, mirroring the teacher's
// defaults.go convention of one named constant per tunable.
const (
	DefaultThreads                      = 0 // Runtime.Threads is not read anywhere; the Go runtime's default GOMAXPROCS applies
	DefaultGracePeriodSeconds            = 5
	DefaultGracefulShutdownTimeoutSeconds = 30
	DefaultUpstreamKeepalivePoolSize     = 64
	DefaultReadHeaderTimeout             = 10 * time.Second

	DefaultMessagingTimeout = 5 * time.Second
	DefaultMaxInflight      = 64
	DefaultOverflowPolicy   = "queue"

	DefaultRetryMax            = 2
	DefaultRetryBackoffInitial = 100 * time.Millisecond
	DefaultRetryBackoffMax     = 2 * time.Second

	// Per-phase timeout defaults, spec §4.4.2.
	DefaultTimeoutRequestFilterMS     = 5000
	DefaultTimeoutResponseFilterMS    = 3000
	DefaultTimeoutResponseBodyMS      = 3000
	DefaultTimeoutLoggingMS           = 200

	DefaultHealthCheckInterval  = 10 * time.Second
	DefaultHealthCheckTimeout   = 2 * time.Second
	DefaultHealthyThreshold     = 2
	DefaultUnhealthyThreshold   = 3

	DefaultStaticIndex = "index.html"
)

// ApplyDefaults fills zero-valued fields with the defaults above, mirroring
// the teacher's ApplyDefaults(*Config) shape.
func ApplyDefaults(cfg *Config) {
	if cfg.Runtime.GracePeriodSeconds == 0 {
		cfg.Runtime.GracePeriodSeconds = DefaultGracePeriodSeconds
	}
	if cfg.Runtime.GracefulShutdownTimeoutSeconds == 0 {
		cfg.Runtime.GracefulShutdownTimeoutSeconds = DefaultGracefulShutdownTimeoutSeconds
	}
	if cfg.Runtime.UpstreamKeepalivePoolSize == 0 {
		cfg.Runtime.UpstreamKeepalivePoolSize = DefaultUpstreamKeepalivePoolSize
	}
	if cfg.Runtime.ReadHeaderTimeout == 0 {
		cfg.Runtime.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}

	for name, mc := range cfg.Messaging {
		if mc.DefaultTimeout == 0 {
			mc.DefaultTimeout = DefaultMessagingTimeout
		}
		if mc.MaxInflight == 0 {
			mc.MaxInflight = DefaultMaxInflight
		}
		if mc.OverflowPolicy == "" {
			mc.OverflowPolicy = DefaultOverflowPolicy
		}
		applyRetryDefaults(&mc.RetryBackoff)
		cfg.Messaging[name] = mc
	}

	for name, svc := range cfg.Services {
		if svc.Kind == "http" && svc.HTTP != nil {
			hc := &svc.HTTP.HealthCheck
			if hc.Interval == 0 {
				hc.Interval = DefaultHealthCheckInterval
			}
			if hc.Timeout == 0 {
				hc.Timeout = DefaultHealthCheckTimeout
			}
			if hc.HealthyThreshold == 0 {
				hc.HealthyThreshold = DefaultHealthyThreshold
			}
			if hc.UnhealthyThreshold == 0 {
				hc.UnhealthyThreshold = DefaultUnhealthyThreshold
			}
			if hc.Path == "" {
				hc.Path = "/"
			}
			if svc.HTTP.Algorithm == "" {
				svc.HTTP.Algorithm = "round_robin"
			}
		}
		if svc.Kind == "static" && svc.Static != nil && svc.Static.Index == "" {
			svc.Static.Index = DefaultStaticIndex
		}
		cfg.Services[name] = svc
	}

	for pname, p := range cfg.Plugins {
		if p.Backend.Kind != "messaging" {
			continue
		}
		if p.Backend.PhasePolicies == nil {
			p.Backend.PhasePolicies = map[string]PhasePolicy{}
		}
		applyPhaseDefault(p.Backend.PhasePolicies, "request_filter", DefaultTimeoutRequestFilterMS)
		applyPhaseDefault(p.Backend.PhasePolicies, "response_filter", DefaultTimeoutResponseFilterMS)
		applyPhaseDefault(p.Backend.PhasePolicies, "response_body_filter", DefaultTimeoutResponseBodyMS)
		applyPhaseDefault(p.Backend.PhasePolicies, "logging", DefaultTimeoutLoggingMS)
		cfg.Plugins[pname] = p
	}
}

func applyPhaseDefault(policies map[string]PhasePolicy, phase string, timeoutMS int) {
	pol := policies[phase]
	if pol.TimeoutMS == 0 {
		pol.TimeoutMS = timeoutMS
	}
	if pol.OnError == "" {
		pol.OnError = "end"
	}
	applyRetryDefaults(&pol.Retry)
	policies[phase] = pol
}

func applyRetryDefaults(r *RetryConfig) {
	if r.Max == 0 {
		r.Max = DefaultRetryMax
	}
	if r.BackoffInitial == 0 {
		r.BackoffInitial = DefaultRetryBackoffInitial
	}
	if r.BackoffMax == 0 {
		r.BackoffMax = DefaultRetryBackoffMax
	}
}
