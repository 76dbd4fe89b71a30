package config

import (
	"encoding/json"
	"time"
)

// Config is the root, validated configuration tree the Nylon core
// consumes (spec §6.1). It is immutable once committed: reload replaces
// the whole tree via an atomic pointer swap (pkg/store), never a field at
// a time.
type Config struct {
	Listeners []Listener `yaml:"listeners"`

	Runtime RuntimeConfig `yaml:"runtime"`

	// ConfigDir is opaque to the core; an external file watcher uses it,
	// the core never reads from it directly.
	ConfigDir string `yaml:"config_dir"`

	// ACMEStorageDir is the persisted ACME cache directory consulted by
	// the ACME-backed certificate provider (pkg/tls).
	ACMEStorageDir string `yaml:"acme_storage_dir"`

	WebSocket WebSocketConfig `yaml:"websocket"`

	Messaging map[string]MessagingConfig `yaml:"messaging"`

	Plugins map[string]PluginConfig `yaml:"plugins"`

	Services map[string]ServiceConfig `yaml:"services"`

	MiddlewareGroups map[string]MiddlewareGroup `yaml:"middleware_groups"`

	Routes []RouteConfig `yaml:"routes"`

	TLS map[string]TLSEntry `yaml:"tls"`

	// HeaderSelector names the request header consulted for header-kind
	// route matching (spec §4.1). Empty disables the header bucket.
	HeaderSelector string `yaml:"header_selector"`
}

// Listener is one bind address the proxy core accepts connections on.
type Listener struct {
	Address  string `yaml:"address"`
	Protocol string `yaml:"protocol"` // http | https | metrics
}

// RuntimeConfig holds runtime tuning knobs (spec §6.1).
type RuntimeConfig struct {
	Threads                        int           `yaml:"threads"`
	WorkStealing                    bool          `yaml:"work_stealing"`
	GracePeriodSeconds               int           `yaml:"grace_period_seconds"`
	GracefulShutdownTimeoutSeconds   int           `yaml:"graceful_shutdown_timeout_seconds"`
	UpstreamKeepalivePoolSize        int           `yaml:"upstream_keepalive_pool_size"`
	User                             string        `yaml:"user"`
	Group                            string        `yaml:"group"`
	CABundlePath                     string        `yaml:"ca_bundle_path"`
	ReadHeaderTimeout                time.Duration `yaml:"read_header_timeout"`
}

// WebSocketConfig configures the room broadcast adapter (spec §4.8).
type WebSocketConfig struct {
	AdapterType string            `yaml:"adapter_type"` // memory | redis | cluster
	Addresses   []string          `yaml:"addresses"`
	KeyPrefix   string            `yaml:"key_prefix"`
	Params      map[string]string `yaml:"params"`
}

// MessagingConfig describes one broker connection used by messaging-backend
// plugins (spec §3, §4.4.2).
type MessagingConfig struct {
	BrokerURLs       []string      `yaml:"broker_urls"`
	SubjectPrefix    string        `yaml:"subject_prefix"`
	DefaultTimeout   time.Duration `yaml:"default_timeout"`
	MaxInflight      int           `yaml:"max_inflight"`
	OverflowPolicy   string        `yaml:"overflow_policy"` // queue | reject | shed
	RetryBackoff     RetryConfig   `yaml:"retry_backoff"`
	Auth             AuthDescriptor `yaml:"auth"`
}

// AuthDescriptor names how to authenticate to the broker. It is parsed
// but not applied: the messaging transport connects without credentials,
// and nothing resolves SecretName.
type AuthDescriptor struct {
	Kind       string `yaml:"kind"` // none | token | nkey | user_pass
	SecretName string `yaml:"secret_name"`
}

// RetryConfig is the exponential-backoff-with-jitter retry policy of
// spec §4.4.2.
type RetryConfig struct {
	Max              int           `yaml:"max"`
	BackoffInitial   time.Duration `yaml:"backoff_initial"`
	BackoffMax       time.Duration `yaml:"backoff_max"`
}

// PluginConfig is a plugin descriptor (spec §3).
type PluginConfig struct {
	Name    string        `yaml:"name"`
	Backend PluginBackend `yaml:"backend"`
	// InitPayload is opaque JSON handed to the plugin's initialize call.
	InitPayload json.RawMessage `yaml:"init_payload"`
}

// PluginBackend selects local-ffi or messaging, per spec §3.
type PluginBackend struct {
	Kind string `yaml:"kind"` // local-ffi | messaging

	// local-ffi
	SharedObjectPath string `yaml:"shared_object_path"`

	// messaging
	MessagingConfigName string                `yaml:"messaging_config"`
	QueueGroup           string                `yaml:"queue_group"`
	PhasePolicies        map[string]PhasePolicy `yaml:"phase_policies"`
}

// PhasePolicy governs transport failure behavior for one phase, spec §4.4.2.
type PhasePolicy struct {
	TimeoutMS int         `yaml:"timeout_ms"`
	OnError   string      `yaml:"on_error"` // retry | continue | end
	Retry     RetryConfig `yaml:"retry"`
}

// ServiceConfig is a named service (spec §3).
type ServiceConfig struct {
	Name   string               `yaml:"name"`
	Kind   string               `yaml:"kind"` // http | plugin | static
	HTTP   *HTTPServiceConfig   `yaml:"http,omitempty"`
	Plugin *PluginServiceConfig `yaml:"plugin,omitempty"`
	Static *StaticServiceConfig `yaml:"static,omitempty"`
}

// HTTPServiceConfig configures a load-balanced upstream service.
type HTTPServiceConfig struct {
	Endpoints   []EndpointConfig      `yaml:"endpoints"`
	Algorithm   string                `yaml:"algorithm"` // round_robin | weighted | random | consistent
	HealthCheck HealthCheckConfigYAML `yaml:"health_check"`
}

// EndpointConfig is one backend endpoint.
type EndpointConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Weight int    `yaml:"weight"`
}

// HealthCheckConfigYAML mirrors loadbalancer.HealthCheckConfig in YAML form.
type HealthCheckConfigYAML struct {
	Path               string        `yaml:"path"`
	Interval           time.Duration `yaml:"interval"`
	Timeout            time.Duration `yaml:"timeout"`
	HealthyThreshold   int           `yaml:"healthy_threshold"`
	UnhealthyThreshold int           `yaml:"unhealthy_threshold"`
}

// PluginServiceConfig routes a request entirely to a plugin entry point.
type PluginServiceConfig struct {
	PluginName    string `yaml:"plugin_name"`
	EntryPoint    string `yaml:"entry_point"`
	StaticPayload string `yaml:"static_payload"`
}

// StaticServiceConfig configures the static file service (spec §4.9).
type StaticServiceConfig struct {
	Root  string `yaml:"root"`
	Index string `yaml:"index"`
	SPA   bool   `yaml:"spa"`
}

// MiddlewareStep references either a plugin invocation or a middleware
// group, spec §3.
type MiddlewareStep struct {
	PluginName    string `yaml:"plugin,omitempty"`
	EntryPoint    string `yaml:"entry_point,omitempty"`
	StaticPayload string `yaml:"payload,omitempty"`
	GroupRef      string `yaml:"group,omitempty"`
	OnError       string `yaml:"on_error,omitempty"` // continue | "" (fail the invocation)
}

// MiddlewareGroup is an ordered, named list of steps.
type MiddlewareGroup struct {
	Steps []MiddlewareStep `yaml:"steps"`
}

// RouteConfig is one route (spec §3).
type RouteConfig struct {
	Matcher     RouteMatcher     `yaml:"matcher"`
	TLSRequired bool             `yaml:"tls_required"`
	TLSRedirect string           `yaml:"tls_redirect"`
	Middleware  []MiddlewareStep `yaml:"middleware"`
	Paths       []PathConfig     `yaml:"paths"`
}

// RouteMatcher selects which requests a route applies to, spec §4.1.
type RouteMatcher struct {
	Kind   string   `yaml:"kind"` // host | header
	Values []string `yaml:"values"`
}

// PathConfig is one radix-tree pattern entry within a route, spec §3/§4.1.
type PathConfig struct {
	Patterns   []string         `yaml:"patterns"`
	Methods    []string         `yaml:"methods,omitempty"`
	Middleware []MiddlewareStep `yaml:"middleware"`
	Service    string           `yaml:"service"`
	Rewrite    string           `yaml:"rewrite,omitempty"`
}

// TLSEntry claims one or more domains for a listener's TLS termination,
// spec §3. Mode is custom (file-backed) or acme.
type TLSEntry struct {
	Mode     string   `yaml:"mode"` // custom | acme
	Domains  []string `yaml:"domains"`
	CertFile string   `yaml:"cert_file,omitempty"`
	KeyFile  string   `yaml:"key_file,omitempty"`
	ChainFile string  `yaml:"chain_file,omitempty"`

	ACMEProvider string `yaml:"acme_provider,omitempty"`
	ACMEEmail    string `yaml:"acme_email,omitempty"`
}
