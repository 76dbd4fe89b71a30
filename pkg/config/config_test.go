package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalConfig() *Config {
	return &Config{
		Services: map[string]ServiceConfig{
			"backend": {Kind: "http", HTTP: &HTTPServiceConfig{
				Endpoints: []EndpointConfig{{Host: "127.0.0.1", Port: 9000, Weight: 1}},
			}},
		},
		Routes: []RouteConfig{{
			Matcher: RouteMatcher{Kind: "host", Values: []string{"localhost"}},
			Paths:   []PathConfig{{Patterns: []string{"/"}, Service: "backend"}},
		}},
	}
}

func TestValidate_MinimalConfigOK(t *testing.T) {
	cfg := minimalConfig()
	ApplyDefaults(cfg)
	require.NoError(t, Validate(cfg))
}

func TestValidate_DuplicateTLSDomain(t *testing.T) {
	cfg := minimalConfig()
	cfg.TLS = map[string]TLSEntry{
		"a": {Mode: "custom", Domains: []string{"example.com"}},
		"b": {Mode: "custom", Domains: []string{"example.com"}},
	}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "example.com")
}

func TestValidate_UndeclaredServiceReference(t *testing.T) {
	cfg := minimalConfig()
	cfg.Routes[0].Paths[0].Service = "missing"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestValidate_UndeclaredMiddlewareGroup(t *testing.T) {
	cfg := minimalConfig()
	cfg.Routes[0].Middleware = []MiddlewareStep{{GroupRef: "nope"}}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestApplyDefaults_HealthCheckAndMessaging(t *testing.T) {
	cfg := minimalConfig()
	cfg.Messaging = map[string]MessagingConfig{"bus": {}}
	ApplyDefaults(cfg)

	svc := cfg.Services["backend"]
	assert.Equal(t, "round_robin", svc.HTTP.Algorithm)
	assert.Equal(t, DefaultHealthCheckInterval, svc.HTTP.HealthCheck.Interval)
	assert.Equal(t, DefaultMaxInflight, cfg.Messaging["bus"].MaxInflight)
}
