package identity

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// Config holds identity client configuration.
type Config struct {
	// Timeout bounds each call (default: 10s). The caller's context still applies.
	Timeout time.Duration

	// HTTPClient overrides the transport (default: a client with Timeout).
	HTTPClient *http.Client

	// Registerer receives the client metrics; nil disables them.
	Registerer prometheus.Registerer

	// MetricLabels are attached to every metric as constant labels.
	MetricLabels prometheus.Labels

	// Tracer opens one span per call (default: the global otel tracer).
	Tracer trace.Tracer

	UserAgent string
}

// Option configures a Client.
type Option func(*Config)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithHTTPClient sets the HTTP client used for calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = hc
	}
}

// WithMetrics registers the client metrics with reg.
func WithMetrics(reg prometheus.Registerer, labels prometheus.Labels) Option {
	return func(c *Config) {
		c.Registerer = reg
		c.MetricLabels = labels
	}
}

// WithTracer sets the tracer spans are started on.
func WithTracer(t trace.Tracer) Option {
	return func(c *Config) {
		c.Tracer = t
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Config) {
		c.UserAgent = ua
	}
}
