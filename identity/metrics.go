package identity

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// clientMetrics holds metrics for monitoring identity API calls.
type clientMetrics struct {
	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	errorTotal     *prometheus.CounterVec
}

func newClientMetrics(reg prometheus.Registerer, labels prometheus.Labels) (*clientMetrics, error) {
	m := &clientMetrics{}
	var err error

	m.requestTotal, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "portalguard_identity_requests_total",
		Help:        "Total number of requests to the identity API.",
		ConstLabels: labels,
	}, []string{"operation", "status"}))
	if err != nil {
		return nil, err
	}

	m.requestLatency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "portalguard_identity_request_duration_seconds",
		Help:        "Duration of identity API requests.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: labels,
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}

	m.errorTotal, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "portalguard_identity_errors_total",
		Help:        "Total number of failed identity API requests by class.",
		ConstLabels: labels,
	}, []string{"operation", "error_class"}))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// register adds c to reg, reusing an identical collector registered earlier.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// observe records one call. status is 0 when no response arrived.
func (m *clientMetrics) observe(op string, status int, d time.Duration, err error) {
	if m == nil {
		return
	}
	code := "none"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.requestTotal.WithLabelValues(op, code).Inc()
	m.requestLatency.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		m.errorTotal.WithLabelValues(op, classifyError(err)).Inc()
	}
}
