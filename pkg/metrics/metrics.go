// Package metrics holds the Prometheus collectors shared by the FitVerse binaries.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"fitverse/pkg/workoutapi"
)

const namespace = "fitverse"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec
	Logins      *prometheus.CounterVec
	Logouts     prometheus.Counter
	Sessions    prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg skips registration.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Remote workout API calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		APILatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Latency of remote workout API calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		Logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "logouts_total",
			Help:      "Completed logouts.",
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Server-side sessions currently held in the view cache.",
		}),
	}

	if reg == nil {
		return m, nil
	}
	var err error
	if m.APIRequests, err = register(reg, m.APIRequests); err != nil {
		return nil, err
	}
	if m.APILatency, err = register(reg, m.APILatency); err != nil {
		return nil, err
	}
	if m.Logins, err = register(reg, m.Logins); err != nil {
		return nil, err
	}
	if m.Logouts, err = register(reg, m.Logouts); err != nil {
		return nil, err
	}
	if m.Sessions, err = register(reg, m.Sessions); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, reusing an identical collector registered earlier.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}

// ObserveAPI implements workoutapi.Observer.
func (m *Metrics) ObserveAPI(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(op, Outcome(err)).Inc()
	m.APILatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveLogin counts a login attempt.
func (m *Metrics) ObserveLogin(err error) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(Outcome(err)).Inc()
}

// ObserveLogout counts a logout.
func (m *Metrics) ObserveLogout() {
	if m == nil {
		return
	}
	m.Logouts.Inc()
}

// SetActiveSessions records the size of the session view cache.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.Sessions.Set(float64(n))
}

// Outcome maps err to a low-cardinality label value.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := workoutapi.KindOf(err); kind != 0 {
		return kind.String()
	}
	return "error"
}
