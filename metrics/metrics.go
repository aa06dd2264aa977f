// Package metrics exports session activity and state as prometheus metrics.
package metrics

import (
	"context"
	"sync"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
)

// Collector counts activity events and tracks the session state. Register
// it as the Manager ActivitySink and subscribe Observe as a Listener.
type Collector struct {
	EventsTotal      *prometheus.CounterVec
	TransitionsTotal *prometheus.CounterVec
	Authenticated    prometheus.Gauge
	Loading          prometheus.Gauge

	mu   sync.Mutex
	last authsession.Status
}

var _ authsession.ActivitySink = (*Collector)(nil)

// New creates the collector and registers its metrics with reg
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authsession_activity_events_total",
				Help: "Total number of session activity events by type and error code",
			},
			[]string{"type", "code"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authsession_state_transitions_total",
				Help: "Total number of observed state transitions by target status",
			},
			[]string{"status"},
		),
		Authenticated: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authsession_authenticated",
			Help: "1 when the session is authenticated, 0 otherwise",
		}),
		Loading: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authsession_loading",
			Help: "1 while an operation is in flight",
		}),
	}

	reg.MustRegister(c.EventsTotal)
	reg.MustRegister(c.TransitionsTotal)
	reg.MustRegister(c.Authenticated)
	reg.MustRegister(c.Loading)

	return c
}

// Record implements authsession.ActivitySink
func (c *Collector) Record(_ context.Context, event authsession.ActivityEvent) error {
	c.EventsTotal.WithLabelValues(string(event.EventType), string(event.Code)).Inc()
	return nil
}

// Observe is an authsession.Listener. Repeated snapshots with the same
// status (profile updates) are not counted as transitions.
func (c *Collector) Observe(state authsession.AuthState) {
	c.Authenticated.Set(boolGauge(state.IsAuthenticated))
	c.Loading.Set(boolGauge(state.IsLoading))

	c.mu.Lock()
	changed := c.last != state.Status
	c.last = state.Status
	c.mu.Unlock()

	if changed {
		c.TransitionsTotal.WithLabelValues(state.Status.String()).Inc()
	}
}

// WriteTextfile dumps g in the node exporter textfile format
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return oops.In("metrics").With("path", path).Wrapf(err, "write textfile")
	}
	return nil
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
