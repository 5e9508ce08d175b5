// Package metrics exposes connection lifecycle metrics to prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "minihttps"

// Collector records connection lifecycle events. It satisfies the server's
// metrics sink.
type Collector struct {
	registry *prometheus.Registry

	accepted    prometheus.Counter
	acceptErrs  prometheus.Counter
	closed      *prometheus.CounterVec
	responses   *prometheus.CounterVec
	protoErrs   prometheus.Counter
	active      prometheus.Gauge
	duration    prometheus.Histogram
	certReloads prometheus.CounterFunc
}

// NewCollector registers the metrics on registry, or on a fresh registry when nil.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	c := &Collector{
		registry: registry,
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connections_accepted_total",
			Help:      "Connections accepted from the listener.",
		}),
		acceptErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "accept_errors_total",
			Help:      "Failed accepts and registrations.",
		}),
		closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connections_closed_total",
			Help:      "Connections removed from the table, by reason.",
		}, []string{"reason"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "responses_total",
			Help:      "Responses queued, by status code.",
		}, []string{"status"}),
		protoErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tls_protocol_errors_total",
			Help:      "Connections failed by a TLS protocol error.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "connections_active",
			Help:      "Connections currently in the table.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "connection_duration_seconds",
			Help:      "Time from accept to removal.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
	}
	registry.MustRegister(c.accepted, c.acceptErrs, c.closed, c.responses, c.protoErrs, c.active, c.duration)
	return c
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// TrackCertReloads exports the value of reloads as minihttps_tls_reloads_total.
func (c *Collector) TrackCertReloads(reloads func() uint64) {
	c.certReloads = prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "tls_reloads_total",
		Help:      "Times the TLS configuration was replaced after startup.",
	}, func() float64 { return float64(reloads()) })
	c.registry.MustRegister(c.certReloads)
}

func (c *Collector) ConnectionAccepted() {
	c.accepted.Inc()
	c.active.Inc()
}

func (c *Collector) AcceptError() { c.acceptErrs.Inc() }

func (c *Collector) ConnectionClosed(reason string, lifetime time.Duration) {
	c.closed.WithLabelValues(reason).Inc()
	c.active.Dec()
	c.duration.Observe(lifetime.Seconds())
}

func (c *Collector) Response(status string) { c.responses.WithLabelValues(status).Inc() }

func (c *Collector) ProtocolError() { c.protoErrs.Inc() }

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// Serve exposes Handler on addr at path until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr, path string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	return c.ServeListener(ctx, ln, path)
}

// ServeListener is Serve on an already bound listener.
func (c *Collector) ServeListener(ctx context.Context, ln net.Listener, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, c.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics shutdown: %w", err)
		}
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics serve: %w", err)
	}
}
