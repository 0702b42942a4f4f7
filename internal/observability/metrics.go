// Package observability bundles the router's Prometheus metrics and
// OpenTelemetry tracing setup.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterCollector exposes routing-run Prometheus metrics. All record methods
// are nil-safe so the core can run without a collector wired in.
type RouterCollector struct {
	gatherer prometheus.Gatherer

	ArcsExtracted       prometheus.Gauge
	Partitions          prometheus.Gauge
	OverSubscribedWires prometheus.Gauge
	ArcsCommitted       prometheus.Counter
	ArcsFailed          prometheus.Counter
	RipUps              prometheus.Counter
	RoutePassDuration   prometheus.Histogram
}

// NewRouterCollector registers router metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewRouterCollector(reg prometheus.Registerer) (*RouterCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	extracted, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "router_arcs_extracted",
		Help: "Number of arcs extracted from the net table in the current run.",
	}), "router_arcs_extracted")
	if err != nil {
		return nil, err
	}
	partitions, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "router_partitions",
		Help: "Number of leaf partitions produced by the spatial partitioner.",
	}), "router_partitions")
	if err != nil {
		return nil, err
	}
	overSubscribed, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "router_oversubscribed_wires",
		Help: "Number of wires exceeding capacity after the latest routing pass.",
	}), "router_oversubscribed_wires")
	if err != nil {
		return nil, err
	}
	committed, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "router_arcs_committed_total",
		Help: "Cumulative number of arcs with a committed route.",
	}), "router_arcs_committed_total")
	if err != nil {
		return nil, err
	}
	failed, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "router_arcs_failed_total",
		Help: "Cumulative number of arcs left unrouted after the rip-up budget.",
	}), "router_arcs_failed_total")
	if err != nil {
		return nil, err
	}
	ripUps, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "router_ripups_total",
		Help: "Cumulative number of arc rip-ups during congestion negotiation.",
	}), "router_ripups_total")
	if err != nil {
		return nil, err
	}
	passDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "router_route_pass_duration_seconds",
		Help:    "Duration of one worker's negotiated-congestion pass.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}), "router_route_pass_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &RouterCollector{
		gatherer:            gatherer,
		ArcsExtracted:       extracted,
		Partitions:          partitions,
		OverSubscribedWires: overSubscribed,
		ArcsCommitted:       committed,
		ArcsFailed:          failed,
		RipUps:              ripUps,
		RoutePassDuration:   passDuration,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *RouterCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RouterCollector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetArcsExtracted records the size of the extracted arc list.
func (c *RouterCollector) SetArcsExtracted(count int) {
	if c == nil || c.ArcsExtracted == nil {
		return
	}
	c.ArcsExtracted.Set(float64(count))
}

// SetPartitions records the leaf partition count.
func (c *RouterCollector) SetPartitions(count int) {
	if c == nil || c.Partitions == nil {
		return
	}
	c.Partitions.Set(float64(count))
}

// SetOverSubscribedWires records the contention level of the latest pass.
func (c *RouterCollector) SetOverSubscribedWires(count int) {
	if c == nil || c.OverSubscribedWires == nil {
		return
	}
	c.OverSubscribedWires.Set(float64(count))
}

// AddArcsCommitted adds to the committed-arc counter.
func (c *RouterCollector) AddArcsCommitted(count int) {
	if c == nil || c.ArcsCommitted == nil || count <= 0 {
		return
	}
	c.ArcsCommitted.Add(float64(count))
}

// AddArcsFailed adds to the failed-arc counter.
func (c *RouterCollector) AddArcsFailed(count int) {
	if c == nil || c.ArcsFailed == nil || count <= 0 {
		return
	}
	c.ArcsFailed.Add(float64(count))
}

// IncRipUps increments the rip-up counter.
func (c *RouterCollector) IncRipUps() {
	if c == nil || c.RipUps == nil {
		return
	}
	c.RipUps.Inc()
}

// ObserveRoutePass records one worker pass duration.
func (c *RouterCollector) ObserveRoutePass(d time.Duration) {
	if c == nil || c.RoutePassDuration == nil {
		return
	}
	c.RoutePassDuration.Observe(d.Seconds())
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
