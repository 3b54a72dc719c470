package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// TickCollector bundles Prometheus metrics for the simulation loop and
// exposes them over HTTP.
type TickCollector struct {
	gatherer prometheus.Gatherer

	TickDuration prometheus.Histogram
	Ticks        prometheus.Counter
	Mutations    *prometheus.CounterVec
	Population   *prometheus.GaugeVec
	DrainErrors  prometheus.Counter
}

// NewTickCollector registers tick metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewTickCollector(reg prometheus.Registerer) (*TickCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pen_tick_duration_seconds",
		Help:    "Wall time of one simulation tick, from BeginTick to the end of the drain.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}), "pen_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pen_ticks_total",
		Help: "Number of completed simulation ticks.",
	}), "pen_ticks_total")
	if err != nil {
		return nil, err
	}

	mutations, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pen_mutations_applied_total",
		Help: "Deferred structural mutations applied at drain, labeled by operation.",
	}, []string{"op"}), "pen_mutations_applied_total")
	if err != nil {
		return nil, err
	}

	population, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pen_category_entities",
		Help: "Current number of entities in each category.",
	}, []string{"category"}), "pen_category_entities")
	if err != nil {
		return nil, err
	}

	drainErrors, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pen_drain_errors_total",
		Help: "Drains that stopped on a fatal store error.",
	}), "pen_drain_errors_total")
	if err != nil {
		return nil, err
	}

	return &TickCollector{
		gatherer:     gatherer,
		TickDuration: duration,
		Ticks:        ticks,
		Mutations:    mutations,
		Population:   population,
		DrainErrors:  drainErrors,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *TickCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *TickCollector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveTick records one completed tick and the mutations its drain applied.
func (c *TickCollector) ObserveTick(d time.Duration, created, moved, removed int) {
	if c == nil {
		return
	}
	c.TickDuration.Observe(d.Seconds())
	c.Ticks.Inc()
	c.Mutations.WithLabelValues("create").Add(float64(created))
	c.Mutations.WithLabelValues("move").Add(float64(moved))
	c.Mutations.WithLabelValues("remove").Add(float64(removed))
}

// SetPopulation updates the entity gauge of one category.
func (c *TickCollector) SetPopulation(category string, n int) {
	if c == nil {
		return
	}
	c.Population.WithLabelValues(category).Set(float64(n))
}

// IncDrainErrors counts a drain that failed.
func (c *TickCollector) IncDrainErrors() {
	if c == nil {
		return
	}
	c.DrainErrors.Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok && writesType(existing, dto.MetricType_HISTOGRAM) {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok && writesType(existing, dto.MetricType_COUNTER) {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

// writesType reports whether m serialises as want. Gauges satisfy the
// Counter interface and summaries the Histogram one, so the method set alone
// cannot tell them apart.
func writesType(m prometheus.Metric, want dto.MetricType) bool {
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		return false
	}
	switch want {
	case dto.MetricType_COUNTER:
		return out.Counter != nil
	case dto.MetricType_HISTOGRAM:
		return out.Histogram != nil
	}
	return false
}
