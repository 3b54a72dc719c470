package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveTickRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewTickCollector(reg)
	if err != nil {
		t.Fatalf("NewTickCollector: %v", err)
	}

	collector.ObserveTick(2*time.Millisecond, 3, 5, 7)
	collector.ObserveTick(time.Millisecond, 1, 0, 0)

	if got := testutil.ToFloat64(collector.Ticks); got != 2 {
		t.Fatalf("pen_ticks_total = %v, want 2", got)
	}
	for op, want := range map[string]float64{"create": 4, "move": 5, "remove": 7} {
		if got := testutil.ToFloat64(collector.Mutations.WithLabelValues(op)); got != want {
			t.Errorf("pen_mutations_applied_total{op=%q} = %v, want %v", op, got, want)
		}
	}
	if count := histogramSampleCount(t, reg, "pen_tick_duration_seconds", nil); count != 2 {
		t.Fatalf("pen_tick_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestNewTickCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewTickCollector(reg)
	if err != nil {
		t.Fatalf("NewTickCollector: %v", err)
	}
	second, err := NewTickCollector(reg)
	if err != nil {
		t.Fatalf("second NewTickCollector: %v", err)
	}

	first.IncDrainErrors()
	if got := testutil.ToFloat64(second.DrainErrors); got != 1 {
		t.Fatalf("collectors do not share pen_drain_errors_total: %v", got)
	}
}

func TestNewTickCollectorRejectsIncompatibleMetric(t *testing.T) {
	tests := []struct {
		name     string
		existing prometheus.Collector
	}{
		{
			name: "gauge as counter",
			existing: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "pen_ticks_total",
				Help: "Number of completed simulation ticks.",
			}),
		},
		{
			name: "summary as histogram",
			existing: prometheus.NewSummary(prometheus.SummaryOpts{
				Name: "pen_tick_duration_seconds",
				Help: "Wall time of one simulation tick, from BeginTick to the end of the drain.",
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			reg.MustRegister(tt.existing)

			collector, err := NewTickCollector(reg)
			if err == nil {
				t.Fatalf("NewTickCollector accepted an incompatible metric, Ticks is %T", collector.Ticks)
			}
			if !strings.Contains(err.Error(), "incompatible type") {
				t.Errorf("NewTickCollector error = %v, want incompatible type", err)
			}
		})
	}
}

func TestMetricsHandlerExposesPopulation(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewTickCollector(reg)
	if err != nil {
		t.Fatalf("NewTickCollector: %v", err)
	}
	collector.SetPopulation("doofus/red/eating", 12)
	collector.ObserveTick(time.Millisecond, 0, 1, 0)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"pen_tick_duration_seconds",
		"pen_ticks_total",
		"pen_mutations_applied_total",
		`pen_category_entities{category="doofus/red/eating"} 12`,
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var collector *TickCollector
	collector.ObserveTick(time.Millisecond, 1, 1, 1)
	collector.SetPopulation("x", 1)
	collector.IncDrainErrors()
	if collector.Gatherer() != nil {
		t.Fatalf("nil collector returned a gatherer")
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
