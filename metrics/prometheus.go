package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mavl_metrics"

// metrics is the process-wide meter registry. It starts as a no-op
// implementation so that packages can record metrics before
// InitializePrometheusMetrics is ever called (or in tests that never call
// it at all); calling it swaps every future lookup onto live Prometheus
// collectors.
var (
	metricsMu sync.Mutex
	metrics   meterFactory = defaultNoopMetrics()
)

// meterFactory builds and caches named meters. Two implementations exist:
// the default no-op one and the Prometheus-backed one installed by
// InitializePrometheusMetrics.
type meterFactory interface {
	counter(name string) CountMeter
	counterVec(name string, labels []string) CountVecMeter
	histogram(name string, buckets []float64) HistogramMeter
	histogramVec(name string, labels []string, buckets []float64) HistogramVecMeter
	gauge(name string) GaugeMeter
	gaugeVec(name string, labels []string) GaugeVecMeter
}

type CountMeter interface{ Add(n int64) }
type CountVecMeter interface {
	AddWithLabel(n int64, labels map[string]string)
}
type HistogramMeter interface{ Observe(n int64) }
type HistogramVecMeter interface {
	ObserveWithLabels(n int64, labels map[string]string)
}
type GaugeMeter interface{ Add(n int64) }
type GaugeVecMeter interface {
	AddWithLabel(n int64, labels map[string]string)
}

// InitializePrometheusMetrics switches the package over to real Prometheus
// collectors registered against prometheus.DefaultRegisterer. Safe to call
// more than once; later calls are no-ops.
func InitializePrometheusMetrics() {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if _, ok := metrics.(*promMetrics); ok {
		return
	}
	metrics = newPromMetrics()
}

// Counter returns (creating if necessary) a process-wide counter.
func Counter(name string) CountMeter {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	return metrics.counter(name)
}

// CounterVec returns (creating if necessary) a labeled counter vector.
func CounterVec(name string, labels []string) CountVecMeter {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	return metrics.counterVec(name, labels)
}

// Histogram returns (creating if necessary) a histogram. A nil buckets
// slice falls back to prometheus.DefBuckets.
func Histogram(name string, buckets []float64) HistogramMeter {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	return metrics.histogram(name, buckets)
}

// HistogramVec returns (creating if necessary) a labeled histogram vector.
func HistogramVec(name string, labels []string, buckets []float64) HistogramVecMeter {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	return metrics.histogramVec(name, labels, buckets)
}

// Gauge returns (creating if necessary) a gauge.
func Gauge(name string) GaugeMeter {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	return metrics.gauge(name)
}

// GaugeVec returns (creating if necessary) a labeled gauge vector.
func GaugeVec(name string, labels []string) GaugeVecMeter {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	return metrics.gaugeVec(name, labels)
}

// LazyLoadCounter returns a thunk that resolves Counter(name) at call time
// rather than at registration time, so a metric referenced before
// InitializePrometheusMetrics still ends up backed by the live collector.
func LazyLoadCounter(name string) func() CountMeter {
	return func() CountMeter { return Counter(name) }
}

func LazyLoadCounterVec(name string, labels []string) func() CountVecMeter {
	return func() CountVecMeter { return CounterVec(name, labels) }
}

func LazyLoadHistogram(name string, buckets []float64) func() HistogramMeter {
	return func() HistogramMeter { return Histogram(name, buckets) }
}

func LazyLoadHistogramVec(name string, labels []string, buckets []float64) func() HistogramVecMeter {
	return func() HistogramVecMeter { return HistogramVec(name, labels, buckets) }
}

func LazyLoadGauge(name string) func() GaugeMeter {
	return func() GaugeMeter { return Gauge(name) }
}

func LazyLoadGaugeVec(name string, labels []string) func() GaugeVecMeter {
	return func() GaugeVecMeter { return GaugeVec(name, labels) }
}

// --- no-op backend -----------------------------------------------------

type noopMeters struct{}

func (*noopMeters) Add(int64)                                 {}
func (*noopMeters) Observe(int64)                              {}
func (*noopMeters) AddWithLabel(int64, map[string]string)      {}
func (*noopMeters) ObserveWithLabels(int64, map[string]string) {}

type noopMetrics struct {
	singleton *noopMeters
}

func defaultNoopMetrics() *noopMetrics {
	return &noopMetrics{singleton: &noopMeters{}}
}

func (m *noopMetrics) counter(string) CountMeter                            { return m.singleton }
func (m *noopMetrics) counterVec(string, []string) CountVecMeter            { return m.singleton }
func (m *noopMetrics) histogram(string, []float64) HistogramMeter           { return m.singleton }
func (m *noopMetrics) histogramVec(string, []string, []float64) HistogramVecMeter {
	return m.singleton
}
func (m *noopMetrics) gauge(string) GaugeMeter                 { return m.singleton }
func (m *noopMetrics) gaugeVec(string, []string) GaugeVecMeter { return m.singleton }

// --- prometheus backend --------------------------------------------------

type promMetrics struct {
	mu            sync.Mutex
	counters      map[string]*promCountMeter
	counterVecs   map[string]*promCountVecMeter
	histograms    map[string]*promHistogramMeter
	histogramVecs map[string]*promHistogramVecMeter
	gauges        map[string]*promGaugeMeter
	gaugeVecs     map[string]*promGaugeVecMeter
}

func newPromMetrics() *promMetrics {
	return &promMetrics{
		counters:      make(map[string]*promCountMeter),
		counterVecs:   make(map[string]*promCountVecMeter),
		histograms:    make(map[string]*promHistogramMeter),
		histogramVecs: make(map[string]*promHistogramVecMeter),
		gauges:        make(map[string]*promGaugeMeter),
		gaugeVecs:     make(map[string]*promGaugeVecMeter),
	}
}

func metricName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

type promCountMeter struct{ c prometheus.Counter }

func (m *promCountMeter) Add(n int64) { m.c.Add(float64(n)) }

func (pm *promMetrics) counter(name string) CountMeter {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if m, ok := pm.counters[name]; ok {
		return m
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: metricName(name)})
	prometheus.MustRegister(c)
	m := &promCountMeter{c: c}
	pm.counters[name] = m
	return m
}

type promCountVecMeter struct{ v *prometheus.CounterVec }

func (m *promCountVecMeter) AddWithLabel(n int64, labels map[string]string) {
	m.v.With(labels).Add(float64(n))
}

func (pm *promMetrics) counterVec(name string, labels []string) CountVecMeter {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if m, ok := pm.counterVecs[name]; ok {
		return m
	}
	v := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: metricName(name)}, labels)
	prometheus.MustRegister(v)
	m := &promCountVecMeter{v: v}
	pm.counterVecs[name] = m
	return m
}

type promHistogramMeter struct{ h prometheus.Histogram }

func (m *promHistogramMeter) Observe(n int64) { m.h.Observe(float64(n)) }

func (pm *promMetrics) histogram(name string, buckets []float64) HistogramMeter {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if m, ok := pm.histograms[name]; ok {
		return m
	}
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: metricName(name), Buckets: buckets})
	prometheus.MustRegister(h)
	m := &promHistogramMeter{h: h}
	pm.histograms[name] = m
	return m
}

type promHistogramVecMeter struct{ v *prometheus.HistogramVec }

func (m *promHistogramVecMeter) ObserveWithLabels(n int64, labels map[string]string) {
	m.v.With(labels).Observe(float64(n))
}

func (pm *promMetrics) histogramVec(name string, labels []string, buckets []float64) HistogramVecMeter {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if m, ok := pm.histogramVecs[name]; ok {
		return m
	}
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	v := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: metricName(name), Buckets: buckets}, labels)
	prometheus.MustRegister(v)
	m := &promHistogramVecMeter{v: v}
	pm.histogramVecs[name] = m
	return m
}

type promGaugeMeter struct{ g prometheus.Gauge }

func (m *promGaugeMeter) Add(n int64) { m.g.Add(float64(n)) }

func (pm *promMetrics) gauge(name string) GaugeMeter {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if m, ok := pm.gauges[name]; ok {
		return m
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: metricName(name)})
	prometheus.MustRegister(g)
	m := &promGaugeMeter{g: g}
	pm.gauges[name] = m
	return m
}

type promGaugeVecMeter struct{ v *prometheus.GaugeVec }

func (m *promGaugeVecMeter) AddWithLabel(n int64, labels map[string]string) {
	m.v.With(labels).Add(float64(n))
}

func (pm *promMetrics) gaugeVec(name string, labels []string) GaugeVecMeter {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if m, ok := pm.gaugeVecs[name]; ok {
		return m
	}
	v := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: metricName(name)}, labels)
	prometheus.MustRegister(v)
	m := &promGaugeVecMeter{v: v}
	pm.gaugeVecs[name] = m
	return m
}
