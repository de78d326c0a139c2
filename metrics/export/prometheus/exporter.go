package prometheus

import (
	"net/http"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
}

// Exporter is a prometheus.Collector that reads engine counters on every
// scrape. It keeps no state of its own.
type Exporter struct {
	source     metricsSource
	counters   []counterDesc
	histograms []histogramDesc
}

type counterDesc struct {
	id   authcore.MetricID
	desc *prometheus.Desc
}

type histogramDesc struct {
	id   authcore.MetricID
	desc *prometheus.Desc
}

var _ prometheus.Collector = (*Exporter)(nil)

// NewExporter returns a collector over engine's metrics.
func NewExporter(engine *authcore.Engine) *Exporter {
	return NewExporterFromSource(engine)
}

// NewExporterFromSource returns a collector over any snapshot source.
func NewExporterFromSource(source metricsSource) *Exporter {
	e := &Exporter{source: source}
	for _, def := range internaldefs.CounterDefs {
		e.counters = append(e.counters, counterDesc{
			id:   def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	for _, def := range internaldefs.HistogramDefs {
		e.histograms = append(e.histograms, histogramDesc{
			id:   def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	return e
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range e.counters {
		ch <- c.desc
	}
	for _, h := range e.histograms {
		ch <- h.desc
	}
}

// Collect emits nothing when the engine runs with metrics disabled.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	if e == nil || e.source == nil {
		return
	}
	snapshot := e.source.MetricsSnapshot()

	for _, c := range e.counters {
		v, ok := snapshot.Counters[c.id]
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(v))
	}

	for _, h := range e.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(cumulative)-1)
		for i := 0; i < len(cumulative)-1; i++ {
			buckets[internaldefs.HistogramBounds[i]] = cumulative[i]
		}
		// Snapshots carry bucket counts only, so the sum is reported as zero.
		ch <- prometheus.MustNewConstHistogram(h.desc, cumulative[len(cumulative)-1], 0, buckets)
	}
}

// Handler serves the exporter from a private registry so nothing leaks into
// the process-wide default registry.
func (e *Exporter) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(e)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
