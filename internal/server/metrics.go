package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the Prometheus collectors for the decode service. They are
// registered on a private registry so several servers can coexist in one
// process.
type metrics struct {
	reg *prometheus.Registry

	decodes     *prometheus.CounterVec   // by result: ok, no_sync, degenerate, error
	duration    *prometheus.HistogramVec // by profile
	lines       prometheus.Counter
	syncedLines prometheus.Counter
	inFlight    prometheus.Gauge
	audioSecs   prometheus.Counter
}

func newMetrics(clients func() float64) *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	m := &metrics{
		reg: reg,
		decodes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aptdec_decodes_total",
			Help: "Decode requests by result.",
		}, []string{"result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aptdec_decode_duration_seconds",
			Help:    "Wall time of a decode, upload excluded.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"profile"}),
		lines: f.NewCounter(prometheus.CounterOpts{
			Name: "aptdec_lines_total",
			Help: "Image lines produced.",
		}),
		syncedLines: f.NewCounter(prometheus.CounterOpts{
			Name: "aptdec_synced_lines_total",
			Help: "Image lines aligned to a detected sync pulse.",
		}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "aptdec_decodes_in_flight",
			Help: "Decodes currently running.",
		}),
		audioSecs: f.NewCounter(prometheus.CounterOpts{
			Name: "aptdec_audio_seconds_total",
			Help: "Seconds of recording decoded.",
		}),
	}
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "aptdec_ws_clients",
		Help: "Connected event stream clients.",
	}, clients)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
