package iomanager

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/warno/warno/internal/iospool"
	"github.com/warno/warno/pkg/ingest"
)

const (
	outcomeOK            = "ok"
	outcomeClientError   = "client_error"
	outcomeUpstreamError = "upstream_error"
	outcomeError         = "error"
)

type metrics struct {
	requests *prometheus.CounterVec
	duration prometheus.Histogram
}

func newMetrics(
	reg prometheus.Registerer,
	router *ingest.Router,
	spool *iospool.Spool,
) *metrics {
	res := &metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warno_eventmanager_requests_total",
				Help: "Envelopes received, by outcome.",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "warno_eventmanager_request_duration_seconds",
			Help:    "Time to process one envelope.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	stat := func(name, help string, get func(ingest.Stats) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: name, Help: help},
			func() float64 { return float64(get(router.Stats())) },
		)
	}

	reg.MustRegister(
		res.requests,
		res.duration,
		collectors.NewGoCollector(),
		stat("warno_eventmanager_resolved_total", "Identifier requests answered.",
			func(s ingest.Stats) int64 { return s.Resolved }),
		stat("warno_eventmanager_stored_total", "Observations stored.",
			func(s ingest.Stats) int64 { return s.Stored }),
		stat("warno_eventmanager_forwarded_total", "Observations forwarded upstream.",
			func(s ingest.Stats) int64 { return s.Forwarded }),
		stat("warno_eventmanager_spooled_total", "Observations spooled after a failed forward.",
			func(s ingest.Stats) int64 { return s.Spooled }),
		stat("warno_eventmanager_rejected_total", "Malformed envelopes.",
			func(s ingest.Stats) int64 { return s.Rejected }),
		stat("warno_eventmanager_dropped_total", "Observations the central facility refused.",
			func(s ingest.Stats) int64 { return s.Dropped }),
	)

	if spool != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "warno_eventmanager_spool_size",
				Help: "Envelopes waiting for replay.",
			},
			func() float64 {
				sum, err := spool.Summary(context.Background())
				if err != nil {
					return -1
				}
				return float64(sum.Count)
			},
		))
	}
	return res
}

func (m *metrics) observe(outcome string, start time.Time) {
	m.requests.WithLabelValues(outcome).Inc()
	m.duration.Observe(time.Since(start).Seconds())
}
