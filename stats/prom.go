package stats

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func MilisecondsElapsed(from time.Time) float64 {
	return float64(time.Since(from)) / float64(time.Millisecond)
}

const (
	ReasonChecksum = "checksum"
	ReasonIO       = "io"
)

// Metrics holds the collectors updated by a commitlog.Log.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	flushDuration   prometheus.Histogram
	flushedBytes    prometheus.Counter
	flushFailures   prometheus.Counter
	appendedEntries prometheus.Counter
	readFailures    *prometheus.CounterVec
}

// NewMetrics registers the log collectors on reg. It returns nil when reg is nil.
// Collectors already registered on reg by a previous call are reused, so logs
// opened on the same registry share them.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	return &Metrics{
		flushDuration: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blocklog_flush_duration_milliseconds",
			Help:    "The time elapsed writing and syncing a flushed buffer.",
			Buckets: []float64{0.1, 0.5, 1, 5, 50, 100},
		})).(prometheus.Histogram),
		flushedBytes: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blocklog_flushed_bytes_total",
			Help: "Bytes durably written, padding and trailers included.",
		})).(prometheus.Counter),
		flushFailures: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blocklog_flush_failures_total",
			Help: "Flushes that failed to write or sync.",
		})).(prometheus.Counter),
		appendedEntries: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blocklog_appended_entries_total",
			Help: "Entries appended to the write buffer.",
		})).(prometheus.Counter),
		readFailures: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blocklog_read_failures_total",
			Help: "Failed entry reads, by reason.",
		}, []string{"reason"})).(*prometheus.CounterVec),
	}
}

// register panics like promauto does, unless c is already registered.
func register(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

func (m *Metrics) ObserveFlush(started time.Time, n int) {
	if m == nil {
		return
	}
	m.flushDuration.Observe(MilisecondsElapsed(started))
	m.flushedBytes.Add(float64(n))
}

func (m *Metrics) FlushFailed() {
	if m == nil {
		return
	}
	m.flushFailures.Inc()
}

func (m *Metrics) EntryAppended() {
	if m == nil {
		return
	}
	m.appendedEntries.Inc()
}

func (m *Metrics) ReadFailed(reason string) {
	if m == nil {
		return
	}
	m.readFailures.WithLabelValues(reason).Inc()
}

func ListenAndServe(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux)
}
