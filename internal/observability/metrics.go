package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	queries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aperturedb",
			Subsystem: "client",
			Name:      "queries_total",
			Help:      "Total queries sent to the server.",
		},
		[]string{"command", "outcome"},
	)
	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aperturedb",
			Subsystem: "client",
			Name:      "query_duration_seconds",
			Help:      "Query round trip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command", "outcome"},
	)
	blobBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aperturedb",
			Subsystem: "client",
			Name:      "blob_bytes_total",
			Help:      "Blob bytes carried in envelopes.",
		},
		[]string{"direction"},
	)
	reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aperturedb",
			Subsystem: "transport",
			Name:      "reconnects_total",
			Help:      "Connection attempts after the first dial.",
		},
	)
	authEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aperturedb",
			Subsystem: "session",
			Name:      "auth_total",
			Help:      "Authenticate and RefreshToken exchanges.",
		},
		[]string{"kind", "success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(queries, queryDuration, blobBytes, reconnects, authEvents)
	})
}

// RecordQuery records one round trip labelled by its first command name.
func RecordQuery(command string, err error, duration time.Duration) {
	RegisterMetrics()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	queries.WithLabelValues(command, outcome).Inc()
	queryDuration.WithLabelValues(command, outcome).Observe(duration.Seconds())
}

func RecordBlobs(direction string, blobs [][]byte) {
	RegisterMetrics()
	total := 0
	for _, b := range blobs {
		total += len(b)
	}
	blobBytes.WithLabelValues(direction).Add(float64(total))
}

func RecordReconnect() {
	RegisterMetrics()
	reconnects.Inc()
}

func RecordAuth(kind string, success bool) {
	RegisterMetrics()
	authEvents.WithLabelValues(kind, strconv.FormatBool(success)).Inc()
}
