package observability

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UploadsTotal counts result uploads by outcome: stored, wrong_code,
	// unsupported_dbms, dbms_mismatch, malformed, error.
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "selftune_uploads_total",
		Help: "Result bundle uploads by outcome.",
	}, []string{"outcome"})

	ChainDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "selftune_chain_dispatch_total",
		Help: "Recommendation chain dispatch attempts by outcome.",
	}, []string{"outcome"})

	StatusPollTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "selftune_status_poll_total",
		Help: "Tuner status polls by reported overall state.",
	}, []string{"overall"})

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "selftune_ingest_duration_seconds",
		Help:    "End-to-end result ingestion latency.",
		Buckets: prometheus.DefBuckets,
	})
)

// MetricsHandler exposes the Prometheus registry on a gin route.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
