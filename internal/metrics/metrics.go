// Package metrics holds the Prometheus collectors shared by both binaries.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc/codes"
)

const namespace = "esoh"

// Ingest outcomes.
const (
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

var (
	datastoreRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "datastore",
		Name:      "requests_total",
		Help:      "Datastore RPCs by method and gRPC status code.",
	}, []string{"method", "code"})

	datastoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "datastore",
		Name:      "request_duration_seconds",
		Help:      "Datastore RPC latency including retries.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"method"})

	ingestObservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "observations_total",
		Help:      "Ingested observations by outcome.",
	}, []string{"outcome"})

	publishMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "publisher",
		Name:      "messages_total",
		Help:      "Published pub/sub messages by driver and result.",
	}, []string{"driver", "result"})
)

// ObserveDatastoreCall records one datastore RPC.
func ObserveDatastoreCall(method string, d time.Duration, code codes.Code) {
	datastoreRequests.WithLabelValues(method, code.String()).Inc()
	datastoreLatency.WithLabelValues(method).Observe(d.Seconds())
}

// AddIngested adds n observations with the given outcome.
func AddIngested(outcome string, n int) {
	if n <= 0 {
		return
	}
	ingestObservations.WithLabelValues(outcome).Add(float64(n))
}

// ObservePublish records the result of publishing one message.
func ObservePublish(driver string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	publishMessages.WithLabelValues(driver, result).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
