package validator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "validator_requests_total",
		Help: "The total number of validation requests, by the path they took",
	}, []string{"service", "path"})

	prepareTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "validator_prepare_total",
		Help: "The total number of times the pre-validation step ran",
	}, []string{"service"})

	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "validator_batches_total",
		Help: "The total number of coalesced batches posted, by outcome",
	}, []string{"service", "result"})

	callbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "validator_callbacks_total",
		Help: "The total number of callbacks invoked from batches",
	}, []string{"service"})

	queueWait = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name:    "validator_queue_wait_seconds",
		Help:    "How long a request waited between being queued and its batch being posted",
		Buckets: prometheus.DefBuckets,
	}, []string{"service"})

	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name:    "validator_dispatch_duration_seconds",
		Help:    "How long one batch took, from post to fan-out",
		Buckets: prometheus.DefBuckets,
	}, []string{"service"})
)

const (
	pathBypass = "bypass"
	pathRemote = "remote"
	pathCustom = "custom"

	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

func outcome(r Result) string {
	switch {
	case r.OK:
		return outcomeOK
	case r.IsFailure():
		return outcomeFailed
	default:
		return outcomeRejected
	}
}
