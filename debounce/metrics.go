package debounce

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enqueued = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "debounce_enqueued_total",
		Help: "The total number of items enqueued",
	}, []string{"scheduler"})

	restarts = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "debounce_restarts_total",
		Help: "The total number of times a pending timer was restarted by a new item",
	}, []string{"scheduler"})

	flushes = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "debounce_flushes_total",
		Help: "The total number of times the queue was drained",
	}, []string{"scheduler"})

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "debounce_queue_depth",
		Help: "The number of items waiting for the next flush",
	}, []string{"scheduler"})

	batchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name:    "debounce_batch_size",
		Help:    "The number of items drained per flush",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"scheduler"})
)
