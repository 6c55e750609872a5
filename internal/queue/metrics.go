package queue

import "github.com/prometheus/client_golang/prometheus"

var (
	queueWaiting = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rembgd",
		Subsystem: "queue",
		Name:      "waiting_requests",
		Help:      "Requests admitted to the queue but not yet started",
	})

	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rembgd",
			Subsystem: "queue",
			Name:      "requests_total",
			Help:      "Completed queue requests by outcome",
		},
		[]string{"outcome"},
	)

	inferenceDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rembgd",
		Subsystem: "queue",
		Name:      "inference_duration_seconds",
		Help:      "Wall time of one queued inference, ensure included",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(queueWaiting, requestsTotal, inferenceDuration)
}
