package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publish results recorded on producerMessages.
const (
	resultOK    = "ok"
	resultError = "error"
)

var (
	producerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_messages_total",
			Help: "Kafka messages handed to the writer, by topic and result",
		},
		[]string{"topic", "result"},
	)

	// Async writes return in well under a millisecond; sync writes wait for
	// every in-sync replica.
	producerWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_producer_write_duration_seconds",
			Help:    "Time spent in WriteMessages, by topic",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 9),
		},
		[]string{"topic"},
	)
)
