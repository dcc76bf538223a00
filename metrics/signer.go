package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Request statuses.
const (
	StatusOK       = "ok"
	StatusRefused  = "refused"
	StatusError    = "error"
	StatusRejected = "rejected"
)

// SignerMetrics instruments the requests served by the signer.
type SignerMetrics struct {
	requests  *prometheus.CounterVec
	latencies *prometheus.HistogramVec
}

// NewSignerMetrics creates, or reuses, the collectors:
//
// 1. <pkg>_sign_requests, counts of requests by message type and status.
// 2. <pkg>_sign_latency_seconds, time to answer by message type.
func NewSignerMetrics(pkg string) *SignerMetrics {
	m := &SignerMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_sign_requests", pkg),
				Help: "How many signer requests were answered, partitioned by message type and status.",
			},
			[]string{"type", "status"},
		),
		latencies: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    fmt.Sprintf("%s_sign_latency_seconds", pkg),
				Help:    "How long signer requests take, partitioned by message type.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"type"},
		),
	}
	m.requests = registerOnce(m.requests).(*prometheus.CounterVec)
	m.latencies = registerOnce(m.latencies).(*prometheus.HistogramVec)
	return m
}

// Requests returns the counter for msgType answered with status.
func (m *SignerMetrics) Requests(msgType, status string) prometheus.Counter {
	return m.requests.WithLabelValues(msgType, status)
}

// Latency starts a timer for msgType; call ObserveDuration when answered.
func (m *SignerMetrics) Latency(msgType string) *prometheus.Timer {
	return prometheus.NewTimer(m.latencies.WithLabelValues(msgType))
}
