package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for the message pipeline.
type ConversationMetrics struct {
	webhookTotal    *prometheus.CounterVec
	envelopesTotal  *prometheus.CounterVec
	decisionsTotal  *prometheus.CounterVec
	processDuration prometheus.Histogram
	queueDepth      prometheus.Gauge
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zapmesa",
			Subsystem: "webhook",
			Name:      "inbound_total",
			Help:      "Total inbound WhatsApp webhooks",
		}, []string{"status"}),
		envelopesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zapmesa",
			Subsystem: "conversation",
			Name:      "envelopes_total",
			Help:      "Envelopes consumed from the processing queue",
		}, []string{"outcome"}),
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zapmesa",
			Subsystem: "conversation",
			Name:      "decisions_total",
			Help:      "Assistant decisions by handover action",
		}, []string{"handover"}),
		processDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "zapmesa",
			Subsystem: "conversation",
			Name:      "process_duration_seconds",
			Help:      "End-to-end envelope processing latency",
			Buckets:   prometheus.DefBuckets,
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zapmesa",
			Subsystem: "conversation",
			Name:      "queue_depth",
			Help:      "Envelopes waiting in the processing queue",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookTotal, m.envelopesTotal, m.decisionsTotal, m.processDuration, m.queueDepth)
	return m
}

func (m *ConversationMetrics) ObserveWebhook(status string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(status).Inc()
}

func (m *ConversationMetrics) ObserveEnvelope(outcome string) {
	if m == nil {
		return
	}
	m.envelopesTotal.WithLabelValues(outcome).Inc()
}

func (m *ConversationMetrics) ObserveDecision(handover string) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(handover).Inc()
}

func (m *ConversationMetrics) ObserveProcessDuration(seconds float64) {
	if m == nil {
		return
	}
	m.processDuration.Observe(seconds)
}

func (m *ConversationMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}
