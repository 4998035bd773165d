package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "syncai"

// MessagingMetrics exposes counters/histograms for the WhatsApp channel.
type MessagingMetrics struct {
	inboundTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewMessagingMetrics(reg prometheus.Registerer) *MessagingMetrics {
	m := &MessagingMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound WhatsApp webhooks",
		}, []string{"status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound WhatsApp sends",
		}, []string{"status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of inbound webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.webhookLatency)
	return m
}

func (m *MessagingMetrics) ObserveInbound(status string, seconds float64) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
	m.webhookLatency.WithLabelValues(status).Observe(seconds)
}

func (m *MessagingMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

// ConversationMetrics tracks routing decisions and oracle health.
type ConversationMetrics struct {
	outcomes           *prometheus.CounterVec
	routeLatency       *prometheus.HistogramVec
	intents            *prometheus.CounterVec
	classifierFailures prometheus.Counter
	duplicates         prometheus.Counter
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "outcomes_total",
			Help:      "Inbound messages by routing outcome",
		}, []string{"action"}),
		routeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "route_latency_seconds",
			Help:      "Time spent routing one inbound message",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"action"}),
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "intents_total",
			Help:      "Classified intents for unstructured messages",
		}, []string{"intent"}),
		classifierFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "classifier_failures_total",
			Help:      "Intent oracle calls that failed without a keyword backstop",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "duplicate_jobs_total",
			Help:      "Queue deliveries skipped because the message was already handled",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.outcomes, m.routeLatency, m.intents, m.classifierFailures, m.duplicates)
	return m
}

func (m *ConversationMetrics) ObserveOutcome(action string, seconds float64) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(action).Inc()
	m.routeLatency.WithLabelValues(action).Observe(seconds)
}

func (m *ConversationMetrics) ObserveIntent(intent string) {
	if m == nil {
		return
	}
	m.intents.WithLabelValues(intent).Inc()
}

func (m *ConversationMetrics) ObserveClassifierFailure() {
	if m == nil {
		return
	}
	m.classifierFailures.Inc()
}

func (m *ConversationMetrics) ObserveDuplicate() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}
