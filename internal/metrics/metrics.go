package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	webhooksTotal     *prometheus.CounterVec
	webhookDuration   *prometheus.HistogramVec
	registrarAttempts *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		webhooksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shophook",
			Name:      "webhooks_total",
			Help:      "Webhook deliveries by topic and outcome.",
		}, []string{"topic", "outcome"}),
		webhookDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shophook",
			Name:      "webhook_duration_seconds",
			Help:      "Time from receipt to response per webhook.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
		registrarAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shophook",
			Name:      "registrar_attempts_total",
			Help:      "Subscription creation attempts by topic and result.",
		}, []string{"topic", "result"}),
	}
}

func (m *Metrics) ObserveWebhook(topic, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.webhooksTotal.WithLabelValues(topic, outcome).Inc()
	m.webhookDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

func (m *Metrics) ObserveRegistrarAttempt(topic, result string) {
	if m == nil {
		return
	}
	m.registrarAttempts.WithLabelValues(topic, result).Inc()
}
