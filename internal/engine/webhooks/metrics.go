package webhooks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for webhook delivery. A nil *Metrics records nothing.
type Metrics struct {
	// DeliveriesStartedTotal counts delivery chains started by Trigger.
	DeliveriesStartedTotal prometheus.Counter
	// AttemptsTotal counts HTTP attempts by outcome (success, failure).
	AttemptsTotal *prometheus.CounterVec
	// AttemptDurationSeconds observes the duration of each HTTP attempt.
	AttemptDurationSeconds prometheus.Histogram
	// RetriesScheduledTotal counts backoff waits entered.
	RetriesScheduledTotal prometheus.Counter
	// ChainsAbandonedTotal counts chains dropped before finishing, by reason.
	ChainsAbandonedTotal *prometheus.CounterVec
	// AutoDisabledTotal counts configs switched off by the failure threshold.
	AutoDisabledTotal prometheus.Counter
	// InFlight tracks delivery chains currently running.
	InFlight prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DeliveriesStartedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "wazeapp_webhook_deliveries_started_total",
			Help: "Total number of webhook delivery chains started",
		}),
		AttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wazeapp_webhook_attempts_total",
			Help: "Total number of webhook HTTP attempts by outcome",
		}, []string{"outcome"}),
		AttemptDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wazeapp_webhook_attempt_duration_seconds",
			Help:    "Duration of webhook HTTP attempts in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 11), // 10ms to ~10s
		}),
		RetriesScheduledTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "wazeapp_webhook_retries_scheduled_total",
			Help: "Total number of webhook retries scheduled",
		}),
		ChainsAbandonedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wazeapp_webhook_chains_abandoned_total",
			Help: "Total number of delivery chains abandoned before completion by reason",
		}, []string{"reason"}),
		AutoDisabledTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "wazeapp_webhook_auto_disabled_total",
			Help: "Total number of webhooks auto-disabled after consecutive failures",
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "wazeapp_webhook_chains_in_flight",
			Help: "Number of webhook delivery chains currently running",
		}),
	}
}

func (m *Metrics) chainStarted() {
	if m == nil {
		return
	}
	m.DeliveriesStartedTotal.Inc()
	m.InFlight.Inc()
}

func (m *Metrics) chainFinished() {
	if m == nil {
		return
	}
	m.InFlight.Dec()
}

func (m *Metrics) recordAttempt(success bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.AttemptsTotal.WithLabelValues(outcome).Inc()
	m.AttemptDurationSeconds.Observe(d.Seconds())
}

func (m *Metrics) retryScheduled() {
	if m == nil {
		return
	}
	m.RetriesScheduledTotal.Inc()
}

func (m *Metrics) chainAbandoned(reason string) {
	if m == nil {
		return
	}
	m.ChainsAbandonedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) autoDisabled() {
	if m == nil {
		return
	}
	m.AutoDisabledTotal.Inc()
}
