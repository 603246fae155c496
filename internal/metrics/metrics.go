package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pillpal"

// Metrics owns a private Prometheus registry plus a few atomic counters
// mirrored for the JSON health snapshot.
type Metrics struct {
	startTime time.Time
	registry  *prometheus.Registry

	doseStatusChanges *prometheus.CounterVec
	reconciliations   *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	persistenceErrors *prometheus.CounterVec
	llmRequests       *prometheus.CounterVec
	llmDuration       prometheus.Histogram
	adherenceRate     prometheus.Gauge
	pendingDoses      prometheus.Gauge
	wsClients         prometheus.Gauge

	dosesTaken      atomic.Int64
	dosesSkipped    atomic.Int64
	remindersSent   atomic.Int64
	persistFailures atomic.Int64
	lastAdherence   atomic.Int64
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default returns the process-wide Metrics
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

// New creates a Metrics with its own registry
func New() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
		registry:  prometheus.NewRegistry(),
		doseStatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dose_status_changes_total",
			Help:      "Dose status changes by new status",
		}, []string{"status"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Day reconciliations by whether the dose list changed",
		}, []string{"changed"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Reminder deliveries by channel and result",
		}, []string{"channel", "result"}),
		persistenceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "Failed storage operations",
		}, []string{"op"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Doctor-visit completions by result",
		}, []string{"result"}),
		llmDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Doctor-visit completion latency",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		adherenceRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "adherence_rate",
			Help:      "Today's adherence rate in percent",
		}),
		pendingDoses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_doses",
			Help:      "Today's doses still pending",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected websocket clients",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.doseStatusChanges,
		m.reconciliations,
		m.notifications,
		m.persistenceErrors,
		m.llmRequests,
		m.llmDuration,
		m.adherenceRate,
		m.pendingDoses,
		m.wsClients,
	)
	m.lastAdherence.Store(100)
	m.adherenceRate.Set(100)

	return m
}

// Registry exposes the underlying registry for tests and custom exporters
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordDoseStatus(status string) {
	m.doseStatusChanges.WithLabelValues(status).Inc()
	switch status {
	case "taken":
		m.dosesTaken.Add(1)
	case "skipped":
		m.dosesSkipped.Add(1)
	}
}

func (m *Metrics) RecordReconcile(changed bool) {
	label := "false"
	if changed {
		label = "true"
	}
	m.reconciliations.WithLabelValues(label).Inc()
}

func (m *Metrics) RecordNotification(channel string, success bool) {
	result := "ok"
	if !success {
		result = "error"
	} else {
		m.remindersSent.Add(1)
	}
	m.notifications.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) RecordPersistenceError(op string) {
	m.persistenceErrors.WithLabelValues(op).Inc()
	m.persistFailures.Add(1)
}

func (m *Metrics) RecordLLMRequest(success bool, d time.Duration) {
	result := "ok"
	if !success {
		result = "error"
	}
	m.llmRequests.WithLabelValues(result).Inc()
	m.llmDuration.Observe(d.Seconds())
}

// SetAdherence updates the adherence gauges
func (m *Metrics) SetAdherence(rate, pending int) {
	m.adherenceRate.Set(float64(rate))
	m.pendingDoses.Set(float64(pending))
	m.lastAdherence.Store(int64(rate))
}

func (m *Metrics) IncrementWSClients() {
	m.wsClients.Inc()
}

func (m *Metrics) DecrementWSClients() {
	m.wsClients.Dec()
}

type Snapshot struct {
	Uptime          time.Duration `json:"uptime"`
	DosesTaken      int64         `json:"doses_taken"`
	DosesSkipped    int64         `json:"doses_skipped"`
	RemindersSent   int64         `json:"reminders_sent"`
	PersistFailures int64         `json:"persist_failures"`
	AdherenceRate   int64         `json:"adherence_rate"`
}

func (m *Metrics) Snapshot() *Snapshot {
	return &Snapshot{
		Uptime:          time.Since(m.startTime),
		DosesTaken:      m.dosesTaken.Load(),
		DosesSkipped:    m.dosesSkipped.Load(),
		RemindersSent:   m.remindersSent.Load(),
		PersistFailures: m.persistFailures.Load(),
		AdherenceRate:   m.lastAdherence.Load(),
	}
}

func RecordDoseStatus(status string) {
	Default().RecordDoseStatus(status)
}

func RecordReconcile(changed bool) {
	Default().RecordReconcile(changed)
}

func RecordNotification(channel string, success bool) {
	Default().RecordNotification(channel, success)
}

func RecordPersistenceError(op string) {
	Default().RecordPersistenceError(op)
}

func RecordLLMRequest(success bool, d time.Duration) {
	Default().RecordLLMRequest(success, d)
}

func GetSnapshot() *Snapshot {
	return Default().Snapshot()
}
