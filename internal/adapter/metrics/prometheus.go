// Package metrics exports server and job counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mtzgroup/tcpb-go/internal/core/ports/secondary"
	"github.com/mtzgroup/tcpb-go/internal/domain"
)

const namespace = "tcpb"

var (
	_ secondary.ServerMetrics = (*Metrics)(nil)
	_ secondary.JobRecorder   = (*Metrics)(nil)
)

// Metrics owns a private registry so several servers can run in one process
type Metrics struct {
	registry *prometheus.Registry

	messages       *prometheus.CounterVec
	statuses       *prometheus.CounterVec
	jobs           *prometheus.CounterVec
	protocolErrors *prometheus.CounterVec
	connections    prometheus.Gauge
	gateOpen       prometheus.Gauge
	currentJobID   prometheus.Gauge
	jobDuration    prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Frames received from clients by message type.",
		}, []string{"type"}),
		statuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_replies_total",
			Help:      "Status replies sent by job status case.",
		}, []string{"case"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Job lifecycle transitions.",
		}, []string{"status"}),
		protocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Connections dropped for protocol violations.",
		}, []string{"reason"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_connections",
			Help:      "Client connections currently open.",
		}),
		gateOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "accept_gate_open",
			Help:      "1 while the worker is waiting for a job.",
		}),
		currentJobID: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_job_id",
			Help:      "Id of the most recently accepted job.",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time from accept to delivery or abandonment.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
	}
	m.registry.MustRegister(
		m.messages, m.statuses, m.jobs, m.protocolErrors,
		m.connections, m.gateOpen, m.currentJobID, m.jobDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) MessageReceived(msgType string) {
	m.messages.WithLabelValues(msgType).Inc()
}

func (m *Metrics) StatusSent(statusCase string) {
	m.statuses.WithLabelValues(statusCase).Inc()
}

func (m *Metrics) ConnectionOpened() {
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	m.connections.Dec()
}

func (m *Metrics) ProtocolError(reason string) {
	m.protocolErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveSlot(state domain.SlotState) {
	if state.GateOpen {
		m.gateOpen.Set(1)
	} else {
		m.gateOpen.Set(0)
	}
	m.currentJobID.Set(float64(state.JobID))
}

// Record counts lifecycle transitions and observes the duration of finished jobs
func (m *Metrics) Record(rec domain.JobRecord) {
	m.jobs.WithLabelValues(string(rec.Status)).Inc()
	if rec.FinishedAt != nil {
		m.jobDuration.Observe(rec.FinishedAt.Sub(rec.AcceptedAt).Seconds())
	}
}

// Nop discards every observation
type Nop struct{}

var _ secondary.ServerMetrics = Nop{}

func (Nop) MessageReceived(string) {}
func (Nop) StatusSent(string) {}
func (Nop) ConnectionOpened() {}
func (Nop) ConnectionClosed() {}
func (Nop) ProtocolError(string) {}
func (Nop) ObserveSlot(domain.SlotState) {}
