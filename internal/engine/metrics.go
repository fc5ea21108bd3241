package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/xela07ax/higher-guardian/internal/domain"
	"github.com/xela07ax/higher-guardian/internal/transaction"
)

type Metrics struct {
	reg prometheus.Registerer

	// Latency: время обработки запроса data plane
	RequestDuration *prometheus.HistogramVec

	// Решения Guardian по уровню вмешательства
	Decisions *prometheus.CounterVec

	// Распределение суммарного балла риска
	RiskScore prometheus.Histogram

	// HITL: действия, ушедшие на апрув человеку (в истории их нет)
	ApprovalRequired *prometheus.CounterVec

	TransactionRejections *prometheus.CounterVec
	ConnectionVerdicts    *prometheus.CounterVec
	Exfiltration          *prometheus.CounterVec
	Alerts                *prometheus.CounterVec

	// Errors: отказы на пути к хранилищу аудита
	ErrorTotal *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - ок, 1 - выбило, 0.5 - полуоткрыт)
	CircuitBreakerState *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		reg: reg,

		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guardian_request_duration_seconds",
			Help:    "Histogram of data plane request latencies.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"route", "status"}),

		Decisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_decisions_total",
			Help: "Risk assessments by intervention level.",
		}, []string{"intervention"}),

		RiskScore: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "guardian_risk_score",
			Help:    "Additive risk score of assessed actions.",
			Buckets: []float64{0.1, 0.3, 0.5, 0.7, 0.8, 1, 1.4, 1.5, 2.1},
		}),

		ApprovalRequired: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_human_approval_required_total",
			Help: "Actions and transactions escalated to a human.",
		}, []string{"source"}),

		TransactionRejections: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_transaction_rejections_total",
			Help: "Rejected transactions by reason.",
		}, []string{"reason"}),

		ConnectionVerdicts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_connection_verdicts_total",
			Help: "Network connection verdicts.",
		}, []string{"verdict"}),

		Exfiltration: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_exfiltration_flags_total",
			Help: "Tunnels flagged by the exfiltration heuristic.",
		}, []string{"tunnel"}),

		Alerts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_alerts_total",
			Help: "Alert signals raised by the system monitor.",
		}, []string{"alert"}),

		ErrorTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_audit_sink_errors_total",
			Help: "Audit sink failures by type.",
		}, []string{"type"}), // типы: rate_limit, breaker_open, write

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "guardian_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 0.5=half-open, 1=open).",
		}, []string{"sink"}),
	}
}

// TrackAuditBuffer публикует заполненность буфера аудита (backpressure).
func (m *Metrics) TrackAuditBuffer(pending func() int) {
	promauto.With(m.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "guardian_audit_buffer_utilization",
		Help: "Current number of events in audit buffer.",
	}, func() float64 {
		return float64(pending())
	})
}

func (m *Metrics) ObserveAssessment(a domain.RiskAssessment) {
	m.Decisions.WithLabelValues(string(a.InterventionLevel)).Inc()
	m.RiskScore.Observe(a.Score)
}

func (m *Metrics) ObserveApprovalRequired(string) {
	m.ApprovalRequired.WithLabelValues("action").Inc()
}

func (m *Metrics) ObserveTransactionRejected(reason string) {
	m.TransactionRejections.WithLabelValues(reason).Inc()
	if reason == transaction.ReasonSuspicious {
		m.ApprovalRequired.WithLabelValues("transaction").Inc()
	}
}

func (m *Metrics) ObserveConnectionVerdict(verdict string) {
	m.ConnectionVerdicts.WithLabelValues(verdict).Inc()
}

func (m *Metrics) ObserveExfiltration(tunnel string) {
	m.Exfiltration.WithLabelValues(tunnel).Inc()
}

func (m *Metrics) ObserveAlert(alert string) {
	m.Alerts.WithLabelValues(alert).Inc()
}
