// Package metrics holds the Prometheus collectors for the registration
// pipeline.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aanand-mishra/registration-api/internal/types"
)

// Submission outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	Submissions      *prometheus.CounterVec
	PhaseAdvances    *prometheus.CounterVec
	PhaseRejections  *prometheus.CounterVec
	DraftFailures    *prometheus.CounterVec
	SessionsStarted  prometheus.Counter
	ChatFailures     prometheus.Counter
	RegistrationOpen prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates the metrics, registers them with reg and serves reg from
// Handler.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registration_submissions_total",
			Help: "Confirmed submissions by outcome",
		}, []string{"outcome"}),
		PhaseAdvances: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registration_phase_advances_total",
			Help: "Successful Next actions by phase",
		}, []string{"phase"}),
		PhaseRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registration_phase_rejections_total",
			Help: "Next actions refused by phase validation, by phase",
		}, []string{"phase"}),
		DraftFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registration_draft_failures_total",
			Help: "Draft store operations that failed, by operation",
		}, []string{"op"}),
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "registration_sessions_started_total",
			Help: "Wizard sessions created or restored",
		}),
		ChatFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "registration_chat_failures_total",
			Help: "Assistant requests answered with the fallback message",
		}),
		RegistrationOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "registration_open",
			Help: "1 while the registration deadline has not passed",
		}),
		gatherer: reg,
	}
}

// ObserveSubmission counts one finished submission.
func (m *Metrics) ObserveSubmission(success bool) {
	outcome := OutcomeFailure
	if success {
		outcome = OutcomeSuccess
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

// ObserveNext counts one Next action on phase p.
func (m *Metrics) ObserveNext(p types.Phase, advanced bool) {
	label := strconv.Itoa(int(p))
	if advanced {
		m.PhaseAdvances.WithLabelValues(label).Inc()
		return
	}
	m.PhaseRejections.WithLabelValues(label).Inc()
}

// IncrementDraftFailures counts one failed draft operation.
func (m *Metrics) IncrementDraftFailures(op string) {
	m.DraftFailures.WithLabelValues(op).Inc()
}

// IncrementSessionsStarted counts one started session.
func (m *Metrics) IncrementSessionsStarted() {
	m.SessionsStarted.Inc()
}

// IncrementChatFailures counts one fallback answer.
func (m *Metrics) IncrementChatFailures() {
	m.ChatFailures.Inc()
}

// SetOpen records whether registration is open.
func (m *Metrics) SetOpen(open bool) {
	if open {
		m.RegistrationOpen.Set(1)
		return
	}
	m.RegistrationOpen.Set(0)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
