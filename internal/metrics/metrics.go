package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hmo_portal"

// Session holds the client side collectors. A nil *Session is valid and
// records nothing, so components can be built without metrics.
type Session struct {
	Refreshes      *prometheus.CounterVec
	RefreshWaiters prometheus.Counter
	SchedulerArms  prometheus.Counter
	SchedulerFires prometheus.Counter
	GuardDecisions *prometheus.CounterVec
	RequestErrors  *prometheus.CounterVec
	AuthRetries    prometheus.Counter
}

// NewSession creates the collectors and registers them with reg.
// Passing a nil registerer leaves them unregistered (useful in tests).
func NewSession(reg prometheus.Registerer) *Session {
	m := &Session{
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "refreshes_total",
			Help:      "Refresh round-trips performed, by outcome.",
		}, []string{"outcome"}),
		RefreshWaiters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "refresh_shared_waiters_total",
			Help:      "Callers whose refresh result was shared with other callers.",
		}),
		SchedulerArms: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "arms_total",
			Help:      "Times the proactive refresh timer was armed.",
		}),
		SchedulerFires: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "fires_total",
			Help:      "Times the proactive refresh timer fired.",
		}),
		GuardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "decisions_total",
			Help:      "Access guard decisions, by outcome and reason.",
		}, []string{"outcome", "reason"}),
		RequestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_errors_total",
			Help:      "Normalized request failures, by error kind.",
		}, []string{"kind"}),
		AuthRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "auth_retries_total",
			Help:      "Requests reissued after a successful refresh.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Refreshes, m.RefreshWaiters, m.SchedulerArms, m.SchedulerFires,
			m.GuardDecisions, m.RequestErrors, m.AuthRetries)
	}
	return m
}

func (m *Session) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(outcome).Inc()
}

func (m *Session) SharedWaiter() {
	if m == nil {
		return
	}
	m.RefreshWaiters.Inc()
}

func (m *Session) Armed() {
	if m == nil {
		return
	}
	m.SchedulerArms.Inc()
}

func (m *Session) Fired() {
	if m == nil {
		return
	}
	m.SchedulerFires.Inc()
}

func (m *Session) Decision(outcome, reason string) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(outcome, reason).Inc()
}

func (m *Session) RequestError(kind string) {
	if m == nil {
		return
	}
	m.RequestErrors.WithLabelValues(kind).Inc()
}

func (m *Session) Retried() {
	if m == nil {
		return
	}
	m.AuthRetries.Inc()
}

// Server holds the stub backend collectors.
type Server struct {
	Logins    *prometheus.CounterVec
	Refreshes *prometheus.CounterVec
	Rejected  prometheus.Counter
}

func NewServer(reg prometheus.Registerer) *Server {
	m := &Server{
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "devserver",
			Name:      "logins_total",
			Help:      "Login attempts, by outcome.",
		}, []string{"outcome"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "devserver",
			Name:      "refreshes_total",
			Help:      "Refresh requests, by outcome.",
		}, []string{"outcome"}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "devserver",
			Name:      "bearer_rejections_total",
			Help:      "Business requests rejected with 401.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Logins, m.Refreshes, m.Rejected)
	}
	return m
}
