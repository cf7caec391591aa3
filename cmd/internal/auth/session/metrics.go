package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts session lifecycle events. A nil *Metrics records nothing.
type Metrics struct {
	logins     *prometheus.CounterVec
	refreshes  *prometheus.CounterVec
	logouts    *prometheus.CounterVec
	newDevices prometheus.Counter
	swept      prometheus.Counter
	revoked    prometheus.Counter
}

// NewMetrics registers the session collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "passage",
			Subsystem: "session",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "passage",
			Subsystem: "session",
			Name:      "refreshes_total",
			Help:      "Access-token refresh attempts by result.",
		}, []string{"result"}),
		logouts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "passage",
			Subsystem: "session",
			Name:      "logouts_total",
			Help:      "Logouts by scope.",
		}, []string{"scope"}),
		newDevices: f.NewCounter(prometheus.CounterOpts{
			Namespace: "passage",
			Subsystem: "session",
			Name:      "devices_registered_total",
			Help:      "Devices added to refresh-token records.",
		}),
		swept: f.NewCounter(prometheus.CounterOpts{
			Namespace: "passage",
			Subsystem: "session",
			Name:      "records_swept_total",
			Help:      "Expired refresh-token records deleted by the sweeper.",
		}),
		revoked: f.NewCounter(prometheus.CounterOpts{
			Namespace: "passage",
			Subsystem: "session",
			Name:      "records_revoked_total",
			Help:      "Refresh-token records deleted by revoke-before.",
		}),
	}
}

func (m *Metrics) login(result string) {
	if m != nil {
		m.logins.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) refresh(result string) {
	if m != nil {
		m.refreshes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) logout(scope string) {
	if m != nil {
		m.logouts.WithLabelValues(scope).Inc()
	}
}

func (m *Metrics) deviceRegistered() {
	if m != nil {
		m.newDevices.Inc()
	}
}

func (m *Metrics) sweptRecords(n int64) {
	if m != nil && n > 0 {
		m.swept.Add(float64(n))
	}
}

func (m *Metrics) revokedRecords(n int64) {
	if m != nil && n > 0 {
		m.revoked.Add(float64(n))
	}
}

// resultLabel collapses an error into a low-cardinality label.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	e, ok := AsError(err)
	if !ok {
		return "error"
	}
	switch e.Kind {
	case KindAuthentication:
		return "unauthenticated"
	case KindTokenExpired:
		return "expired"
	case KindJSONWebToken:
		return "invalid_token"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "invalid_input"
	case KindForbidden:
		return "forbidden"
	case KindServer:
		return "error"
	default:
		return "error"
	}
}
