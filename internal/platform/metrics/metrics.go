package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the login service.
type Metrics struct {
	LoginsTotal      *prometheus.CounterVec
	VerifyFailures   *prometheus.CounterVec
	UsersCreated     prometheus.Counter
	RolePromotions   prometheus.Counter
	SessionsRejected *prometheus.CounterVec
	RateLimited      prometheus.Counter
	LoginLatency     *prometheus.HistogramVec
}

// New registers all collectors on reg. Passing a fresh prometheus.NewRegistry
// keeps tests isolated from the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LoginsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tfc_logins_total",
			Help: "Completed logins by flow and resulting role",
		}, []string{"flow", "role"}),
		VerifyFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tfc_verify_failures_total",
			Help: "Rejected Telegram payloads by flow and failure kind",
		}, []string{"flow", "kind"}),
		UsersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "tfc_users_created_total",
			Help: "App users created on first login",
		}),
		RolePromotions: f.NewCounter(prometheus.CounterOpts{
			Name: "tfc_role_promotions_total",
			Help: "Users promoted to admin by the allow-list",
		}),
		SessionsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tfc_sessions_rejected_total",
			Help: "Guarded requests rejected by reason",
		}, []string{"reason"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "tfc_login_rate_limited_total",
			Help: "Login attempts rejected by the per-IP limiter",
		}),
		LoginLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tfc_login_duration_seconds",
			Help:    "Login handling latency by flow",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"flow"}),
	}
}

func (m *Metrics) IncrementLogin(flow, role string) {
	m.LoginsTotal.WithLabelValues(flow, role).Inc()
}

func (m *Metrics) IncrementVerifyFailure(flow, kind string) {
	m.VerifyFailures.WithLabelValues(flow, kind).Inc()
}

func (m *Metrics) IncrementUsersCreated() {
	m.UsersCreated.Inc()
}

func (m *Metrics) AddRolePromotions(n int) {
	if n > 0 {
		m.RolePromotions.Add(float64(n))
	}
}

func (m *Metrics) IncrementSessionRejected(reason string) {
	m.SessionsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementRateLimited() {
	m.RateLimited.Inc()
}

// ObserveLogin records the time since start for flow.
func (m *Metrics) ObserveLogin(flow string, start time.Time) {
	m.LoginLatency.WithLabelValues(flow).Observe(time.Since(start).Seconds())
}
