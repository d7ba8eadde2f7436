package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts scheduler activity.  A nil *Metrics records nothing.
type Metrics struct {
	ticks       prometheus.Counter
	skipped     prometheus.Counter
	expired     prometheus.Counter
	promoted    prometheus.Counter
	autoSignOut prometheus.Counter
	errors      *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewMetrics registers the scheduler collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hallpass", Subsystem: "scheduler", Name: "ticks_total",
			Help: "Scheduler ticks that ran both sweeps.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hallpass", Subsystem: "scheduler", Name: "ticks_skipped_total",
			Help: "Ticks skipped because the previous tick was still running.",
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hallpass", Name: "passes_expired_total",
			Help: "Active passes moved to expired.",
		}),
		promoted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hallpass", Name: "passes_promoted_total",
			Help: "Queued passes promoted to active.",
		}),
		autoSignOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hallpass", Name: "auto_sign_outs_total",
			Help: "Attendance events written by the dash-pass sweep.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hallpass", Subsystem: "scheduler", Name: "errors_total",
			Help: "Per-item sweep failures.",
		}, []string{"sweep"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hallpass", Subsystem: "scheduler", Name: "tick_duration_seconds",
			Help:    "Wall time of one scheduler tick.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ticks, m.skipped, m.expired, m.promoted, m.autoSignOut, m.errors, m.duration)
	}
	return m
}

func (m *Metrics) observeSkip() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}

func (m *Metrics) observe(r TickResult) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.expired.Add(float64(r.Expirations.Expired))
	m.promoted.Add(float64(r.Expirations.Promoted))
	m.autoSignOut.Add(float64(r.DashPasses.SignedOut))
	m.errors.WithLabelValues("expirations").Add(float64(len(r.Expirations.Errors)))
	m.errors.WithLabelValues("dash_passes").Add(float64(len(r.DashPasses.Errors)))
	m.duration.Observe(r.Elapsed.Seconds())
}
