// Package metrics exposes Prometheus counters for authorization, verification,
// notification and activity logging.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services record against. A nil *Collector is a valid no-op Recorder.
type Recorder interface {
	RecordPolicyDecision(action string, allowed bool)
	RecordVerificationIssued(purpose string)
	RecordVerificationConsumed(purpose, outcome string)
	RecordNotification(channel string, ok bool)
	RecordActivityFlushed(count int)
	RecordActivityDropped(count int)
	RecordCleanup(kind string, removed int64)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	policyDecisions      *prometheus.CounterVec
	verificationIssued   *prometheus.CounterVec
	verificationConsumed *prometheus.CounterVec
	notifications        *prometheus.CounterVec
	activityFlushed      prometheus.Counter
	activityDropped      prometheus.Counter
	cleanupRemoved       *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		policyDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskhub_policy_decisions_total",
			Help: "Authorization decisions by action and outcome.",
		}, []string{"action", "outcome"}),
		verificationIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskhub_verification_issued_total",
			Help: "Verification codes and reset tokens issued.",
		}, []string{"purpose"}),
		verificationConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskhub_verification_consumed_total",
			Help: "Verification attempts by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskhub_notifications_total",
			Help: "Outbound e-mail and SMS sends.",
		}, []string{"channel", "outcome"}),
		activityFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskhub_activity_flushed_total",
			Help: "Activity entries written to the database.",
		}),
		activityDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskhub_activity_dropped_total",
			Help: "Activity entries that failed to persist.",
		}),
		cleanupRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskhub_cleanup_removed_total",
			Help: "Expired rows removed by the cleanup worker.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.policyDecisions,
		c.verificationIssued,
		c.verificationConsumed,
		c.notifications,
		c.activityFlushed,
		c.activityDropped,
		c.cleanupRemoved,
	)
	return c
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func (c *Collector) RecordPolicyDecision(action string, allowed bool) {
	if c == nil {
		return
	}
	label := "deny"
	if allowed {
		label = "allow"
	}
	c.policyDecisions.WithLabelValues(action, label).Inc()
}

func (c *Collector) RecordVerificationIssued(purpose string) {
	if c == nil {
		return
	}
	c.verificationIssued.WithLabelValues(purpose).Inc()
}

func (c *Collector) RecordVerificationConsumed(purpose, result string) {
	if c == nil {
		return
	}
	c.verificationConsumed.WithLabelValues(purpose, result).Inc()
}

func (c *Collector) RecordNotification(channel string, ok bool) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues(channel, outcome(ok)).Inc()
}

func (c *Collector) RecordActivityFlushed(count int) {
	if c == nil {
		return
	}
	c.activityFlushed.Add(float64(count))
}

func (c *Collector) RecordActivityDropped(count int) {
	if c == nil {
		return
	}
	c.activityDropped.Add(float64(count))
}

func (c *Collector) RecordCleanup(kind string, removed int64) {
	if c == nil {
		return
	}
	c.cleanupRemoved.WithLabelValues(kind).Add(float64(removed))
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
