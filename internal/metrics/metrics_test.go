package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestCollector_PolicyDecisions(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPolicyDecision("task:update", true)
	c.RecordPolicyDecision("task:update", false)
	c.RecordPolicyDecision("task:update", false)

	assert.Equal(t, 1.0, counterValue(t, reg, "taskhub_policy_decisions_total", map[string]string{"action": "task:update", "outcome": "allow"}))
	assert.Equal(t, 2.0, counterValue(t, reg, "taskhub_policy_decisions_total", map[string]string{"action": "task:update", "outcome": "deny"}))
}

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordVerificationIssued("email")
	c.RecordVerificationConsumed("email", "expired")
	c.RecordNotification("sms", false)
	c.RecordActivityFlushed(10)
	c.RecordActivityDropped(2)
	c.RecordCleanup("verification", 4)

	assert.Equal(t, 1.0, counterValue(t, reg, "taskhub_verification_issued_total", map[string]string{"purpose": "email"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "taskhub_verification_consumed_total", map[string]string{"outcome": "expired"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "taskhub_notifications_total", map[string]string{"channel": "sms", "outcome": "error"}))
	assert.Equal(t, 10.0, counterValue(t, reg, "taskhub_activity_flushed_total", nil))
	assert.Equal(t, 2.0, counterValue(t, reg, "taskhub_activity_dropped_total", nil))
	assert.Equal(t, 4.0, counterValue(t, reg, "taskhub_cleanup_removed_total", map[string]string{"kind": "verification"}))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordPolicyDecision("x", true)
		c.RecordVerificationIssued("email")
		c.RecordVerificationConsumed("email", "ok")
		c.RecordNotification("email", true)
		c.RecordActivityFlushed(1)
		c.RecordActivityDropped(1)
		c.RecordCleanup("invite", 1)
	})
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordActivityFlushed(3)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "taskhub_activity_flushed_total 3"))
}
