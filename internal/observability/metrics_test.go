package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.RecordLogin(LoginFailed)
	m.RecordLogin(LoginFailed)
	m.RecordLogin(LoginSucceeded)
	m.RecordLockout()
	m.RecordVerification("verified")
	m.RecordRequest("/auth/login", "POST", 200, 15*time.Millisecond)
	m.RecordError("/auth/login", "POST", "UNAUTHORIZED")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.logins.WithLabelValues(LoginFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues(LoginSucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lockouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("verified")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "/auth/login", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("POST", "/auth/login", "UNAUTHORIZED")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordLogin(LoginFailed)
		m.RecordLockout()
		m.RecordVerification("verified")
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "X")
	})
}
