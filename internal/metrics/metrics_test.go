package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.ObserveScan(true, 100)
	c.ObserveScan(false, 10)
	c.ObserveScan(true, 100)
	c.IncLedgerFailure("timeout")
	c.ObserveClassify("gemini", OutcomeSuccess, time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(c.scansRecorded.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.scansRecorded.WithLabelValues("false")))
	assert.Equal(t, 210.0, testutil.ToFloat64(c.pointsAwarded))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ledgerFailures.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.classifierCalls.WithLabelValues("gemini", OutcomeSuccess)))
}

func TestCollectorReRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	require.NoError(t, err)
	second, err := NewCollector(reg)
	require.NoError(t, err)

	first.ObserveScan(true, 100)
	assert.Equal(t, 1.0, testutil.ToFloat64(second.scansRecorded.WithLabelValues("true")))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveScan(true, 1)
		c.IncLedgerFailure("x")
		c.ObserveClassify("static", OutcomeError, time.Now())
	})
}
