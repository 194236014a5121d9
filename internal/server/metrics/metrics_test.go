package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"nethost.io/nethost/internal/server/metrics"
)

func TestRecordMACRetryIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(metrics.MACRetryTotal)
	metrics.RecordMACRetry()
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.MACRetryTotal))
}

func TestRecordFanOutCountsErrorsSeparately(t *testing.T) {
	before := testutil.ToFloat64(metrics.FanOutErrorsTotal)
	metrics.RecordFanOut(time.Millisecond, errors.New("partial allocation"))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.FanOutErrorsTotal))

	metrics.RecordFanOut(time.Millisecond, nil)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.FanOutErrorsTotal), "a successful call must not bump the error counter")
}

func TestSetPoolUtilizationReportsLastValue(t *testing.T) {
	metrics.SetPoolUtilization("net-a", 3)
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.PoolUtilization.WithLabelValues("net-a")))
	metrics.SetPoolUtilization("net-a", 5)
	assert.Equal(t, float64(5), testutil.ToFloat64(metrics.PoolUtilization.WithLabelValues("net-a")))
}
