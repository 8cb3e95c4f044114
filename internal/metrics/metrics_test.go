package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRemoteCountsOutcome(t *testing.T) {
	okBefore := testutil.ToFloat64(remoteCalls.WithLabelValues("test.op", "ok"))
	errBefore := testutil.ToFloat64(remoteCalls.WithLabelValues("test.op", "error"))

	var err error
	ObserveRemote("test.op", time.Now(), &err)
	err = errors.New("boom")
	ObserveRemote("test.op", time.Now(), &err)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(remoteCalls.WithLabelValues("test.op", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(remoteCalls.WithLabelValues("test.op", "error")))
}

func TestActiveSessionsGauge(t *testing.T) {
	SetActiveSessions(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(activeSessions))
	SetActiveSessions(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(activeSessions))
}
