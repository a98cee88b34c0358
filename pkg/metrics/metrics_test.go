package metrics

import (
	"strings"
	"testing"
	"time"
	"txmanager/pkg/concurrency/lock"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndRecord(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Began()
	m.Began()
	m.LockRequest(lock.ExclusiveLock, OutcomeGranted)
	m.LockRequest(lock.ExclusiveLock, OutcomeGranted)
	m.LockRequest(lock.SharedLock, OutcomeWaited)
	m.Terminated(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LockRequests.WithLabelValues("EXCLUSIVE", OutcomeGranted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LockRequests.WithLabelValues("SHARED", OutcomeWaited)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transactions.WithLabelValues(OutcomeCommitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveTransactions))

	expected := `
# HELP txmanager_transactions_total Terminated transactions by outcome.
# TYPE txmanager_transactions_total counter
txmanager_transactions_total{outcome="committed"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "txmanager_transactions_total"))
}

func TestWaitTracking(t *testing.T) {
	m := MustNew(nil)

	m.StartWait()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WaitingTransactions))

	m.EndWait(3 * time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.WaitingTransactions))
	assert.Equal(t, 1, testutil.CollectAndCount(m.LockWait))
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
	assert.Panics(t, func() { MustNew(reg) })
}
