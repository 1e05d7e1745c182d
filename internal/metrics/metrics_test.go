package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RPCRequests.WithLabelValues("/x/Add", "ok").Inc()
	m.RPCRequests.WithLabelValues("/x/Add", "ok").Inc()
	m.ExpenseWrites.WithLabelValues("add").Inc()
	m.ActiveSubscriptions.Inc()
	m.ActiveSubscriptions.Inc()
	m.ActiveSubscriptions.Dec()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RPCRequests.WithLabelValues("/x/Add", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSubscriptions))

	expected := `
# HELP spendtrack_expense_writes_total Successful expense writes by operation.
# TYPE spendtrack_expense_writes_total counter
spendtrack_expense_writes_total{op="add"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "spendtrack_expense_writes_total"))
}

func TestNewNop_Independent(t *testing.T) {
	// Two instances must not collide on registration.
	a := NewNop()
	b := NewNop()
	a.SnapshotsSent.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SnapshotsSent))
}
