package metrics

import (
	"testing"

	"SignalGate/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordSignal("momentum", models.ActionBuy)
	r.RecordSignal("momentum", models.ActionBuy)
	r.RecordDecision(true)
	r.RecordDecision(false)
	r.RecordDecision(false)
	r.RecordRejection(models.CategoryHeat)
	r.RecordError("cooldown")
	r.RecordLatency("scan_cycle", 0.2)
	r.SetPortfolioExposure(7.5)
	r.SetStrategyWeight("personal", 0.62)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.signals.WithLabelValues("momentum", "buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.decisions.WithLabelValues("approved")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.decisions.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rejections.WithLabelValues("heat")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errors.WithLabelValues("cooldown")))
	assert.Equal(t, 7.5, testutil.ToFloat64(r.exposure))
	assert.Equal(t, 0.62, testutil.ToFloat64(r.weights.WithLabelValues("personal")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 7)
}

func TestRecorderRegistriesAreIndependent(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
