package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	r := New()

	r.WindowsCreated(2)
	r.WindowsCreated(0)
	r.WindowsUpdated(1)
	r.RuleFailed()
	r.Entry(ResultSuccess)
	r.Entry(ResultSuccess)
	r.Entry(ResultError)
	r.Closeout(ResultSuccess)
	r.UnprotectedEntry()
	r.ResolveFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.windowsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.windowsUpdated))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ruleFailures))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.entries.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.entries.WithLabelValues(ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.closeouts.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.unprotected))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.resolveFailures))
}

func TestRecorder_ObservePass(t *testing.T) {
	r := New()

	r.ObservePass(PassExecute, time.Now().Add(-time.Second), nil)
	r.ObservePass(PassExecute, time.Now(), errors.New("gateway down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.passErrors.WithLabelValues(PassExecute)))
	assert.Greater(t, testutil.ToFloat64(r.lastPassTimestamp.WithLabelValues(PassExecute)), 0.0)

	families, err := r.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["seasonal_pass_duration_seconds"])
	assert.True(t, names["go_goroutines"])
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.WindowsCreated(1)
		r.WindowsUpdated(1)
		r.RuleFailed()
		r.Entry(ResultSuccess)
		r.Closeout(ResultError)
		r.UnprotectedEntry()
		r.ResolveFailed()
		r.ObservePass(PassMaterialize, time.Now(), nil)
	})
	assert.Nil(t, r.Registry())
}
