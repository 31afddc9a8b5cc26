package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	r := NewRecorder()

	before := testutil.ToFloat64(coordinatesMintedTotal.WithLabelValues("sentinel"))
	r.RecordMint("sentinel")
	assert.Equal(t, before+1, testutil.ToFloat64(coordinatesMintedTotal.WithLabelValues("sentinel")))

	before = testutil.ToFloat64(versionsAdvancedTotal)
	r.RecordVersionAdvance()
	assert.Equal(t, before+1, testutil.ToFloat64(versionsAdvancedTotal))

	before = testutil.ToFloat64(sweepDeletionsTotal)
	r.RecordSweepDeletion()
	assert.Equal(t, before+1, testutil.ToFloat64(sweepDeletionsTotal))
}

func TestRecorderStatusLabels(t *testing.T) {
	r := NewRecorder()

	beforeOK := testutil.ToFloat64(storeOpsTotal.WithLabelValues("write", "ok"))
	beforeErr := testutil.ToFloat64(storeOpsTotal.WithLabelValues("write", "error"))

	r.RecordStoreOp("write", nil)
	r.RecordStoreOp("write", errors.New("boom"))

	assert.Equal(t, beforeOK+1, testutil.ToFloat64(storeOpsTotal.WithLabelValues("write", "ok")))
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(storeOpsTotal.WithLabelValues("write", "error")))

	beforeLookup := testutil.ToFloat64(externalLookupsTotal.WithLabelValues("error"))
	r.RecordExternalLookup(errors.New("down"))
	assert.Equal(t, beforeLookup+1, testutil.ToFloat64(externalLookupsTotal.WithLabelValues("error")))
}

func TestNewRecorderIdempotent(t *testing.T) {
	// Repeated construction must not re-register with the default registry
	require.NotPanics(t, func() {
		NewRecorder()
		NewRecorder()
	})
}

func TestObserveDuration(t *testing.T) {
	r := NewRecorder()
	require.NotPanics(t, func() {
		r.ObserveDuration("obfuscate", time.Now())
	})
}
