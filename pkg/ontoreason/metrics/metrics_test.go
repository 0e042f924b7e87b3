package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/cognicore/ontoreason/pkg/ontoreason/consistency"
	"github.com/cognicore/ontoreason/pkg/ontoreason/inference"
)

func TestRecorder_Inference(t *testing.T) {
	var r Recorder
	added := testutil.ToFloat64(InferredTriplesTotal)
	capped := testutil.ToFloat64(InferenceCappedTotal)

	r.ObserveInference(inference.Result{Added: 4, Passes: 3})
	r.ObserveInference(inference.Result{Added: 1, Passes: 100, Capped: true})

	assert.Equal(t, added+5, testutil.ToFloat64(InferredTriplesTotal))
	assert.Equal(t, capped+1, testutil.ToFloat64(InferenceCappedTotal))
}

func TestRecorder_EnrichAndQuery(t *testing.T) {
	var r Recorder
	ok := testutil.ToFloat64(EnrichTotal.WithLabelValues(OutcomeOK))
	invalid := testutil.ToFloat64(QueryTotal.WithLabelValues(OutcomeInvalid))

	r.ObserveEnrich(OutcomeOK, 3*time.Millisecond)
	r.ObserveQuery(OutcomeInvalid)

	assert.Equal(t, ok+1, testutil.ToFloat64(EnrichTotal.WithLabelValues(OutcomeOK)))
	assert.Equal(t, invalid+1, testutil.ToFloat64(QueryTotal.WithLabelValues(OutcomeInvalid)))
}

func TestRecorder_ViolationsReplaceGauges(t *testing.T) {
	var r Recorder
	r.ObserveViolations([]consistency.Violation{
		{Kind: consistency.KindCardinality},
		{Kind: consistency.KindCardinality},
		{Kind: consistency.KindDomainMismatch},
	})
	assert.Equal(t, 2.0, testutil.ToFloat64(Violations.WithLabelValues("cardinality")))
	assert.Equal(t, 1.0, testutil.ToFloat64(Violations.WithLabelValues("domain-mismatch")))
	assert.Equal(t, 0.0, testutil.ToFloat64(Violations.WithLabelValues("range-mismatch")))

	r.ObserveViolations(nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(Violations.WithLabelValues("cardinality")))
}
