package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordSubmission(t *testing.T) {
	before := testutil.ToFloat64(submissionsCounter.WithLabelValues("publish"))
	Get().RecordSubmission("publish", 20*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(submissionsCounter.WithLabelValues("publish")))
}

func TestRecordPublish(t *testing.T) {
	successes := testutil.ToFloat64(publishCounter.WithLabelValues("success"))
	failures := testutil.ToFloat64(publishCounter.WithLabelValues("failure"))

	Get().RecordPublish(nil)
	Get().RecordPublish(fmt.Errorf("broker gone"))
	Get().RecordPublish(fmt.Errorf("broker gone"))

	assert.Equal(t, successes+1, testutil.ToFloat64(publishCounter.WithLabelValues("success")))
	assert.Equal(t, failures+2, testutil.ToFloat64(publishCounter.WithLabelValues("failure")))
}

func TestRecordAllocatedIds(t *testing.T) {
	Get().RecordAllocatedIds(42)
	assert.Equal(t, float64(42), testutil.ToFloat64(allocatedIdsGauge))
}
