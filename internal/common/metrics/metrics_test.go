package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveStage_CountsDegradation(t *testing.T) {
	before := testutil.ToFloat64(MatchStageDegraded.WithLabelValues("rerank"))

	ObserveStage("rerank", "success", time.Millisecond)
	ObserveStage("rerank", "degraded", time.Millisecond)
	ObserveStage("rerank", "failed", time.Millisecond)

	assert.Equal(t, before+2, testutil.ToFloat64(MatchStageDegraded.WithLabelValues("rerank")))
}

func TestObserveExternalCall(t *testing.T) {
	ObserveExternalCall("llm", nil, 10*time.Millisecond)
	ObserveExternalCall("llm", errors.New("boom"), 10*time.Millisecond)

	// one series per (service, status) pair
	assert.GreaterOrEqual(t, testutil.CollectAndCount(ExternalCallDuration), 2)
}
