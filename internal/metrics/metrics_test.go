package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(protocolErrorsTotal.WithLabelValues("2", "Exploring", "Start"))
	RecordProtocolError(2, "Exploring", "Start")
	after := testutil.ToFloat64(protocolErrorsTotal.WithLabelValues("2", "Exploring", "Start"))
	assert.Equal(t, before+1, after)

	RecordTransition(1, "WaitingForCommand", "LookingForEntry")
	assert.GreaterOrEqual(t, testutil.ToFloat64(transitionsTotal.WithLabelValues("1", "WaitingForCommand", "LookingForEntry")), 1.0)

	RecordFailure(1, "Timeout")
	assert.GreaterOrEqual(t, testutil.ToFloat64(failuresTotal.WithLabelValues("1", "Timeout")), 1.0)
}

func TestMissionActive(t *testing.T) {
	SetMissionActive(3, true)
	assert.Equal(t, 1.0, testutil.ToFloat64(missionActive.WithLabelValues("3")))
	SetMissionActive(3, false)
	assert.Equal(t, 0.0, testutil.ToFloat64(missionActive.WithLabelValues("3")))
}

func TestObserveExternalCall(t *testing.T) {
	ObserveExternalCall("flight", "takeoff", nil, 150*time.Millisecond)
	ObserveExternalCall("flight", "takeoff", errors.New("boom"), time.Second)
	assert.Equal(t, 2, testutil.CollectAndCount(externalCallDuration, "task_manager_external_call_duration_seconds"))
}
