package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStageFailure(t *testing.T) {
	t.Parallel()
	require.Equal(t, ProofFailed, StageSubmitting.failure())
	require.Equal(t, TimedOut, StagePolling.failure())
	require.Equal(t, AttestationFailed, StageAttesting.failure())
	require.Equal(t, SettlementFailed, StageSettling.failure())
}

func TestStageTerminal(t *testing.T) {
	t.Parallel()
	for _, kind := range []Kind{Succeeded, TimedOut, ProofFailed, AttestationFailed, SettlementFailed} {
		require.True(t, Stage(kind).Terminal(), kind)
	}
	for _, stage := range []Stage{StagePending, StageSubmitting, StagePolling, StageAttesting, StageSettling} {
		require.False(t, stage.Terminal(), stage)
	}
}
