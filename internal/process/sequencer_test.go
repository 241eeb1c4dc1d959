package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mineflow/fleet-dispatch/internal/models"
)

func TestNextStage(t *testing.T) {
	next, ok := NextStage(models.StageGate)
	assert.True(t, ok)
	assert.Equal(t, models.StageLoading, next)

	next, ok = NextStage(models.StageDeparted)
	assert.True(t, ok)
	assert.Equal(t, models.StageDelivered, next)

	// Terminal stage has no successor
	_, ok = NextStage(models.StageDelivered)
	assert.False(t, ok)

	_, ok = NextStage(models.Stage("bogus"))
	assert.False(t, ok)
}

func TestProgress(t *testing.T) {
	p := models.NewTruckProcess("MH12AB1234", "DSP-001", false)
	assert.Equal(t, 0.0, Progress(&p))

	p.Stages[0].Completed = true
	p.Stages[1].Completed = true
	p.Stages[2].Completed = true
	assert.Equal(t, 50.0, Progress(&p))

	for i := range p.Stages {
		p.Stages[i].Completed = true
	}
	assert.Equal(t, 100.0, Progress(&p))

	empty := models.TruckProcess{}
	assert.Equal(t, 0.0, Progress(&empty))
}

func TestDeriveStatus(t *testing.T) {
	p := models.NewTruckProcess("MH12AB1234", "DSP-001", false)

	assert.Equal(t, models.StatusInProcess, DeriveStatus(&p, 0, false))

	// Open exceptions dominate everything else
	assert.Equal(t, models.StatusException, DeriveStatus(&p, 1, true))

	for i := range p.Stages {
		p.Stages[i].Completed = true
	}
	// All stages complete but no proof: still in process
	assert.Equal(t, models.StatusInProcess, DeriveStatus(&p, 0, false))
	assert.Equal(t, models.StatusDelivered, DeriveStatus(&p, 0, true))
	assert.Equal(t, models.StatusException, DeriveStatus(&p, 1, true))
}

func TestValidateAdvance(t *testing.T) {
	p := models.NewTruckProcess("MH12AB1234", "DSP-001", false)

	// Gate is the current stage with no predecessor
	assert.NoError(t, ValidateAdvance(&p, models.StageGate))

	// Skipping ahead is rejected
	err := ValidateAdvance(&p, models.StageLoading)
	seqErr, ok := AsSequenceError(err)
	require.True(t, ok)
	assert.Contains(t, seqErr.Detail, "loading")

	err = ValidateAdvance(&p, models.StageDelivered)
	_, ok = AsSequenceError(err)
	assert.True(t, ok)

	// Unknown stage names never pass
	err = ValidateAdvance(&p, models.Stage("weighbridge"))
	_, ok = AsSequenceError(err)
	assert.True(t, ok)

	// After completing gate, loading becomes legal and gate is rejected
	p.Stages[0].Completed = true
	p.CurrentStage = models.StageLoading
	assert.NoError(t, ValidateAdvance(&p, models.StageLoading))

	err = ValidateAdvance(&p, models.StageGate)
	seqErr, ok = AsSequenceError(err)
	require.True(t, ok)
	assert.Contains(t, seqErr.Detail, "already completed")
}

func TestValidateAdvance_PredecessorGap(t *testing.T) {
	p := models.NewTruckProcess("MH12AB1234", "DSP-001", false)

	// Pointer forced forward with an incomplete predecessor must still
	// be rejected.
	p.CurrentStage = models.StageWeighIn
	err := ValidateAdvance(&p, models.StageWeighIn)
	seqErr, ok := AsSequenceError(err)
	require.True(t, ok)
	assert.Contains(t, seqErr.Detail, "before")
}

func TestAdvancePointer(t *testing.T) {
	p := models.NewTruckProcess("MH12AB1234", "DSP-001", false)

	advancePointer(&p, models.StageGate)
	assert.Equal(t, models.StageLoading, p.CurrentStage)

	// The pointer never regresses
	p.CurrentStage = models.StageWeighOut
	advancePointer(&p, models.StageGate)
	assert.Equal(t, models.StageWeighOut, p.CurrentStage)

	// Terminal stage pins the pointer
	advancePointer(&p, models.StageDelivered)
	assert.Equal(t, models.StageDelivered, p.CurrentStage)
	advancePointer(&p, models.StageDelivered)
	assert.Equal(t, models.StageDelivered, p.CurrentStage)
}
