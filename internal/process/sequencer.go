package process

import (
	"fmt"

	"github.com/mineflow/fleet-dispatch/internal/models"
)

// stageIndex returns the position of a stage in the canonical sequence,
// or -1 for an unknown stage name.
func stageIndex(stage models.Stage) int {
	for i, s := range models.StageSequence() {
		if s == stage {
			return i
		}
	}
	return -1
}

// NextStage returns the stage after the given one. ok is false at the
// terminal stage.
func NextStage(stage models.Stage) (models.Stage, bool) {
	seq := models.StageSequence()
	idx := stageIndex(stage)
	if idx < 0 || idx >= len(seq)-1 {
		return stage, false
	}
	return seq[idx+1], true
}

// Progress returns the completion percentage of a process, recomputed
// from its stage records on every call.
func Progress(p *models.TruckProcess) float64 {
	if len(p.Stages) == 0 {
		return 0
	}
	return float64(p.CompletedStages()) / float64(len(p.Stages)) * 100
}

// DeriveStatus computes the aggregate process status from stage
// completion, open exceptions and delivery-proof presence. It is the
// only way a status value is ever produced; callers persist its result
// together with the mutation that changed the inputs.
func DeriveStatus(p *models.TruckProcess, openExceptions int, hasProof bool) models.ProcessStatus {
	if openExceptions > 0 {
		return models.StatusException
	}
	if p.CompletedStages() == len(p.Stages) && len(p.Stages) > 0 && hasProof {
		return models.StatusDelivered
	}
	return models.StatusInProcess
}

// ValidateAdvance checks that completing the given stage is legal for
// the process right now: the stage must be the current one, its
// predecessor must be completed (gate has none), and the stage itself
// must not already be completed. Illegal attempts are rejected with a
// SequenceError and no mutation.
func ValidateAdvance(p *models.TruckProcess, stage models.Stage) error {
	idx := stageIndex(stage)
	if idx < 0 {
		return &SequenceError{Detail: fmt.Sprintf("unknown stage %q", stage)}
	}
	rec := p.StageRecordFor(stage)
	if rec == nil {
		return &SequenceError{Detail: fmt.Sprintf("process has no record for stage %q", stage)}
	}
	if rec.Completed {
		return &SequenceError{Detail: fmt.Sprintf("stage %q already completed", stage)}
	}
	if stage != p.CurrentStage {
		return &SequenceError{Detail: fmt.Sprintf("stage %q attempted while current stage is %q", stage, p.CurrentStage)}
	}
	if idx > 0 {
		prev := models.StageSequence()[idx-1]
		if prevRec := p.StageRecordFor(prev); prevRec == nil || !prevRec.Completed {
			return &SequenceError{Detail: fmt.Sprintf("stage %q attempted before %q completed", stage, prev)}
		}
	}
	return nil
}

// advancePointer moves current_stage to the successor of the completed
// stage. The pointer never regresses and stops at the terminal stage.
func advancePointer(p *models.TruckProcess, completed models.Stage) {
	if next, ok := NextStage(completed); ok {
		if stageIndex(next) > stageIndex(p.CurrentStage) {
			p.CurrentStage = next
		}
	} else {
		p.CurrentStage = completed
	}
}
