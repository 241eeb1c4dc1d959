package process

import (
	"time"

	"github.com/mineflow/fleet-dispatch/internal/models"
)

// Classify maps a policy violation at a stage of a process into a
// categorized, severity-ranked exception record. The record starts open
// with count 1; the exception store folds it into an already-open
// exception for the same (process, stage, issue) instead of inserting a
// duplicate. Classification never resolves anything: exceptions are
// closed only by explicit operator action.
func Classify(p *models.TruckProcess, stage models.Stage, violation *PolicyError) models.Exception {
	issue, severity := categorize(violation.Reason)
	now := time.Now()
	return models.Exception{
		ProcessID:  p.ID.Hex(),
		TruckNo:    p.TruckNo,
		DispatchID: p.DispatchID,
		Stage:      stage,
		Issue:      issue,
		Detail:     violation.Detail,
		Severity:   severity,
		Status:     models.ExceptionOpen,
		Count:      1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func categorize(reason Reason) (models.Issue, models.Severity) {
	switch reason {
	case ReasonDuplicateRoyaltyCode:
		return models.IssueDuplicatePass, models.SeverityHigh
	case ReasonExpiredRoyaltyCode:
		return models.IssueExpiredPass, models.SeverityHigh
	case ReasonMissingRoyaltyCode, ReasonInvalidRoyaltyCode:
		return models.IssueMissingPass, models.SeverityMedium
	case ReasonMissingVideo, ReasonMissingPhoto:
		return models.IssueMissingMedia, models.SeverityMedium
	case ReasonAbnormalWeight:
		return models.IssueAbnormalWeight, models.SeverityHigh
	default:
		return models.IssueOther, models.SeverityLow
	}
}
