package process

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mineflow/fleet-dispatch/internal/models"
)

func TestClassify(t *testing.T) {
	p := models.NewTruckProcess("CG04XY9001", "DSP-042", true)

	tests := []struct {
		reason   Reason
		issue    models.Issue
		severity models.Severity
	}{
		{ReasonDuplicateRoyaltyCode, models.IssueDuplicatePass, models.SeverityHigh},
		{ReasonExpiredRoyaltyCode, models.IssueExpiredPass, models.SeverityHigh},
		{ReasonMissingRoyaltyCode, models.IssueMissingPass, models.SeverityMedium},
		{ReasonInvalidRoyaltyCode, models.IssueMissingPass, models.SeverityMedium},
		{ReasonMissingVideo, models.IssueMissingMedia, models.SeverityMedium},
		{ReasonMissingPhoto, models.IssueMissingMedia, models.SeverityMedium},
		{ReasonAbnormalWeight, models.IssueAbnormalWeight, models.SeverityHigh},
		{ReasonMissingWeight, models.IssueOther, models.SeverityLow},
		{ReasonMissingOperator, models.IssueOther, models.SeverityLow},
		{Reason("something_new"), models.IssueOther, models.SeverityLow},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			exc := Classify(&p, models.StageGate, &PolicyError{Reason: tt.reason, Detail: "detail"})
			assert.Equal(t, tt.issue, exc.Issue)
			assert.Equal(t, tt.severity, exc.Severity)
			assert.Equal(t, models.ExceptionOpen, exc.Status)
			assert.Equal(t, 1, exc.Count)
		})
	}
}

func TestClassify_CarriesProcessIdentity(t *testing.T) {
	p := models.NewTruckProcess("CG04XY9001", "DSP-042", true)

	exc := Classify(&p, models.StageLoading, &PolicyError{Reason: ReasonDuplicateRoyaltyCode, Detail: "code reused"})
	assert.Equal(t, p.ID.Hex(), exc.ProcessID)
	assert.Equal(t, "CG04XY9001", exc.TruckNo)
	assert.Equal(t, "DSP-042", exc.DispatchID)
	assert.Equal(t, models.StageLoading, exc.Stage)
	assert.Equal(t, "code reused", exc.Detail)
	assert.NotZero(t, exc.CreatedAt)
}
