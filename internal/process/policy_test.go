package process

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mineflow/fleet-dispatch/internal/models"
)

type stubDirectory struct {
	inUse map[string]bool
}

func (d *stubDirectory) CodeInUse(ctx context.Context, code string) (bool, error) {
	return d.inUse[code], nil
}

type stubAuthority struct {
	expired map[string]bool
}

func (a *stubAuthority) Expired(ctx context.Context, code string, at time.Time) (bool, error) {
	return a.expired[code], nil
}

func floatPtr(v float64) *float64 { return &v }

func requireReason(t *testing.T, err error, reason Reason) {
	t.Helper()
	pe, ok := AsPolicyError(err)
	require.True(t, ok, "expected a policy violation, got %v", err)
	assert.Equal(t, reason, pe.Reason)
}

func newTestEngine() *Engine {
	return NewEngine(&stubDirectory{inUse: map[string]bool{}})
}

func TestValidate_RoyaltyGate(t *testing.T) {
	engine := newTestEngine()
	p := models.NewTruckProcess("MH12AB1234", "DSP-001", true)

	err := engine.Validate(context.Background(), &p, models.StageGate, Evidence{}, false)
	requireReason(t, err, ReasonMissingRoyaltyCode)

	err = engine.Validate(context.Background(), &p, models.StageGate, Evidence{RoyaltyCode: "ab"}, false)
	requireReason(t, err, ReasonInvalidRoyaltyCode)

	err = engine.Validate(context.Background(), &p, models.StageGate, Evidence{RoyaltyCode: "lowercase-code"}, false)
	requireReason(t, err, ReasonInvalidRoyaltyCode)

	assert.NoError(t, engine.Validate(context.Background(), &p, models.StageGate, Evidence{RoyaltyCode: "RTY-2024-001"}, false))

	// Royalty trucks do not need video
	assert.NoError(t, engine.Validate(context.Background(), &p, models.StageLoading, Evidence{RoyaltyCode: "RTY-2024-002"}, false))
}

func TestValidate_DuplicateRoyaltyCode(t *testing.T) {
	engine := NewEngine(&stubDirectory{inUse: map[string]bool{"RTY-USED-01": true}})
	p := models.NewTruckProcess("MH12AB1234", "DSP-001", true)

	err := engine.Validate(context.Background(), &p, models.StageGate, Evidence{RoyaltyCode: "RTY-USED-01"}, false)
	requireReason(t, err, ReasonDuplicateRoyaltyCode)

	assert.NoError(t, engine.Validate(context.Background(), &p, models.StageGate, Evidence{RoyaltyCode: "RTY-FRESH-1"}, false))
}

func TestValidate_ExpiredRoyaltyCode(t *testing.T) {
	engine := newTestEngine()
	engine.Authority = &stubAuthority{expired: map[string]bool{"RTY-OLD-001": true}}
	p := models.NewTruckProcess("MH12AB1234", "DSP-001", true)

	err := engine.Validate(context.Background(), &p, models.StageGate, Evidence{RoyaltyCode: "RTY-OLD-001"}, false)
	requireReason(t, err, ReasonExpiredRoyaltyCode)
}

func TestValidate_NonRoyaltyNeedsVideo(t *testing.T) {
	engine := newTestEngine()
	p := models.NewTruckProcess("MH12AB1234", "DSP-001", false)

	err := engine.Validate(context.Background(), &p, models.StageGate, Evidence{}, false)
	requireReason(t, err, ReasonMissingVideo)

	// A royalty code on a non-royalty truck does not substitute
	err = engine.Validate(context.Background(), &p, models.StageLoading, Evidence{RoyaltyCode: "RTY-2024-001"}, false)
	requireReason(t, err, ReasonMissingVideo)

	assert.NoError(t, engine.Validate(context.Background(), &p, models.StageGate, Evidence{VideoURL: "https://media/gate.mp4"}, false))
}

func TestValidate_Weights(t *testing.T) {
	engine := newTestEngine()
	p := models.NewTruckProcess("MH12AB1234", "DSP-001", false)

	err := engine.Validate(context.Background(), &p, models.StageWeighIn, Evidence{}, false)
	requireReason(t, err, ReasonMissingWeight)

	err = engine.Validate(context.Background(), &p, models.StageWeighIn, Evidence{NetWeight: floatPtr(0)}, false)
	requireReason(t, err, ReasonAbnormalWeight)

	err = engine.Validate(context.Background(), &p, models.StageWeighIn, Evidence{NetWeight: floatPtr(-3)}, false)
	requireReason(t, err, ReasonAbnormalWeight)

	err = engine.Validate(context.Background(), &p, models.StageWeighIn, Evidence{NetWeight: floatPtr(61)}, false)
	requireReason(t, err, ReasonAbnormalWeight)

	assert.NoError(t, engine.Validate(context.Background(), &p, models.StageWeighIn, Evidence{NetWeight: floatPtr(32.5)}, false))
	assert.NoError(t, engine.Validate(context.Background(), &p, models.StageWeighIn, Evidence{NetWeight: floatPtr(60)}, false))
}

func TestValidate_WeightCeilingOverride(t *testing.T) {
	engine := newTestEngine()
	engine.MaxNetWeight = 40

	p := models.NewTruckProcess("MH12AB1234", "DSP-001", false)
	err := engine.Validate(context.Background(), &p, models.StageWeighIn, Evidence{NetWeight: floatPtr(45)}, false)
	requireReason(t, err, ReasonAbnormalWeight)
	assert.NoError(t, engine.Validate(context.Background(), &p, models.StageWeighIn, Evidence{NetWeight: floatPtr(39)}, false))
}

func TestValidate_WeighOutNeedsOperator(t *testing.T) {
	engine := newTestEngine()
	p := models.NewTruckProcess("MH12AB1234", "DSP-001", false)

	err := engine.Validate(context.Background(), &p, models.StageWeighOut, Evidence{NetWeight: floatPtr(22)}, false)
	requireReason(t, err, ReasonMissingOperator)

	assert.NoError(t, engine.Validate(context.Background(), &p, models.StageWeighOut, Evidence{NetWeight: floatPtr(22), Operator: "op-7"}, false))
}

func TestValidate_Departed(t *testing.T) {
	engine := newTestEngine()
	p := models.NewTruckProcess("MH12AB1234", "DSP-001", true)

	// Departure has no evidence requirement
	assert.NoError(t, engine.Validate(context.Background(), &p, models.StageDeparted, Evidence{}, false))
}

func TestValidate_DeliveredNeedsProof(t *testing.T) {
	engine := newTestEngine()
	p := models.NewTruckProcess("MH12AB1234", "DSP-001", false)

	err := engine.Validate(context.Background(), &p, models.StageDelivered, Evidence{}, false)
	requireReason(t, err, ReasonMissingPhoto)

	// Either an uploaded proof or a photo reference in the payload works
	assert.NoError(t, engine.Validate(context.Background(), &p, models.StageDelivered, Evidence{}, true))
	assert.NoError(t, engine.Validate(context.Background(), &p, models.StageDelivered, Evidence{PhotoURL: "mineflow_media/p1/photo.jpg"}, false))
}
