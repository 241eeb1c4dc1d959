package main

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomTruckNo(t *testing.T) {
	pattern := regexp.MustCompile(`^(MP|CG|JH|OD|BR)\d{2}[A-Z]{2}\d{4}$`)
	for i := 0; i < 50; i++ {
		no := randomTruckNo()
		assert.Regexp(t, pattern, no)
	}
}

func TestRandomRoyaltyCode(t *testing.T) {
	// Must satisfy the server-side royalty code format
	pattern := regexp.MustCompile(`^[A-Z0-9-]{6,24}$`)
	for i := 0; i < 50; i++ {
		code := randomRoyaltyCode()
		assert.Regexp(t, pattern, code)
	}
}

func TestEvidenceFor(t *testing.T) {
	royalty := &truckRun{
		IsRoyalty:    true,
		RoyaltyCodes: map[string]string{"gate": "RTY-TEST-001", "loading": "RTY-TEST-002"},
		DispatchID:   "DSP-1",
		GrossWeight:  40,
		TareWeight:   12,
	}
	plain := &truckRun{IsRoyalty: false, DispatchID: "DSP-2", GrossWeight: 40, TareWeight: 12}

	ev := evidenceFor(royalty, "gate")
	assert.Equal(t, "RTY-TEST-001", ev["royalty_code"])
	assert.NotContains(t, ev, "video_url")

	// Each checkpoint presents its own permit; a repeat would be
	// rejected as a duplicate pass.
	ev = evidenceFor(royalty, "loading")
	assert.Equal(t, "RTY-TEST-002", ev["royalty_code"])
	assert.NotEqual(t, evidenceFor(royalty, "gate")["royalty_code"], ev["royalty_code"])

	ev = evidenceFor(plain, "loading")
	assert.Contains(t, ev, "video_url")
	assert.NotContains(t, ev, "royalty_code")

	ev = evidenceFor(plain, "weigh_in")
	assert.Equal(t, 40.0, ev["gross_weight"])
	assert.Equal(t, 28.0, ev["net_weight"])

	ev = evidenceFor(plain, "departed")
	assert.NotContains(t, ev, "net_weight")
}
