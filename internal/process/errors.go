package process

import (
	"errors"
	"fmt"
)

var (
	// ErrBlocked rejects forward progress on a process with open
	// exceptions. The operator must resolve them and resubmit evidence.
	ErrBlocked = errors.New("process has open exceptions")

	// ErrTerminal rejects mutations of a delivered process.
	ErrTerminal = errors.New("process is already delivered")

	// ErrInvalidInput marks caller mistakes in request payloads.
	ErrInvalidInput = errors.New("invalid input")
)

// SequenceError rejects a stage-completion attempt made out of order or
// against an already-completed stage. No state is mutated.
type SequenceError struct {
	Detail string
}

func (e *SequenceError) Error() string {
	return "sequence violation: " + e.Detail
}

// Reason identifies which evidence requirement a stage-completion
// payload failed.
type Reason string

const (
	ReasonMissingRoyaltyCode   Reason = "missing_royalty_code"
	ReasonInvalidRoyaltyCode   Reason = "invalid_royalty_code"
	ReasonDuplicateRoyaltyCode Reason = "duplicate_royalty_code"
	ReasonExpiredRoyaltyCode   Reason = "expired_royalty_code"
	ReasonMissingVideo         Reason = "missing_video"
	ReasonMissingWeight        Reason = "missing_weight"
	ReasonAbnormalWeight       Reason = "abnormal_weight"
	ReasonMissingOperator      Reason = "missing_operator"
	ReasonMissingPhoto         Reason = "missing_photo"
)

// PolicyError is a recoverable rejection of a stage-completion payload.
// It is surfaced to the caller and classified into an Exception record.
type PolicyError struct {
	Reason Reason
	Detail string
}

func (e *PolicyError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("policy violation: %s", e.Reason)
	}
	return fmt.Sprintf("policy violation: %s: %s", e.Reason, e.Detail)
}

// AsPolicyError unwraps err into a PolicyError if it is one.
func AsPolicyError(err error) (*PolicyError, bool) {
	var pe *PolicyError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// AsSequenceError unwraps err into a SequenceError if it is one.
func AsSequenceError(err error) (*SequenceError, bool) {
	var se *SequenceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
