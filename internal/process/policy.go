package process

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mineflow/fleet-dispatch/internal/models"
)

// Evidence is the payload submitted with a stage-completion attempt.
// Which fields are mandatory depends on the stage and on the process's
// royalty classification.
type Evidence struct {
	RoyaltyCode string
	VideoURL    string
	GrossWeight *float64
	NetWeight   *float64
	PhotoURL    string
	Operator    string
	Media       []string
	Notes       string
}

// CodeDirectory answers whether a royalty code already appears on a
// completed stage record anywhere in the system. The stage being
// validated is always incomplete, so the lookup never matches itself;
// a code reused at a later stage of the same process is a duplicate
// just like one reused across processes.
type CodeDirectory interface {
	CodeInUse(ctx context.Context, code string) (bool, error)
}

// RoyaltyAuthority reports whether a royalty code is expired at a given
// instant. The code format and issuing authority are external; the
// default implementation accepts every well-formed code.
type RoyaltyAuthority interface {
	Expired(ctx context.Context, code string, at time.Time) (bool, error)
}

// AcceptAllAuthority treats every code as unexpired. Deployments without
// a government validity feed use this.
type AcceptAllAuthority struct{}

func (AcceptAllAuthority) Expired(ctx context.Context, code string, at time.Time) (bool, error) {
	return false, nil
}

// DefaultMaxNetWeightTonnes bounds a plausible net weight for a single
// quarry truck load.
const DefaultMaxNetWeightTonnes = 60.0

var royaltyCodePattern = regexp.MustCompile(`^[A-Z0-9-]{6,24}$`)

// Engine decides which evidence is mandatory for a (royalty, stage)
// pair and validates submitted payloads against that policy.
type Engine struct {
	Codes        CodeDirectory
	Authority    RoyaltyAuthority
	MaxNetWeight float64
}

// NewEngine builds a policy engine with the default authority and
// weight ceiling.
func NewEngine(codes CodeDirectory) *Engine {
	return &Engine{
		Codes:        codes,
		Authority:    AcceptAllAuthority{},
		MaxNetWeight: DefaultMaxNetWeightTonnes,
	}
}

// Validate checks the payload against the evidence policy for the
// process at the given stage. hasProof reports whether a delivery proof
// already exists for the process; the terminal stage accepts either an
// existing proof or a photo reference in the payload.
//
// A nil return means the stage may be committed with this evidence. A
// *PolicyError return carries the specific reason; collaborator
// failures (duplicate lookup, authority) are returned as-is.
func (e *Engine) Validate(ctx context.Context, p *models.TruckProcess, stage models.Stage, ev Evidence, hasProof bool) error {
	switch stage {
	case models.StageGate, models.StageLoading:
		if p.IsRoyalty {
			return e.validateRoyaltyCode(ctx, ev.RoyaltyCode)
		}
		if strings.TrimSpace(ev.VideoURL) == "" {
			return &PolicyError{Reason: ReasonMissingVideo, Detail: fmt.Sprintf("non-royalty truck requires video evidence at %s", stage)}
		}
		return nil

	case models.StageWeighIn:
		return e.validateWeight(ev)

	case models.StageWeighOut:
		if err := e.validateWeight(ev); err != nil {
			return err
		}
		if strings.TrimSpace(ev.Operator) == "" {
			return &PolicyError{Reason: ReasonMissingOperator, Detail: "weigh-out requires an operator identifier"}
		}
		return nil

	case models.StageDeparted:
		return nil

	case models.StageDelivered:
		if !hasProof && strings.TrimSpace(ev.PhotoURL) == "" {
			return &PolicyError{Reason: ReasonMissingPhoto, Detail: "delivery requires a photo proof"}
		}
		return nil

	default:
		return &PolicyError{Reason: ReasonMissingPhoto, Detail: fmt.Sprintf("unknown stage %q", stage)}
	}
}

func (e *Engine) validateRoyaltyCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return &PolicyError{Reason: ReasonMissingRoyaltyCode, Detail: "royalty truck requires a royalty code"}
	}
	if !royaltyCodePattern.MatchString(code) {
		return &PolicyError{Reason: ReasonInvalidRoyaltyCode, Detail: fmt.Sprintf("royalty code %q is malformed", code)}
	}
	if e.Authority != nil {
		expired, err := e.Authority.Expired(ctx, code, time.Now())
		if err != nil {
			return fmt.Errorf("royalty authority lookup: %w", err)
		}
		if expired {
			return &PolicyError{Reason: ReasonExpiredRoyaltyCode, Detail: fmt.Sprintf("royalty code %q is expired", code)}
		}
	}
	if e.Codes != nil {
		inUse, err := e.Codes.CodeInUse(ctx, code)
		if err != nil {
			return fmt.Errorf("royalty code lookup: %w", err)
		}
		if inUse {
			return &PolicyError{Reason: ReasonDuplicateRoyaltyCode, Detail: fmt.Sprintf("royalty code %q already used on another process", code)}
		}
	}
	return nil
}

func (e *Engine) validateWeight(ev Evidence) error {
	if ev.NetWeight == nil {
		return &PolicyError{Reason: ReasonMissingWeight, Detail: "a numeric weight entry is required"}
	}
	max := e.MaxNetWeight
	if max <= 0 {
		max = DefaultMaxNetWeightTonnes
	}
	if *ev.NetWeight <= 0 || *ev.NetWeight > max {
		return &PolicyError{Reason: ReasonAbnormalWeight, Detail: fmt.Sprintf("net weight %.2ft outside plausible range (0, %.2ft]", *ev.NetWeight, max)}
	}
	return nil
}
