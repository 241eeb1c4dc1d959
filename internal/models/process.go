package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Stage is one checkpoint in the fixed sequence a truck passes through.
type Stage string

const (
	StageGate      Stage = "gate"
	StageLoading   Stage = "loading"
	StageWeighIn   Stage = "weigh_in"
	StageWeighOut  Stage = "weigh_out"
	StageDeparted  Stage = "departed"
	StageDelivered Stage = "delivered"
)

// StageSequence returns the canonical checkpoint order. Gate is initial,
// delivered is terminal.
func StageSequence() []Stage {
	return []Stage{StageGate, StageLoading, StageWeighIn, StageWeighOut, StageDeparted, StageDelivered}
}

// IsValidStage checks if a stage is one of the six checkpoints.
func IsValidStage(stage Stage) bool {
	switch stage {
	case StageGate, StageLoading, StageWeighIn, StageWeighOut, StageDeparted, StageDelivered:
		return true
	default:
		return false
	}
}

// ProcessStatus is the derived aggregate state of a truck process.
type ProcessStatus string

const (
	StatusInProcess ProcessStatus = "in_process"
	StatusDelivered ProcessStatus = "delivered"
	StatusException ProcessStatus = "exception"
)

// StageRecord tracks completion and evidence for one checkpoint of one
// truck process. Exactly six exist per process, created with the process.
type StageRecord struct {
	Stage       Stage      `bson:"stage" json:"stage"`
	Completed   bool       `bson:"completed" json:"completed"`
	Timestamp   *time.Time `bson:"timestamp,omitempty" json:"timestamp,omitempty"`
	Operator    string     `bson:"operator,omitempty" json:"operator,omitempty"`
	RoyaltyCode string     `bson:"royalty_code,omitempty" json:"royalty_code,omitempty"`
	VideoURL    string     `bson:"video_url,omitempty" json:"video_url,omitempty"`
	GrossWeight float64    `bson:"gross_weight,omitempty" json:"gross_weight,omitempty"`
	NetWeight   float64    `bson:"net_weight,omitempty" json:"net_weight,omitempty"`
	Media       []string   `bson:"media,omitempty" json:"media,omitempty"`
	Notes       string     `bson:"notes,omitempty" json:"notes,omitempty"`
}

// TruckProcess is one truck-trip instance moving through the checkpoints.
// Revision guards concurrent writers: every persisted update matches on
// the current revision and increments it.
type TruckProcess struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TruckNo               string             `bson:"truck_no" json:"truck_no"`
	DispatchID            string             `bson:"dispatch_id" json:"dispatch_id"`
	OrderNo               string             `bson:"order_no,omitempty" json:"order_no,omitempty"`
	IsRoyalty             bool               `bson:"is_royalty" json:"is_royalty"`
	CurrentStage          Stage              `bson:"current_stage" json:"current_stage"`
	Status                ProcessStatus      `bson:"status" json:"status"`
	DriverID              string             `bson:"driver_id,omitempty" json:"driver_id,omitempty"`
	Stages                []StageRecord      `bson:"stages" json:"stages"`
	StartTime             time.Time          `bson:"start_time" json:"start_time"`
	EstimatedDeliveryTime *time.Time         `bson:"estimated_delivery_time,omitempty" json:"estimated_delivery_time,omitempty"`
	ActualDeliveryTime    *time.Time         `bson:"actual_delivery_time,omitempty" json:"actual_delivery_time,omitempty"`
	Revision              int64              `bson:"revision" json:"revision"`
	CreatedAt             time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt             time.Time          `bson:"updated_at" json:"updated_at"`
}

// NewTruckProcess builds a process at the gate with all six stage records
// pre-populated incomplete.
func NewTruckProcess(truckNo, dispatchID string, isRoyalty bool) TruckProcess {
	now := time.Now()
	seq := StageSequence()
	stages := make([]StageRecord, 0, len(seq))
	for _, s := range seq {
		stages = append(stages, StageRecord{Stage: s})
	}
	return TruckProcess{
		TruckNo:      truckNo,
		DispatchID:   dispatchID,
		IsRoyalty:    isRoyalty,
		CurrentStage: StageGate,
		Status:       StatusInProcess,
		Stages:       stages,
		StartTime:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// StageRecordFor returns the record for the given stage, or nil if the
// stage name is unknown.
func (p *TruckProcess) StageRecordFor(stage Stage) *StageRecord {
	for i := range p.Stages {
		if p.Stages[i].Stage == stage {
			return &p.Stages[i]
		}
	}
	return nil
}

// CompletedStages counts completed stage records.
func (p *TruckProcess) CompletedStages() int {
	n := 0
	for i := range p.Stages {
		if p.Stages[i].Completed {
			n++
		}
	}
	return n
}
