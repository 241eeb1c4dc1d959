package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Issue categorizes what went wrong at a checkpoint.
type Issue string

const (
	IssueDuplicatePass  Issue = "duplicate_pass"
	IssueExpiredPass    Issue = "expired_pass"
	IssueMissingPass    Issue = "missing_pass"
	IssueMissingMedia   Issue = "missing_media"
	IssueAbnormalWeight Issue = "abnormal_weight"
	IssueOther          Issue = "other"
)

// Severity ranks how urgently an exception needs operator attention.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ExceptionStatus is the lifecycle state of an exception. Exceptions are
// closed only by explicit operator action, never automatically.
type ExceptionStatus string

const (
	ExceptionOpen     ExceptionStatus = "open"
	ExceptionResolved ExceptionStatus = "resolved"
)

// Exception records a policy violation or anomaly blocking a truck
// process. Count tracks repeated occurrences of the same issue at the
// same stage so retries do not spam duplicate rows.
type Exception struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProcessID  string             `bson:"process_id" json:"process_id"`
	TruckNo    string             `bson:"truck_no" json:"truck_no"`
	DispatchID string             `bson:"dispatch_id" json:"dispatch_id"`
	Stage      Stage              `bson:"stage" json:"stage"`
	Issue      Issue              `bson:"issue" json:"issue"`
	Detail     string             `bson:"detail,omitempty" json:"detail,omitempty"`
	Severity   Severity           `bson:"severity" json:"severity"`
	Status     ExceptionStatus    `bson:"status" json:"status"`
	Count      int                `bson:"count" json:"count"`
	ResolvedBy string             `bson:"resolved_by,omitempty" json:"resolved_by,omitempty"`
	ResolvedAt *time.Time         `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}
