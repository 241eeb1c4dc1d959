package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Material is a quarry product that can be ordered and dispatched.
type Material struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code      string             `bson:"code" json:"code"`
	Name      string             `bson:"name" json:"name"`
	Category  string             `bson:"category" json:"category"`
	UOM       string             `bson:"uom" json:"uom"`
	Active    bool               `bson:"active" json:"active"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
