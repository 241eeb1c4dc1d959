package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeliveryProof is the evidence captured at the terminal checkpoint.
// The photo is mandatory, the video optional. Exactly one is created per
// delivered process, at the delivered transition.
type DeliveryProof struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProcessID string             `bson:"process_id" json:"process_id"`
	PhotoURL  string             `bson:"photo_url" json:"photo_url"`
	VideoURL  string             `bson:"video_url,omitempty" json:"video_url,omitempty"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
	Location  *Location          `bson:"location,omitempty" json:"location,omitempty"`
	Notes     string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
