package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mineflow/fleet-dispatch/internal/models"
)

// ProofCollection defines the interface for delivery-proof database
// operations.
type ProofCollection interface {
	InsertProof(ctx context.Context, proof models.DeliveryProof) (*models.DeliveryProof, error)
	FindProofByProcess(ctx context.Context, processID string) (*models.DeliveryProof, error)
	HasProof(ctx context.Context, processID string) (bool, error)
}

// MongoProofCollection implements ProofCollection for MongoDB.
type MongoProofCollection struct {
	Collection *mongo.Collection
}

// InsertProof inserts a delivery proof record.
func (c *MongoProofCollection) InsertProof(ctx context.Context, proof models.DeliveryProof) (*models.DeliveryProof, error) {
	proof.CreatedAt = time.Now()
	res, err := c.Collection.InsertOne(ctx, proof)
	if err != nil {
		return nil, err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		proof.ID = oid
	}
	return &proof, nil
}

// FindProofByProcess returns the most recent proof for a process.
func (c *MongoProofCollection) FindProofByProcess(ctx context.Context, processID string) (*models.DeliveryProof, error) {
	var proof models.DeliveryProof
	err := c.Collection.FindOne(ctx,
		bson.M{"process_id": processID},
		options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}}),
	).Decode(&proof)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &proof, nil
}

// HasProof reports whether any proof exists for a process.
func (c *MongoProofCollection) HasProof(ctx context.Context, processID string) (bool, error) {
	count, err := c.Collection.CountDocuments(ctx, bson.M{"process_id": processID})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
