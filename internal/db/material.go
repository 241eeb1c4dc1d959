package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mineflow/fleet-dispatch/internal/models"
)

// MaterialCollection defines the interface for material database
// operations.
type MaterialCollection interface {
	InsertMaterial(ctx context.Context, material models.Material) (*models.Material, error)
	FindMaterialByID(ctx context.Context, id string) (*models.Material, error)
	FindMaterials(ctx context.Context, activeOnly bool) ([]models.Material, error)
	UpdateMaterial(ctx context.Context, id string, material models.Material) error
}

// MongoMaterialCollection implements MaterialCollection for MongoDB.
type MongoMaterialCollection struct {
	Collection *mongo.Collection
}

// InsertMaterial inserts a material record.
func (c *MongoMaterialCollection) InsertMaterial(ctx context.Context, material models.Material) (*models.Material, error) {
	now := time.Now()
	material.CreatedAt = now
	material.UpdatedAt = now
	res, err := c.Collection.InsertOne(ctx, material)
	if err != nil {
		return nil, err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		material.ID = oid
	}
	return &material, nil
}

// FindMaterialByID finds a material by its ID.
func (c *MongoMaterialCollection) FindMaterialByID(ctx context.Context, id string) (*models.Material, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid material ID: %w", err)
	}
	var material models.Material
	err = c.Collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&material)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &material, nil
}

// FindMaterials lists materials sorted by code.
func (c *MongoMaterialCollection) FindMaterials(ctx context.Context, activeOnly bool) ([]models.Material, error) {
	query := bson.M{}
	if activeOnly {
		query["active"] = true
	}
	cursor, err := c.Collection.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var materials []models.Material
	if err := cursor.All(ctx, &materials); err != nil {
		return nil, err
	}
	return materials, nil
}

// UpdateMaterial updates a material by its ID.
func (c *MongoMaterialCollection) UpdateMaterial(ctx context.Context, id string, material models.Material) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid material ID: %w", err)
	}
	material.ID = objectID
	material.UpdatedAt = time.Now()
	res, err := c.Collection.ReplaceOne(ctx, bson.M{"_id": objectID}, material)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
