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

// ExceptionFilter narrows exception queries. Zero-valued fields are
// ignored.
type ExceptionFilter struct {
	ProcessID string
	TruckNo   string
	Status    models.ExceptionStatus
	Severity  models.Severity
	Limit     int64
}

// ExceptionCollection defines the interface for exception database
// operations.
type ExceptionCollection interface {
	UpsertOpenException(ctx context.Context, exc models.Exception) (*models.Exception, error)
	FindExceptionByID(ctx context.Context, id string) (*models.Exception, error)
	FindExceptions(ctx context.Context, filter ExceptionFilter) ([]models.Exception, error)
	OpenExceptionCount(ctx context.Context, processID string) (int64, error)
	ResolveException(ctx context.Context, id, resolvedBy string) (*models.Exception, error)
}

// MongoExceptionCollection implements ExceptionCollection for MongoDB.
type MongoExceptionCollection struct {
	Collection *mongo.Collection
}

// UpsertOpenException records an exception. If an open exception with
// the same (process, stage, issue) already exists its count is bumped
// instead of inserting a duplicate row.
func (c *MongoExceptionCollection) UpsertOpenException(ctx context.Context, exc models.Exception) (*models.Exception, error) {
	now := time.Now()
	filter := bson.M{
		"process_id": exc.ProcessID,
		"stage":      exc.Stage,
		"issue":      exc.Issue,
		"status":     models.ExceptionOpen,
	}
	update := bson.M{
		"$inc": bson.M{"count": 1},
		"$set": bson.M{
			"detail":     exc.Detail,
			"severity":   exc.Severity,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"truck_no":    exc.TruckNo,
			"dispatch_id": exc.DispatchID,
			"created_at":  now,
		},
	}
	var saved models.Exception
	err := c.Collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&saved)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// FindExceptionByID finds an exception by its ID.
func (c *MongoExceptionCollection) FindExceptionByID(ctx context.Context, id string) (*models.Exception, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid exception ID: %w", err)
	}
	var exc models.Exception
	err = c.Collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&exc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &exc, nil
}

// FindExceptions queries exception records, newest first.
func (c *MongoExceptionCollection) FindExceptions(ctx context.Context, filter ExceptionFilter) ([]models.Exception, error) {
	query := bson.M{}
	if filter.ProcessID != "" {
		query["process_id"] = filter.ProcessID
	}
	if filter.TruckNo != "" {
		query["truck_no"] = filter.TruckNo
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Severity != "" {
		query["severity"] = filter.Severity
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	cursor, err := c.Collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var exceptions []models.Exception
	if err := cursor.All(ctx, &exceptions); err != nil {
		return nil, err
	}
	return exceptions, nil
}

// OpenExceptionCount counts open exceptions for a process.
func (c *MongoExceptionCollection) OpenExceptionCount(ctx context.Context, processID string) (int64, error) {
	return c.Collection.CountDocuments(ctx, bson.M{
		"process_id": processID,
		"status":     models.ExceptionOpen,
	})
}

// ResolveException flips an exception from open to resolved. Resolving
// an already-resolved exception is a no-op; the exception is returned
// either way. Nothing else is touched: the owning process keeps its
// stage pointer, status and stage records.
func (c *MongoExceptionCollection) ResolveException(ctx context.Context, id, resolvedBy string) (*models.Exception, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid exception ID: %w", err)
	}
	now := time.Now()
	var resolved models.Exception
	err = c.Collection.FindOneAndUpdate(ctx,
		bson.M{"_id": objectID, "status": models.ExceptionOpen},
		bson.M{"$set": bson.M{
			"status":      models.ExceptionResolved,
			"resolved_by": resolvedBy,
			"resolved_at": now,
			"updated_at":  now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&resolved)
	if err == nil {
		return &resolved, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}
	// Already resolved, or missing entirely.
	return c.FindExceptionByID(ctx, id)
}
