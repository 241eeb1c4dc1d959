package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mineflow/fleet-dispatch/internal/models"
)

// ProcessFilter narrows truck-process queries. Zero-valued fields are
// ignored.
type ProcessFilter struct {
	Statuses       []models.ProcessStatus
	DriverID       string
	Query          string // substring match on truck_no or dispatch_id
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	DeliveredSince *time.Time
	Limit          int64
}

// ProcessCollection defines the interface for truck-process database
// operations. Guarded updates and driver assignment carry the
// serialization discipline the core relies on.
type ProcessCollection interface {
	InsertProcess(ctx context.Context, p models.TruckProcess) (*models.TruckProcess, error)
	FindProcessByID(ctx context.Context, id string) (*models.TruckProcess, error)
	FindProcesses(ctx context.Context, filter ProcessFilter) ([]models.TruckProcess, error)
	UpdateProcessGuarded(ctx context.Context, p *models.TruckProcess) error
	AssignDriver(ctx context.Context, processID, driverID string) (*models.TruckProcess, error)
	UnassignDriver(ctx context.Context, processID string) (*models.TruckProcess, error)
	CodeInUse(ctx context.Context, code string) (bool, error)
	CountByStatus(ctx context.Context) (map[models.ProcessStatus]int64, error)
}

// MongoProcessCollection implements ProcessCollection for MongoDB.
type MongoProcessCollection struct {
	Collection *mongo.Collection
}

// InsertProcess inserts a truck process and returns it with its
// assigned id.
func (c *MongoProcessCollection) InsertProcess(ctx context.Context, p models.TruckProcess) (*models.TruckProcess, error) {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	res, err := c.Collection.InsertOne(ctx, p)
	if err != nil {
		return nil, err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		p.ID = oid
	}
	return &p, nil
}

// FindProcessByID finds a truck process by its ID.
func (c *MongoProcessCollection) FindProcessByID(ctx context.Context, id string) (*models.TruckProcess, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid process ID: %w", err)
	}
	var p models.TruckProcess
	err = c.Collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&p)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// FindProcesses queries truck processes, newest first.
func (c *MongoProcessCollection) FindProcesses(ctx context.Context, filter ProcessFilter) ([]models.TruckProcess, error) {
	query := bson.M{}
	if len(filter.Statuses) > 0 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}
	if filter.DriverID != "" {
		query["driver_id"] = filter.DriverID
	}
	if filter.Query != "" {
		escaped := escapeRegex(filter.Query)
		query["$or"] = bson.A{
			bson.M{"truck_no": bson.M{"$regex": escaped, "$options": "i"}},
			bson.M{"dispatch_id": bson.M{"$regex": escaped, "$options": "i"}},
		}
	}
	if filter.CreatedFrom != nil || filter.CreatedTo != nil {
		created := bson.M{}
		if filter.CreatedFrom != nil {
			created["$gte"] = *filter.CreatedFrom
		}
		if filter.CreatedTo != nil {
			created["$lte"] = *filter.CreatedTo
		}
		query["created_at"] = created
	}
	if filter.DeliveredSince != nil {
		query["actual_delivery_time"] = bson.M{"$gte": *filter.DeliveredSince}
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

	var processes []models.TruckProcess
	if err := cursor.All(ctx, &processes); err != nil {
		return nil, err
	}
	return processes, nil
}

// UpdateProcessGuarded replaces a process document only if its stored
// revision still matches the one the caller read. On success the
// in-memory process carries the bumped revision; a lost race returns
// ErrConflict with no mutation.
func (c *MongoProcessCollection) UpdateProcessGuarded(ctx context.Context, p *models.TruckProcess) error {
	p.UpdatedAt = time.Now()
	next := *p
	next.Revision = p.Revision + 1

	res, err := c.Collection.ReplaceOne(ctx, bson.M{"_id": p.ID, "revision": p.Revision}, next)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Distinguish a missing record from a lost race.
		count, err := c.Collection.CountDocuments(ctx, bson.M{"_id": p.ID})
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	p.Revision = next.Revision
	return nil
}

// AssignDriver atomically clears the driver from any other in-process
// truck process and sets it on the target. Runs in a session
// transaction; on deployments without transaction support it falls back
// to unassign-first ordering, whose partial-failure mode leaves the
// driver unassigned everywhere.
func (c *MongoProcessCollection) AssignDriver(ctx context.Context, processID, driverID string) (*models.TruckProcess, error) {
	objectID, err := primitive.ObjectIDFromHex(processID)
	if err != nil {
		return nil, fmt.Errorf("invalid process ID: %w", err)
	}

	session, err := c.Collection.Database().Client().StartSession()
	if err == nil {
		defer session.EndSession(ctx)
		result, txnErr := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
			return c.assignDriverSteps(sc, objectID, driverID)
		})
		if txnErr == nil {
			return result.(*models.TruckProcess), nil
		}
		if !transactionsUnsupported(txnErr) {
			return nil, txnErr
		}
	}

	// Standalone server: sequential steps, unassign first.
	return c.assignDriverSteps(ctx, objectID, driverID)
}

func (c *MongoProcessCollection) assignDriverSteps(ctx context.Context, processID primitive.ObjectID, driverID string) (*models.TruckProcess, error) {
	now := time.Now()
	_, err := c.Collection.UpdateMany(ctx,
		bson.M{
			"driver_id": driverID,
			"status":    models.StatusInProcess,
			"_id":       bson.M{"$ne": processID},
		},
		bson.M{
			"$unset": bson.M{"driver_id": ""},
			"$set":   bson.M{"updated_at": now},
			"$inc":   bson.M{"revision": 1},
		},
	)
	if err != nil {
		return nil, err
	}

	var updated models.TruckProcess
	err = c.Collection.FindOneAndUpdate(ctx,
		bson.M{"_id": processID},
		bson.M{
			"$set": bson.M{"driver_id": driverID, "updated_at": now},
			"$inc": bson.M{"revision": 1},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

// UnassignDriver clears the driver reference unconditionally. Idempotent.
func (c *MongoProcessCollection) UnassignDriver(ctx context.Context, processID string) (*models.TruckProcess, error) {
	objectID, err := primitive.ObjectIDFromHex(processID)
	if err != nil {
		return nil, fmt.Errorf("invalid process ID: %w", err)
	}
	var updated models.TruckProcess
	err = c.Collection.FindOneAndUpdate(ctx,
		bson.M{"_id": objectID},
		bson.M{
			"$unset": bson.M{"driver_id": ""},
			"$set":   bson.M{"updated_at": time.Now()},
			"$inc":   bson.M{"revision": 1},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

// CodeInUse reports whether a royalty code appears on any completed
// stage record in the system.
func (c *MongoProcessCollection) CodeInUse(ctx context.Context, code string) (bool, error) {
	count, err := c.Collection.CountDocuments(ctx, bson.M{
		"stages": bson.M{"$elemMatch": bson.M{"royalty_code": code, "completed": true}},
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountByStatus tallies processes per aggregate status.
func (c *MongoProcessCollection) CountByStatus(ctx context.Context) (map[models.ProcessStatus]int64, error) {
	cursor, err := c.Collection.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status models.ProcessStatus `bson:"_id"`
		Count  int64                `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	counts := make(map[models.ProcessStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// transactionsUnsupported recognizes the server error raised when
// multi-document transactions are attempted on a standalone server.
func transactionsUnsupported(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == 20 {
		return true
	}
	return strings.Contains(err.Error(), "Transaction numbers are only allowed")
}

func escapeRegex(s string) string {
	special := `\.+*?()|[]{}^$`
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
