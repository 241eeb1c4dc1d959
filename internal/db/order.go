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

// OrderCollection defines the interface for order database operations.
type OrderCollection interface {
	InsertOrder(ctx context.Context, order models.Order) (*models.Order, error)
	FindOrderByID(ctx context.Context, id string) (*models.Order, error)
	FindOrderByNo(ctx context.Context, orderNo string) (*models.Order, error)
	FindOrders(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
	UpdateOrder(ctx context.Context, id string, order models.Order) error
}

// MongoOrderCollection implements OrderCollection for MongoDB.
type MongoOrderCollection struct {
	Collection *mongo.Collection
}

// InsertOrder inserts an order record.
func (c *MongoOrderCollection) InsertOrder(ctx context.Context, order models.Order) (*models.Order, error) {
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	res, err := c.Collection.InsertOne(ctx, order)
	if err != nil {
		return nil, err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		order.ID = oid
	}
	return &order, nil
}

// FindOrderByID finds an order by its ID.
func (c *MongoOrderCollection) FindOrderByID(ctx context.Context, id string) (*models.Order, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid order ID: %w", err)
	}
	var order models.Order
	err = c.Collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&order)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindOrderByNo finds an order by its business order number.
func (c *MongoOrderCollection) FindOrderByNo(ctx context.Context, orderNo string) (*models.Order, error) {
	var order models.Order
	err := c.Collection.FindOne(ctx, bson.M{"order_no": orderNo}).Decode(&order)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindOrders lists orders, optionally filtered by status, newest first.
func (c *MongoOrderCollection) FindOrders(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	query := bson.M{}
	if status != "" {
		query["status"] = status
	}
	cursor, err := c.Collection.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrder updates an order by its ID.
func (c *MongoOrderCollection) UpdateOrder(ctx context.Context, id string, order models.Order) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid order ID: %w", err)
	}
	order.ID = objectID
	order.UpdatedAt = time.Now()
	res, err := c.Collection.ReplaceOne(ctx, bson.M{"_id": objectID}, order)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
