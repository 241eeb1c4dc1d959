package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderStatus tracks how much of an order has shipped.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPartial   OrderStatus = "partial"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// Order is a customer order for material, fulfilled across one or more
// dispatches. Quantities are in the material's unit of measure.
type Order struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderNo      string             `bson:"order_no" json:"order_no"`
	Customer     string             `bson:"customer" json:"customer"`
	Material     string             `bson:"material" json:"material"`
	OrderedQty   float64            `bson:"ordered_qty" json:"ordered_qty"`
	DeliveredQty float64            `bson:"delivered_qty" json:"delivered_qty"`
	PendingQty   float64            `bson:"pending_qty" json:"pending_qty"`
	Rate         float64            `bson:"rate" json:"rate"`
	Advance      float64            `bson:"advance" json:"advance"`
	Balance      float64            `bson:"balance" json:"balance"`
	Status       OrderStatus        `bson:"status" json:"status"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// RecordDelivery adds a delivered quantity and recomputes the pending
// quantity and status.
func (o *Order) RecordDelivery(qty float64) {
	o.DeliveredQty += qty
	o.PendingQty = o.OrderedQty - o.DeliveredQty
	if o.PendingQty < 0 {
		o.PendingQty = 0
	}
	switch {
	case o.DeliveredQty <= 0:
		o.Status = OrderPending
	case o.DeliveredQty < o.OrderedQty:
		o.Status = OrderPartial
	default:
		o.Status = OrderCompleted
	}
}
