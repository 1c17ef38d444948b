package models

import (
	"time"
)

type Category string

const (
	CategorySupermarket Category = "supermarket"
	CategoryGrocery     Category = "grocery"
	CategoryOther       Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategorySupermarket, CategoryGrocery, CategoryOther:
		return true
	}
	return false
}

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusInProgress OrderStatus = "in_progress"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// Order is a delivery request. Money fields are whole Saudi Riyals.
type Order struct {
	ID                    string      `json:"id"`
	UserID                string      `json:"user_id"`
	Description           string      `json:"description"`
	Location              string      `json:"location"`
	LocationLat           *float64    `json:"location_lat,omitempty"`
	LocationLng           *float64    `json:"location_lng,omitempty"`
	Category              Category    `json:"category"`
	CustomCategory        string      `json:"custom_category,omitempty"`
	EstimatedItemsCost    int64       `json:"estimated_items_cost"`
	DeliveryFee           int64       `json:"delivery_fee"`
	TotalCost             int64       `json:"total_cost"`
	EstimatedDeliveryTime string      `json:"estimated_delivery_time"`
	Status                OrderStatus `json:"status"`
	WhatsAppSent          bool        `json:"whatsapp_sent"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// OrderWithUser is an order joined with its owning user, as returned by reads.
type OrderWithUser struct {
	Order
	User User `json:"user"`
}

// CreateOrderInput is the client-supplied part of a new order. The owner is
// always taken from the authenticated session, never from the request body.
type CreateOrderInput struct {
	Description    string   `json:"description"`
	Location       string   `json:"location"`
	LocationLat    *float64 `json:"location_lat,omitempty"`
	LocationLng    *float64 `json:"location_lng,omitempty"`
	Category       Category `json:"category"`
	CustomCategory string   `json:"custom_category,omitempty"`
}
