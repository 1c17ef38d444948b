// Package orders implements the order intake workflow: estimation, cost
// totaling, persistence and the confirmation/notification sequence.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hassandelivery/delivery-service/internal/estimator"
	"github.com/hassandelivery/delivery-service/internal/events"
	"github.com/hassandelivery/delivery-service/internal/notification"
	"github.com/hassandelivery/delivery-service/internal/storage"
	"github.com/hassandelivery/delivery-service/pkg/models"
)

// DeliveryFee is the flat per-order delivery charge in SAR.
const DeliveryFee = 10

// ErrNotFound covers both a missing order and an order owned by someone
// else. The two cases are deliberately indistinguishable so callers cannot
// probe for other users' orders.
var ErrNotFound = errors.New("order not found")

// ValidationError reports which input fields failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid order input: " + strings.Join(e.Fields, ", ")
}

// Storage is the slice of the persistence gateway the workflow needs.
type Storage interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.OrderWithUser, error)
	GetUserOrders(ctx context.Context, userID string) ([]models.OrderWithUser, error)
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) error
	MarkWhatsAppSent(ctx context.Context, id string) error
}

// Estimator produces price and delivery time estimates. Both operations are
// total: they return a fallback value instead of an error.
type Estimator interface {
	EstimateItemsCost(ctx context.Context, description, category, customCategory string) estimator.PriceEstimate
	EstimateDeliveryTime(ctx context.Context, location, category, description string) estimator.TimeEstimate
}

// Notifier delivers a WhatsApp notification. It reports success as a bool
// and never returns an error.
type Notifier interface {
	Send(m notification.Message) bool
}

// EventPublisher publishes order lifecycle events. Publish failures are
// logged and swallowed; they never fail the request.
type EventPublisher interface {
	PublishOrderCreated(event events.OrderCreatedEvent) error
	PublishOrderConfirmed(event events.OrderConfirmedEvent) error
}

type Service struct {
	storage   Storage
	estimator Estimator
	notifier  Notifier
	producer  EventPublisher
	logger    *logrus.Logger
}

func NewService(store Storage, est Estimator, notifier Notifier, producer EventPublisher, logger *logrus.Logger) *Service {
	return &Service{
		storage:   store,
		estimator: est,
		notifier:  notifier,
		producer:  producer,
		logger:    logger,
	}
}

// CreateResult bundles the created order with the raw estimates so the
// client can display confidence and breakdown detail.
type CreateResult struct {
	Order         *models.Order           `json:"order"`
	PriceEstimate estimator.PriceEstimate `json:"priceEstimate"`
	TimeEstimate  estimator.TimeEstimate  `json:"timeEstimate"`
}

// CreateOrder validates the input, estimates price and delivery time
// concurrently, totals the cost and persists a pending order owned by
// userID. The owner always comes from the verified session, never from the
// input.
func (s *Service) CreateOrder(ctx context.Context, userID string, input models.CreateOrderInput) (*CreateResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var price estimator.PriceEstimate
	var eta estimator.TimeEstimate

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		price = s.estimator.EstimateItemsCost(ctx, input.Description, string(input.Category), input.CustomCategory)
	}()
	go func() {
		defer wg.Done()
		eta = s.estimator.EstimateDeliveryTime(ctx, input.Location, string(input.Category), input.Description)
	}()
	wg.Wait()

	now := time.Now().UTC()
	order := &models.Order{
		ID:                    uuid.New().String(),
		UserID:                userID,
		Description:           input.Description,
		Location:              input.Location,
		LocationLat:           input.LocationLat,
		LocationLng:           input.LocationLng,
		Category:              input.Category,
		CustomCategory:        input.CustomCategory,
		EstimatedItemsCost:    price.EstimatedItemsCost,
		DeliveryFee:           DeliveryFee,
		TotalCost:             price.EstimatedItemsCost + DeliveryFee,
		EstimatedDeliveryTime: eta.EstimatedTime,
		Status:                models.StatusPending,
		WhatsAppSent:          false,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.storage.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}

	if err := s.producer.PublishOrderCreated(events.OrderCreatedEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Category:    string(order.Category),
		TotalCost:   order.TotalCost,
		DeliveryFee: order.DeliveryFee,
		CreatedAt:   order.CreatedAt,
	}); err != nil {
		s.logger.WithError(err).Error("Failed to publish order created event")
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":             order.ID,
		"user_id":              order.UserID,
		"estimated_items_cost": order.EstimatedItemsCost,
		"total_cost":           order.TotalCost,
		"degraded_estimate":    price.Degraded || eta.Degraded,
	}).Info("Order created")

	return &CreateResult{
		Order:         order,
		PriceEstimate: price,
		TimeEstimate:  eta,
	}, nil
}

// ConfirmOrder notifies the delivery channel and moves the order from
// pending to confirmed. The order is confirmed even when the notification
// fails; only lookup and persistence errors propagate.
//
// Two concurrent confirms of the same order can both send a notification;
// the row updates themselves are serialized by the database.
func (s *Service) ConfirmOrder(ctx context.Context, userID, orderID string) (bool, error) {
	order, err := s.storage.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("load order: %w", err)
	}
	if order.UserID != userID {
		return false, ErrNotFound
	}

	sent := s.notifier.Send(buildNotification(order))

	if err := s.storage.UpdateOrderStatus(ctx, orderID, models.StatusConfirmed); err != nil {
		return false, fmt.Errorf("confirm order: %w", err)
	}
	if sent {
		if err := s.storage.MarkWhatsAppSent(ctx, orderID); err != nil {
			return false, fmt.Errorf("mark order notified: %w", err)
		}
	}

	if err := s.producer.PublishOrderConfirmed(events.OrderConfirmedEvent{
		OrderID:      orderID,
		UserID:       userID,
		WhatsAppSent: sent,
	}); err != nil {
		s.logger.WithError(err).Error("Failed to publish order confirmed event")
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":      orderID,
		"user_id":       userID,
		"whatsapp_sent": sent,
	}).Info("Order confirmed")

	return sent, nil
}

// GetOrder returns a single order, owner-scoped.
func (s *Service) GetOrder(ctx context.Context, userID, orderID string) (*models.OrderWithUser, error) {
	order, err := s.storage.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order.UserID != userID {
		return nil, ErrNotFound
	}
	return order, nil
}

// ListOrders returns the caller's orders, most recent first.
func (s *Service) ListOrders(ctx context.Context, userID string) ([]models.OrderWithUser, error) {
	orders, err := s.storage.GetUserOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func validateInput(input models.CreateOrderInput) error {
	var fields []string
	if strings.TrimSpace(input.Description) == "" {
		fields = append(fields, "description")
	}
	if strings.TrimSpace(input.Location) == "" {
		fields = append(fields, "location")
	}
	if !input.Category.Valid() {
		fields = append(fields, "category")
	}
	if input.Category == models.CategoryOther && strings.TrimSpace(input.CustomCategory) == "" {
		fields = append(fields, "custom_category")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// buildNotification assembles the WhatsApp message with defensive defaults
// for fields that should always be set but are guarded anyway.
func buildNotification(order *models.OrderWithUser) notification.Message {
	name := strings.TrimSpace(strings.TrimSpace(order.User.FirstName) + " " + strings.TrimSpace(order.User.LastName))
	if name == "" {
		name = "عميل"
	}

	whatsapp := order.User.WhatsAppNumber
	if whatsapp == "" {
		whatsapp = "غير محدد"
	}

	fee := order.DeliveryFee
	if fee == 0 {
		fee = DeliveryFee
	}
	total := order.TotalCost
	if total == 0 {
		total = DeliveryFee
	}
	eta := order.EstimatedDeliveryTime
	if eta == "" {
		eta = estimator.FallbackDeliveryTime
	}

	return notification.Message{
		CustomerName:     name,
		CustomerLocation: order.Location,
		CustomerWhatsApp: whatsapp,
		OrderDescription: order.Description,
		EstimatedCost:    order.EstimatedItemsCost,
		DeliveryFee:      fee,
		TotalCost:        total,
		EstimatedTime:    eta,
	}
}
