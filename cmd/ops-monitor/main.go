// ops-monitor tails the order event topics and logs running intake counters.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hassandelivery/delivery-service/internal/events"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		kafkaBrokers = "localhost:9092"
	}

	handler := &orderActivityHandler{logger: logger}

	consumer, err := events.NewKafkaConsumer(kafkaBrokers, "ops-monitor-group", handler, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Kafka consumer")
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.WithError(err).Error("Consumer stopped")
		}
	}()

	// Periodic counter summary
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			handler.logSummary()
		}
	}()

	logger.Info("Ops monitor started - tailing order.created and order.confirmed")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down ops monitor...")
}

type orderActivityHandler struct {
	logger *logrus.Logger

	created   atomic.Int64
	confirmed atomic.Int64
	notified  atomic.Int64
}

func (h *orderActivityHandler) HandleOrderCreated(event events.OrderCreatedEvent) error {
	h.created.Add(1)
	h.logger.WithFields(logrus.Fields{
		"order_id":   event.OrderID,
		"category":   event.Category,
		"total_cost": event.TotalCost,
	}).Info("Order created")
	return nil
}

func (h *orderActivityHandler) HandleOrderConfirmed(event events.OrderConfirmedEvent) error {
	h.confirmed.Add(1)
	if event.WhatsAppSent {
		h.notified.Add(1)
	}
	h.logger.WithFields(logrus.Fields{
		"order_id":      event.OrderID,
		"whatsapp_sent": event.WhatsAppSent,
	}).Info("Order confirmed")
	return nil
}

func (h *orderActivityHandler) logSummary() {
	created := h.created.Load()
	confirmed := h.confirmed.Load()
	notified := h.notified.Load()

	h.logger.WithFields(logrus.Fields{
		"orders_created":   created,
		"orders_confirmed": confirmed,
		"notifications_ok": notified,
	}).Info("Order intake summary")
}
