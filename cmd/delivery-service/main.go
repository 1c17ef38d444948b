package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/hassandelivery/delivery-service/internal/auth"
	"github.com/hassandelivery/delivery-service/internal/config"
	"github.com/hassandelivery/delivery-service/internal/estimator"
	"github.com/hassandelivery/delivery-service/internal/events"
	"github.com/hassandelivery/delivery-service/internal/notification"
	"github.com/hassandelivery/delivery-service/internal/orders"
	"github.com/hassandelivery/delivery-service/internal/storage"
	"github.com/hassandelivery/delivery-service/internal/websocket"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN())
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Wait for database to be ready
	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			logger.Info("Database connection established")
			break
		}
		logger.Info("Waiting for database...")
		time.Sleep(2 * time.Second)
	}

	store := storage.NewPostgres(db, logger)
	if err := store.Bootstrap(context.Background()); err != nil {
		logger.WithError(err).Fatal("Failed to create tables")
	}

	producer, err := events.NewKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Kafka producer")
	}
	defer producer.Close()

	hub := websocket.NewHub(logger)
	go hub.Run()

	estimatorClient := estimator.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, logger)
	notifier := notification.NewWhatsAppSender(cfg.WhatsAppRecipient, logger)

	orderService := orders.NewService(store, estimatorClient, notifier, producer, logger)
	orderHandler := orders.NewHandler(orderService, logger)
	orderHandler.SetWebSocketHub(hub)

	sessions := auth.NewSessions(cfg.JWTSecret, logger)
	authHandler := auth.NewHandler(sessions, store, logger)

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck(db)).Methods("GET")
	router.HandleFunc("/ws", hub.HandleWebSocket)
	router.HandleFunc("/api/auth/token", authHandler.IssueToken).Methods("POST")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(sessions.Middleware)
	api.HandleFunc("/auth/user", authHandler.GetUser).Methods("GET")
	api.HandleFunc("/auth/user", authHandler.UpdateUser).Methods("PATCH")
	orderHandler.Register(api)

	router.Use(loggingMiddleware(logger))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.HTTPPort).Info("Starting delivery service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server gracefully stopped")
}

func healthCheck(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","service":"delivery-service"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"delivery-service"}`))
	}
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"remote":   r.RemoteAddr,
				"duration": time.Since(start).Milliseconds(),
			}).Info("Request completed")
		})
	}
}
