package orders

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/hassandelivery/delivery-service/internal/auth"
	"github.com/hassandelivery/delivery-service/pkg/models"
)

// WebSocketHub receives order activity for the operations dashboard.
type WebSocketHub interface {
	Broadcast(messageType string, data interface{}, source string)
}

const (
	confirmSentMessage   = "تم إرسال الطلب بنجاح"
	confirmUnsentMessage = "تم تأكيد الطلب ولكن فشل إرسال الواتساب"
)

type Handler struct {
	service *Service
	logger  *logrus.Logger
	wsHub   WebSocketHub
}

func NewHandler(service *Service, logger *logrus.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) SetWebSocketHub(hub WebSocketHub) {
	h.wsHub = hub
}

// Register mounts the order routes on an authenticated subrouter.
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/orders", h.CreateOrder).Methods("POST")
	router.HandleFunc("/orders", h.ListOrders).Methods("GET")
	router.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET")
	router.HandleFunc("/orders/{id}/confirm", h.ConfirmOrder).Methods("POST")
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	// Decoding into CreateOrderInput drops any client-supplied user_id;
	// the owner is always the session identity.
	var input models.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.WithError(err).Error("Failed to decode order request")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.CreateOrder(r.Context(), userID, input)
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			h.logger.WithField("fields", vErr.Fields).Warn("Order input failed validation")
			h.respondWithError(w, http.StatusInternalServerError, vErr.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to create order")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to create order")
		return
	}

	if h.wsHub != nil {
		h.wsHub.Broadcast("order_created", result.Order, "delivery-service")
	}

	h.respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	orderID := mux.Vars(r)["id"]

	sent, err := h.service.ConfirmOrder(r.Context(), userID, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.respondWithError(w, http.StatusNotFound, "Order not found")
			return
		}
		h.logger.WithError(err).Error("Failed to confirm order")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to confirm order")
		return
	}

	message := confirmUnsentMessage
	if sent {
		message = confirmSentMessage
	}

	if h.wsHub != nil {
		h.wsHub.Broadcast("order_confirmed", map[string]interface{}{
			"order_id":      orderID,
			"whatsapp_sent": sent,
		}, "delivery-service")
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"whatsappSent": sent,
		"message":      message,
	})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	orders, err := h.service.ListOrders(r.Context(), userID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list orders")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	if orders == nil {
		orders = []models.OrderWithUser{}
	}

	h.respondWithJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	orderID := mux.Vars(r)["id"]

	order, err := h.service.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.respondWithError(w, http.StatusNotFound, "Order not found")
			return
		}
		h.logger.WithError(err).Error("Failed to fetch order")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to fetch order")
		return
	}

	h.respondWithJSON(w, http.StatusOK, order)
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]interface{}{
		"message": message,
	})
}
