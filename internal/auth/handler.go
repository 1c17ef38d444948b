package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hassandelivery/delivery-service/internal/storage"
	"github.com/hassandelivery/delivery-service/pkg/models"
)

// UserStore is the slice of the persistence gateway the auth handlers need.
type UserStore interface {
	UpsertUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type Handler struct {
	sessions *Sessions
	store    UserStore
	logger   *logrus.Logger
}

func NewHandler(sessions *Sessions, store UserStore, logger *logrus.Logger) *Handler {
	return &Handler{sessions: sessions, store: store, logger: logger}
}

type tokenRequest struct {
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	WhatsAppNumber string `json:"whatsapp_number"`
}

// IssueToken upserts the user identified by email and returns a session
// token. Stands in for the hosted OIDC login of the production deployment.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" {
		h.respondWithError(w, http.StatusBadRequest, "Email is required")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if errors.Is(err, storage.ErrNotFound) {
		user = &models.User{ID: uuid.New().String()}
		err = nil
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to look up user")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	user.Email = req.Email
	user.FirstName = req.FirstName
	user.LastName = req.LastName
	if req.WhatsAppNumber != "" {
		user.WhatsAppNumber = req.WhatsAppNumber
	}

	saved, err := h.store.UpsertUser(r.Context(), user)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upsert user")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	token, err := h.sessions.IssueToken(saved.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue session token")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	h.logger.WithField("user_id", saved.ID).Info("Session token issued")

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  saved,
	})
}

// GetUser returns the authenticated user's profile.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}

	user, err := h.store.GetUser(r.Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		h.respondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch user")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to fetch user")
		return
	}

	h.respondWithJSON(w, http.StatusOK, user)
}

type updateUserRequest struct {
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	WhatsAppNumber *string `json:"whatsapp_number"`
}

// UpdateUser updates mutable profile fields, most importantly the WhatsApp
// number used as the notification recipient context.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.store.GetUser(r.Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		h.respondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch user")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to update user")
		return
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.WhatsAppNumber != nil {
		user.WhatsAppNumber = *req.WhatsAppNumber
	}

	saved, err := h.store.UpsertUser(r.Context(), user)
	if err != nil {
		h.logger.WithError(err).Error("Failed to update user")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to update user")
		return
	}

	h.respondWithJSON(w, http.StatusOK, saved)
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
