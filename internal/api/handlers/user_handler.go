package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/listings-be/internal/auth"
	"github.com/isdelr/listings-be/internal/services"
	"github.com/rs/zerolog/log"
)

// UserHandler handles HTTP requests for user management.
type UserHandler struct {
	service services.UserServiceProvider
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider) *UserHandler {
	return &UserHandler{service: service}
}

// CreateUserPayload defines the structure for administrative user creation.
type CreateUserPayload struct {
	ID        string     `json:"id" validate:"omitempty,max=36"`
	Name      string     `json:"name" validate:"required,max=16"`
	Email     string     `json:"email" validate:"required,email,max=255"`
	Password  string     `json:"password" validate:"required"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// Create handles creating a user with caller-supplied fields.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload CreateUserPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if fields := validateStruct(payload); fields != nil {
		respondInvalid(w, fields)
		return
	}

	in := services.CreateUserInput{
		ID:       payload.ID,
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
	}
	if payload.CreatedAt != nil {
		in.CreatedAt = *payload.CreatedAt
	}
	if payload.UpdatedAt != nil {
		in.UpdatedAt = *payload.UpdatedAt
	}

	user, err := h.service.CreateUser(r.Context(), in)
	if err != nil {
		log.Error().Err(err).Str("email", payload.Email).Msg("Failed to create user")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// Get handles retrieving a user by their ID.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, err := h.service.GetUserByID(r.Context(), id)
	if err != nil {
		log.Warn().Err(err).Str("user_id", id).Msg("Failed to get user by ID")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// Me returns the principal authenticated by the bearer token.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		log.Error().Msg("Could not retrieve user from context")
		auth.Unauthenticated(w, "Not authenticated")
		return
	}

	respondJSON(w, http.StatusOK, user)
}
