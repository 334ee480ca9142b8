package handlers

import (
	"errors"
	"net/http"

	"github.com/isdelr/listings-be/internal/auth"
	"github.com/isdelr/listings-be/internal/services"
	"github.com/rs/zerolog/log"
)

// AuthHandler handles registration and token requests.
type AuthHandler struct {
	service services.AuthServiceProvider
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service services.AuthServiceProvider) *AuthHandler {
	return &AuthHandler{service: service}
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	Name     string `json:"name" validate:"required,max=16"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required"`
}

// TokenForm holds the form fields of a token request.
type TokenForm struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register handles new user registration.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if fields := validateStruct(payload); fields != nil {
		respondInvalid(w, fields)
		return
	}

	user, err := h.service.Register(r.Context(), payload.Name, payload.Email, payload.Password)
	if err != nil {
		log.Warn().Err(err).Str("email", payload.Email).Msg("Failed to register user")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// Token exchanges form-encoded credentials for a bearer token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid form body")
		return
	}

	form := TokenForm{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}
	if fields := validateStruct(form); fields != nil {
		respondInvalid(w, fields)
		return
	}

	token, err := h.service.Login(r.Context(), form.Username, form.Password)
	if errors.Is(err, services.ErrUnauthorized) {
		log.Warn().Str("username", form.Username).Msg("Failed authentication attempt")
		auth.Unauthenticated(w, "Incorrect username or password")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("username", form.Username).Msg("Failed to issue token")
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respondJSON(w, http.StatusOK, token)
}

// respondServiceError maps service errors to responses. Internal causes
// are never sent to the client.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrEncoding):
		respondInvalid(w, []FieldError{{Field: "password", Message: "is invalid"}})
	case errors.Is(err, services.ErrEmailTaken):
		respondError(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, services.ErrUsernameTaken):
		respondError(w, http.StatusBadRequest, "Username already taken")
	case errors.Is(err, services.ErrIDTaken):
		respondError(w, http.StatusBadRequest, "User ID already exists")
	case errors.Is(err, services.ErrConflict):
		respondError(w, http.StatusBadRequest, "User already exists")
	case errors.Is(err, services.ErrNotFound):
		respondError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, services.ErrStore):
		respondError(w, http.StatusInternalServerError, "Database error")
	default:
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
