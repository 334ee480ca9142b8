package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/listings-be/internal/api/handlers"
	"github.com/isdelr/listings-be/internal/auth"
	"github.com/isdelr/listings-be/internal/services"
)

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	AuthService    services.AuthServiceProvider
	UserService    services.UserServiceProvider
	TokenVerifier  auth.TokenVerifier
	Store          handlers.Pinger
	AllowedOrigins []string
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authHandler := handlers.NewAuthHandler(deps.AuthService)
	userHandler := handlers.NewUserHandler(deps.UserService)
	healthHandler := handlers.NewHealthHandler(deps.Store)
	requireAuth := auth.Middleware(deps.TokenVerifier, deps.AuthService)

	r.Get("/healthz", healthHandler.Health)
	r.Post("/register", authHandler.Register)
	r.Post("/token", authHandler.Token)

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/", userHandler.Create)
		r.With(requireAuth).Get("/me", userHandler.Me)
		r.Get("/{id}", userHandler.Get)
	})

	return r
}
