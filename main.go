package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/listings-be/internal/api"
	"github.com/isdelr/listings-be/internal/auth"
	"github.com/isdelr/listings-be/internal/config"
	"github.com/isdelr/listings-be/internal/database"
	"github.com/isdelr/listings-be/internal/logger"
	"github.com/isdelr/listings-be/internal/services"
	"github.com/isdelr/listings-be/internal/store"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Server stopped with error")
	}
	log.Info().Msg("Server exiting")
}

func run(ctx context.Context, cfg *config.Config) error {
	// Signing configuration problems are fatal before anything else starts.
	tokens, err := auth.NewTokenManager([]byte(cfg.SecretKey), cfg.Algorithm)
	if err != nil {
		return err
	}

	hasherCfg := auth.DefaultHasherConfig()
	hasherCfg.Scheme = auth.Scheme(cfg.PasswordScheme)
	hasherCfg.BcryptCost = cfg.BcryptCost
	hasher, err := auth.NewHasher(hasherCfg)
	if err != nil {
		return err
	}

	// Set up storage
	var st store.Store
	if cfg.DatabaseDriver == "memory" {
		log.Warn().Msg("Using in-memory store; data is lost on exit")
		st = store.NewMemoryStore()
	} else {
		db, err := database.New(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		defer db.Close()

		if err := database.Migrate(ctx, db, cfg.DatabaseDriver); err != nil {
			return fmt.Errorf("apply database schema: %w", err)
		}
		st = store.NewSQLStore(db, cfg.DatabaseDriver)
	}

	// Set up services
	authService, err := services.NewAuthService(st, hasher, tokens, cfg.TokenTTL)
	if err != nil {
		return err
	}
	userService := services.NewUserService(st, hasher)

	if cfg.DemoUsername != "" && cfg.DemoPassword != "" {
		if err := authService.EnsureUser(ctx, cfg.DemoUsername, cfg.DemoEmail, cfg.DemoPassword); err != nil {
			return fmt.Errorf("seed demo user: %w", err)
		}
		log.Info().Str("username", cfg.DemoUsername).Msg("Demo user ready")
	}

	router := api.NewRouter(api.Dependencies{
		AuthService:    authService,
		UserService:    userService,
		TokenVerifier:  tokens,
		Store:          st,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
