package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/medchain/identity-service/internal/audit"
	"github.com/medchain/identity-service/internal/cache"
	"github.com/medchain/identity-service/internal/config"
	"github.com/medchain/identity-service/internal/crypto"
	"github.com/medchain/identity-service/internal/database"
	"github.com/medchain/identity-service/internal/email"
	"github.com/medchain/identity-service/internal/handlers"
	"github.com/medchain/identity-service/internal/middleware"
	"github.com/medchain/identity-service/internal/models"
	"github.com/medchain/identity-service/internal/repository"
	"github.com/medchain/identity-service/internal/services"
	"github.com/medchain/identity-service/internal/session"
	"github.com/medchain/identity-service/internal/token"
	"github.com/medchain/identity-service/internal/verification"
	"github.com/medchain/identity-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("Starting identity service")

	// Connect to database
	db, err := database.Connect(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		LogLevel: cfg.Database.LogLevel,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer func() { _ = database.Close(db) }()

	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Initialize cache
	var cacheImpl cache.Cache
	addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	cacheImpl, err = cache.NewRedisCache(addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, falling back to memory cache")
		cacheImpl = cache.NewMemoryCache()
	} else {
		log.Info().Str("addr", addr).Msg("Redis cache initialized")
	}
	defer func() { _ = cacheImpl.Close() }()

	// Crypto vault and ephemeral session store
	vault, err := crypto.NewVault(
		cfg.Crypto.EncryptionKey,
		cfg.Crypto.LookupPepper,
		cfg.Crypto.PhonePepper,
		cfg.Crypto.IntegritySecret,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize vault")
	}
	sessionStore := session.NewStore(cacheImpl, vault)
	engine := verification.NewEngine(sessionStore)

	// Email delivery
	var sender email.Sender
	if cfg.SMTP.Enabled {
		sender = email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	} else {
		sender = email.LogSender{}
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	tokenRepo := repository.NewTokenRepository(db)

	// Audit worker pool
	auditLog := audit.NewLogger(auditRepo, 4, 512)
	defer auditLog.Close()

	// Tokens and services
	tokenService := token.NewService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	registrationService := services.NewRegistrationService(userRepo, roleRepo, vault, sessionStore, engine, tokenService, sender, auditLog)
	authService := services.NewAuthService(userRepo, roleRepo, tokenRepo, vault, sessionStore, engine, tokenService, sender, auditLog, cfg.JWT.Issuer)
	adminService := services.NewAdminService(userRepo, roleRepo, vault, auditLog)

	// Middleware collaborators
	csrf := middleware.NewCSRF(sessionStore, vault)
	authn := middleware.NewAuthenticator(tokenService, tokenRepo)
	limiter := middleware.NewRateLimiter(map[string]middleware.RouteLimit{
		"register": {PerMinute: 3, Burst: 3},
		"login":    {PerMinute: 10, Burst: 10},
		"reset":    {PerMinute: 3, Burst: 3},
	}, middleware.RouteLimit{PerMinute: 60, Burst: 20})

	// Handlers
	healthHandler := handlers.NewHealthHandler(db, cacheImpl)
	authHandler := handlers.NewAuthHandler(registrationService, authService, tokenService, csrf, cfg.JWT.CookieSecure)
	adminHandler := handlers.NewAdminHandler(adminService)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no authentication required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Auth routes. Chain order: content-type, CSRF, rate limit, then
	// authentication and role checks where required.
	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.RequireJSON)

		r.Get("/csrf-token", authHandler.CSRFToken)

		r.Group(func(r chi.Router) {
			r.Use(csrf.Require)

			r.With(limiter.Limit("register")).Post("/register", authHandler.Register)
			r.With(limiter.Limit("register")).Post("/resend-code", authHandler.ResendCode)
			r.With(limiter.Limit("register")).Post("/complete-registration", authHandler.CompleteRegistration)
			r.With(limiter.Limit("register")).Post("/select-role", authHandler.SelectRole)

			r.With(limiter.Limit("login")).Post("/login", authHandler.Login)
			r.With(limiter.Limit("login")).Post("/mfa/verify", authHandler.VerifyMFA)
			r.With(limiter.Limit("login")).Post("/refresh", authHandler.Refresh)

			r.With(limiter.Limit("reset")).Post("/request-password-reset", authHandler.RequestPasswordReset)
			r.With(limiter.Limit("reset")).Post("/verify-reset-code", authHandler.VerifyResetCode)
			r.With(limiter.Limit("reset")).Post("/reset-password", authHandler.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(authn.RequireAuth)

				r.Post("/logout", authHandler.Logout)
				r.Post("/mfa/enable", authHandler.EnableMFA)
				r.Post("/mfa/confirm", authHandler.ConfirmMFA)
				r.Post("/mfa/disable", authHandler.DisableMFA)
			})
		})
	})

	// Admin routes
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireJSON)
		r.Use(csrf.Require)
		r.Use(limiter.Limit("admin"))
		r.Use(authn.RequireAuth)
		r.Use(middleware.RequireRole(models.RoleAdmin))

		r.Post("/approve", adminHandler.Approve)
		r.Post("/reject", adminHandler.Reject)
		r.Get("/stats", adminHandler.Stats)
		r.Get("/profile", adminHandler.Profile)
		r.Get("/pending/{role}", adminHandler.Pending)
		r.Get("/approved/{role}", adminHandler.Approved)
		r.Get("/audit/{userID}", adminHandler.AuditTrail)
	})

	// Create server
	addrHTTP := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addrHTTP,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", addrHTTP).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
