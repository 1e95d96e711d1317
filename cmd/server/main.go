package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/ieraasyl/LiteChat/internal/database"
	"github.com/ieraasyl/LiteChat/internal/handlers"
	"github.com/ieraasyl/LiteChat/internal/litellm"
	"github.com/ieraasyl/LiteChat/internal/middleware"
	"github.com/ieraasyl/LiteChat/internal/services"
	"github.com/ieraasyl/LiteChat/pkg/cache"
	"github.com/ieraasyl/LiteChat/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const sweepInterval = 5 * time.Minute

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(&cfg.Server)

	log.Info().
		Str("env", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("version", cfg.Server.Version).
		Str("gateway", cfg.Gateway.BaseURL).
		Msg("Starting LiteChat")

	// Redis is optional and only backs the rate limiter and readiness probe.
	var redisDB *database.RedisDB
	var counters middleware.CounterStore
	var readiness handlers.Pinger
	if cfg.Redis.Enabled {
		redisDB, err = database.NewRedisDB(&cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisDB.Close()
		counters = redisDB
		readiness = redisDB
	} else {
		log.Info().Msg("Redis disabled, using in-process rate limiting")
	}

	// State
	identities := services.NewIdentityStore(cfg.Session.Lifetime)
	chatSessions := services.NewChatSessionStore(cfg.Session.ChatSessionTTL)
	usage := services.NewUsageTracker(&cfg.Usage)
	responses := cache.NewResponseCache(cfg.Cache.MaxEntries, cfg.Cache.EvictBatch)

	// Services
	gateway := litellm.NewClient(&cfg.Gateway).WithObserver(middleware.ObserveUpstream)
	oauthService := services.NewOAuthService(&cfg.OAuth, identities, usage)
	webSessions := services.NewWebSessionService(cfg.Session.Secret, cfg.Session.Lifetime)
	chatService := services.NewChatService(gateway, responses, usage, chatSessions, services.ChatOptions{
		FormattingPrompt: cfg.Gateway.FormattingPrompt,
		ImageModels:      cfg.Gateway.ImageModels,
		ChargeCacheHits:  cfg.Usage.ChargeCacheHits,
	})

	// Handlers
	isProduction := cfg.Server.IsProduction()
	authHandler := handlers.NewAuthHandler(oauthService, webSessions, identities, isProduction)
	pageHandler := handlers.NewPageHandler(cfg.Server.Version, usage)
	chatHandler := handlers.NewChatHandler(chatService, gateway, chatSessions, usage, cfg.Gateway.ModelsCacheTTL, cfg.Upload.MaxBytes)
	healthHandler := handlers.NewHealthHandler(readiness)

	rateLimiter := middleware.NewRateLimiter(counters, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.WindowDuration)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(isProduction))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(middleware.LoadIdentity(webSessions, identities))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", middleware.MetricsHandler())

	// Pages
	r.Get("/", pageHandler.Index)
	r.Get("/login", pageHandler.Login)
	r.Get("/logout", authHandler.Logout)

	r.Group(func(r chi.Router) {
		r.Use(rateLimiter.Limit("auth"))
		r.Get("/auth/google", authHandler.GoogleLogin)
		r.Get("/auth/callback", authHandler.GoogleCallback)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/models", chatHandler.Models)
		r.With(rateLimiter.Limit("chat")).Post("/chat", chatHandler.Chat)
		r.Get("/chat-history/{session_id}", chatHandler.History)
		r.Post("/new-session", chatHandler.NewSession)
		r.Get("/usage", chatHandler.Usage)
		r.Get("/me", chatHandler.Me)
		r.Post("/upload-file", chatHandler.UploadFile)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 75 * time.Second, // Longer than the image generation timeout
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("Server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				middleware.SetActiveSessions(chatSessions.Sweep())
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		return
	}

	log.Info().Msg("Server stopped gracefully")
}

// setupLogger writes human-readable logs in development and JSON otherwise.
func setupLogger(cfg *config.ServerConfig) {
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	level := zerolog.InfoLevel
	if cfg.DevMode {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
}
