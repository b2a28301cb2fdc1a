package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/wanderlyst/tripmatch/internal/config"
	"github.com/wanderlyst/tripmatch/internal/database"
	"github.com/wanderlyst/tripmatch/internal/handlers"
	"github.com/wanderlyst/tripmatch/internal/logging"
	"github.com/wanderlyst/tripmatch/internal/middleware"
	"github.com/wanderlyst/tripmatch/internal/services"
	"github.com/wanderlyst/tripmatch/internal/services/ai"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	// Initialize logger
	logger := logging.New()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Server.Debug {
		logger.SetLevel(logging.LevelDebug)
		logging.SetDefaultLevel(logging.LevelDebug)
	}

	logger.Info("Starting TripMatch server...")

	// Connect to PostgreSQL
	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Run migrations
	logger.Info("Running database migrations...")
	migrator, err := database.NewMigrator(cfg.Database.DSN(), "migrations")
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	_ = migrator.Close()
	logger.Info("Migrations completed")

	// Connect to Redis
	logger.Info("Connecting to Redis", map[string]interface{}{
		"addr": cfg.Redis.Addr(),
	})
	redisDB, err := database.NewRedisDB(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()
	logger.Info("Connected to Redis")

	// Initialize services
	dbAdapter := services.NewPoolAdapter(db.Pool)
	redisAdapter := services.NewRedisAdapter(redisDB.Client)

	userService := services.NewUserService(dbAdapter)
	authService := services.NewAuthService(userService, redisAdapter)
	emailService := services.NewEmailService(&cfg.Email)
	friendService := services.NewFriendService(dbAdapter, emailService, cfg.Email.BaseURL)
	notificationService := services.NewNotificationService(dbAdapter)
	swipeService := services.NewSwipeService(dbAdapter)
	matchService := services.NewMatchService(dbAdapter, notificationService)
	conversationService := services.NewConversationService(dbAdapter, userService, friendService, notificationService)
	noteService := services.NewNoteService(dbAdapter, conversationService)
	seedService := services.NewSeedService(dbAdapter)

	var travelAssistant ai.TravelAssistant
	if cfg.AI.Stub {
		logger.Warn("AI stub mode enabled; assistant answers are canned")
		travelAssistant = ai.NewStubAssistant()
	} else {
		travelAssistant = ai.NewGeminiClient(ai.GeminiConfig{
			APIKey:          cfg.AI.GeminiAPIKey,
			Model:           cfg.AI.GeminiModel,
			Temperature:     cfg.AI.GeminiTemperature,
			MaxOutputTokens: cfg.AI.GeminiMaxOutputTokens,
		})
	}
	assistantService := services.NewAssistantService(userService, conversationService, noteService, travelAssistant)

	oauthProviders := map[services.Provider]services.OAuthProvider{}
	if cfg.OAuth.Google.Enabled {
		googleProvider, err := services.NewOIDCProvider(context.Background(), services.OIDCProviderConfig{
			Provider:     services.ProviderGoogle,
			ClientID:     cfg.OAuth.Google.ClientID,
			ClientSecret: cfg.OAuth.Google.ClientSecret,
			RedirectURL:  cfg.OAuth.Google.RedirectURL,
			IssuerURL:    cfg.OAuth.Google.IssuerURL,
			Scopes:       cfg.OAuth.Google.Scopes,
		})
		if err != nil {
			return fmt.Errorf("initializing google oidc provider: %w", err)
		}
		oauthProviders[services.ProviderGoogle] = googleProvider
	}

	// The assistant account must exist before any group conversation is
	// created.
	if err := seedService.EnsureAssistant(context.Background()); err != nil {
		return fmt.Errorf("provisioning assistant account: %w", err)
	}
	if cfg.Seed.DemoUsers {
		if err := seedService.SeedDemoUsers(context.Background()); err != nil {
			logger.Warn("Demo user seeding failed", map[string]interface{}{"error": err.Error()})
		}
	}

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, redisDB)
	authHandler := handlers.NewAuthHandler(authService, cfg.Server.Secure)
	providerAuthHandler := handlers.NewProviderAuthHandler(userService, authService, oauthProviders, cfg.Server.Secure)
	userHandler := handlers.NewUserHandler(userService)
	friendHandler := handlers.NewFriendHandler(friendService, swipeService)
	swipeHandler := handlers.NewSwipeHandler(swipeService, matchService)
	conversationHandler := handlers.NewConversationHandler(conversationService, assistantService)
	noteHandler := handlers.NewNoteHandler(noteService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	assistantHandler := handlers.NewAssistantHandler(travelAssistant)

	if _, err := notificationService.CleanupOld(context.Background()); err != nil {
		logger.Warn("Notification cleanup failed", map[string]interface{}{"error": err.Error()})
	}
	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-backgroundCtx.Done():
				return
			case <-ticker.C:
				if _, err := notificationService.CleanupOld(context.Background()); err != nil {
					logger.Warn("Notification cleanup failed", map[string]interface{}{"error": err.Error()})
				}
			}
		}
	}()
	go func() {
		interval := resolveMatchSweepInterval(logger, os.LookupEnv)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-backgroundCtx.Done():
				return
			case <-ticker.C:
				if err := matchService.Sweep(context.Background()); err != nil {
					logger.Warn("Trip match sweep failed", map[string]interface{}{"error": err.Error()})
				}
			}
		}
	}()

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(authService, userService)
	requestLogger := middleware.NewRequestLogger(logger)

	aiRateLimit := resolveAIRateLimit(cfg, logger, os.LookupEnv)
	aiRateLimiter := middleware.NewRateLimiter(redisDB.Client, aiRateLimit, 1*time.Hour, "ratelimit:ai:", func(r *http.Request) string {
		user := handlers.GetUserFromContext(r.Context())
		if user != nil {
			return user.ID.String()
		}
		return ""
	}, false)

	requireSession := authMiddleware.RequireSession

	// Set up router
	mux := http.NewServeMux()

	// Health endpoint (no auth)
	mux.HandleFunc("GET /health", healthHandler.Health)

	// Auth endpoints
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.Handle("GET /api/auth/me", requireSession(http.HandlerFunc(authHandler.Me)))
	mux.HandleFunc("GET /api/auth/{provider}/start", providerAuthHandler.ProviderStart)
	mux.HandleFunc("GET /api/auth/{provider}/callback", providerAuthHandler.ProviderCallback)

	// User endpoints
	mux.Handle("GET /api/users/search", requireSession(http.HandlerFunc(userHandler.Search)))
	mux.Handle("GET /api/users/{id}", requireSession(http.HandlerFunc(userHandler.Get)))
	mux.Handle("PATCH /api/me", requireSession(http.HandlerFunc(userHandler.UpdateMe)))

	// Friend endpoints
	mux.Handle("GET /api/friends", requireSession(http.HandlerFunc(friendHandler.List)))
	mux.Handle("GET /api/friends/suggestions", requireSession(http.HandlerFunc(friendHandler.Suggestions)))
	mux.Handle("POST /api/friends/requests", requireSession(http.HandlerFunc(friendHandler.SendRequest)))
	mux.Handle("GET /api/friends/requests/incoming", requireSession(http.HandlerFunc(friendHandler.IncomingRequests)))
	mux.Handle("GET /api/friends/requests/outgoing", requireSession(http.HandlerFunc(friendHandler.OutgoingRequests)))
	mux.Handle("POST /api/friends/requests/{id}/accept", requireSession(http.HandlerFunc(friendHandler.AcceptRequest)))
	mux.Handle("POST /api/friends/requests/{id}/deny", requireSession(http.HandlerFunc(friendHandler.DenyRequest)))
	mux.Handle("DELETE /api/friends/requests/{id}", requireSession(http.HandlerFunc(friendHandler.CancelRequest)))
	mux.Handle("DELETE /api/friends/{id}", requireSession(http.HandlerFunc(friendHandler.Remove)))
	mux.Handle("GET /api/friends/{id}/swipes", requireSession(http.HandlerFunc(friendHandler.Swipes)))

	// Destination and swipe endpoints
	mux.Handle("GET /api/destinations", requireSession(http.HandlerFunc(swipeHandler.ListDestinations)))
	mux.Handle("GET /api/swipes", requireSession(http.HandlerFunc(swipeHandler.List)))
	mux.Handle("GET /api/swipes/queue", requireSession(http.HandlerFunc(swipeHandler.Queue)))
	mux.Handle("POST /api/swipes", requireSession(http.HandlerFunc(swipeHandler.Save)))
	mux.Handle("DELETE /api/swipes/{destinationID}", requireSession(http.HandlerFunc(swipeHandler.Remove)))
	mux.Handle("GET /api/matches", requireSession(http.HandlerFunc(swipeHandler.Matches)))

	// Conversation endpoints
	mux.Handle("POST /api/conversations", requireSession(http.HandlerFunc(conversationHandler.Create)))
	mux.Handle("GET /api/conversations", requireSession(http.HandlerFunc(conversationHandler.List)))
	mux.Handle("GET /api/conversations/{id}", requireSession(http.HandlerFunc(conversationHandler.Get)))
	mux.Handle("PATCH /api/conversations/{id}", requireSession(http.HandlerFunc(conversationHandler.Rename)))
	mux.Handle("PUT /api/conversations/{id}/members", requireSession(http.HandlerFunc(conversationHandler.UpdateMembers)))
	mux.Handle("POST /api/conversations/{id}/leave", requireSession(http.HandlerFunc(conversationHandler.Leave)))
	mux.Handle("GET /api/conversations/{id}/messages", requireSession(http.HandlerFunc(conversationHandler.ListMessages)))
	mux.Handle("POST /api/conversations/{id}/messages", requireSession(http.HandlerFunc(conversationHandler.SendMessage)))

	// Note endpoints
	mux.Handle("GET /api/conversations/{id}/notes", requireSession(http.HandlerFunc(noteHandler.List)))
	mux.Handle("POST /api/conversations/{id}/notes", requireSession(http.HandlerFunc(noteHandler.Create)))
	mux.Handle("PATCH /api/conversations/{id}/notes/{noteID}", requireSession(http.HandlerFunc(noteHandler.Update)))
	mux.Handle("POST /api/conversations/{id}/notes/{noteID}/pin", requireSession(http.HandlerFunc(noteHandler.TogglePin)))
	mux.Handle("DELETE /api/conversations/{id}/notes/{noteID}", requireSession(http.HandlerFunc(noteHandler.Delete)))

	// Notification endpoints
	mux.Handle("GET /api/notifications", requireSession(http.HandlerFunc(notificationHandler.List)))
	mux.Handle("GET /api/notifications/count", requireSession(http.HandlerFunc(notificationHandler.UndismissedCount)))
	mux.Handle("POST /api/notifications/{id}/dismiss", requireSession(http.HandlerFunc(notificationHandler.Dismiss)))
	mux.Handle("POST /api/notifications/dismiss-all", requireSession(http.HandlerFunc(notificationHandler.DismissAll)))

	// Direct assistant endpoint
	mux.Handle("POST /api/gemini", requireSession(aiRateLimiter.Middleware(http.HandlerFunc(assistantHandler.Ask))))

	// Build middleware chain (order matters: outermost first)
	var handler http.Handler = mux
	handler = authMiddleware.WithSession(handler)
	handler = requestLogger.Apply(handler)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Direct assistant calls can legitimately take >15s; keep a higher
		// write timeout so clients get a JSON error instead of a dropped
		// connection.
		WriteTimeout: 95 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")
		backgroundCancel()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}

		// Let in-flight assistant replies land before the process exits.
		assistantService.Wait()
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{
		"addr": addr,
	})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}

func resolveAIRateLimit(cfg *config.Config, logger *logging.Logger, lookupEnv func(string) (string, bool)) int64 {
	aiRateLimit := int64(30)
	if cfg.Server.Environment == "development" {
		aiRateLimit = 300
		logger.Info("Using development AI rate limit", map[string]interface{}{"limit": aiRateLimit})
	}
	if v, ok := lookupEnv("AI_RATE_LIMIT"); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			aiRateLimit = parsed
			logger.Info("Using AI rate limit from env", map[string]interface{}{"limit": aiRateLimit})
		} else {
			logger.Warn("Invalid AI_RATE_LIMIT; using default", map[string]interface{}{
				"value": v,
				"limit": aiRateLimit,
			})
		}
	}
	return aiRateLimit
}

func resolveMatchSweepInterval(logger *logging.Logger, lookupEnv func(string) (string, bool)) time.Duration {
	interval := 5 * time.Minute
	if value, ok := lookupEnv("MATCH_SWEEP_INTERVAL"); ok && value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			logger.Warn("Invalid MATCH_SWEEP_INTERVAL; using default", map[string]interface{}{
				"value":   value,
				"default": interval.String(),
			})
		} else {
			interval = parsed
			logger.Info("Using match sweep interval from env", map[string]interface{}{"interval": interval.String()})
		}
	}
	return interval
}
