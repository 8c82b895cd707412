package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/autohaul/autohaul-api/internal/audit"
	"github.com/autohaul/autohaul-api/internal/auth"
	"github.com/autohaul/autohaul-api/internal/cache"
	"github.com/autohaul/autohaul-api/internal/config"
	"github.com/autohaul/autohaul-api/internal/database"
	"github.com/autohaul/autohaul-api/internal/idempotency"
	"github.com/autohaul/autohaul-api/internal/leads"
	"github.com/autohaul/autohaul-api/internal/orders"
	"github.com/autohaul/autohaul-api/internal/pricing"
	"github.com/autohaul/autohaul-api/internal/ratelimit"
	"github.com/autohaul/autohaul-api/internal/webhook"
	"github.com/autohaul/autohaul-api/pkg/middleware"
)

const repriceWorkers = 4

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the brokerage API server with graceful shutdown
// support
func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize the keyed expiring store. Redis being down degrades the
	// reliability layer, it does not stop the server.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store cache.Store
	redisStore, err := cache.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		zlog.Error().Err(err).Msg("Redis unavailable, falling back to in-process store")
		store = cache.NewMemoryStore()
	} else {
		store = redisStore
		defer redisStore.Close()
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	recorder := audit.NewRecorder(db)

	authService := auth.NewService(db, cfg.JWTSecret, cfg.TokenExpireDuration())
	authHandlers := auth.NewGinHandlers(authService, recorder)

	idemCache := idempotency.New(store, cfg.IdempotencyTTLDuration())
	limiter := ratelimit.New(store, cfg.RateLimit, cfg.RateLimitWindowDuration())

	engine := pricing.NewEngine()
	quoteCache := pricing.NewCache(store, engine, cfg.QuoteCacheTTLDuration())
	quoteHandlers := pricing.NewGinHandlers(quoteCache)

	dispatcher := webhook.NewDispatcher(cfg.WebhookURL, cfg.WebhookTimeoutDuration(), cfg.WebhookRetries)

	leadService := leads.NewService(db)
	leadHandlers := leads.NewGinHandlers(leadService, idemCache, recorder)

	orderService := orders.NewService(db, leadService)
	workerPool := orders.NewWorkerPool(orderService, engine, dispatcher, repriceWorkers)
	workerPool.Start(ctx)
	orderHandlers := orders.NewGinHandlers(orderService, idemCache, recorder, dispatcher, workerPool)

	// Setup API routes
	setupRoutes(router, authService, limiter, authHandlers, leadHandlers, orderHandlers, quoteHandlers)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "autohaul-api"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop the reprice workers and let in-flight tasks finish
	cancel()
	workerPool.Wait()

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers. Mutating
// routes carry the per-principal rate limit; reads do not.
func setupRoutes(
	router *gin.Engine,
	authService *auth.Service,
	limiter *ratelimit.Limiter,
	authHandlers *auth.GinHandlers,
	leadHandlers *leads.GinHandlers,
	orderHandlers *orders.GinHandlers,
	quoteHandlers *pricing.GinHandlers,
) {
	rateLimited := middleware.RateLimit(limiter)

	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandlers.RegisterHandler())
			authGroup.POST("/login", authHandlers.LoginHandler())
		}

		// Lead routes
		leadGroup := v1.Group("/leads")
		leadGroup.Use(middleware.JWTAuth(authService))
		{
			leadGroup.POST("", rateLimited, leadHandlers.CreateLeadHandler())
			leadGroup.GET("", leadHandlers.ListLeadsHandler())
			leadGroup.GET("/:lead_id", leadHandlers.GetLeadHandler())
			leadGroup.PUT("/:lead_id", rateLimited, leadHandlers.UpdateLeadHandler())
			leadGroup.DELETE("/:lead_id", rateLimited, leadHandlers.DeleteLeadHandler())
		}

		// Order routes
		orderGroup := v1.Group("/orders")
		orderGroup.Use(middleware.JWTAuth(authService))
		{
			orderGroup.POST("", rateLimited, orderHandlers.CreateOrderHandler())
			orderGroup.GET("", orderHandlers.ListOrdersHandler())
			orderGroup.GET("/:order_id", orderHandlers.GetOrderHandler())
			orderGroup.PUT("/:order_id", rateLimited, orderHandlers.UpdateOrderHandler())
			orderGroup.DELETE("/:order_id", rateLimited, orderHandlers.DeleteOrderHandler())
			orderGroup.POST("/:order_id/reprice", rateLimited, orderHandlers.RepriceOrderHandler())
		}

		// Quote routes
		quoteGroup := v1.Group("/quotes")
		quoteGroup.Use(middleware.JWTAuth(authService))
		{
			quoteGroup.POST("/calc", quoteHandlers.CalcQuoteHandler())
		}
	}
}
