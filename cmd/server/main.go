package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/voicefeedback/backend/internal/config"
	"github.com/voicefeedback/backend/internal/logger"
	"github.com/voicefeedback/backend/internal/metrics"
	"github.com/voicefeedback/backend/internal/middleware"
	"github.com/voicefeedback/backend/internal/routes"
	"github.com/voicefeedback/backend/internal/services"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 30 * time.Second
)

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := os.Getenv("CORS_ORIGIN")
		if origin == "" {
			origin = "*"
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		// Handle preflight request
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	logger.Initialize(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if !cfg.DotEnvLoaded {
		logger.Warn("No .env file found, using environment variables", nil)
	}

	// Set Gin mode
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := metrics.NewRegistry()
	m := metrics.New(registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	providers, err := services.NewProviders(ctx, cfg, m)
	if err != nil {
		logger.Fatal("Failed to initialize providers", map[string]interface{}{
			"error": err.Error(),
		})
	}

	store := services.NewFeedbackStore()
	feedbackService := services.NewFeedbackService(store, providers, clockwork.NewRealClock(), m)

	// Create router without default middleware
	r := gin.New()

	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	r.Use(middleware.RequestID())
	r.Use(middleware.CustomLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware(m))
	r.Use(CORSMiddleware())
	r.Use(gin.Recovery())

	opts := routes.Options{
		Version:  version,
		Metrics:  m,
		Registry: registry,
	}
	if cfg.RateLimitPerSecond > 0 {
		opts.RateLimiter = middleware.NewIPRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst, nil)
	}

	if err := routes.SetupRoutes(r, feedbackService, opts); err != nil {
		logger.Fatal("Failed to set up routes", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Starting voice feedback server", map[string]interface{}{
		"port":      cfg.Port,
		"gin_mode":  gin.Mode(),
		"audio_dir": cfg.AudioDir,
	})

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("Shutting down server gracefully...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		logger.Info("Server exited gracefully", nil)
	}

	if cfg.CleanupAudioOnShutdown {
		removed := feedbackService.RemoveAudioFiles()
		logger.Info("Removed audio files", map[string]interface{}{
			"count": removed,
		})
	}
}
