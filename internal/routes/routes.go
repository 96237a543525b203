package routes

import (
	"fmt"
	"html/template"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/voicefeedback/backend/internal/controllers"
	"github.com/voicefeedback/backend/internal/metrics"
	"github.com/voicefeedback/backend/internal/middleware"
	"github.com/voicefeedback/backend/internal/services"
	"github.com/voicefeedback/backend/web"
)

// Options carries the optional pieces wired around the feedback routes
type Options struct {
	Version     string
	Metrics     *metrics.Metrics
	Registry    *prometheus.Registry
	RateLimiter *middleware.IPRateLimiter
}

// LoadTemplates parses the embedded HTML pages
func LoadTemplates() (*template.Template, error) {
	templates, err := template.ParseFS(web.TemplateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return templates, nil
}

// SetupRoutes configures all application routes
func SetupRoutes(r *gin.Engine, feedbackService *services.FeedbackService, opts Options) error {
	templates, err := LoadTemplates()
	if err != nil {
		return err
	}
	r.SetHTMLTemplate(templates)

	// Initialize controllers
	feedbackController := controllers.NewFeedbackController(feedbackService)
	healthController := controllers.NewHealthController(feedbackService.Providers(), opts.Version)

	// Pages
	r.GET("/", feedbackController.Index)
	r.GET("/dashboard", feedbackController.Dashboard)

	// Submission is the only route that spends provider quota
	submit := []gin.HandlerFunc{}
	if opts.RateLimiter != nil {
		submit = append(submit, middleware.RateLimitMiddleware(opts.RateLimiter, opts.Metrics))
	}
	submit = append(submit, feedbackController.SubmitFeedback)
	r.POST("/submit_feedback", submit...)

	r.GET("/download_audio/:id", feedbackController.DownloadAudio)

	// API routes
	api := r.Group("/api")
	{
		api.GET("/feedback", feedbackController.ListFeedback)

		providers := api.Group("/providers")
		{
			providers.GET("", feedbackController.GetProviders)
			providers.DELETE("/calls", feedbackController.ClearProviderCalls)
		}
	}

	// Operations
	r.GET("/health", healthController.Health)
	if opts.Registry != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(opts.Registry)))
	}

	return nil
}
