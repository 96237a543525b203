package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/voicefeedback/backend/internal/services"
)

const healthCheckTimeout = 5 * time.Second

type HealthController struct {
	providers *services.Providers
	version   string
	startTime time.Time
}

func NewHealthController(providers *services.Providers, version string) *HealthController {
	return &HealthController{
		providers: providers,
		version:   version,
		startTime: time.Now(),
	}
}

// Health reports the server and provider state. Provider trouble only marks the
// service degraded; the API keeps answering with fallbacks.
func (hc *HealthController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := hc.providers.CheckHealth(ctx)

	overallStatus := "ok"
	providers := gin.H{}
	for capability, status := range checks {
		providers[capability] = gin.H{"status": status}
		if strings.HasPrefix(status, "unhealthy") || strings.HasPrefix(status, "degraded") {
			overallStatus = "degraded"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   hc.version,
		"uptime":    time.Since(hc.startTime).Round(time.Second).String(),
		"services":  providers,
	})
}
