package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/voicefeedback/backend/internal/logger"
	"github.com/voicefeedback/backend/internal/models"
	"github.com/voicefeedback/backend/internal/services"
)

const maxErrorDetail = 200

type FeedbackController struct {
	feedbackService *services.FeedbackService
}

func NewFeedbackController(feedbackService *services.FeedbackService) *FeedbackController {
	return &FeedbackController{feedbackService: feedbackService}
}

// SubmitFeedbackRequest is the body accepted by SubmitFeedback
type SubmitFeedbackRequest struct {
	Feedback string `json:"feedback"`
}

// DashboardData is rendered by the dashboard template
type DashboardData struct {
	Records  []models.FeedbackRecord
	Total    int
	Positive int
	Negative int
	Neutral  int
}

// Index serves the feedback form
func (fc *FeedbackController) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", nil)
}

// SubmitFeedback runs a submission through classification, reply and speech
func (fc *FeedbackController) SubmitFeedback(c *gin.Context) {
	var req SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Debug("Invalid feedback body", map[string]interface{}{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := fc.feedbackService.Submit(c.Request.Context(), req.Feedback)
	if err != nil {
		if errors.Is(err, services.ErrEmptyFeedback) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Feedback cannot be empty"})
			return
		}
		logger.WithError(err, "feedback_controller").Error("Failed to process feedback")
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Processing failed: %s", truncateDetail(err.Error()))})
		return
	}

	c.JSON(http.StatusOK, result)
}

// DownloadAudio sends the WAV file recorded for a feedback entry
func (fc *FeedbackController) DownloadAudio(c *gin.Context) {
	id := c.Param("id")

	path, err := fc.feedbackService.AudioFor(id)
	switch {
	case errors.Is(err, services.ErrFeedbackNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Feedback not found"})
		return
	case errors.Is(err, services.ErrAudioNotAvailable):
		c.JSON(http.StatusNotFound, gin.H{"error": "Audio file not available"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Download failed: %s", truncateDetail(err.Error()))})
		return
	}

	f, err := os.Open(path)
	if err != nil {
		logger.WithFeedback(id).WithField("path", path).WithField("error", err.Error()).Error("Failed to open audio file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Download failed: %s", truncateDetail(err.Error()))})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Download failed: %s", truncateDetail(err.Error()))})
		return
	}

	c.DataFromReader(http.StatusOK, info.Size(), "audio/wav", f, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="response_%s.wav"`, id),
	})
}

// Dashboard renders every feedback record
func (fc *FeedbackController) Dashboard(c *gin.Context) {
	records := fc.feedbackService.List()

	data := DashboardData{Records: records, Total: len(records)}
	for _, r := range records {
		switch r.Sentiment {
		case models.SentimentPositive:
			data.Positive++
		case models.SentimentNegative:
			data.Negative++
		case models.SentimentNeutral:
			data.Neutral++
		}
	}

	c.HTML(http.StatusOK, "dashboard.html", data)
}

// ListFeedback returns every record as JSON, oldest first
func (fc *FeedbackController) ListFeedback(c *gin.Context) {
	c.JSON(http.StatusOK, fc.feedbackService.List())
}

// GetProviders reports the active providers and recent provider calls
func (fc *FeedbackController) GetProviders(c *gin.Context) {
	providers := fc.feedbackService.Providers()
	c.JSON(http.StatusOK, gin.H{
		"providers": providers.Status(),
		"calls":     providers.Calls.Calls(),
	})
}

// ClearProviderCalls empties the provider call log
func (fc *FeedbackController) ClearProviderCalls(c *gin.Context) {
	fc.feedbackService.Providers().Calls.Clear()
	c.JSON(http.StatusOK, gin.H{"message": "Provider call log cleared"})
}

func truncateDetail(s string) string {
	r := []rune(s)
	if len(r) <= maxErrorDetail {
		return s
	}
	return string(r[:maxErrorDetail]) + "..."
}
