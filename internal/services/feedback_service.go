package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/voicefeedback/backend/internal/logger"
	"github.com/voicefeedback/backend/internal/metrics"
	"github.com/voicefeedback/backend/internal/models"
)

var (
	ErrEmptyFeedback     = errors.New("feedback cannot be empty")
	ErrFeedbackNotFound  = errors.New("feedback not found")
	ErrAudioNotAvailable = errors.New("audio file not available")
)

// Degraded sentiment used when the classifier call fails
const (
	degradedConfidence = 0.5
)

// SubmitResult is what a successful submission reports back to the caller
type SubmitResult struct {
	ID          string           `json:"id"`
	Sentiment   models.Sentiment `json:"sentiment"`
	Confidence  float64          `json:"confidence"`
	LLMResponse string           `json:"llm_response"`
	HasAudio    bool             `json:"has_audio"`
	AudioError  *string          `json:"audio_error"`
}

// FeedbackService runs the submission pipeline and answers history queries
type FeedbackService struct {
	store     *FeedbackStore
	providers *Providers
	clock     clockwork.Clock
	metrics   *metrics.Metrics
}

// NewFeedbackService creates a new feedback service
func NewFeedbackService(store *FeedbackStore, providers *Providers, clock clockwork.Clock, m *metrics.Metrics) *FeedbackService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &FeedbackService{
		store:     store,
		providers: providers,
		clock:     clock,
		metrics:   m,
	}
}

// Submit classifies the feedback, drafts a reply, voices it and records the result.
// Only empty input and unexpected internal failures are returned as errors; every
// provider failure is absorbed into the record.
func (fs *FeedbackService) Submit(ctx context.Context, text string) (result *SubmitResult, err error) {
	feedback := strings.TrimSpace(text)
	if feedback == "" {
		return nil, ErrEmptyFeedback
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Feedback processing panicked", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
			result = nil
			err = fmt.Errorf("unexpected failure: %v", r)
		}
	}()

	// A client disconnect must not turn a half-finished submission into fallbacks.
	ctx = context.WithoutCancel(ctx)

	sentiment := fs.classify(ctx, feedback)
	reply := fs.generate(ctx, feedback, sentiment.Label)
	audioFile, audioError := fs.synthesize(ctx, reply, sentiment.Label)

	record := models.FeedbackRecord{
		ID:          uuid.New().String(),
		Feedback:    feedback,
		Sentiment:   sentiment.Label,
		Confidence:  sentiment.Confidence,
		LLMResponse: reply,
		AudioFile:   audioFile,
		Timestamp:   fs.clock.Now(),
		AudioError:  audioError,
	}

	if err := fs.store.Append(record); err != nil {
		if audioFile != nil {
			_ = os.Remove(*audioFile)
		}
		return nil, fmt.Errorf("failed to record feedback: %w", err)
	}

	fs.metrics.FeedbackSubmissions.WithLabelValues(string(record.Sentiment), strconv.FormatBool(record.HasAudio())).Inc()
	fs.metrics.FeedbackRecords.Set(float64(fs.store.Len()))

	logger.WithFeedback(record.ID).WithField("sentiment", record.Sentiment).
		WithField("confidence", record.RoundedConfidence()).
		WithField("has_audio", record.HasAudio()).
		Info("Feedback recorded")

	return &SubmitResult{
		ID:          record.ID,
		Sentiment:   record.Sentiment,
		Confidence:  record.RoundedConfidence(),
		LLMResponse: record.LLMResponse,
		HasAudio:    record.HasAudio(),
		AudioError:  record.AudioError,
	}, nil
}

func (fs *FeedbackService) classify(ctx context.Context, feedback string) SentimentResult {
	classifier := fs.providers.Classifier
	res, err := classifier.Classify(ctx, feedback)
	if err == nil && res.Label.IsValid() {
		return res
	}
	if err == nil {
		err = fmt.Errorf("classifier returned unknown label %q", res.Label)
	}

	logger.WithProvider(CapabilitySentiment, classifier.Name()).
		WithField("error", err.Error()).
		Warn("Error analyzing sentiment, using neutral fallback")
	fs.metrics.ProviderCalls.WithLabelValues(CapabilitySentiment, classifier.Name(), metrics.OutcomeFallback).Inc()

	return SentimentResult{Label: models.SentimentNeutral, Confidence: degradedConfidence}
}

func (fs *FeedbackService) generate(ctx context.Context, feedback string, sentiment models.Sentiment) string {
	generator := fs.providers.Generator
	reply, err := generator.Generate(ctx, feedback, sentiment)
	reply = strings.TrimSpace(reply)
	if err == nil && reply != "" {
		return reply
	}
	if err == nil {
		err = errors.New("generator returned an empty reply")
	}

	logger.WithProvider(CapabilityGeneration, generator.Name()).
		WithField("error", err.Error()).
		Warn("Error generating LLM response, using template reply")
	fs.metrics.ProviderCalls.WithLabelValues(CapabilityGeneration, generator.Name(), metrics.OutcomeFallback).Inc()

	return FallbackReply(sentiment)
}

func (fs *FeedbackService) synthesize(ctx context.Context, reply string, sentiment models.Sentiment) (*string, *string) {
	synthesizer := fs.providers.Synthesizer
	path, err := synthesizer.Synthesize(ctx, reply, sentiment)
	if err == nil && path != "" {
		return &path, nil
	}
	if err == nil {
		err = &SynthesisError{Kind: SynthesisFailed, Message: "Speech synthesis failed: no audio file produced"}
	}

	msg := SynthesisMessage(err)

	var synthErr *SynthesisError
	if !errors.As(err, &synthErr) || synthErr.Kind != SynthesisUnavailable {
		logger.WithProvider(CapabilitySpeech, synthesizer.Name()).
			WithField("error", err.Error()).
			Warn("Speech synthesis failed")
	}
	return nil, &msg
}

// SynthesisMessage turns any synthesis error into the diagnostic stored on the record
func SynthesisMessage(err error) string {
	var synthErr *SynthesisError
	if errors.As(err, &synthErr) {
		return synthErr.Message
	}
	return synthesisFailed(err).Message
}

// List returns every record in submission order
func (fs *FeedbackService) List() []models.FeedbackRecord {
	return fs.store.List()
}

// Get returns a single record
func (fs *FeedbackService) Get(id string) (models.FeedbackRecord, error) {
	record, ok := fs.store.Get(id)
	if !ok {
		return models.FeedbackRecord{}, ErrFeedbackNotFound
	}
	return record, nil
}

// AudioFor returns the artifact path for a record
func (fs *FeedbackService) AudioFor(id string) (string, error) {
	record, err := fs.Get(id)
	if err != nil {
		return "", err
	}
	if !record.HasAudio() {
		return "", ErrAudioNotAvailable
	}
	return *record.AudioFile, nil
}

// Providers exposes the active provider set
func (fs *FeedbackService) Providers() *Providers {
	return fs.providers
}

// RemoveAudioFiles deletes every artifact owned by stored records. It is only
// meant for process shutdown; records keep pointing at the removed paths.
func (fs *FeedbackService) RemoveAudioFiles() int {
	removed := 0
	for _, path := range fs.store.AudioFiles() {
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logger.Warn("Failed to remove audio file", map[string]interface{}{
					"path":  path,
					"error": err.Error(),
				})
			}
			continue
		}
		removed++
	}
	return removed
}
