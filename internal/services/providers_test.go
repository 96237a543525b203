package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicefeedback/backend/internal/config"
)

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ProviderTimeout: time.Second,
		AudioDir:        t.TempDir(),
		GroqModel:       "llama-3.1-8b-instant",
		OllamaModel:     "llama3",
		AWSRegion:       "us-east-1",
	}
}

func TestNewProvidersFallsBackToLocal(t *testing.T) {
	providers, err := NewProviders(context.Background(), baseConfig(t), nil)
	require.NoError(t, err)

	assert.Equal(t, "keyword", providers.Classifier.Name())
	assert.Equal(t, "template", providers.Generator.Name())
	assert.Equal(t, "none", providers.Synthesizer.Name())

	for _, s := range providers.Status() {
		assert.False(t, s.Remote, s.Capability)
		assert.Empty(t, s.Breaker)
	}
	assert.Equal(t, map[string]string{
		CapabilitySentiment:  "local",
		CapabilityGeneration: "local",
		CapabilitySpeech:     "local",
	}, providers.CheckHealth(context.Background()))
}

func TestNewProvidersAutoSelectsConfiguredServices(t *testing.T) {
	cfg := baseConfig(t)
	cfg.AzureTextAnalyticsKey = "k"
	cfg.AzureTextAnalyticsEndpoint = "https://example.cognitiveservices.azure.com"
	cfg.AzureSpeechKey = "k"
	cfg.AzureSpeechRegion = "westeurope"
	cfg.GroqAPIKey = "gsk"

	providers, err := NewProviders(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, "azure-text-analytics", providers.Classifier.Name())
	assert.Equal(t, "groq (llama-3.1-8b-instant)", providers.Generator.Name())
	assert.Equal(t, "azure-speech (westeurope)", providers.Synthesizer.Name())

	for _, s := range providers.Status() {
		assert.True(t, s.Remote, s.Capability)
		assert.Equal(t, "closed", s.Breaker)
	}
}

func TestNewProvidersExplicitWithoutCredentials(t *testing.T) {
	cfg := baseConfig(t)
	cfg.SentimentProvider = config.ProviderAzure
	cfg.GenerationProvider = config.ProviderGroq
	cfg.SpeechProvider = config.ProviderAzure

	providers, err := NewProviders(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, "keyword", providers.Classifier.Name())
	assert.Equal(t, "template", providers.Generator.Name())
	assert.Equal(t, "none", providers.Synthesizer.Name())
}

func TestNewProvidersOllamaHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := baseConfig(t)
	cfg.GenerationProvider = config.ProviderOllama
	cfg.OllamaURL = srv.URL

	providers, err := NewProviders(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "ollama (llama3)", providers.Generator.Name())

	health := providers.CheckHealth(context.Background())
	assert.Equal(t, "healthy", health[CapabilityGeneration])

	srv.Close()
	health = providers.CheckHealth(context.Background())
	assert.Contains(t, health[CapabilityGeneration], "unhealthy")
}

func TestNewProvidersRejectsUnknownProvider(t *testing.T) {
	cfg := baseConfig(t)
	cfg.SpeechProvider = "espeak"

	_, err := NewProviders(context.Background(), cfg, nil)
	assert.Error(t, err)
}
