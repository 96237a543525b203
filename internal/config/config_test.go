package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"PORT", "GIN_MODE", "LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
		"SENTIMENT_PROVIDER", "GENERATION_PROVIDER", "SPEECH_PROVIDER",
		"AZURE_TEXT_ANALYTICS_KEY", "AZURE_TEXT_ANALYTICS_ENDPOINT",
		"AZURE_SPEECH_KEY", "AZURE_SPEECH_REGION",
		"GROQ_API_KEY", "GROQ_MODEL", "GROQ_BASE_URL",
		"AWS_REGION", "BEDROCK_MODEL", "OLLAMA_URL", "OLLAMA_MODEL",
		"PROVIDER_TIMEOUT", "AUDIO_DIR", "RATE_LIMIT_PER_SECOND", "RATE_LIMIT_BURST",
		"CLEANUP_AUDIO_ON_SHUTDOWN",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, ProviderAuto, cfg.SentimentProvider)
	assert.Equal(t, ProviderAuto, cfg.GenerationProvider)
	assert.Equal(t, ProviderAuto, cfg.SpeechProvider)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.GroqModel)
	assert.Equal(t, 30*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, os.TempDir(), cfg.AudioDir)
	assert.Equal(t, 2.0, cfg.RateLimitPerSecond)
	assert.Equal(t, 5, cfg.RateLimitBurst)
	assert.True(t, cfg.CleanupAudioOnShutdown)

	assert.False(t, cfg.TextAnalyticsConfigured())
	assert.False(t, cfg.SpeechConfigured())
	assert.False(t, cfg.GroqConfigured())
}

func TestLoadNormalizesValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SENTIMENT_PROVIDER", " Comprehend ")
	t.Setenv("GENERATION_PROVIDER", "OLLAMA")
	t.Setenv("SPEECH_PROVIDER", "Polly")
	t.Setenv("AZURE_TEXT_ANALYTICS_ENDPOINT", "https://example.cognitiveservices.azure.com/")
	t.Setenv("AZURE_TEXT_ANALYTICS_KEY", "key")
	t.Setenv("PROVIDER_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderComprehend, cfg.SentimentProvider)
	assert.Equal(t, ProviderOllama, cfg.GenerationProvider)
	assert.Equal(t, ProviderPolly, cfg.SpeechProvider)
	assert.Equal(t, "https://example.cognitiveservices.azure.com", cfg.AzureTextAnalyticsEndpoint)
	assert.True(t, cfg.TextAnalyticsConfigured())
	assert.Equal(t, 5*time.Second, cfg.ProviderTimeout)
}

func TestLoadCredentialPairs(t *testing.T) {
	clearEnv(t)
	t.Setenv("AZURE_SPEECH_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.SpeechConfigured(), "region is required as well")

	t.Setenv("AZURE_SPEECH_REGION", "eastus")
	t.Setenv("GROQ_API_KEY", "gsk_test")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.SpeechConfigured())
	assert.True(t, cfg.GroqConfigured())
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("GENERATION_PROVIDER", "openai")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GENERATION_PROVIDER")
}

func TestLoadRejectsInvalidLimits(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROVIDER_TIMEOUT", "0s")

	_, err := Load()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("RATE_LIMIT_BURST", "-1")
	_, err = Load()
	assert.Error(t, err)
}
