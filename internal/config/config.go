package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Provider names accepted by the *_PROVIDER variables. An empty value means
// "use the Azure/Groq service when its credentials are present".
const (
	ProviderAuto       = ""
	ProviderAzure      = "azure"
	ProviderComprehend = "comprehend"
	ProviderKeyword    = "keyword"
	ProviderGroq       = "groq"
	ProviderBedrock    = "bedrock"
	ProviderOllama     = "ollama"
	ProviderTemplate   = "template"
	ProviderPolly      = "polly"
	ProviderNone       = "none"
)

// Config holds all application configuration
type Config struct {
	Port      string `env:"PORT" default:"5000"`
	GinMode   string `env:"GIN_MODE"`
	LogLevel  string `env:"LOG_LEVEL" default:"INFO"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
	LogFile   string `env:"LOG_FILE"`

	SentimentProvider  string `env:"SENTIMENT_PROVIDER"`
	GenerationProvider string `env:"GENERATION_PROVIDER"`
	SpeechProvider     string `env:"SPEECH_PROVIDER"`

	AzureTextAnalyticsKey      string `env:"AZURE_TEXT_ANALYTICS_KEY"`
	AzureTextAnalyticsEndpoint string `env:"AZURE_TEXT_ANALYTICS_ENDPOINT"`
	AzureSpeechKey             string `env:"AZURE_SPEECH_KEY"`
	AzureSpeechRegion          string `env:"AZURE_SPEECH_REGION"`

	GroqAPIKey  string `env:"GROQ_API_KEY"`
	GroqModel   string `env:"GROQ_MODEL" default:"llama-3.1-8b-instant"`
	GroqBaseURL string `env:"GROQ_BASE_URL" default:"https://api.groq.com/openai/v1"`

	AWSRegion    string `env:"AWS_REGION" default:"us-east-1"`
	BedrockModel string `env:"BEDROCK_MODEL" default:"anthropic.claude-3-haiku-20240307-v1:0"`

	OllamaURL   string `env:"OLLAMA_URL" default:"http://localhost:11434"`
	OllamaModel string `env:"OLLAMA_MODEL" default:"llama3"`

	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" default:"30s"`
	AudioDir        string        `env:"AUDIO_DIR"`

	RateLimitPerSecond float64 `env:"RATE_LIMIT_PER_SECOND" default:"2"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST" default:"5"`

	CleanupAudioOnShutdown bool `env:"CLEANUP_AUDIO_ON_SHUTDOWN" default:"true"`

	// DotEnvLoaded is false when no .env file was found
	DotEnvLoaded bool
}

// Load reads an optional .env file and then the process environment
func Load() (*Config, error) {
	loaded := godotenv.Load() == nil

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg.DotEnvLoaded = loaded

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.SentimentProvider = strings.ToLower(strings.TrimSpace(c.SentimentProvider))
	c.GenerationProvider = strings.ToLower(strings.TrimSpace(c.GenerationProvider))
	c.SpeechProvider = strings.ToLower(strings.TrimSpace(c.SpeechProvider))
	c.AzureTextAnalyticsEndpoint = strings.TrimRight(c.AzureTextAnalyticsEndpoint, "/")
	if c.AudioDir == "" {
		c.AudioDir = os.TempDir()
	}
}

func (c *Config) validate() error {
	allowed := map[string][]string{
		"SENTIMENT_PROVIDER":  {ProviderAuto, ProviderAzure, ProviderComprehend, ProviderKeyword},
		"GENERATION_PROVIDER": {ProviderAuto, ProviderGroq, ProviderBedrock, ProviderOllama, ProviderTemplate},
		"SPEECH_PROVIDER":     {ProviderAuto, ProviderAzure, ProviderPolly, ProviderNone},
	}
	values := map[string]string{
		"SENTIMENT_PROVIDER":  c.SentimentProvider,
		"GENERATION_PROVIDER": c.GenerationProvider,
		"SPEECH_PROVIDER":     c.SpeechProvider,
	}
	for name, value := range values {
		if !contains(allowed[name], value) {
			return fmt.Errorf("%s has unsupported value %q", name, value)
		}
	}

	if c.ProviderTimeout <= 0 {
		return errors.New("PROVIDER_TIMEOUT must be positive")
	}
	if c.RateLimitPerSecond < 0 || c.RateLimitBurst < 0 {
		return errors.New("RATE_LIMIT_PER_SECOND and RATE_LIMIT_BURST must not be negative")
	}
	return nil
}

// TextAnalyticsConfigured reports whether both Azure Text Analytics settings are present
func (c *Config) TextAnalyticsConfigured() bool {
	return c.AzureTextAnalyticsKey != "" && c.AzureTextAnalyticsEndpoint != ""
}

// SpeechConfigured reports whether both Azure Speech settings are present
func (c *Config) SpeechConfigured() bool {
	return c.AzureSpeechKey != "" && c.AzureSpeechRegion != ""
}

// GroqConfigured reports whether a Groq API key is present
func (c *Config) GroqConfigured() bool {
	return c.GroqAPIKey != ""
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
