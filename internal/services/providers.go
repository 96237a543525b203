package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/voicefeedback/backend/internal/config"
	"github.com/voicefeedback/backend/internal/logger"
	"github.com/voicefeedback/backend/internal/metrics"
)

// Providers is the set of external capabilities chosen at startup
type Providers struct {
	Classifier  SentimentClassifier
	Generator   ResponseGenerator
	Synthesizer SpeechSynthesizer
	Calls       *CallLog

	guards       map[string]*providerGuard
	healthChecks map[string]func(context.Context) error
}

// ProviderStatus describes one active provider
type ProviderStatus struct {
	Capability string `json:"capability"`
	Provider   string `json:"provider"`
	Remote     bool   `json:"remote"`
	Breaker    string `json:"breaker,omitempty"`
}

// NewLocalProviders returns the providers that need no credentials or network
func NewLocalProviders() *Providers {
	return &Providers{
		Classifier:   NewKeywordClassifier(),
		Generator:    NewTemplateGenerator(),
		Synthesizer:  NewUnconfiguredSynthesizer(),
		Calls:        NewCallLog(defaultCallLogSize),
		guards:       make(map[string]*providerGuard),
		healthChecks: make(map[string]func(context.Context) error),
	}
}

// providerFactory builds the remote providers selected by configuration
type providerFactory struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	client  *http.Client
	aws     *aws.Config
	p       *Providers
}

// NewProviders selects one provider per capability. A remote provider whose
// credentials are missing is replaced by its local stand-in so the others keep working.
func NewProviders(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Providers, error) {
	if m == nil {
		m = metrics.NewNop()
	}
	f := &providerFactory{
		cfg:     cfg,
		metrics: m,
		client:  &http.Client{Timeout: cfg.ProviderTimeout},
		p:       NewLocalProviders(),
	}

	if err := f.sentiment(ctx); err != nil {
		return nil, err
	}
	if err := f.generation(ctx); err != nil {
		return nil, err
	}
	if err := f.speech(ctx); err != nil {
		return nil, err
	}

	for _, s := range f.p.Status() {
		logger.WithProvider(s.Capability, s.Provider).WithField("remote", s.Remote).Info("Provider selected")
	}
	return f.p, nil
}

func (f *providerFactory) awsConfig(ctx context.Context) (aws.Config, error) {
	if f.aws != nil {
		return *f.aws, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(f.cfg.AWSRegion))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	f.aws = &cfg
	return cfg, nil
}

func (f *providerFactory) guard(capability, provider string) *providerGuard {
	g := newProviderGuard(capability, provider, f.cfg.ProviderTimeout, f.metrics, f.p.Calls)
	f.p.guards[capability] = g
	return g
}

func missingCredentials(capability, provider, fallback string) {
	logger.WithProvider(capability, provider).
		WithField("fallback", fallback).
		Warn("Provider credentials not configured, using local fallback")
}

func (f *providerFactory) sentiment(ctx context.Context) error {
	var inner SentimentClassifier

	switch f.cfg.SentimentProvider {
	case config.ProviderKeyword:
		return nil
	case config.ProviderAuto:
		if !f.cfg.TextAnalyticsConfigured() {
			return nil
		}
		inner = NewAzureTextAnalyticsClassifier(f.cfg.AzureTextAnalyticsEndpoint, f.cfg.AzureTextAnalyticsKey, f.client)
	case config.ProviderAzure:
		if !f.cfg.TextAnalyticsConfigured() {
			missingCredentials(CapabilitySentiment, config.ProviderAzure, "keyword")
			return nil
		}
		inner = NewAzureTextAnalyticsClassifier(f.cfg.AzureTextAnalyticsEndpoint, f.cfg.AzureTextAnalyticsKey, f.client)
	case config.ProviderComprehend:
		awsCfg, err := f.awsConfig(ctx)
		if err != nil {
			return err
		}
		inner = NewComprehendClassifier(comprehend.NewFromConfig(awsCfg))
	default:
		return fmt.Errorf("unsupported sentiment provider: %s", f.cfg.SentimentProvider)
	}

	f.p.Classifier = &guardedClassifier{inner: inner, guard: f.guard(CapabilitySentiment, inner.Name())}
	return nil
}

func (f *providerFactory) generation(ctx context.Context) error {
	var inner ResponseGenerator

	switch f.cfg.GenerationProvider {
	case config.ProviderTemplate:
		return nil
	case config.ProviderAuto:
		if !f.cfg.GroqConfigured() {
			return nil
		}
		inner = NewGroqGenerator(f.cfg.GroqAPIKey, f.cfg.GroqModel, f.cfg.GroqBaseURL, f.client)
	case config.ProviderGroq:
		if !f.cfg.GroqConfigured() {
			missingCredentials(CapabilityGeneration, config.ProviderGroq, "template")
			return nil
		}
		inner = NewGroqGenerator(f.cfg.GroqAPIKey, f.cfg.GroqModel, f.cfg.GroqBaseURL, f.client)
	case config.ProviderBedrock:
		awsCfg, err := f.awsConfig(ctx)
		if err != nil {
			return err
		}
		inner = NewBedrockGenerator(bedrockruntime.NewFromConfig(awsCfg), f.cfg.BedrockModel)
	case config.ProviderOllama:
		ollama := NewOllamaGenerator(f.cfg.OllamaURL, f.cfg.OllamaModel, f.client)
		f.p.healthChecks[CapabilityGeneration] = ollama.CheckHealth
		inner = ollama
	default:
		return fmt.Errorf("unsupported generation provider: %s", f.cfg.GenerationProvider)
	}

	f.p.Generator = &guardedGenerator{inner: inner, guard: f.guard(CapabilityGeneration, inner.Name())}
	return nil
}

func (f *providerFactory) speech(ctx context.Context) error {
	var inner SpeechSynthesizer

	switch f.cfg.SpeechProvider {
	case config.ProviderNone:
		return nil
	case config.ProviderAuto:
		if !f.cfg.SpeechConfigured() {
			return nil
		}
		inner = NewAzureSpeechSynthesizer(f.cfg.AzureSpeechKey, f.cfg.AzureSpeechRegion, f.cfg.AudioDir, f.client)
	case config.ProviderAzure:
		if !f.cfg.SpeechConfigured() {
			missingCredentials(CapabilitySpeech, config.ProviderAzure, "none")
			return nil
		}
		inner = NewAzureSpeechSynthesizer(f.cfg.AzureSpeechKey, f.cfg.AzureSpeechRegion, f.cfg.AudioDir, f.client)
	case config.ProviderPolly:
		awsCfg, err := f.awsConfig(ctx)
		if err != nil {
			return err
		}
		inner = NewPollySynthesizer(polly.NewFromConfig(awsCfg), f.cfg.AudioDir)
	default:
		return fmt.Errorf("unsupported speech provider: %s", f.cfg.SpeechProvider)
	}

	f.p.Synthesizer = &guardedSynthesizer{inner: inner, guard: f.guard(CapabilitySpeech, inner.Name())}
	return nil
}

// Status lists the active provider for every capability
func (p *Providers) Status() []ProviderStatus {
	entries := []struct {
		capability string
		name       string
	}{
		{CapabilitySentiment, p.Classifier.Name()},
		{CapabilityGeneration, p.Generator.Name()},
		{CapabilitySpeech, p.Synthesizer.Name()},
	}

	status := make([]ProviderStatus, 0, len(entries))
	for _, e := range entries {
		s := ProviderStatus{Capability: e.capability, Provider: e.name}
		if g, ok := p.guards[e.capability]; ok {
			s.Remote = true
			s.Breaker = g.State().String()
		}
		status = append(status, s)
	}
	return status
}

// CheckHealth runs the providers' own health checks. Providers without a check
// are reported from their breaker state.
func (p *Providers) CheckHealth(ctx context.Context) map[string]string {
	result := make(map[string]string)
	for _, s := range p.Status() {
		switch {
		case p.healthChecks[s.Capability] != nil:
			if err := p.healthChecks[s.Capability](ctx); err != nil {
				result[s.Capability] = "unhealthy: " + err.Error()
			} else {
				result[s.Capability] = "healthy"
			}
		case !s.Remote:
			result[s.Capability] = "local"
		case s.Breaker == "open":
			result[s.Capability] = "degraded: circuit open"
		default:
			result[s.Capability] = "healthy"
		}
	}
	return result
}
