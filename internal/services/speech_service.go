package services

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
	"github.com/voicefeedback/backend/internal/models"
)

// SpeechSynthesizer turns a reply into a WAV file and returns its path
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string, sentiment models.Sentiment) (string, error)
	Name() string
}

type SynthesisErrorKind string

const (
	SynthesisUnavailable SynthesisErrorKind = "unavailable"
	SynthesisCancelled   SynthesisErrorKind = "cancelled"
	SynthesisFailed      SynthesisErrorKind = "failed"
)

// SynthesisError carries the message that ends up in a record's audio_error
type SynthesisError struct {
	Kind    SynthesisErrorKind
	Message string
	// InputRejected is set when the service refused this text, not when it is unhealthy
	InputRejected bool
}

func (e *SynthesisError) Error() string {
	return e.Message
}

const maxSynthesisDetail = 100

// ErrSpeechNotConfigured is returned when no speech provider is set up
var ErrSpeechNotConfigured = &SynthesisError{Kind: SynthesisUnavailable, Message: "Speech service not configured"}

func synthesisCancelled(reason, details string) *SynthesisError {
	msg := "Speech cancelled: " + reason
	if details = strings.TrimSpace(details); details != "" {
		msg += " - " + truncate(details, maxSynthesisDetail)
	}
	return &SynthesisError{Kind: SynthesisCancelled, Message: msg}
}

func synthesisFailed(err error) *SynthesisError {
	return &SynthesisError{
		Kind:    SynthesisFailed,
		Message: fmt.Sprintf("Audio generation temporarily unavailable: %s...", truncate(err.Error(), maxSynthesisDetail)),
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// sanitizeSpeechText drops quote characters and surrounding whitespace
func sanitizeSpeechText(text string) string {
	text = strings.ReplaceAll(text, `"`, "")
	text = strings.ReplaceAll(text, "'", "")
	return strings.TrimSpace(text)
}

// newAudioFile allocates an empty .wav file in dir
func newAudioFile(dir string) (string, error) {
	f, err := os.CreateTemp(dir, "response_*.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create audio file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("failed to close audio file: %w", err)
	}
	return name, nil
}

// UnconfiguredSynthesizer is used when no speech service is available
type UnconfiguredSynthesizer struct{}

func NewUnconfiguredSynthesizer() *UnconfiguredSynthesizer {
	return &UnconfiguredSynthesizer{}
}

func (u *UnconfiguredSynthesizer) Name() string {
	return "none"
}

func (u *UnconfiguredSynthesizer) Synthesize(context.Context, string, models.Sentiment) (string, error) {
	return "", ErrSpeechNotConfigured
}

var azureVoices = map[models.Sentiment]string{
	models.SentimentPositive: "en-US-JennyNeural",
	models.SentimentNegative: "en-US-AriaNeural",
	models.SentimentNeutral:  "en-US-DavisNeural",
}

const azureDefaultVoice = "en-US-AriaNeural"

// AzureVoiceFor maps a sentiment to an Azure neural voice
func AzureVoiceFor(sentiment models.Sentiment) string {
	if v, ok := azureVoices[sentiment]; ok {
		return v
	}
	return azureDefaultVoice
}

// AzureSpeechSynthesizer uses the Azure Speech text-to-speech REST API
type AzureSpeechSynthesizer struct {
	apiKey   string
	region   string
	endpoint string
	audioDir string
	client   *http.Client
}

func NewAzureSpeechSynthesizer(apiKey, region, audioDir string, client *http.Client) *AzureSpeechSynthesizer {
	if client == nil {
		client = &http.Client{}
	}
	return &AzureSpeechSynthesizer{
		apiKey:   apiKey,
		region:   region,
		endpoint: fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region),
		audioDir: audioDir,
		client:   client,
	}
}

func (a *AzureSpeechSynthesizer) Name() string {
	return fmt.Sprintf("azure-speech (%s)", a.region)
}

func buildSSML(text, voice string) (string, error) {
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return "", err
	}
	return fmt.Sprintf(`<speak version='1.0' xml:lang='en-US'><voice name='%s'>%s</voice></speak>`, voice, escaped.String()), nil
}

func (a *AzureSpeechSynthesizer) Synthesize(ctx context.Context, text string, sentiment models.Sentiment) (string, error) {
	path, err := newAudioFile(a.audioDir)
	if err != nil {
		return "", synthesisFailed(err)
	}

	if err := a.synthesizeTo(ctx, path, sanitizeSpeechText(text), AzureVoiceFor(sentiment)); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

func (a *AzureSpeechSynthesizer) synthesizeTo(ctx context.Context, path, text, voice string) error {
	ssml, err := buildSSML(text, voice)
	if err != nil {
		return synthesisFailed(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, strings.NewReader(ssml))
	if err != nil {
		return synthesisFailed(err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.apiKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", "riff-24khz-16bit-mono-pcm")
	req.Header.Set("User-Agent", "voicefeedback-backend")

	resp, err := a.client.Do(req)
	if err != nil {
		return synthesisFailed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		cancelled := synthesisCancelled(azureCancellationReason(resp.StatusCode), string(body))
		cancelled.InputRejected = resp.StatusCode == http.StatusBadRequest
		return cancelled
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return synthesisFailed(err)
	}
	if len(audio) == 0 {
		return &SynthesisError{Kind: SynthesisFailed, Message: "Speech synthesis failed: empty audio response"}
	}

	if err := os.WriteFile(path, audio, 0644); err != nil {
		return synthesisFailed(err)
	}
	return nil
}

func azureCancellationReason(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BadRequest"
	case http.StatusUnauthorized, http.StatusForbidden:
		return "AuthenticationFailure"
	case http.StatusTooManyRequests:
		return "TooManyRequests"
	default:
		return fmt.Sprintf("Error (status %d)", status)
	}
}

var pollyVoices = map[models.Sentiment]pollytypes.VoiceId{
	models.SentimentPositive: pollytypes.VoiceIdJoanna,
	models.SentimentNegative: pollytypes.VoiceIdKendra,
	models.SentimentNeutral:  pollytypes.VoiceIdMatthew,
}

const pollySampleRate = 16000

// PollyVoiceFor maps a sentiment to an Amazon Polly voice
func PollyVoiceFor(sentiment models.Sentiment) pollytypes.VoiceId {
	if v, ok := pollyVoices[sentiment]; ok {
		return v
	}
	return pollytypes.VoiceIdKendra
}

// pollyAPI is the part of the Polly client we use
type pollyAPI interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollySynthesizer uses Amazon Polly and wraps its raw PCM output in a WAV container
type PollySynthesizer struct {
	client   pollyAPI
	audioDir string
}

func NewPollySynthesizer(client pollyAPI, audioDir string) *PollySynthesizer {
	return &PollySynthesizer{client: client, audioDir: audioDir}
}

func (p *PollySynthesizer) Name() string {
	return "aws-polly"
}

func (p *PollySynthesizer) Synthesize(ctx context.Context, text string, sentiment models.Sentiment) (string, error) {
	path, err := newAudioFile(p.audioDir)
	if err != nil {
		return "", synthesisFailed(err)
	}

	if err := p.synthesizeTo(ctx, path, sanitizeSpeechText(text), PollyVoiceFor(sentiment)); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

func (p *PollySynthesizer) synthesizeTo(ctx context.Context, path, text string, voice pollytypes.VoiceId) error {
	out, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       pollytypes.EngineNeural,
		OutputFormat: pollytypes.OutputFormatPcm,
		SampleRate:   aws.String(fmt.Sprint(pollySampleRate)),
		Text:         aws.String(text),
		VoiceId:      voice,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			cancelled := synthesisCancelled(apiErr.ErrorCode(), apiErr.ErrorMessage())
			cancelled.InputRejected = pollyRejectedInput(apiErr)
			return cancelled
		}
		return synthesisFailed(err)
	}
	defer out.AudioStream.Close()

	pcm, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return synthesisFailed(err)
	}
	if len(pcm) == 0 {
		return &SynthesisError{Kind: SynthesisFailed, Message: "Speech synthesis failed: empty audio response"}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return synthesisFailed(err)
	}
	if err := writeWAV(f, pcm, pollySampleRate, 1, 16); err != nil {
		f.Close()
		return synthesisFailed(err)
	}
	if err := f.Close(); err != nil {
		return synthesisFailed(err)
	}
	return nil
}

// pollyRejectedInput reports client faults caused by the request text or voice,
// as opposed to throttling and credential problems.
func pollyRejectedInput(apiErr smithy.APIError) bool {
	if apiErr.ErrorFault() != smithy.FaultClient {
		return false
	}
	switch apiErr.ErrorCode() {
	case "ThrottlingException", "TooManyRequestsException",
		"UnrecognizedClientException", "AccessDeniedException", "InvalidSignatureException":
		return false
	}
	return true
}

// guardedSynthesizer routes a real synthesizer through its provider guard
type guardedSynthesizer struct {
	inner SpeechSynthesizer
	guard *providerGuard
}

func (g *guardedSynthesizer) Name() string {
	return g.inner.Name()
}

func (g *guardedSynthesizer) Synthesize(ctx context.Context, text string, sentiment models.Sentiment) (string, error) {
	return guardCall(ctx, g.guard, len(text), func(ctx context.Context) (string, error) {
		return g.inner.Synthesize(ctx, text, sentiment)
	})
}
