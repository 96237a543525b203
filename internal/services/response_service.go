package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/voicefeedback/backend/internal/models"
)

// ResponseGenerator drafts a reply to a piece of feedback
type ResponseGenerator interface {
	Generate(ctx context.Context, feedback string, sentiment models.Sentiment) (string, error)
	Name() string
}

// TemplateGenerator answers with a fixed reply per sentiment
type TemplateGenerator struct{}

func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

func (t *TemplateGenerator) Name() string {
	return "template"
}

func (t *TemplateGenerator) Generate(_ context.Context, _ string, sentiment models.Sentiment) (string, error) {
	return FallbackReply(sentiment), nil
}

// GroqGenerator calls Groq's OpenAI-compatible chat completions API
type GroqGenerator struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewGroqGenerator(apiKey, model, baseURL string, client *http.Client) *GroqGenerator {
	if model == "" {
		model = "llama-3.1-8b-instant"
	}
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	if client == nil {
		client = &http.Client{}
	}
	return &GroqGenerator{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (g *GroqGenerator) Name() string {
	return fmt.Sprintf("groq (%s)", g.model)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (g *GroqGenerator) Generate(ctx context.Context, feedback string, sentiment models.Sentiment) (string, error) {
	reqBody := chatCompletionRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: REPLY_SYSTEM_PROMPT},
			{Role: "user", Content: BuildReplyPrompt(feedback, sentiment)},
		},
		MaxTokens:   replyMaxTokens,
		Temperature: replyTemperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call Groq API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Groq API returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode Groq response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("Groq returned no choices")
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// bedrockAPI is the part of the Bedrock runtime client we use
type bedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockGenerator invokes an Anthropic model hosted on AWS Bedrock
type BedrockGenerator struct {
	client bedrockAPI
	model  string
}

func NewBedrockGenerator(client bedrockAPI, model string) *BedrockGenerator {
	if model == "" {
		model = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	return &BedrockGenerator{client: client, model: model}
}

func (b *BedrockGenerator) Name() string {
	return fmt.Sprintf("bedrock (%s)", b.model)
}

type bedrockClaudeRequest struct {
	System           string        `json:"system,omitempty"`
	Messages         []chatMessage `json:"messages"`
	MaxTokens        int           `json:"max_tokens"`
	Temperature      float64       `json:"temperature"`
	AnthropicVersion string        `json:"anthropic_version"`
}

type bedrockClaudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (b *BedrockGenerator) Generate(ctx context.Context, feedback string, sentiment models.Sentiment) (string, error) {
	reqBody := bedrockClaudeRequest{
		System: REPLY_SYSTEM_PROMPT,
		Messages: []chatMessage{
			{Role: "user", Content: BuildReplyPrompt(feedback, sentiment)},
		},
		MaxTokens:        replyMaxTokens,
		Temperature:      replyTemperature,
		AnthropicVersion: "bedrock-2023-05-31",
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        jsonData,
	})
	if err != nil {
		return "", fmt.Errorf("failed to call Bedrock API: %w", err)
	}

	var bedrockResp bedrockClaudeResponse
	if err := json.Unmarshal(resp.Body, &bedrockResp); err != nil {
		return "", fmt.Errorf("failed to decode Bedrock response: %w", err)
	}

	var text strings.Builder
	for _, block := range bedrockResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("Bedrock returned no content")
	}
	return strings.TrimSpace(text.String()), nil
}

// OllamaGenerator talks to a local Ollama server
type OllamaGenerator struct {
	baseURL string
	model   string
	client  *http.Client
}

type OllamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	System  string                 `json:"system,omitempty"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type OllamaGenerateResponse struct {
	Model     string `json:"model"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	CreatedAt string `json:"created_at"`
}

func NewOllamaGenerator(ollamaURL, model string, client *http.Client) *OllamaGenerator {
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	if client == nil {
		client = &http.Client{}
	}
	return &OllamaGenerator{
		baseURL: strings.TrimRight(ollamaURL, "/"),
		model:   model,
		client:  client,
	}
}

func (o *OllamaGenerator) Name() string {
	return fmt.Sprintf("ollama (%s)", o.model)
}

func (o *OllamaGenerator) Generate(ctx context.Context, feedback string, sentiment models.Sentiment) (string, error) {
	request := OllamaGenerateRequest{
		Model:  o.model,
		Prompt: BuildReplyPrompt(feedback, sentiment),
		System: REPLY_SYSTEM_PROMPT,
		Stream: false,
		Options: map[string]interface{}{
			"temperature": replyTemperature,
			"num_predict": replyMaxTokens,
		},
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Ollama API returned status %d, body: %s", resp.StatusCode, string(body))
	}

	var ollamaResp OllamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("failed to decode Ollama response: %w", err)
	}

	return strings.TrimSpace(ollamaResp.Response), nil
}

// CheckHealth pings the Ollama tags endpoint
func (o *OllamaGenerator) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("Ollama not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Ollama health check returned status %d", resp.StatusCode)
	}
	return nil
}

// guardedGenerator routes a real generator through its provider guard
type guardedGenerator struct {
	inner ResponseGenerator
	guard *providerGuard
}

func (g *guardedGenerator) Name() string {
	return g.inner.Name()
}

func (g *guardedGenerator) Generate(ctx context.Context, feedback string, sentiment models.Sentiment) (string, error) {
	return guardCall(ctx, g.guard, len(feedback), func(ctx context.Context) (string, error) {
		return g.inner.Generate(ctx, feedback, sentiment)
	})
}
