package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	comprehendtypes "github.com/aws/aws-sdk-go-v2/service/comprehend/types"
	"github.com/voicefeedback/backend/internal/models"
)

// SentimentResult is a label plus the provider's confidence in it
type SentimentResult struct {
	Label      models.Sentiment
	Confidence float64
}

// SentimentClassifier maps feedback text to a sentiment
type SentimentClassifier interface {
	Classify(ctx context.Context, text string) (SentimentResult, error)
	Name() string
}

var (
	// ErrMissingConfidence means the provider reported a polarity without a matching score
	ErrMissingConfidence = errors.New("provider returned a sentiment without a matching confidence score")

	positiveWords = []string{"good", "great", "excellent", "amazing", "wonderful", "love", "like", "happy"}
	negativeWords = []string{"bad", "terrible", "awful", "hate", "dislike", "angry", "sad", "disappointed"}
)

const (
	keywordConfidence = 0.8
	keywordTieScore   = 0.6
)

// KeywordClassifier is the local heuristic used when no sentiment service is configured
type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

func (k *KeywordClassifier) Name() string {
	return "keyword"
}

// Classify counts how many positive and negative keywords occur in the text.
// Each keyword counts at most once and matches as a substring.
func (k *KeywordClassifier) Classify(_ context.Context, text string) (SentimentResult, error) {
	lower := strings.ToLower(text)
	pos := countKeywords(lower, positiveWords)
	neg := countKeywords(lower, negativeWords)

	switch {
	case pos > neg:
		return SentimentResult{Label: models.SentimentPositive, Confidence: keywordConfidence}, nil
	case neg > pos:
		return SentimentResult{Label: models.SentimentNegative, Confidence: keywordConfidence}, nil
	default:
		return SentimentResult{Label: models.SentimentNeutral, Confidence: keywordTieScore}, nil
	}
}

func countKeywords(text string, words []string) int {
	count := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			count++
		}
	}
	return count
}

// AzureTextAnalyticsClassifier calls the Azure AI Language sentiment endpoint
type AzureTextAnalyticsClassifier struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewAzureTextAnalyticsClassifier(endpoint, apiKey string, client *http.Client) *AzureTextAnalyticsClassifier {
	if client == nil {
		client = &http.Client{}
	}
	return &AzureTextAnalyticsClassifier{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client:   client,
	}
}

func (a *AzureTextAnalyticsClassifier) Name() string {
	return "azure-text-analytics"
}

type textAnalyticsDocument struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

type textAnalyticsRequest struct {
	Documents []textAnalyticsDocument `json:"documents"`
}

type textAnalyticsResponse struct {
	Documents []struct {
		ID               string             `json:"id"`
		Sentiment        string             `json:"sentiment"`
		ConfidenceScores map[string]float64 `json:"confidenceScores"`
	} `json:"documents"`
	Errors []struct {
		ID    string `json:"id"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"errors"`
}

func (a *AzureTextAnalyticsClassifier) Classify(ctx context.Context, text string) (SentimentResult, error) {
	reqBody := textAnalyticsRequest{
		Documents: []textAnalyticsDocument{{ID: "1", Language: "en", Text: text}},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return SentimentResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := a.endpoint + "/text/analytics/v3.1/sentiment"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return SentimentResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return SentimentResult{}, fmt.Errorf("failed to call Text Analytics API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return SentimentResult{}, fmt.Errorf("Text Analytics API returned status %d: %s", resp.StatusCode, string(body))
	}

	var taResp textAnalyticsResponse
	if err := json.NewDecoder(resp.Body).Decode(&taResp); err != nil {
		return SentimentResult{}, fmt.Errorf("failed to decode Text Analytics response: %w", err)
	}

	if len(taResp.Errors) > 0 {
		e := taResp.Errors[0].Error
		return SentimentResult{}, fmt.Errorf("Text Analytics document error %s: %s", e.Code, e.Message)
	}
	if len(taResp.Documents) == 0 {
		return SentimentResult{}, fmt.Errorf("Text Analytics returned no documents")
	}

	doc := taResp.Documents[0]
	return sentimentFromPolarity(doc.Sentiment, doc.ConfidenceScores)
}

// comprehendAPI is the part of the Comprehend client we use
type comprehendAPI interface {
	DetectSentiment(ctx context.Context, params *comprehend.DetectSentimentInput, optFns ...func(*comprehend.Options)) (*comprehend.DetectSentimentOutput, error)
}

// ComprehendClassifier uses Amazon Comprehend DetectSentiment
type ComprehendClassifier struct {
	client comprehendAPI
}

func NewComprehendClassifier(client comprehendAPI) *ComprehendClassifier {
	return &ComprehendClassifier{client: client}
}

func (c *ComprehendClassifier) Name() string {
	return "aws-comprehend"
}

func (c *ComprehendClassifier) Classify(ctx context.Context, text string) (SentimentResult, error) {
	out, err := c.client.DetectSentiment(ctx, &comprehend.DetectSentimentInput{
		LanguageCode: comprehendtypes.LanguageCodeEn,
		Text:         aws.String(text),
	})
	if err != nil {
		return SentimentResult{}, fmt.Errorf("failed to call Comprehend API: %w", err)
	}

	scores := map[string]float64{}
	if s := out.SentimentScore; s != nil {
		addScore(scores, "positive", s.Positive)
		addScore(scores, "negative", s.Negative)
		addScore(scores, "neutral", s.Neutral)
	}
	return sentimentFromPolarity(string(out.Sentiment), scores)
}

func addScore(scores map[string]float64, key string, v *float32) {
	if v != nil {
		scores[key] = float64(*v)
	}
}

// sentimentFromPolarity capitalizes the provider polarity and picks its score.
// A polarity outside our three labels, or one without a score, is an error.
func sentimentFromPolarity(polarity string, scores map[string]float64) (SentimentResult, error) {
	key := strings.ToLower(strings.TrimSpace(polarity))
	label := models.Sentiment(capitalize(key))
	if !label.IsValid() {
		return SentimentResult{}, fmt.Errorf("unsupported sentiment %q: %w", polarity, ErrMissingConfidence)
	}

	confidence, ok := scores[key]
	if !ok {
		return SentimentResult{}, fmt.Errorf("sentiment %q: %w", polarity, ErrMissingConfidence)
	}
	if confidence < 0 || confidence > 1 {
		return SentimentResult{}, fmt.Errorf("confidence %v out of range for sentiment %q", confidence, polarity)
	}
	return SentimentResult{Label: label, Confidence: confidence}, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// guardedClassifier routes a real classifier through its provider guard
type guardedClassifier struct {
	inner SentimentClassifier
	guard *providerGuard
}

func (g *guardedClassifier) Name() string {
	return g.inner.Name()
}

func (g *guardedClassifier) Classify(ctx context.Context, text string) (SentimentResult, error) {
	return guardCall(ctx, g.guard, len(text), func(ctx context.Context) (SentimentResult, error) {
		return g.inner.Classify(ctx, text)
	})
}
