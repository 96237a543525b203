package models

import (
	"encoding/json"
	"math"
	"time"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
	SentimentNeutral  Sentiment = "Neutral"
)

// IsValid reports whether s is one of the three known labels
func (s Sentiment) IsValid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// FeedbackRecord is a single submission plus everything derived from it.
// Records are created once and never modified.
type FeedbackRecord struct {
	ID          string    `json:"id"`
	Feedback    string    `json:"feedback"`
	Sentiment   Sentiment `json:"sentiment"`
	Confidence  float64   `json:"confidence"`
	LLMResponse string    `json:"llm_response"`
	AudioFile   *string   `json:"audio_file"`
	Timestamp   time.Time `json:"timestamp"`
	AudioError  *string   `json:"audio_error"`
}

// HasAudio reports whether a synthesized artifact is attached
func (r FeedbackRecord) HasAudio() bool {
	return r.AudioFile != nil && *r.AudioFile != ""
}

// RoundedConfidence returns the confidence rounded to two decimals, the
// precision every API response uses.
func (r FeedbackRecord) RoundedConfidence() float64 {
	return RoundConfidence(r.Confidence)
}

// MarshalJSON reports confidence rounded to two decimals while the stored value
// keeps full precision.
func (r FeedbackRecord) MarshalJSON() ([]byte, error) {
	type plain FeedbackRecord
	out := plain(r)
	out.Confidence = r.RoundedConfidence()
	return json.Marshal(out)
}

func RoundConfidence(v float64) float64 {
	return math.Round(v*100) / 100
}
