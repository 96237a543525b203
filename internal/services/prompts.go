package services

import (
	"fmt"

	"github.com/voicefeedback/backend/internal/models"
)

// LLM prompt constants for customer reply generation

const (
	// REPLY_SYSTEM_PROMPT frames every generation request
	REPLY_SYSTEM_PROMPT = "You are a professional customer service representative. Provide concise, empathetic, and appropriate responses to customer feedback."

	// POSITIVE_REPLY_PROMPT asks for an appreciative reply
	POSITIVE_REPLY_PROMPT = "The customer provided positive feedback: '%s'. Generate a brief, appreciative response (2-3 sentences) acknowledging their positive experience."

	// NEGATIVE_REPLY_PROMPT asks for an empathetic reply that commits to improvement
	NEGATIVE_REPLY_PROMPT = "The customer provided negative feedback: '%s'. Generate a brief, empathetic response (2-3 sentences) acknowledging their concerns and showing commitment to improvement."

	// NEUTRAL_REPLY_PROMPT asks for a professional thank-you
	NEUTRAL_REPLY_PROMPT = "The customer provided neutral feedback: '%s'. Generate a brief, professional response (2-3 sentences) thanking them and encouraging further engagement."

	// DEFAULT_REPLY_PROMPT is used for any label we do not recognise
	DEFAULT_REPLY_PROMPT = "Respond professionally to this feedback: '%s'"
)

// Fixed replies used when no generation service is configured or the call fails
const (
	POSITIVE_FALLBACK_REPLY = "Thank you for your positive feedback! We're delighted to hear about your experience."
	NEGATIVE_FALLBACK_REPLY = "We apologize for any inconvenience. Your feedback is valuable and we'll work to improve."
	NEUTRAL_FALLBACK_REPLY  = "Thank you for sharing your feedback. We appreciate your input."
	DEFAULT_FALLBACK_REPLY  = "Thank you for your feedback."
)

// Generation parameters shared by every provider
const (
	replyMaxTokens   = 150
	replyTemperature = 0.7
)

// BuildReplyPrompt embeds the feedback verbatim in the template for its sentiment
func BuildReplyPrompt(feedback string, sentiment models.Sentiment) string {
	switch sentiment {
	case models.SentimentPositive:
		return fmt.Sprintf(POSITIVE_REPLY_PROMPT, feedback)
	case models.SentimentNegative:
		return fmt.Sprintf(NEGATIVE_REPLY_PROMPT, feedback)
	case models.SentimentNeutral:
		return fmt.Sprintf(NEUTRAL_REPLY_PROMPT, feedback)
	default:
		return fmt.Sprintf(DEFAULT_REPLY_PROMPT, feedback)
	}
}

// FallbackReply returns the fixed reply for a sentiment
func FallbackReply(sentiment models.Sentiment) string {
	switch sentiment {
	case models.SentimentPositive:
		return POSITIVE_FALLBACK_REPLY
	case models.SentimentNegative:
		return NEGATIVE_FALLBACK_REPLY
	case models.SentimentNeutral:
		return NEUTRAL_FALLBACK_REPLY
	default:
		return DEFAULT_FALLBACK_REPLY
	}
}
