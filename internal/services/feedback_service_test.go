package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicefeedback/backend/internal/metrics"
	"github.com/voicefeedback/backend/internal/models"
)

type stubClassifier struct {
	result SentimentResult
	err    error
	panics bool
}

func (s *stubClassifier) Name() string { return "stub-classifier" }

func (s *stubClassifier) Classify(context.Context, string) (SentimentResult, error) {
	if s.panics {
		panic("classifier exploded")
	}
	return s.result, s.err
}

type stubGenerator struct {
	reply string
	err   error
	got   string
}

func (s *stubGenerator) Name() string { return "stub-generator" }

func (s *stubGenerator) Generate(_ context.Context, feedback string, _ models.Sentiment) (string, error) {
	s.got = feedback
	return s.reply, s.err
}

// fileSynthesizer writes a small file per call, or fails with err
type fileSynthesizer struct {
	dir string
	err error
}

func (f *fileSynthesizer) Name() string { return "file" }

func (f *fileSynthesizer) Synthesize(context.Context, string, models.Sentiment) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	file, err := os.CreateTemp(f.dir, "response_*.wav")
	if err != nil {
		return "", err
	}
	defer file.Close()
	_, err = file.Write([]byte("RIFF"))
	return file.Name(), err
}

func newTestService(t *testing.T, c SentimentClassifier, g ResponseGenerator, s SpeechSynthesizer) (*FeedbackService, *FeedbackStore, *metrics.Metrics) {
	t.Helper()
	providers := NewLocalProviders()
	if c != nil {
		providers.Classifier = c
	}
	if g != nil {
		providers.Generator = g
	}
	if s != nil {
		providers.Synthesizer = s
	}

	store := NewFeedbackStore()
	m := metrics.NewNop()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	return NewFeedbackService(store, providers, clock, m), store, m
}

func TestSubmitWithLocalProviders(t *testing.T) {
	svc, store, m := newTestService(t, nil, nil, nil)

	res, err := svc.Submit(context.Background(), "  This is great and wonderful  ")
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, models.SentimentPositive, res.Sentiment)
	assert.Equal(t, 0.8, res.Confidence)
	assert.Equal(t, "Thank you for your positive feedback! We're delighted to hear about your experience.", res.LLMResponse)
	assert.False(t, res.HasAudio)
	require.NotNil(t, res.AudioError)
	assert.Equal(t, "Speech service not configured", *res.AudioError)

	record, err := svc.Get(res.ID)
	require.NoError(t, err)
	assert.Equal(t, "This is great and wonderful", record.Feedback)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), record.Timestamp)
	assert.Nil(t, record.AudioFile)

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedbackRecords))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedbackSubmissions.WithLabelValues("Positive", "false")))
}

func TestSubmitRejectsEmptyFeedback(t *testing.T) {
	svc, store, _ := newTestService(t, nil, nil, nil)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := svc.Submit(context.Background(), text)
		assert.ErrorIs(t, err, ErrEmptyFeedback)
	}
	assert.Equal(t, 0, store.Len())
}

func TestSubmitClassifierFailureDegradesToNeutral(t *testing.T) {
	gen := &stubGenerator{reply: "Thanks for writing in."}
	svc, _, m := newTestService(t, &stubClassifier{err: ErrMissingConfidence}, gen, nil)

	res, err := svc.Submit(context.Background(), "It was mixed")
	require.NoError(t, err)
	assert.Equal(t, models.SentimentNeutral, res.Sentiment)
	assert.Equal(t, 0.5, res.Confidence)
	assert.Equal(t, "Thanks for writing in.", res.LLMResponse)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderCalls.WithLabelValues(CapabilitySentiment, "stub-classifier", metrics.OutcomeFallback)))
}

func TestSubmitRejectsUnknownLabel(t *testing.T) {
	classifier := &stubClassifier{result: SentimentResult{Label: "Mixed", Confidence: 0.9}}
	svc, _, _ := newTestService(t, classifier, nil, nil)

	res, err := svc.Submit(context.Background(), "good and bad")
	require.NoError(t, err)
	assert.Equal(t, models.SentimentNeutral, res.Sentiment)
	assert.Equal(t, 0.5, res.Confidence)
}

func TestSubmitGeneratorFailureUsesFallbackReply(t *testing.T) {
	classifier := &stubClassifier{result: SentimentResult{Label: models.SentimentNegative, Confidence: 0.934}}

	for name, gen := range map[string]*stubGenerator{
		"error":       {err: errors.New("groq unavailable")},
		"empty reply": {reply: "   "},
	} {
		t.Run(name, func(t *testing.T) {
			svc, _, _ := newTestService(t, classifier, gen, nil)

			res, err := svc.Submit(context.Background(), "Terrible")
			require.NoError(t, err)
			assert.Equal(t, NEGATIVE_FALLBACK_REPLY, res.LLMResponse)
			assert.Equal(t, 0.93, res.Confidence)
		})
	}
}

func TestSubmitPassesTrimmedFeedbackToGenerator(t *testing.T) {
	gen := &stubGenerator{reply: "ok"}
	svc, _, _ := newTestService(t, nil, gen, nil)

	_, err := svc.Submit(context.Background(), "\n  hello there \t")
	require.NoError(t, err)
	assert.Equal(t, "hello there", gen.got)
}

func TestSubmitWithAudio(t *testing.T) {
	dir := t.TempDir()
	svc, _, _ := newTestService(t, nil, nil, &fileSynthesizer{dir: dir})

	res, err := svc.Submit(context.Background(), "I love it")
	require.NoError(t, err)
	assert.True(t, res.HasAudio)
	assert.Nil(t, res.AudioError)

	path, err := svc.AudioFor(res.ID)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.FileExists(t, path)

	assert.Equal(t, 1, svc.RemoveAudioFiles())
	assert.NoFileExists(t, path)
	assert.Equal(t, 0, svc.RemoveAudioFiles())
}

func TestSubmitSynthesisFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"cancelled", synthesisCancelled("TooManyRequests", "slow down"), "Speech cancelled: TooManyRequests - slow down"},
		{"wrapped", synthesisFailed(errors.New("connection reset")), "Audio generation temporarily unavailable: connection reset..."},
		{"untyped", errors.New("circuit breaker is open"), "Audio generation temporarily unavailable: circuit breaker is open..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(t, nil, nil, &fileSynthesizer{err: tt.err})

			res, err := svc.Submit(context.Background(), "It arrived")
			require.NoError(t, err)
			assert.False(t, res.HasAudio)
			require.NotNil(t, res.AudioError)
			assert.Equal(t, tt.want, *res.AudioError)

			_, err = svc.AudioFor(res.ID)
			assert.ErrorIs(t, err, ErrAudioNotAvailable)
		})
	}
}

func TestSubmitRecoversFromPanics(t *testing.T) {
	svc, store, _ := newTestService(t, &stubClassifier{panics: true}, nil, nil)

	res, err := svc.Submit(context.Background(), "hello")
	assert.Nil(t, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classifier exploded")
	assert.Equal(t, 0, store.Len())
}

func TestSubmitIgnoresCallerCancellation(t *testing.T) {
	svc, _, _ := newTestService(t, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.Submit(ctx, "This is bad and terrible")
	require.NoError(t, err)
	assert.Equal(t, models.SentimentNegative, res.Sentiment)
}

func TestSubmitAssignsUniqueIDsInOrder(t *testing.T) {
	svc, _, _ := newTestService(t, nil, nil, nil)

	first, err := svc.Submit(context.Background(), "A")
	require.NoError(t, err)
	second, err := svc.Submit(context.Background(), "B")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	records := svc.List()
	require.Len(t, records, 2)
	assert.Equal(t, first.ID, records[0].ID)
	assert.Equal(t, second.ID, records[1].ID)
	assert.Equal(t, records, svc.List())
}

func TestGetAndAudioForUnknownID(t *testing.T) {
	svc, _, _ := newTestService(t, nil, nil, nil)

	_, err := svc.Get("nope")
	assert.ErrorIs(t, err, ErrFeedbackNotFound)
	_, err = svc.AudioFor("nope")
	assert.ErrorIs(t, err, ErrFeedbackNotFound)
}

func TestSubmitMixedSentimentDoesNotTripBreaker(t *testing.T) {
	var served atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sentiment := "positive"
		if served.Add(1) <= breakerConsecutiveFailures {
			sentiment = "mixed"
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"documents":[{"id":"1","sentiment":"` + sentiment +
			`","confidenceScores":{"positive":0.9,"neutral":0.05,"negative":0.05}}]}`))
	}))
	defer srv.Close()

	m := metrics.NewNop()
	azure := NewAzureTextAnalyticsClassifier(srv.URL, "key", srv.Client())
	classifier := &guardedClassifier{
		inner: azure,
		guard: newProviderGuard(CapabilitySentiment, azure.Name(), time.Second, m, NewCallLog(0)),
	}
	svc, _, _ := newTestService(t, classifier, nil, nil)

	for i := 0; i < breakerConsecutiveFailures; i++ {
		res, err := svc.Submit(context.Background(), "good food, slow service")
		require.NoError(t, err)
		assert.Equal(t, models.SentimentNeutral, res.Sentiment)
		assert.Equal(t, 0.5, res.Confidence)
	}

	res, err := svc.Submit(context.Background(), "I love this product")
	require.NoError(t, err)
	assert.Equal(t, models.SentimentPositive, res.Sentiment)
	assert.Equal(t, 0.9, res.Confidence)
	assert.Equal(t, int32(breakerConsecutiveFailures+1), served.Load())
}
