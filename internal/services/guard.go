package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"github.com/voicefeedback/backend/internal/logger"
	"github.com/voicefeedback/backend/internal/metrics"
)

const (
	breakerConsecutiveFailures = 5
	breakerOpenTimeout         = 30 * time.Second
	breakerInterval            = 60 * time.Second
)

// providerGuard bounds every call to one external provider: a per-call timeout,
// a circuit breaker, metrics and the call log.
type providerGuard struct {
	capability string
	provider   string
	timeout    time.Duration
	cb         *gobreaker.CircuitBreaker
	metrics    *metrics.Metrics
	calls      *CallLog
}

func newProviderGuard(capability, provider string, timeout time.Duration, m *metrics.Metrics, calls *CallLog) *providerGuard {
	g := &providerGuard{
		capability: capability,
		provider:   provider,
		timeout:    timeout,
		metrics:    m,
		calls:      calls,
	}

	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        capability + ":" + provider,
		MaxRequests: 1,
		Interval:    breakerInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isInputRejection(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithProvider(capability, provider).
				WithField("from", from.String()).
				WithField("to", to.String()).
				Warn("Circuit breaker state changed")
			if m != nil {
				m.BreakerState.WithLabelValues(capability, provider).Set(breakerStateValue(to))
			}
		},
	})

	if m != nil {
		m.BreakerState.WithLabelValues(capability, provider).Set(0)
	}
	return g
}

// isInputRejection reports errors about the submitted text rather than the provider.
// The provider answered, so they must not count toward opening the breaker.
func isInputRejection(err error) bool {
	if errors.Is(err, ErrMissingConfidence) {
		return true
	}
	var synthErr *SynthesisError
	return errors.As(err, &synthErr) && synthErr.Kind == SynthesisCancelled && synthErr.InputRejected
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// State returns the breaker state, mostly for tests and the status endpoint
func (g *providerGuard) State() gobreaker.State {
	return g.cb.State()
}

// guardCall runs op through g. The context handed to op carries the provider timeout.
func guardCall[T any](ctx context.Context, g *providerGuard, inputLength int, op func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()

	result, err := g.cb.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return op(callCtx)
	})
	elapsed := time.Since(start)

	call := ProviderCall{
		Timestamp:   start,
		Capability:  g.capability,
		Provider:    g.provider,
		InputLength: inputLength,
		Duration:    elapsed,
		Success:     err == nil,
	}
	if err != nil {
		call.Error = err.Error()
	}
	if g.calls != nil {
		g.calls.Record(call)
	}

	if g.metrics != nil {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeError
		}
		g.metrics.ProviderCalls.WithLabelValues(g.capability, g.provider, outcome).Inc()
		g.metrics.ProviderCallDuration.WithLabelValues(g.capability, g.provider).Observe(elapsed.Seconds())
	}

	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s provider %s: %w", g.capability, g.provider, err)
	}

	value, ok := result.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s provider %s returned unexpected type %T", g.capability, g.provider, result)
	}
	return value, nil
}
